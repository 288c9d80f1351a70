// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"stockwatch/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Tickers     []TickerConfig    `mapstructure:"tickers"`
	Provider    ProviderConfig    `mapstructure:"provider"`
	MarketHours MarketHoursConfig `mapstructure:"market_hours"`
	Prediction  PredictionConfig  `mapstructure:"prediction"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	News        NewsConfig        `mapstructure:"news"`
	State       StateConfig       `mapstructure:"state"`
	History     HistoryConfig     `mapstructure:"history"`
	Test        TestConfig        `mapstructure:"test"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// TickerConfig holds one watched symbol with its trigger rules
type TickerConfig struct {
	Symbol        string        `mapstructure:"symbol"`
	Name          string        `mapstructure:"name"` // optional display name for messages and news queries
	Rules         []models.Rule `mapstructure:"rules"`
	UsePrediction bool          `mapstructure:"use_prediction"`
}

// ProviderConfig holds market data provider configuration
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Range          string        `mapstructure:"range"`
	Interval       string        `mapstructure:"interval"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// MarketHoursConfig holds the venue trading-hours window
type MarketHoursConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Timezone     string `mapstructure:"timezone"`
	Open         string `mapstructure:"open"`  // "15:04" local time
	Close        string `mapstructure:"close"` // "15:04" local time
	WeekdaysOnly bool   `mapstructure:"weekdays_only"`
}

// PredictionConfig holds the ML direction predictor configuration
type PredictionConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ModelPath string `mapstructure:"model_path"`
}

// NotifyConfig holds notification sink configuration
type NotifyConfig struct {
	Ntfy     NtfyConfig     `mapstructure:"ntfy"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// NtfyConfig holds ntfy push configuration
type NtfyConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Server   string        `mapstructure:"server"`
	Topic    string        `mapstructure:"topic"`
	Priority string        `mapstructure:"priority"`
	Markdown bool          `mapstructure:"markdown"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// NewsConfig holds headline retrieval configuration
type NewsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Limit    int           `mapstructure:"limit"`
	Lookback time.Duration `mapstructure:"lookback"`
	Language string        `mapstructure:"language"`
	Country  string        `mapstructure:"country"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// StateConfig holds the alert dedup state file configuration
type StateConfig struct {
	FilePath string `mapstructure:"file_path"`
}

// HistoryConfig holds the dispatched-alert audit store configuration
type HistoryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	DBPath    string `mapstructure:"db_path"`
	MaxAlerts int    `mapstructure:"max_alerts"`
}

// TestConfig holds manual-testing overrides
type TestConfig struct {
	BypassMarketHours bool `mapstructure:"bypass_market_hours"`
	DryRun            bool `mapstructure:"dry_run"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("STOCKWATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Provider defaults
	v.SetDefault("provider.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("provider.range", "1y")
	v.SetDefault("provider.interval", "1d")
	v.SetDefault("provider.timeout", "30s")
	v.SetDefault("provider.max_retries", 3)
	v.SetDefault("provider.retry_delay_base", "1s")

	// Market hours defaults (NYSE regular session)
	v.SetDefault("market_hours.enabled", true)
	v.SetDefault("market_hours.timezone", "America/New_York")
	v.SetDefault("market_hours.open", "09:30")
	v.SetDefault("market_hours.close", "16:00")
	v.SetDefault("market_hours.weekdays_only", true)

	// Prediction defaults
	v.SetDefault("prediction.enabled", false)
	v.SetDefault("prediction.model_path", "./models/forest.json")

	// Notify defaults
	v.SetDefault("notify.ntfy.enabled", false)
	v.SetDefault("notify.ntfy.server", "https://ntfy.sh")
	v.SetDefault("notify.ntfy.priority", "high")
	v.SetDefault("notify.ntfy.markdown", true)
	v.SetDefault("notify.ntfy.timeout", "20s")
	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.max_retries", 3)
	v.SetDefault("notify.telegram.retry_delay_base", "1s")

	// News defaults
	v.SetDefault("news.enabled", false)
	v.SetDefault("news.limit", 2)
	v.SetDefault("news.lookback", "12h")
	v.SetDefault("news.language", "en")
	v.SetDefault("news.country", "US")
	v.SetDefault("news.timeout", "10s")

	// State defaults
	v.SetDefault("state.file_path", "./data/alert-state.json")

	// History defaults
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.db_path", "./data/history.db")
	v.SetDefault("history.max_alerts", 1000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if len(c.Tickers) == 0 {
		return fmt.Errorf("tickers must contain at least one entry")
	}
	for i, t := range c.Tickers {
		norm, err := models.NormalizeTicker(t.Symbol)
		if err != nil {
			return fmt.Errorf("tickers[%d]: %w", i, err)
		}
		// The normalized symbol is the identity key everywhere downstream:
		// provider fetches, messages, and fingerprints.
		c.Tickers[i].Symbol = norm
		if len(t.Rules) == 0 && !t.UsePrediction {
			return fmt.Errorf("tickers[%d] (%s): needs at least one rule or use_prediction", i, t.Symbol)
		}
		for j, r := range t.Rules {
			if err := r.Validate(); err != nil {
				return fmt.Errorf("tickers[%d] (%s) rules[%d]: %w", i, t.Symbol, j, err)
			}
		}
	}

	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required")
	}
	if c.Provider.Timeout < time.Second {
		return fmt.Errorf("provider.timeout must be at least 1 second")
	}
	if c.Provider.MaxRetries < 1 {
		return fmt.Errorf("provider.max_retries must be at least 1")
	}

	if c.MarketHours.Enabled {
		if c.MarketHours.Timezone == "" {
			return fmt.Errorf("market_hours.timezone is required when market hours are enabled")
		}
		if c.MarketHours.Open == "" || c.MarketHours.Close == "" {
			return fmt.Errorf("market_hours.open and market_hours.close are required when market hours are enabled")
		}
	}

	if c.Prediction.Enabled && c.Prediction.ModelPath == "" {
		return fmt.Errorf("prediction.model_path is required when prediction is enabled")
	}

	if c.Notify.Ntfy.Enabled {
		if c.Notify.Ntfy.Server == "" {
			return fmt.Errorf("notify.ntfy.server is required when ntfy is enabled")
		}
		if c.Notify.Ntfy.Topic == "" {
			return fmt.Errorf("notify.ntfy.topic is required when ntfy is enabled")
		}
	}
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token is required when telegram is enabled")
		}
		if c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.News.Enabled {
		if c.News.Limit < 1 {
			return fmt.Errorf("news.limit must be at least 1")
		}
		if c.News.Lookback < time.Hour {
			return fmt.Errorf("news.lookback must be at least 1 hour")
		}
	}

	if c.State.FilePath == "" {
		return fmt.Errorf("state.file_path is required")
	}
	if c.History.Enabled {
		if c.History.DBPath == "" {
			return fmt.Errorf("history.db_path is required when history is enabled")
		}
		if c.History.MaxAlerts < 1 {
			return fmt.Errorf("history.max_alerts must be at least 1")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

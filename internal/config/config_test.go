package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"stockwatch/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

const minimalConfig = `
tickers:
  - symbol: AAPL
    rules:
      - kind: price_above
        bound: 250
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Provider.BaseURL != "https://query1.finance.yahoo.com" {
		t.Errorf("provider.base_url = %q", cfg.Provider.BaseURL)
	}
	if cfg.Provider.Range != "1y" || cfg.Provider.Interval != "1d" {
		t.Errorf("provider range/interval = %q/%q, want 1y/1d", cfg.Provider.Range, cfg.Provider.Interval)
	}
	if cfg.Provider.Timeout != 30*time.Second {
		t.Errorf("provider.timeout = %v, want 30s", cfg.Provider.Timeout)
	}
	if !cfg.MarketHours.Enabled || cfg.MarketHours.Timezone != "America/New_York" {
		t.Errorf("market hours defaults wrong: %+v", cfg.MarketHours)
	}
	if cfg.MarketHours.Open != "09:30" || cfg.MarketHours.Close != "16:00" {
		t.Errorf("market window = %s-%s, want 09:30-16:00", cfg.MarketHours.Open, cfg.MarketHours.Close)
	}
	if cfg.State.FilePath != "./data/alert-state.json" {
		t.Errorf("state.file_path = %q", cfg.State.FilePath)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("logging defaults = %s/%s, want info/text", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Prediction.Enabled {
		t.Error("prediction should default to disabled")
	}
	if !cfg.History.Enabled || cfg.History.MaxAlerts != 1000 {
		t.Errorf("history defaults wrong: %+v", cfg.History)
	}
}

func TestLoadFullConfig(t *testing.T) {
	content := `
tickers:
  - symbol: AAPL
    name: Apple
    rules:
      - kind: price_above
        bound: 250
      - kind: ma_crossover
        short_window: 10
        long_window: 50
  - symbol: VOO
    use_prediction: true
    rules:
      - kind: percent_move
        percent: 2
provider:
  range: 6mo
  timeout: 10s
prediction:
  enabled: true
  model_path: /tmp/forest.json
notify:
  ntfy:
    enabled: true
    server: https://ntfy.example.com
    topic: alerts
test:
  bypass_market_hours: true
  dry_run: true
logging:
  level: debug
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	if len(cfg.Tickers) != 2 {
		t.Fatalf("got %d tickers, want 2", len(cfg.Tickers))
	}
	apple := cfg.Tickers[0]
	if apple.Name != "Apple" || len(apple.Rules) != 2 {
		t.Errorf("first ticker parsed wrong: %+v", apple)
	}
	if apple.Rules[1].Kind != models.RuleMACrossover || apple.Rules[1].LongWindow != 50 {
		t.Errorf("crossover rule parsed wrong: %+v", apple.Rules[1])
	}
	if !cfg.Tickers[1].UsePrediction {
		t.Error("use_prediction not parsed")
	}
	if cfg.Provider.Range != "6mo" {
		t.Errorf("provider.range = %q, want override 6mo", cfg.Provider.Range)
	}
	if cfg.Provider.Interval != "1d" {
		t.Errorf("provider.interval = %q, want default to survive partial section", cfg.Provider.Interval)
	}
	if !cfg.Test.BypassMarketHours || !cfg.Test.DryRun {
		t.Errorf("test overrides not parsed: %+v", cfg.Test)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() = nil error, want failure for missing file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(writeConfig(t, minimalConfig))
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		return cfg
	}

	t.Run("minimal config is valid", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no tickers", func(c *Config) { c.Tickers = nil }},
		{"bad symbol", func(c *Config) { c.Tickers[0].Symbol = "AA PL" }},
		{"ticker without rules or prediction", func(c *Config) { c.Tickers[0].Rules = nil }},
		{"bad rule", func(c *Config) { c.Tickers[0].Rules[0].Bound = -1 }},
		{"empty provider url", func(c *Config) { c.Provider.BaseURL = "" }},
		{"tiny timeout", func(c *Config) { c.Provider.Timeout = time.Millisecond }},
		{"zero retries", func(c *Config) { c.Provider.MaxRetries = 0 }},
		{"market hours without timezone", func(c *Config) { c.MarketHours.Timezone = "" }},
		{"prediction without model path", func(c *Config) { c.Prediction.Enabled = true; c.Prediction.ModelPath = "" }},
		{"ntfy without topic", func(c *Config) { c.Notify.Ntfy.Enabled = true; c.Notify.Ntfy.Topic = "" }},
		{"telegram without token", func(c *Config) { c.Notify.Telegram.Enabled = true; c.Notify.Telegram.ChatID = "1" }},
		{"news with zero limit", func(c *Config) { c.News.Enabled = true; c.News.Limit = 0 }},
		{"empty state path", func(c *Config) { c.State.FilePath = "" }},
		{"history without db path", func(c *Config) { c.History.DBPath = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestValidateNormalizesTickerSymbols(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
tickers:
  - symbol: aapl
    rules:
      - kind: price_above
        bound: 250
  - symbol: " voo "
    use_prediction: true
`))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	// The config spelling must not leak into fingerprints: a lowercase
	// symbol re-spelled uppercase later would re-fire every recorded alert.
	if cfg.Tickers[0].Symbol != "AAPL" {
		t.Errorf("Tickers[0].Symbol = %q, want AAPL after validation", cfg.Tickers[0].Symbol)
	}
	if cfg.Tickers[1].Symbol != "VOO" {
		t.Errorf("Tickers[1].Symbol = %q, want VOO after validation", cfg.Tickers[1].Symbol)
	}
}

func TestValidateAllowsPredictionOnlyTicker(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
tickers:
  - symbol: VOO
    use_prediction: true
`))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil for prediction-only ticker", err)
	}
}

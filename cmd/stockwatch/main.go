package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockwatch/internal/calendar"
	"stockwatch/internal/config"
	"stockwatch/internal/engine"
	"stockwatch/internal/logger"
	"stockwatch/internal/marketdata"
	"stockwatch/internal/news"
	"stockwatch/internal/notify"
	"stockwatch/internal/predict"
	"stockwatch/internal/state"
	"stockwatch/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	interval := flag.Duration("interval", 0, "rerun the cycle at this interval instead of exiting (0 = run once)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting stockwatch")
	logger.Info("Watching %d tickers, state file %s", len(cfg.Tickers), cfg.State.FilePath)
	if cfg.Notify.Ntfy.Enabled {
		logger.Info("ntfy enabled (topic %s)", logger.MaskSecret(cfg.Notify.Ntfy.Topic))
	}
	if cfg.Notify.Telegram.Enabled {
		logger.Info("Telegram enabled (bot token %s)", logger.MaskSecret(cfg.Notify.Telegram.BotToken))
	}

	eng, cleanup, err := buildEngine(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *interval <= 0 {
		if _, err := eng.Run(ctx); err != nil {
			logger.Fatal("Run failed: %v", err)
		}
		return
	}

	logger.Info("Looping every %v", *interval)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		if _, err := eng.Run(ctx); err != nil {
			logger.Error("Run failed: %v", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("Shutting down")
			return
		case <-ticker.C:
		}
	}
}

// buildEngine wires the configured collaborators. The returned cleanup closes
// anything holding resources and is safe to call once.
func buildEngine(cfg *config.Config) (*engine.Engine, func(), error) {
	cleanup := func() {}

	provider := marketdata.NewClient(cfg.Provider.BaseURL, cfg.Provider.Timeout, marketdata.ClientConfig{
		MaxRetries:     cfg.Provider.MaxRetries,
		RetryDelayBase: cfg.Provider.RetryDelayBase,
	})

	cal, err := calendar.New(cfg.MarketHours)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to build market calendar: %w", err)
	}

	var predictor predict.Predictor = predict.Null{}
	if cfg.Prediction.Enabled {
		forest, err := predict.Load(cfg.Prediction.ModelPath)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to load prediction model: %w", err)
		}
		predictor = forest
	}

	store := state.New(cfg.State.FilePath)

	var sinks notify.Multi
	if cfg.Notify.Ntfy.Enabled {
		sinks = append(sinks, notify.NewNtfy(
			cfg.Notify.Ntfy.Server,
			cfg.Notify.Ntfy.Topic,
			cfg.Notify.Ntfy.Priority,
			cfg.Notify.Ntfy.Markdown,
			cfg.Test.DryRun,
			cfg.Notify.Ntfy.Timeout,
		))
	}
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(
			cfg.Notify.Telegram.BotToken,
			cfg.Notify.Telegram.ChatID,
			cfg.Notify.Telegram.MaxRetries,
			cfg.Notify.Telegram.RetryDelayBase,
		)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to build Telegram sink: %w", err)
		}
		sinks = append(sinks, tg)
	}
	if len(sinks) == 0 {
		logger.Warn("No notification sinks enabled; alerts will be evaluated and recorded only")
	}

	tickers := make([]engine.TickerSpec, 0, len(cfg.Tickers))
	for _, t := range cfg.Tickers {
		tickers = append(tickers, engine.TickerSpec{
			Symbol:        t.Symbol,
			Name:          t.Name,
			Rules:         t.Rules,
			UsePrediction: t.UsePrediction && cfg.Prediction.Enabled,
		})
	}

	var opts []engine.Option
	if cfg.History.Enabled {
		hist, err := storage.New(cfg.History.MaxAlerts, cfg.History.DBPath)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to open alert history: %w", err)
		}
		cleanup = func() {
			if err := hist.Close(); err != nil {
				logger.Warn("Failed to close alert history: %v", err)
			}
		}
		opts = append(opts, engine.WithHistory(hist))
	}
	if cfg.News.Enabled {
		opts = append(opts, engine.WithHeadlines(news.NewClient(
			"",
			cfg.News.Language,
			cfg.News.Country,
			cfg.News.Limit,
			cfg.News.Lookback,
			cfg.News.Timeout,
		)))
	}

	eng := engine.New(engine.Config{
		Range:             cfg.Provider.Range,
		Interval:          cfg.Provider.Interval,
		BypassMarketHours: cfg.Test.BypassMarketHours,
	}, tickers, provider, cal, predictor, store, sinks, opts...)

	return eng, cleanup, nil
}

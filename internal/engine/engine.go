// Package engine runs one alert evaluation cycle: per ticker it gates on
// market hours, fetches the series, evaluates rules (plus the optional
// direction prediction), filters out alerts that already fired in earlier
// runs, dispatches the rest, and persists the dedup state exactly once at
// the end of the run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockwatch/internal/calendar"
	"stockwatch/internal/logger"
	"stockwatch/internal/marketdata"
	"stockwatch/internal/models"
	"stockwatch/internal/news"
	"stockwatch/internal/notify"
	"stockwatch/internal/predict"
	"stockwatch/internal/rules"
	"stockwatch/internal/state"
	"stockwatch/internal/storage"
)

// TickerSpec is one watched symbol with its trigger configuration.
type TickerSpec struct {
	Symbol        string
	Name          string
	Rules         []models.Rule
	UsePrediction bool
}

// Config holds the engine's run parameters.
type Config struct {
	Range             string
	Interval          string
	BypassMarketHours bool
}

// HeadlineProvider supplies optional news context for alert messages.
type HeadlineProvider interface {
	Headlines(ctx context.Context, query string) ([]news.Headline, error)
}

// Engine composes the calendar, data provider, predictor, rule evaluator,
// state store, and notifier for one run.
type Engine struct {
	cfg       Config
	tickers   []TickerSpec
	provider  marketdata.Provider
	cal       *calendar.Calendar
	predictor predict.Predictor
	store     *state.Store
	notifier  notify.Notifier
	history   *storage.Storage // optional
	headlines HeadlineProvider // optional
	now       func() time.Time // injectable for tests
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithHistory records every dispatched alert into the audit store.
func WithHistory(h *storage.Storage) Option {
	return func(e *Engine) { e.history = h }
}

// WithHeadlines appends recent news to alert messages.
func WithHeadlines(p HeadlineProvider) Option {
	return func(e *Engine) { e.headlines = p }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine. The predictor may be nil; a null object is used so
// the evaluator never branches on its presence.
func New(
	cfg Config,
	tickers []TickerSpec,
	provider marketdata.Provider,
	cal *calendar.Calendar,
	predictor predict.Predictor,
	store *state.Store,
	notifier notify.Notifier,
	opts ...Option,
) *Engine {
	if predictor == nil {
		predictor = predict.Null{}
	}
	e := &Engine{
		cfg:       cfg,
		tickers:   tickers,
		provider:  provider,
		cal:       cal,
		predictor: predictor,
		store:     store,
		notifier:  notifier,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one cycle and returns the number of novel events handed to
// the dispatcher. State is persisted exactly once at the end, even when
// dispatch fails or the context is cancelled mid-run, so an alert that
// really fired is never re-notified (at-most-once bias).
func (e *Engine) Run(ctx context.Context) (int, error) {
	startTime := e.now()
	logger.Info("Starting alert cycle (%d tickers)", len(e.tickers))

	if err := e.store.Load(); err != nil {
		// Load degrades every failure to ErrStateCorrupt with empty state.
		// Dedup history is gone; duplicates are possible once.
		logger.Warn("Alert state unreadable, starting from empty state: %v", err)
	}
	logger.Debug("Loaded %d recorded fingerprints", e.store.Len())

	marketOpen := e.cal.IsOpen(e.now()) || e.cfg.BypassMarketHours
	if !marketOpen {
		logger.Info("Market closed; only prediction rules remain eligible")
	}

	dispatched := 0
	var runErr error

tickers:
	for _, spec := range e.tickers {
		select {
		case <-ctx.Done():
			logger.Warn("Run cancelled; persisting partial state")
			runErr = ctx.Err()
			break tickers
		default:
		}

		if !marketOpen && !spec.UsePrediction {
			logger.Debug("Skipping %s: market closed and no market-hours-independent rules", spec.Symbol)
			continue
		}

		dispatched += e.runTicker(ctx, spec, marketOpen)
	}

	if err := e.store.Save(); err != nil {
		logger.Error("Failed to persist alert state: %v", err)
		if runErr == nil {
			runErr = err
		}
	}

	logger.Info("Alert cycle completed in %v: %d events dispatched", e.now().Sub(startTime), dispatched)
	return dispatched, runErr
}

// runTicker evaluates one symbol. Every failure inside is recovered: a bad
// ticker never aborts the run.
func (e *Engine) runTicker(ctx context.Context, spec TickerSpec, marketOpen bool) int {
	series, err := e.provider.FetchSeries(ctx, spec.Symbol, e.cfg.Range, e.cfg.Interval)
	if err != nil {
		if errors.Is(err, marketdata.ErrDataUnavailable) {
			logger.Warn("Skipping %s: %v", spec.Symbol, err)
		} else {
			logger.Error("Skipping %s: unexpected fetch error: %v", spec.Symbol, err)
		}
		return 0
	}
	if err := series.Validate(); err != nil {
		logger.Warn("Skipping %s: invalid series from provider: %v", spec.Symbol, err)
		return 0
	}

	direction := models.Unknown
	if spec.UsePrediction {
		direction = e.predictor.Predict(series)
		logger.Debug("Prediction for %s: %s", spec.Symbol, direction)
	}

	candidates := rules.Evaluate(rules.Input{
		Ticker:        spec.Symbol,
		DisplayName:   spec.Name,
		Series:        series,
		Rules:         spec.Rules,
		UsePrediction: spec.UsePrediction,
		Direction:     direction,
		MarketOpen:    marketOpen,
	})
	logger.Debug("Evaluated %s: %d candidate events", spec.Symbol, len(candidates))

	dispatched := 0
	for _, ev := range candidates {
		if e.store.HasFired(ev.Fingerprint) {
			logger.Debug("Suppressing duplicate %s alert for %s (fingerprint %s)", ev.Kind, ev.Ticker, ev.Fingerprint)
			e.store.Record(ev.Fingerprint, ev.FiredAt)
			continue
		}

		// Record before dispatch: if the send fails we still never
		// re-notify next run.
		e.store.Record(ev.Fingerprint, ev.FiredAt)
		e.dispatch(ctx, spec, ev)
		dispatched++
	}
	return dispatched
}

func (e *Engine) dispatch(ctx context.Context, spec TickerSpec, ev models.AlertEvent) {
	title := fmt.Sprintf("Stock Alert: %s", ev.Ticker)
	message := ev.Message

	if e.headlines != nil {
		query := news.BuildQuery(spec.Name, spec.Symbol)
		items, err := e.headlines.Headlines(ctx, query)
		if err != nil {
			logger.Warn("Failed to fetch headlines for %s: %v", spec.Symbol, err)
		} else {
			message += news.FormatBlock(items)
		}
	}

	clickURL := fmt.Sprintf("https://finance.yahoo.com/quote/%s", ev.Ticker)
	if err := e.notifier.Send(title, message, clickURL); err != nil {
		logger.Error("Failed to dispatch %s alert for %s (fingerprint %s): %v", ev.Kind, ev.Ticker, ev.Fingerprint, err)
	} else {
		logger.Info("Dispatched %s alert for %s (fired at %s)", ev.Kind, ev.Ticker, ev.FiredAt.Format(time.RFC3339))
	}

	if e.history != nil {
		if err := e.history.RecordDispatched(ev, e.now()); err != nil {
			logger.Warn("Failed to record alert history for %s: %v", ev.Ticker, err)
		}
	}
}

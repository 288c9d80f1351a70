// Package marketdata fetches OHLCV series from the Yahoo Finance chart API.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"stockwatch/internal/models"
)

// ErrDataUnavailable marks a network or provider failure for one ticker.
// The engine skips the ticker and keeps going.
var ErrDataUnavailable = errors.New("market data unavailable")

// Provider is the consumed data-source interface.
type Provider interface {
	FetchSeries(ctx context.Context, symbol, rng, interval string) (models.Series, error)
}

// ClientConfig tunes retry behavior.
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
}

// Client fetches series over the Yahoo v8 chart endpoint.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a Yahoo chart API client.
func NewClient(baseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &Client{
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
	}
}

// chartResponse mirrors the Yahoo v8 chart payload. Pointer slices keep JSON
// nulls (missing sessions) distinguishable from real zeros.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				Adjclose []struct {
					Adjclose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchSeries retrieves the daily series for one symbol. The close column is
// the adjusted close when the provider returns one.
func (c *Client) FetchSeries(ctx context.Context, symbol, rng, interval string) (models.Series, error) {
	u, err := url.Parse(fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(symbol)))
	if err != nil {
		return models.Series{}, fmt.Errorf("failed to build chart URL: %w", err)
	}
	q := u.Query()
	q.Set("range", rng)
	q.Set("interval", interval)
	q.Set("events", "div,splits")
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return models.Series{}, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, symbol, err)
	}
	defer resp.Body.Close()

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.Series{}, fmt.Errorf("%w: %s: failed to decode chart response: %v", ErrDataUnavailable, symbol, err)
	}
	if payload.Chart.Error != nil {
		return models.Series{}, fmt.Errorf("%w: %s: provider error %s: %s",
			ErrDataUnavailable, symbol, payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return models.Series{}, fmt.Errorf("%w: %s: empty chart result", ErrDataUnavailable, symbol)
	}

	result := payload.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.Adjclose) > 0 {
		adj = result.Indicators.Adjclose[0].Adjclose
	}

	series := models.Series{Ticker: symbol}
	for i, ts := range result.Timestamp {
		closeAt := at(quote.Close, i)
		if adj != nil && at(adj, i) != nil {
			closeAt = at(adj, i)
		}
		// A bar without a close is a missed session; skip it.
		if closeAt == nil {
			continue
		}
		series.Bars = append(series.Bars, models.PricePoint{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      deref(at(quote.Open, i)),
			High:      deref(at(quote.High, i)),
			Low:       deref(at(quote.Low, i)),
			Close:     *closeAt,
			Volume:    deref(at(quote.Volume, i)),
		})
	}
	if len(series.Bars) == 0 {
		return models.Series{}, fmt.Errorf("%w: %s: no usable bars", ErrDataUnavailable, symbol)
	}
	return series, nil
}

func at(xs []*float64, i int) *float64 {
	if i < 0 || i >= len(xs) {
		return nil
	}
	return xs[i]
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// doRequest performs the HTTP request with linear-backoff retry on network
// errors and 5xx responses.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "stockwatch/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if sleepErr := sleepCtx(ctx, c.retryDelayBase*time.Duration(i+1)); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			if sleepErr := sleepCtx(ctx, c.retryDelayBase*time.Duration(i+1)); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

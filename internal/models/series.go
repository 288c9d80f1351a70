// Package models defines the core domain entities: price series, rules, and alert events.
package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// MinCrossoverBars is the minimum series length required before moving-average
// and prediction rules are evaluated at all.
const MinCrossoverBars = 20

// NormalizeTicker upper-cases a raw symbol and rejects embedded whitespace.
func NormalizeTicker(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errors.New("ticker must not be empty")
	}
	if strings.ContainsAny(s, " \t\n") {
		return "", fmt.Errorf("ticker %q must not contain whitespace", raw)
	}
	return strings.ToUpper(s), nil
}

// Direction is the predicted next-session price movement class.
type Direction int

const (
	Unknown Direction = iota
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

// PricePoint is a single OHLCV bar. Close is the provider's adjusted close.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Validate checks the hard constraints on a bar. High/low ordering relative to
// open/close is a provider-side expectation and deliberately not enforced:
// real feeds violate it and the engine must keep going.
func (p PricePoint) Validate() error {
	if p.Timestamp.IsZero() {
		return errors.New("price point timestamp must be set")
	}
	for _, v := range []float64{p.Open, p.High, p.Low, p.Close, p.Volume} {
		if math.IsInf(v, 0) {
			return errors.New("price fields must be finite")
		}
		if v < 0 && !math.IsNaN(v) {
			return errors.New("price fields must not be negative")
		}
	}
	return nil
}

// Series is an ordered-by-timestamp sequence of bars for one ticker.
// Timestamps are strictly increasing; gaps (missed sessions) are allowed.
type Series struct {
	Ticker string       `json:"ticker"`
	Bars   []PricePoint `json:"bars"`
}

func (s Series) Len() int { return len(s.Bars) }

// Last returns the most recent bar. The second return is false on an empty series.
func (s Series) Last() (PricePoint, bool) {
	if len(s.Bars) == 0 {
		return PricePoint{}, false
	}
	return s.Bars[len(s.Bars)-1], true
}

// Closes returns the close column in bar order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Validate checks ticker presence, per-bar constraints, and strict timestamp ordering.
func (s Series) Validate() error {
	if s.Ticker == "" {
		return errors.New("series ticker must not be empty")
	}
	for i, b := range s.Bars {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
		if i > 0 && !b.Timestamp.After(s.Bars[i-1].Timestamp) {
			return fmt.Errorf("bar %d: timestamps must be strictly increasing", i)
		}
	}
	return nil
}

// MA computes the simple moving average of the closes over the n bars ending
// at index end (inclusive). It returns NaN when the window does not fit or
// when any close inside it is NaN, so callers treat both the same way:
// insufficient history.
func (s Series) MA(n, end int) float64 {
	if n <= 0 || end >= len(s.Bars) || end-n+1 < 0 {
		return math.NaN()
	}
	var sum float64
	for i := end - n + 1; i <= end; i++ {
		c := s.Bars[i].Close
		if math.IsNaN(c) {
			return math.NaN()
		}
		sum += c
	}
	return sum / float64(n)
}

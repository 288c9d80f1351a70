// Package calendar decides whether a given instant falls inside the venue's
// trading hours. Pure time arithmetic, no I/O; configuration problems surface
// once at construction, never per call.
package calendar

import (
	"fmt"
	"time"

	"stockwatch/internal/config"
)

// Calendar gates rule evaluation on the venue's trading-hours window.
type Calendar struct {
	enabled      bool
	loc          *time.Location
	openMinutes  int
	closeMinutes int
	weekdaysOnly bool
}

// New validates the venue configuration and builds a calendar. An invalid
// timezone, unparsable time-of-day, or a close at or before the open is a
// configuration error.
func New(cfg config.MarketHoursConfig) (*Calendar, error) {
	if !cfg.Enabled {
		return &Calendar{enabled: false}, nil
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid market_hours.timezone %q: %w", cfg.Timezone, err)
	}
	open, err := parseMinutes(cfg.Open)
	if err != nil {
		return nil, fmt.Errorf("invalid market_hours.open: %w", err)
	}
	closeM, err := parseMinutes(cfg.Close)
	if err != nil {
		return nil, fmt.Errorf("invalid market_hours.close: %w", err)
	}
	if closeM <= open {
		return nil, fmt.Errorf("market_hours.close %s must be after open %s", cfg.Close, cfg.Open)
	}
	return &Calendar{
		enabled:      true,
		loc:          loc,
		openMinutes:  open,
		closeMinutes: closeM,
		weekdaysOnly: cfg.WeekdaysOnly,
	}, nil
}

func parseMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("time-of-day %q must be HH:MM: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// IsOpen reports whether t falls inside the trading window. A disabled
// calendar is always open. The window is half-open: [open, close).
func (c *Calendar) IsOpen(t time.Time) bool {
	if !c.enabled {
		return true
	}
	local := t.In(c.loc)
	if c.weekdaysOnly {
		switch local.Weekday() {
		case time.Saturday, time.Sunday:
			return false
		}
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= c.openMinutes && minutes < c.closeMinutes
}

package models

import (
	"errors"
	"fmt"
)

// RuleKind tags one trigger rule variant. New kinds are additive: each kind
// registers a handler in the evaluator's dispatch table.
type RuleKind string

const (
	RulePriceAbove  RuleKind = "price_above"
	RulePriceBelow  RuleKind = "price_below"
	RulePercentMove RuleKind = "percent_move"
	RuleMACrossover RuleKind = "ma_crossover"
	RulePrediction  RuleKind = "prediction"
)

// Rule is one configured trigger condition for a ticker. Which parameter
// fields matter depends on Kind.
type Rule struct {
	Kind RuleKind `mapstructure:"kind" json:"kind"`

	// Bound is the price threshold for price_above / price_below.
	Bound float64 `mapstructure:"bound" json:"bound,omitempty"`

	// Percent is the |Δ%| vs the latest bar's open for percent_move.
	Percent float64 `mapstructure:"percent" json:"percent,omitempty"`

	// Moving-average windows for ma_crossover. Zero values take the defaults.
	ShortWindow int `mapstructure:"short_window" json:"short_window,omitempty"`
	LongWindow  int `mapstructure:"long_window" json:"long_window,omitempty"`
}

const (
	DefaultShortWindow = 5
	DefaultLongWindow  = 20
)

// Windows returns the crossover windows with defaults applied.
func (r Rule) Windows() (short, long int) {
	short, long = r.ShortWindow, r.LongWindow
	if short <= 0 {
		short = DefaultShortWindow
	}
	if long <= 0 {
		long = DefaultLongWindow
	}
	return short, long
}

// MinBars is the minimum series length this rule needs to be evaluable.
func (r Rule) MinBars() int {
	switch r.Kind {
	case RuleMACrossover:
		_, long := r.Windows()
		if long < MinCrossoverBars {
			long = MinCrossoverBars
		}
		// One extra bar so the previous bar's averages exist too.
		return long + 1
	default:
		return 1
	}
}

// ParamKey renders the rule parameters in a stable form for fingerprinting.
func (r Rule) ParamKey() string {
	switch r.Kind {
	case RulePriceAbove, RulePriceBelow:
		return fmt.Sprintf("bound=%.4f", r.Bound)
	case RulePercentMove:
		return fmt.Sprintf("pct=%.4f", r.Percent)
	case RuleMACrossover:
		short, long := r.Windows()
		return fmt.Sprintf("ma=%d/%d", short, long)
	default:
		return ""
	}
}

// Validate checks rule parameters at configuration time.
func (r Rule) Validate() error {
	switch r.Kind {
	case RulePriceAbove, RulePriceBelow:
		if r.Bound <= 0 {
			return fmt.Errorf("%s: bound must be positive", r.Kind)
		}
	case RulePercentMove:
		if r.Percent <= 0 {
			return fmt.Errorf("%s: percent must be positive", r.Kind)
		}
	case RuleMACrossover:
		short, long := r.Windows()
		if short >= long {
			return fmt.Errorf("%s: short window %d must be below long window %d", r.Kind, short, long)
		}
	case "":
		return errors.New("rule kind must be set")
	default:
		return fmt.Errorf("unknown rule kind %q", r.Kind)
	}
	return nil
}

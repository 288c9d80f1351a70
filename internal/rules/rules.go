// Package rules evaluates a ticker's price series against its configured
// trigger rules and produces candidate alert events. Deduplication is not
// done here: events carry deterministic fingerprints and the engine filters
// them against the persisted state.
package rules

import (
	"fmt"
	"math"

	"stockwatch/internal/models"
)

// Input carries everything one evaluation call needs.
type Input struct {
	Ticker      string
	DisplayName string
	Series      models.Series
	Rules       []models.Rule

	// UsePrediction emits an informational direction event when the
	// predictor produced a definite answer. Prediction events never gate on
	// market hours.
	UsePrediction bool
	Direction     models.Direction

	// MarketOpen gates the price-based rules. When false only prediction
	// events may fire.
	MarketOpen bool
}

type ruleFunc func(in Input, r models.Rule) (models.AlertEvent, bool)

// Dispatch table keyed by rule kind; adding a rule kind means adding an entry.
var handlers = map[models.RuleKind]ruleFunc{
	models.RulePriceAbove:  evalPriceAbove,
	models.RulePriceBelow:  evalPriceBelow,
	models.RulePercentMove: evalPercentMove,
	models.RuleMACrossover: evalCrossover,
}

// Evaluate returns the candidate events for one ticker, in rule order.
// A series shorter than a rule's minimum window silently skips that rule:
// early history windows are expected, not errors.
func Evaluate(in Input) []models.AlertEvent {
	var events []models.AlertEvent

	if in.MarketOpen {
		for _, r := range in.Rules {
			h, ok := handlers[r.Kind]
			if !ok || in.Series.Len() < r.MinBars() {
				continue
			}
			if ev, fired := h(in, r); fired {
				events = append(events, ev)
			}
		}
	}

	if in.UsePrediction && in.Direction != models.Unknown {
		if ev, ok := evalPrediction(in); ok {
			events = append(events, ev)
		}
	}

	return events
}

func (in Input) name() string {
	if in.DisplayName != "" {
		return in.DisplayName
	}
	return in.Ticker
}

func evalPriceAbove(in Input, r models.Rule) (models.AlertEvent, bool) {
	last, ok := in.Series.Last()
	if !ok || math.IsNaN(last.Close) {
		return models.AlertEvent{}, false
	}
	if last.Close <= r.Bound {
		return models.AlertEvent{}, false
	}
	return models.AlertEvent{
		Ticker:      in.Ticker,
		Kind:        r.Kind,
		FiredAt:     last.Timestamp,
		Fingerprint: models.Fingerprint(in.Ticker, r.Kind, r.ParamKey(), last.Timestamp),
		Message:     fmt.Sprintf("%s closed at %.2f, above %.2f 📈", in.name(), last.Close, r.Bound),
		Direction:   models.Up,
	}, true
}

func evalPriceBelow(in Input, r models.Rule) (models.AlertEvent, bool) {
	last, ok := in.Series.Last()
	if !ok || math.IsNaN(last.Close) {
		return models.AlertEvent{}, false
	}
	if last.Close >= r.Bound {
		return models.AlertEvent{}, false
	}
	return models.AlertEvent{
		Ticker:      in.Ticker,
		Kind:        r.Kind,
		FiredAt:     last.Timestamp,
		Fingerprint: models.Fingerprint(in.Ticker, r.Kind, r.ParamKey(), last.Timestamp),
		Message:     fmt.Sprintf("%s closed at %.2f, below %.2f 📉", in.name(), last.Close, r.Bound),
		Direction:   models.Down,
	}, true
}

// evalPercentMove fires when the latest bar moved at least Percent either way
// versus its own open.
func evalPercentMove(in Input, r models.Rule) (models.AlertEvent, bool) {
	last, ok := in.Series.Last()
	if !ok || math.IsNaN(last.Close) || math.IsNaN(last.Open) || last.Open == 0 {
		return models.AlertEvent{}, false
	}
	deltaPct := (last.Close - last.Open) / last.Open * 100
	if math.Abs(deltaPct) < r.Percent {
		return models.AlertEvent{}, false
	}
	dir := models.Up
	emoji := "📈"
	if deltaPct < 0 {
		dir = models.Down
		emoji = "📉"
	}
	return models.AlertEvent{
		Ticker:      in.Ticker,
		Kind:        r.Kind,
		FiredAt:     last.Timestamp,
		Fingerprint: models.Fingerprint(in.Ticker, r.Kind, r.ParamKey(), last.Timestamp),
		Message:     fmt.Sprintf("%s moved %+.2f%% vs open (%.2f → %.2f) %s", in.name(), deltaPct, last.Open, last.Close, emoji),
		Direction:   dir,
	}, true
}

// evalCrossover fires only on the bar where the sign of MA_short - MA_long
// actually flips, so a persisting crossover condition does not re-fire every
// run. NaN anywhere in either trailing window counts as insufficient history.
func evalCrossover(in Input, r models.Rule) (models.AlertEvent, bool) {
	short, long := r.Windows()
	last := in.Series.Len() - 1

	currDiff := in.Series.MA(short, last) - in.Series.MA(long, last)
	prevDiff := in.Series.MA(short, last-1) - in.Series.MA(long, last-1)
	if math.IsNaN(currDiff) || math.IsNaN(prevDiff) {
		return models.AlertEvent{}, false
	}
	// Zero on either side means no detectable flip.
	if currDiff == 0 || prevDiff == 0 || (currDiff > 0) == (prevDiff > 0) {
		return models.AlertEvent{}, false
	}

	bar := in.Series.Bars[last]
	dir := models.Up
	verb := "crossed above"
	emoji := "📈"
	if currDiff < 0 {
		dir = models.Down
		verb = "crossed below"
		emoji = "📉"
	}
	return models.AlertEvent{
		Ticker:      in.Ticker,
		Kind:        r.Kind,
		FiredAt:     bar.Timestamp,
		Fingerprint: models.Fingerprint(in.Ticker, r.Kind, r.ParamKey(), bar.Timestamp),
		Message:     fmt.Sprintf("%s MA%d %s MA%d at %.2f %s", in.name(), short, verb, long, bar.Close, emoji),
		Direction:   dir,
	}, true
}

func evalPrediction(in Input) (models.AlertEvent, bool) {
	last, ok := in.Series.Last()
	if !ok {
		return models.AlertEvent{}, false
	}
	emoji := "📈"
	if in.Direction == models.Down {
		emoji = "📉"
	}
	params := "dir=" + in.Direction.String()
	return models.AlertEvent{
		Ticker:      in.Ticker,
		Kind:        models.RulePrediction,
		FiredAt:     last.Timestamp,
		Fingerprint: models.Fingerprint(in.Ticker, models.RulePrediction, params, last.Timestamp),
		Message:     fmt.Sprintf("%s model expects next session %s %s", in.name(), in.Direction, emoji),
		Direction:   in.Direction,
	}, true
}

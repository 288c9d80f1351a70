package models

import (
	"fmt"
	"time"
)

// AlertEvent is one triggered alert occurrence. Fingerprint is the
// deduplication key: two events with the same fingerprint are the same
// logical alert even when re-evaluated in a later run.
type AlertEvent struct {
	Ticker      string    `json:"ticker"`
	Kind        RuleKind  `json:"rule_kind"`
	FiredAt     time.Time `json:"fired_at"`
	Fingerprint string    `json:"fingerprint"`
	Message     string    `json:"message"`
	Direction   Direction `json:"-"`
}

// Fingerprint derives the deduplication key for an alert. It joins ticker,
// rule kind, rule parameters, and the triggering bar's timestamp, so the same
// condition recurring on a different bar produces a distinct key while
// re-evaluating the same bar across runs reproduces the same one.
func Fingerprint(ticker string, kind RuleKind, params string, barTS time.Time) string {
	return fmt.Sprintf("%s|%s|%s|%s", ticker, kind, params, barTS.UTC().Format(time.RFC3339))
}

// Package notify delivers alert messages to external push channels. Delivery
// is best-effort: the engine never retries beyond what a sink does itself and
// never rolls back state on failure.
package notify

import (
	"errors"
)

// Notifier is the consumed notification-sink interface.
type Notifier interface {
	// Send delivers one notification. clickURL may be empty.
	Send(title, message, clickURL string) error
}

// Multi fans one notification out to several sinks and joins their failures.
type Multi []Notifier

func (m Multi) Send(title, message, clickURL string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(title, message, clickURL); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

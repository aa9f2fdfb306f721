// Package clock provides the time source used by the booking core.  All
// expiry comparisons go through a Clock so that tests can freeze time
// instead of sleeping.
package clock

import "time"

// Clock supplies the current instant in UTC.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem returns a Clock backed by time.Now.
func NewSystem() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now().UTC() }

type fixedClock struct {
	now time.Time
}

// NewFixed returns a Clock that always reports the same instant.  It is
// used by tests that need a deterministic expiry boundary.
func NewFixed(t time.Time) Clock { return fixedClock{now: t.UTC()} }

func (f fixedClock) Now() time.Time { return f.now }

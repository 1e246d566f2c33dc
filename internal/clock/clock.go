// Package clock provides an injectable time source so SLA timers,
// rule applicability windows, and expiry sweeps can be tested without
// sleeping or stubbing time.Now directly.
package clock

import "time"

// Clock returns the current time. The workflow and certification engines
// and the request coordinator read time through a Clock rather than
// calling time.Now() directly. The rule engine does not: it checks rule
// validity windows against the system clock.
type Clock interface {
	Now() time.Time
}

// Real is a Clock backed by the system clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }

// Fixed is a Clock that always returns the same instant, for tests that
// need deterministic due dates and overdue checks.
type Fixed struct {
	At time.Time
}

func (f Fixed) Now() time.Time { return f.At }

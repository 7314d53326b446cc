package audit

import (
	"context"
	"time"
)

// Settler waits for the remote view to stabilize after an action.
//
// The browser engine has no readiness signal, so the default implementation
// sleeps for a fixed duration. An engine that can observe readiness can
// provide its own Settler and return as soon as the page is stable.
type Settler interface {
	Settle(ctx context.Context, d time.Duration, reason string) error
}

// SettlerFunc adapts a function to Settler.
type SettlerFunc func(ctx context.Context, d time.Duration, reason string) error

// Settle calls f.
func (f SettlerFunc) Settle(ctx context.Context, d time.Duration, reason string) error {
	return f(ctx, d, reason)
}

// FixedDelay suspends the caller for the full duration. Cancelling ctx ends
// the wait early with ctx.Err().
type FixedDelay struct{}

// Settle implements Settler.
func (FixedDelay) Settle(ctx context.Context, d time.Duration, _ string) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Timing holds every bounded wait of a run.
type Timing struct {
	ActTimeout     time.Duration // each login step
	ScrollTimeout  time.Duration // revealing the open-record control
	OpenTimeout    time.Duration // opening the next record
	ApproveTimeout time.Duration

	FieldSettle   time.Duration // after typing a login field
	LoginSettle   time.Duration // after submitting the login form
	ListSettle    time.Duration // after the filter is applied
	DetailSettle  time.Duration // after a record detail view opens
	ApproveSettle time.Duration // after approving, before the list is back
}

// DefaultTiming returns the waits the portal is known to need.
func DefaultTiming() Timing {
	return Timing{
		ActTimeout:     15 * time.Second,
		ScrollTimeout:  10 * time.Second,
		OpenTimeout:    15 * time.Second,
		ApproveTimeout: 15 * time.Second,

		FieldSettle:   1 * time.Second,
		LoginSettle:   5 * time.Second,
		ListSettle:    3 * time.Second,
		DetailSettle:  7 * time.Second,
		ApproveSettle: 8 * time.Second,
	}
}

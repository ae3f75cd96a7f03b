// Package wait provides the cancellable polling loop shared by the resolver,
// the action executor and the gate.
package wait

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is used when a caller passes a non-positive interval.
const DefaultInterval = 100 * time.Millisecond

// CheckFunc observes the document once. It returns true when the awaited
// state holds. A non-nil error stops polling immediately.
type CheckFunc func(ctx context.Context) (bool, error)

// Poll runs check immediately and then once per interval until it reports
// done, fails, or ctx ends. When ctx ends first, Poll returns ctx.Err().
func Poll(ctx context.Context, interval time.Duration, check CheckFunc) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	lim := rate.NewLimiter(rate.Every(interval), 1)

	for {
		if err := lim.Wait(ctx); err != nil {
			// The limiter refuses waits that would overrun the deadline.
			// Sit out the remainder so callers always see ctx.Err().
			<-ctx.Done()
			return ctx.Err()
		}
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// WithBudget derives a context bounded by budget. A non-positive budget
// leaves the parent deadline in place.
func WithBudget(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, budget)
}

// Sleep pauses for d or until ctx ends.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Expired reports whether ctx ended because of its own deadline rather than
// because the caller cancelled it or a parent deadline fired.
func Expired(ctx, parent context.Context) bool {
	return ctx.Err() != nil && parent.Err() == nil
}

// Package poll provides a bounded sleep-then-refresh loop for awaiting a
// terminal remote status.
//
// The loop blocks the calling goroutine, refreshes at a fixed interval, and
// stops when the predicate is satisfied, the timeout elapses, or the context
// is cancelled. It never polls forever and never busy-loops: a minimum sleep
// between refreshes is enforced.
package poll

import (
	"context"
	"fmt"
	"time"
)

// Polling bounds.
const (
	// DefaultInterval is the delay between refreshes when none is configured.
	DefaultInterval = 5 * time.Second
	// DefaultTimeout bounds the whole wait when none is configured.
	DefaultTimeout = 5 * time.Minute
	// MinInterval is the smallest allowed delay between refreshes.
	MinInterval = 10 * time.Millisecond
)

// TimeoutError reports that the timeout elapsed before the predicate was
// satisfied. LastState carries the most recent snapshot so callers can
// report or retry from it.
type TimeoutError struct {
	Timeout   time.Duration
	LastState any
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("polling timed out after %s", e.Timeout)
}

// Options configures a polling loop. Zero values fall back to the defaults.
type Options struct {
	// Interval is the delay between refreshes.
	Interval time.Duration
	// Timeout bounds the whole wait.
	Timeout time.Duration
}

func (o Options) normalize() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Interval < MinInterval {
		o.Interval = MinInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Until refreshes until done reports true or the timeout elapses.
//
// The first refresh happens immediately. Refresh errors abort the loop and
// are surfaced unchanged together with the last observed state. On timeout
// the last state is returned with a *TimeoutError.
func Until[T any](
	ctx context.Context,
	refresh func(context.Context) (T, error),
	done func(T) bool,
	opts Options,
) (T, error) {
	opts = opts.normalize()
	deadline := time.Now().Add(opts.Timeout)

	var last T
	for {
		state, err := refresh(ctx)
		if err != nil {
			return last, err
		}
		last = state

		if done(state) {
			return state, nil
		}

		// Not enough time left for another cycle.
		if time.Now().Add(opts.Interval).After(deadline) {
			return last, &TimeoutError{Timeout: opts.Timeout, LastState: last}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}

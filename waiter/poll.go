package waiter

import (
	"context"
	"time"

	"github.com/kuromi/browser-core/cdperr"
	"github.com/kuromi/browser-core/mux"
)

// PollOptions configures the polling loop.
type PollOptions struct {
	// Interval is the pause between polls when the condition hasn't
	// resolved yet.
	Interval time.Duration
	// Timeout bounds the whole wait; zero means the caller's ctx deadline
	// (if any) is the only bound.
	Timeout time.Duration
	// PropagateErrors opts out of the default absorb-and-retry behavior:
	// when true, an error from cond.Evaluate aborts Wait immediately
	// instead of being logged and retried on the next poll.
	// A caller waiting on a selector across a navigation wants the default
	// — a transient StaleNode while the document is being replaced should
	// not abort the wait.
	PropagateErrors bool
	// Logf receives a message each time Evaluate errors and the error is
	// being absorbed. Defaults to a no-op.
	Logf mux.LogFunc
}

// DefaultPollOptions polls at 100ms, the cadence every built-in wait uses.
var DefaultPollOptions = PollOptions{Interval: 100 * time.Millisecond}

// Wait polls cond until it holds, ctx is done, or opts.Timeout elapses,
// whichever comes first. The final sleep before a deadline is truncated
// so the last poll attempt still lands before the deadline rather than
// being skipped. An error from cond.Evaluate is logged and treated as
// falsy unless opts.PropagateErrors is set.
func Wait(ctx context.Context, cond Condition, opts PollOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollOptions.Interval
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	for {
		ok, err := cond.Evaluate(ctx)
		if err != nil {
			if opts.PropagateErrors {
				return err
			}
			opts.Logf("waiter: %s: check() error, treating as falsy: %v", cond.Describe(), err)
			ok = false
		}
		if ok {
			return nil
		}

		interval := opts.Interval
		if deadline, has := ctx.Deadline(); has {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return cdperr.WaitTimeout(cond.Describe())
			}
			if remaining < interval {
				interval = remaining
			}
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return cdperr.WaitTimeout(cond.Describe())
		}
	}
}

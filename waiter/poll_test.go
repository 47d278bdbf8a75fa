package waiter

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kuromi/browser-core/cdperr"
)

type countingCond struct {
	n       atomic.Int64
	holdsAt int64
}

func (c *countingCond) Evaluate(ctx context.Context) (bool, error) {
	n := c.n.Add(1)
	return n >= c.holdsAt, nil
}
func (c *countingCond) Describe() string { return "counting" }

func TestWaitSucceedsOnceConditionHolds(t *testing.T) {
	c := &countingCond{holdsAt: 3}
	opts := PollOptions{Interval: time.Millisecond}
	if err := Wait(context.Background(), c, opts); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if c.n.Load() != 3 {
		t.Fatalf("expected exactly 3 evaluations, got %d", c.n.Load())
	}
}

func TestWaitTimesOutWithWaitTimeoutKind(t *testing.T) {
	c := &countingCond{holdsAt: 1 << 30}
	opts := PollOptions{Interval: time.Millisecond, Timeout: 30 * time.Millisecond}
	err := Wait(context.Background(), c, opts)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var cerr *cdperr.Error
	if !errors.As(err, &cerr) || cerr.Kind != cdperr.KindWaitTimeout {
		t.Fatalf("expected a KindWaitTimeout error, got %v", err)
	}
}

type flakyCond struct {
	n           atomic.Int64
	failUntil   int64
	holdsAfterN int64
}

func (c *flakyCond) Evaluate(ctx context.Context) (bool, error) {
	n := c.n.Add(1)
	if n <= c.failUntil {
		return false, errors.New("transient: No node with given id")
	}
	return n >= c.holdsAfterN, nil
}
func (c *flakyCond) Describe() string { return "flaky" }

// TestWaitAbsorbsCheckErrorsByDefault: a transient error from Evaluate
// (e.g. StaleNode while a document is mid-navigation) must not abort the
// wait; it is logged and treated as falsy so polling continues (a
// selector wait surviving a same-document reload).
func TestWaitAbsorbsCheckErrorsByDefault(t *testing.T) {
	c := &flakyCond{failUntil: 3, holdsAfterN: 5}
	var logged []string
	opts := PollOptions{
		Interval: time.Millisecond,
		Logf:     func(format string, args ...any) { logged = append(logged, format) },
	}
	if err := Wait(context.Background(), c, opts); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if c.n.Load() != 5 {
		t.Fatalf("expected polling to continue past the errors to evaluation 5, got %d", c.n.Load())
	}
	if len(logged) != 3 {
		t.Fatalf("expected 3 logged absorbed errors, got %d", len(logged))
	}
}

// TestWaitPropagatesCheckErrorsWhenOptedIn covers the opt-in half of the
// same requirement: PropagateErrors=true aborts on the first error.
func TestWaitPropagatesCheckErrorsWhenOptedIn(t *testing.T) {
	c := &flakyCond{failUntil: 3, holdsAfterN: 5}
	opts := PollOptions{Interval: time.Millisecond, PropagateErrors: true}
	err := Wait(context.Background(), c, opts)
	if err == nil {
		t.Fatal("expected the first check() error to propagate")
	}
	if c.n.Load() != 1 {
		t.Fatalf("expected Wait to stop after the first evaluation, got %d calls", c.n.Load())
	}
}

func TestWaitRespectsParentContextCancellation(t *testing.T) {
	c := &countingCond{holdsAt: 1 << 30}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Wait(ctx, c, PollOptions{Interval: time.Millisecond})
	if err == nil {
		t.Fatal("expected error from cancellation")
	}
}

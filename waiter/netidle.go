package waiter

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kuromi/browser-core/mux"
)

// NetworkIdleTracker counts in-flight network requests from the raw
// Network.* events and satisfies page.NetworkIdleWaiter, so Page Runtime's
// Goto(..., WaitNetworkIdle, ...) can block on it without importing netmon.
//
// "Idle" here means at most MaxInflight requests outstanding for at least
// QuietWindow, the same two-knob definition Puppeteer's networkidle0/2
// options use.
type NetworkIdleTracker struct {
	MaxInflight int
	QuietWindow time.Duration

	mu           sync.Mutex
	inflight     map[string]struct{}
	lastActivity time.Time
}

// NewNetworkIdleTracker subscribes to the request lifecycle events on m
// for sessionID and starts tracking immediately. responseReceived doesn't
// change the in-flight count but still counts as observed activity for
// the quiet-window half of the condition.
func NewNetworkIdleTracker(m *mux.Multiplexer, sessionID string) *NetworkIdleTracker {
	t := &NetworkIdleTracker{
		MaxInflight:  0,
		QuietWindow:  500 * time.Millisecond,
		inflight:     make(map[string]struct{}),
		lastActivity: time.Now(),
	}
	m.On("Network.requestWillBeSent", sessionID, func(p json.RawMessage) {
		t.add(requestID(p))
	})
	m.On("Network.responseReceived", sessionID, func(p json.RawMessage) {
		t.touch()
	})
	m.On("Network.loadingFinished", sessionID, func(p json.RawMessage) {
		t.remove(requestID(p))
	})
	m.On("Network.loadingFailed", sessionID, func(p json.RawMessage) {
		t.remove(requestID(p))
	})
	return t
}

func requestID(p json.RawMessage) string {
	var wire struct {
		RequestID string `json:"requestId"`
	}
	_ = json.Unmarshal(p, &wire)
	return wire.RequestID
}

func (t *NetworkIdleTracker) add(id string) {
	if id == "" {
		return
	}
	t.mu.Lock()
	t.inflight[id] = struct{}{}
	t.lastActivity = time.Now()
	t.mu.Unlock()
}

func (t *NetworkIdleTracker) remove(id string) {
	if id == "" {
		return
	}
	t.mu.Lock()
	delete(t.inflight, id)
	t.lastActivity = time.Now()
	t.mu.Unlock()
}

func (t *NetworkIdleTracker) touch() {
	t.mu.Lock()
	t.lastActivity = time.Now()
	t.mu.Unlock()
}

// count returns the current in-flight request count.
func (t *NetworkIdleTracker) count() int {
	n, _ := t.snapshot()
	return n
}

// snapshot returns the current in-flight count and how long it's been
// since the last observed lifecycle event, under one lock so the two never
// read a torn state relative to each other.
func (t *NetworkIdleTracker) snapshot() (count int, sinceActivity time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight), time.Since(t.lastActivity)
}

// pollInterval bounds how long WaitIdle can overshoot noticing an in-flight
// request that both starts and finishes inside one QuietWindow.
const pollInterval = 50 * time.Millisecond

// WaitIdle blocks until the in-flight count has been at or below
// MaxInflight for at least QuietWindow since the last observed request
// lifecycle event; both conditions are necessary.
// It re-checks on a short poll interval rather than sleeping the whole
// QuietWindow and resampling only at the end, so a request that starts and
// finishes entirely inside the window still resets the wait.
func (t *NetworkIdleTracker) WaitIdle(ctx context.Context) error {
	for {
		count, since := t.snapshot()
		if count <= t.MaxInflight {
			remaining := t.QuietWindow - since
			if remaining <= 0 {
				return nil
			}
			if remaining > pollInterval {
				remaining = pollInterval
			}
			select {
			case <-time.After(remaining):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

package waiter

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/kuromi/browser-core/cdperr"
	"github.com/kuromi/browser-core/mux"
	"github.com/kuromi/browser-core/transport"
)

type fakeTransport struct {
	mu   sync.Mutex
	feed chan transport.Message
	done chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{feed: make(chan transport.Message, 64), done: make(chan struct{})}
}

func (f *fakeTransport) Write(m *transport.Message) error {
	f.feed <- transport.Message{ID: m.ID, Result: json.RawMessage(`{}`)}
	return nil
}

func (f *fakeTransport) Read(m *transport.Message) error {
	select {
	case msg := <-f.feed:
		*m = msg
		return nil
	case <-f.done:
		return cdperr.TransportClosed
	}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
	default:
		close(f.done)
	}
	return nil
}

func TestNetworkIdleTrackerWaitsForQuietWindow(t *testing.T) {
	ft := newFakeTransport()
	m := mux.New(ft)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	tr := NewNetworkIdleTracker(m, "sess-1")
	tr.QuietWindow = 20 * time.Millisecond

	ft.feed <- transport.Message{Method: "Network.requestWillBeSent", SessionID: "sess-1", Params: json.RawMessage(`{"requestId":"r1"}`)}

	deadline := time.After(time.Second)
	for tr.count() != 1 {
		select {
		case <-deadline:
			t.Fatal("request never registered as in-flight")
		case <-time.After(2 * time.Millisecond):
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- tr.WaitIdle(context.Background())
	}()

	select {
	case <-done:
		t.Fatal("WaitIdle returned before the in-flight request finished")
	case <-time.After(10 * time.Millisecond):
	}

	ft.feed <- transport.Message{Method: "Network.loadingFinished", SessionID: "sess-1", Params: json.RawMessage(`{"requestId":"r1"}`)}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitIdle: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIdle never returned after request finished")
	}
}

// TestNetworkIdleTrackerResetsOnActivityWithinWindow: a
// request that both starts and finishes inside one QuietWindow must still
// push the resolution out by QuietWindow from its own completion, rather
// than being invisible to a tracker that only samples in-flight count at
// the end of a fixed sleep.
func TestNetworkIdleTrackerResetsOnActivityWithinWindow(t *testing.T) {
	ft := newFakeTransport()
	m := mux.New(ft)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	tr := NewNetworkIdleTracker(m, "sess-1")
	tr.QuietWindow = 80 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		done <- tr.WaitIdle(context.Background())
	}()

	// Let WaitIdle observe the initial idle state, then inject a request
	// that starts and finishes well within QuietWindow of that observation.
	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	ft.feed <- transport.Message{Method: "Network.requestWillBeSent", SessionID: "sess-1", Params: json.RawMessage(`{"requestId":"r1"}`)}
	time.Sleep(10 * time.Millisecond)
	ft.feed <- transport.Message{Method: "Network.loadingFinished", SessionID: "sess-1", Params: json.RawMessage(`{"requestId":"r1"}`)}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitIdle: %v", err)
		}
		if elapsed := time.Since(start); elapsed < tr.QuietWindow {
			t.Fatalf("WaitIdle returned %v after the mid-window request finished, want >= QuietWindow (%v)", elapsed, tr.QuietWindow)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIdle never returned")
	}
}

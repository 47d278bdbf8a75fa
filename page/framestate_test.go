package page

import (
	"context"
	"testing"
	"time"
)

func TestFrameStateTransitions(t *testing.T) {
	fs := NewFrameState()
	if state, _, _ := fs.Get(); state != StateIdle {
		t.Fatalf("expected initial StateIdle, got %v", state)
	}
	fs.OnStartedLoading()
	fs.OnNavigated("https://x.test/")
	fs.OnDOMContentEventFired()
	fs.OnLoadEventFired()
	state, url, _ := fs.Get()
	if state != StateLoaded || url != "https://x.test/" {
		t.Fatalf("expected loaded at https://x.test/, got %v %q", state, url)
	}
}

// TestBeginNavigationResetsTerminalState: a second navigation's wait must
// not be satisfied by the first document's lingering StateLoaded.
func TestBeginNavigationResetsTerminalState(t *testing.T) {
	fs := NewFrameState()
	fs.OnStartedLoading()
	fs.OnLoadEventFired()

	fs.BeginNavigation()
	if state, _, _ := fs.Get(); state != StateNavigating {
		t.Fatalf("expected StateNavigating after BeginNavigation, got %v", state)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := waitForLoadState(ctx, fs, StateLoaded); err == nil {
		t.Fatal("wait resolved against the previous document's load state")
	}

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- waitForLoadState(ctx, fs, StateLoaded)
	}()
	fs.OnDOMContentEventFired()
	fs.OnLoadEventFired()
	if err := <-done; err != nil {
		t.Fatalf("wait did not resolve on the new navigation's load: %v", err)
	}
}

func TestGetChannelClosedOnTransition(t *testing.T) {
	fs := NewFrameState()
	_, _, ch := fs.Get()
	fs.OnStartedLoading()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("waiter channel not closed on transition")
	}
}

package page

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kuromi/browser-core/cdperr"
	"github.com/kuromi/browser-core/mux"
)

// WaitUntil is the user-visible navigation wait condition.
type WaitUntil string

const (
	WaitCommit         WaitUntil = "commit"
	WaitDOMContentLoad WaitUntil = "domcontentloaded"
	WaitLoad           WaitUntil = "load"
	WaitNetworkIdle    WaitUntil = "networkidle"
)

// NetworkIdleWaiter is satisfied by waiter.NetworkIdleTracker; kept as a
// narrow interface here to avoid an import cycle between page and waiter.
type NetworkIdleWaiter interface {
	WaitIdle(ctx context.Context) error
}

// Goto issues Page.navigate and waits for the condition wait names.
func Goto(ctx context.Context, m *mux.Multiplexer, sessionID string, fs *FrameState, url string, wait WaitUntil, idle NetworkIdleWaiter, deadline time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	// Reset the state machine before issuing the navigation, so the wait
	// below tracks this navigation instead of returning immediately on the
	// previous document's terminal state.
	fs.BeginNavigation()

	params := map[string]any{"url": url}
	b, _ := json.Marshal(params)
	result, err := m.Send(ctx, "Page.navigate", rawJSON(b), sessionID)
	if err != nil {
		return "", err
	}
	var wire struct {
		FrameID   string `json:"frameId"`
		ErrorText string `json:"errorText"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return "", err
	}
	if wire.ErrorText != "" {
		return "", &cdperr.Error{Kind: cdperr.KindNavigationError, Message: wire.ErrorText}
	}

	if err := waitForCondition(ctx, fs, wait, idle); err != nil {
		if ctx.Err() != nil {
			return "", &cdperr.Error{Kind: cdperr.KindNavigationTimeout, Message: "wait_until " + string(wait) + " not reached"}
		}
		return "", err
	}

	return fs.URL(), nil
}

// waitForCondition blocks until the frame reaches the requested wait state.
// On redirect (observed as a repeated transition back to StateNavigating)
// the loop simply re-derives the target state rather than resetting ctx's
// deadline.
func waitForCondition(ctx context.Context, fs *FrameState, wait WaitUntil, idle NetworkIdleWaiter) error {
	switch wait {
	case WaitCommit:
		return nil
	case WaitNetworkIdle:
		if idle == nil {
			return waitForLoadState(ctx, fs, StateLoaded)
		}
		if err := waitForLoadState(ctx, fs, StateLoaded); err != nil {
			return err
		}
		return idle.WaitIdle(ctx)
	case WaitDOMContentLoad:
		return waitForLoadState(ctx, fs, StateDOMContentLoaded)
	default: // WaitLoad
		return waitForLoadState(ctx, fs, StateLoaded)
	}
}

func waitForLoadState(ctx context.Context, fs *FrameState, want LoadState) error {
	for {
		state, _, changed := fs.Get()
		if reached(state, want) {
			return nil
		}
		select {
		case <-changed:
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func reached(cur, want LoadState) bool {
	return cur >= want
}

// Package page implements the Page Runtime: CDP domain
// orchestration, per-frame load-state tracking, navigation, and evaluation
// for a single attached session.
package page

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kuromi/browser-core/mux"
	"github.com/kuromi/browser-core/targetmgr"
)

// Runtime orchestrates one page's CDP domains: the enable set, the main
// frame's load-state machine, navigation, and evaluation. DOM and network
// concerns live in their own packages; Runtime only shares the session
// with them.
type Runtime struct {
	M    *mux.Multiplexer
	Sess *targetmgr.Session

	Main *FrameState

	frames map[string]*FrameState
}

// DefaultEnableSet is the domain set enabled on first use.
var DefaultEnableSet = []string{"Page", "DOM", "Runtime", "Network"}

// New constructs a Runtime for an already-attached session and enables the
// default domain set idempotently.
func New(ctx context.Context, m *mux.Multiplexer, sess *targetmgr.Session) (*Runtime, error) {
	r := &Runtime{
		M:      m,
		Sess:   sess,
		Main:   NewFrameState(),
		frames: make(map[string]*FrameState),
	}
	if err := r.EnableDomains(ctx, DefaultEnableSet); err != nil {
		return nil, err
	}
	r.subscribeLifecycle()
	return r, nil
}

// EnableDomains enables each named CDP domain idempotently.
func (r *Runtime) EnableDomains(ctx context.Context, domains []string) error {
	for _, d := range domains {
		if r.Sess.MarkDomainEnabled(d) {
			continue
		}
		ctx, cancel := mux.Deadline(ctx, mux.DefaultCommandTimeout)
		_, err := r.M.Send(ctx, d+".enable", nil, r.Sess.SessionID)
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

// EnableFetch is the on-demand Fetch domain enable used by the interceptor.
func (r *Runtime) EnableFetch(ctx context.Context, patterns []map[string]any) error {
	if r.Sess.MarkDomainEnabled("Fetch") {
		return nil
	}
	params := map[string]any{"patterns": patterns}
	b, _ := json.Marshal(params)
	_, err := r.M.Send(ctx, "Fetch.enable", rawJSON(b), r.Sess.SessionID)
	return err
}

func (r *Runtime) subscribeLifecycle() {
	r.M.On("Page.frameStartedLoading", r.Sess.SessionID, func(json.RawMessage) {
		r.Main.OnStartedLoading()
	})
	r.M.On("Page.frameNavigated", r.Sess.SessionID, func(p json.RawMessage) {
		var ev struct {
			Frame struct {
				ID       string `json:"id"`
				ParentID string `json:"parentId"`
				URL      string `json:"url"`
			} `json:"frame"`
		}
		if json.Unmarshal(p, &ev) != nil {
			return
		}
		if ev.Frame.ParentID == "" {
			r.Main.OnNavigated(ev.Frame.URL)
		}
	})
	r.M.On("Page.domContentEventFired", r.Sess.SessionID, func(json.RawMessage) {
		r.Main.OnDOMContentEventFired()
	})
	r.M.On("Page.loadEventFired", r.Sess.SessionID, func(json.RawMessage) {
		r.Main.OnLoadEventFired()
	})
	r.M.On("Page.frameStoppedLoading", r.Sess.SessionID, func(json.RawMessage) {
		r.Main.OnStoppedLoading()
	})
}

// Goto navigates the main frame and waits for wait.
func (r *Runtime) Goto(ctx context.Context, url string, wait WaitUntil, idle NetworkIdleWaiter, deadline time.Duration) (string, error) {
	if deadline == 0 {
		deadline = 30 * time.Second
	}
	return Goto(ctx, r.M, r.Sess.SessionID, r.Main, url, wait, idle, deadline)
}

// Evaluate maps to Runtime.evaluate on this session.
func (r *Runtime) Evaluate(ctx context.Context, expr string, opts EvaluateOptions, out any) error {
	return Evaluate(ctx, r.M, r.Sess.SessionID, expr, opts, out)
}

// Close disables every domain the session enabled. Errors are collapsed to
// the first one seen; the session is usually about to detach anyway.
func (r *Runtime) Close(ctx context.Context) error {
	var first error
	for _, d := range r.Sess.EnabledDomains() {
		ctx, cancel := mux.Deadline(ctx, mux.DefaultCommandTimeout)
		_, err := r.M.Send(ctx, d+".disable", nil, r.Sess.SessionID)
		cancel()
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

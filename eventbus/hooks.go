// Package eventbus implements a general pub/sub bus plus the lifecycle
// hook system: a fixed phase catalog, priority-descending execution order,
// one-shot removal, and a cancel flag pre-operation hooks can set to abort
// the in-flight action.
package eventbus

import (
	"sort"
	"sync"
)

// Phase enumerates the lifecycle points a Hook can attach to.
type Phase string

const (
	BrowserLaunch       Phase = "browser_launch"
	BrowserConnected    Phase = "browser_connected"
	BrowserDisconnected Phase = "browser_disconnected"
	BrowserClose        Phase = "browser_close"

	ContextCreated Phase = "context_created"
	ContextClose   Phase = "context_close"

	PageCreated  Phase = "page_created"
	PageNavigate Phase = "page_navigate"
	PageLoad     Phase = "page_load"
	PageClose    Phase = "page_close"

	RequestStart    Phase = "request_start"
	RequestComplete Phase = "request_complete"
	RequestFailed   Phase = "request_failed"

	PageError      Phase = "page_error"
	ConsoleMessage Phase = "console_message"
	DialogOpened   Phase = "dialog_opened"
)

// Context is passed to every Hook handler for a phase run.
type Context struct {
	Phase Phase
	Data  map[string]any
	Err   error

	cancelled bool
}

// Cancel marks the in-flight operation as cancelled; only meaningful for
// pre-operation phases the caller actually checks (e.g. PageNavigate).
func (c *Context) Cancel() { c.cancelled = true }

// Cancelled reports whether a handler called Cancel during this run.
func (c *Context) Cancelled() bool { return c.cancelled }

// Handler is a hook callback.
type Handler func(*Context)

// Hook is one registered handler.
type Hook struct {
	Phase    Phase
	Handler  Handler
	Priority int
	Once     bool
	Name     string
}

// HookManager runs registered Hooks for a phase in descending-priority
// order, removing any marked Once after they fire.
type HookManager struct {
	mu    sync.Mutex
	hooks map[Phase][]*Hook
}

// NewHookManager constructs an empty manager.
func NewHookManager() *HookManager {
	return &HookManager{hooks: make(map[Phase][]*Hook)}
}

// Register adds a hook and re-sorts that phase's list by descending
// priority, a stable sort so same-priority hooks keep registration order.
func (hm *HookManager) Register(phase Phase, handler Handler, opts ...HookOption) *Hook {
	h := &Hook{Phase: phase, Handler: handler}
	for _, opt := range opts {
		opt(h)
	}
	hm.mu.Lock()
	hm.hooks[phase] = append(hm.hooks[phase], h)
	sort.SliceStable(hm.hooks[phase], func(i, j int) bool {
		return hm.hooks[phase][i].Priority > hm.hooks[phase][j].Priority
	})
	hm.mu.Unlock()
	return h
}

// HookOption configures a Hook at registration time.
type HookOption func(*Hook)

func WithPriority(p int) HookOption   { return func(h *Hook) { h.Priority = p } }
func Once() HookOption                { return func(h *Hook) { h.Once = true } }
func WithName(name string) HookOption { return func(h *Hook) { h.Name = name } }

// Unregister removes a specific hook.
func (hm *HookManager) Unregister(h *Hook) bool {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	list := hm.hooks[h.Phase]
	for i, candidate := range list {
		if candidate == h {
			hm.hooks[h.Phase] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// UnregisterByName removes every hook across all phases with the given
// name, returning how many were removed.
func (hm *HookManager) UnregisterByName(name string) int {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	removed := 0
	for phase, list := range hm.hooks {
		kept := list[:0]
		for _, h := range list {
			if h.Name == name {
				removed++
				continue
			}
			kept = append(kept, h)
		}
		hm.hooks[phase] = kept
	}
	return removed
}

// Run executes every hook registered for phase, highest priority first,
// stopping early if a handler cancels the context. Handler panics are not
// recovered here deliberately: unlike event dispatch (bus.go), hooks run
// synchronously in the caller's goroutine as part of a specific operation,
// so a panic should propagate to that operation's caller.
func (hm *HookManager) Run(phase Phase, data map[string]any) *Context {
	hm.mu.Lock()
	list := append([]*Hook(nil), hm.hooks[phase]...)
	hm.mu.Unlock()

	ctx := &Context{Phase: phase, Data: data}
	if ctx.Data == nil {
		ctx.Data = make(map[string]any)
	}

	var onceFired []*Hook
	for _, h := range list {
		if ctx.cancelled {
			break
		}
		h.Handler(ctx)
		if h.Once {
			onceFired = append(onceFired, h)
		}
	}
	for _, h := range onceFired {
		hm.Unregister(h)
	}
	return ctx
}

// Hooks returns a snapshot of the hooks registered for phase.
func (hm *HookManager) Hooks(phase Phase) []*Hook {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	return append([]*Hook(nil), hm.hooks[phase]...)
}

// Clear removes every hook for phase, or every hook in every phase if
// phase is the empty string.
func (hm *HookManager) Clear(phase Phase) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	if phase == "" {
		hm.hooks = make(map[Phase][]*Hook)
		return
	}
	delete(hm.hooks, phase)
}

package eventbus

import (
	"context"
	"sync"
	"time"
)

// Listener receives an event payload.
type Listener func(payload any)

type subscriber struct {
	id    uint64
	fn    Listener
	once  bool
	async bool
}

// Bus is a simple named-event pub/sub, the general-purpose counterpart to
// HookManager's fixed lifecycle phases: any
// string name, synchronous or goroutine-dispatched handlers, and a
// one-shot wait_for helper for test and scripting code.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]*subscriber
	nextID uint64
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]*subscriber)}
}

// SubscribeOption configures On/Once registration.
type SubscribeOption func(*subscriber)

// Async dispatches this listener on its own goroutine instead of inline
// during Emit.
func Async() SubscribeOption { return func(s *subscriber) { s.async = true } }

// On registers a persistent listener for name.
func (b *Bus) On(name string, fn Listener, opts ...SubscribeOption) uint64 {
	return b.subscribe(name, fn, false, opts)
}

// Once registers a listener that removes itself after its first call.
func (b *Bus) Once(name string, fn Listener, opts ...SubscribeOption) uint64 {
	return b.subscribe(name, fn, true, opts)
}

func (b *Bus) subscribe(name string, fn Listener, once bool, opts []SubscribeOption) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &subscriber{id: b.nextID, fn: fn, once: once}
	for _, opt := range opts {
		opt(s)
	}
	b.subs[name] = append(b.subs[name], s)
	return s.id
}

// Off removes a listener by the id On/Once returned.
func (b *Bus) Off(name string, id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[name]
	for i, s := range list {
		if s.id == id {
			b.subs[name] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Emit dispatches payload to every listener registered for name, removing
// any Once listeners after they fire. Synchronous listeners run inline, in
// registration order; Async listeners are dispatched concurrently and do
// not block Emit's return.
func (b *Bus) Emit(name string, payload any) {
	b.mu.Lock()
	list := append([]*subscriber(nil), b.subs[name]...)
	var remaining []*subscriber
	for _, s := range list {
		if !s.once {
			remaining = append(remaining, s)
		}
	}
	b.subs[name] = remaining
	b.mu.Unlock()

	for _, s := range list {
		if s.async {
			go safeInvoke(s.fn, payload)
		} else {
			safeInvoke(s.fn, payload)
		}
	}
}

func safeInvoke(fn Listener, payload any) {
	defer func() { _ = recover() }()
	fn(payload)
}

// WaitFor blocks until name fires (or ctx ends / timeout elapses,
// whichever first), returning the event payload.
func (b *Bus) WaitFor(ctx context.Context, name string, timeout time.Duration) (any, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ch := make(chan any, 1)
	id := b.Once(name, func(payload any) {
		select {
		case ch <- payload:
		default:
		}
	})
	select {
	case payload := <-ch:
		return payload, nil
	case <-ctx.Done():
		b.Off(name, id)
		return nil, ctx.Err()
	}
}

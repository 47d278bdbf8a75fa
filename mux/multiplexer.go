// Package mux implements the Session Multiplexer: the
// concurrency core that owns the transport, the id counter, the pending-call
// table, and the event subscription tables for every attached session.
package mux

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kuromi/browser-core/cdperr"
	"github.com/kuromi/browser-core/transport"
)

// LogFunc is the common logging func type threaded through every
// long-lived component.
type LogFunc func(string, ...any)

// Handler receives an event's raw params. The read loop never invokes a
// handler inline; handlers for one session run serialized, in the order the
// browser sent their events. A handler that blocks stalls only its own
// session's event queue.
type Handler func(params json.RawMessage)

// pendingCall is a command awaiting response.
type pendingCall struct {
	method string
	ch     chan response
}

type response struct {
	result json.RawMessage
	err    *cdperr.Error
}

type subscription struct {
	method  string
	handler Handler
}

// Multiplexer is the single owner of a transport.Conn. All sends and all
// event dispatch for every session on this connection pass through it.
type Multiplexer struct {
	conn transport.Transport

	logf, debugf, errf LogFunc

	nextID int64

	mu      sync.Mutex
	pending map[int64]*pendingCall

	subMu   sync.RWMutex
	global  []subscription
	session map[string][]subscription // sessionId -> subscriptions

	// queues serialize event dispatch per session, keyed by sessionId (""
	// for sessionless events), so events for one session reach handlers in
	// the order the browser sent them even though the read loop itself
	// never waits on a handler.
	queueMu sync.Mutex
	queues  map[string]*dispatchQueue

	closeOnce sync.Once
	closed    chan struct{}
}

// dispatchQueue drains queued handler invocations one at a time. The read
// loop appends and returns; a single drainer goroutine per queue runs the
// backlog in order and exits when it empties.
type dispatchQueue struct {
	mu      sync.Mutex
	backlog []func()
	running bool
}

func (q *dispatchQueue) enqueue(fn func()) {
	q.mu.Lock()
	q.backlog = append(q.backlog, fn)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()
	go q.drain()
}

func (q *dispatchQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.backlog) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		fn := q.backlog[0]
		q.backlog = q.backlog[1:]
		q.mu.Unlock()
		fn()
	}
}

// New wraps conn with a Multiplexer. Call Run to start the read loop.
func New(conn transport.Transport, opts ...Option) *Multiplexer {
	m := &Multiplexer{
		conn:    conn,
		pending: make(map[int64]*pendingCall),
		session: make(map[string][]subscription),
		queues:  make(map[string]*dispatchQueue),
		closed:  make(chan struct{}),
		logf:    func(string, ...any) {},
		debugf:  func(string, ...any) {},
		errf:    func(string, ...any) {},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Option configures a Multiplexer.
type Option func(*Multiplexer)

func WithLogf(f LogFunc) Option   { return func(m *Multiplexer) { m.logf = f } }
func WithDebugf(f LogFunc) Option { return func(m *Multiplexer) { m.debugf = f } }
func WithErrorf(f LogFunc) Option { return func(m *Multiplexer) { m.errf = f } }

// Send allocates the next monotonic id, installs a PendingCall, writes the
// envelope, and suspends the caller until a response arrives, the deadline
// passes, ctx is cancelled, or the transport closes.
func (m *Multiplexer) Send(ctx context.Context, method string, params json.Marshaler, sessionID string) (json.RawMessage, error) {
	var paramsMsg json.RawMessage
	if params != nil {
		b, err := params.MarshalJSON()
		if err != nil {
			return nil, err
		}
		paramsMsg = b
	}

	id := atomic.AddInt64(&m.nextID, 1)
	pc := &pendingCall{method: method, ch: make(chan response, 1)}

	m.mu.Lock()
	m.pending[id] = pc
	m.mu.Unlock()

	msg := &transport.Message{ID: id, Method: method, Params: paramsMsg, SessionID: sessionID}
	if err := m.conn.Write(msg); err != nil {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
		return nil, cdperr.Wrap(cdperr.KindTransportClosed, err, "write failed")
	}

	select {
	case resp := <-pc.ch:
		if resp.err != nil {
			return nil, resp.err
		}
		return resp.result, nil
	case <-ctx.Done():
		// Cancellation removes the PendingCall; a late response, if any,
		// is discarded by processResponse's map lookup miss.
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, cdperr.Timeout(method)
		}
		return nil, ctx.Err()
	case <-m.closed:
		return nil, cdperr.TransportClosed
	}
}

// On registers an event subscription. sessionID == "" registers a
// global subscription.
func (m *Multiplexer) On(method, sessionID string, h Handler) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	sub := subscription{method: method, handler: h}
	if sessionID == "" {
		m.global = append(m.global, sub)
		return
	}
	m.session[sessionID] = append(m.session[sessionID], sub)
}

// OffSession removes every subscription registered for sessionID, used when
// a session detaches.
func (m *Multiplexer) OffSession(sessionID string) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	delete(m.session, sessionID)
}

// Run is the single background task that reads envelopes from the transport
// and routes them: responses resolve PendingCalls, events are fanned out to
// session-scoped then global handlers through per-session dispatch queues.
// Run never blocks on a handler.
func (m *Multiplexer) Run(ctx context.Context) {
	defer m.shutdown()

	go func() {
		<-ctx.Done()
		m.conn.Close()
	}()

	for {
		var msg transport.Message
		if err := m.conn.Read(&msg); err != nil {
			m.debugf("transport read loop exiting: %v", err)
			return
		}

		switch {
		case msg.IsResponse():
			m.processResponse(&msg)
		case msg.IsEvent():
			m.dispatchEvent(&msg)
		default:
			m.errf("ignoring malformed incoming message (missing id and method): %#v", msg)
		}
	}
}

func (m *Multiplexer) processResponse(msg *transport.Message) {
	m.mu.Lock()
	pc, ok := m.pending[msg.ID]
	if ok {
		delete(m.pending, msg.ID)
	}
	m.mu.Unlock()
	if !ok {
		// Cancelled or unknown call; discard.
		return
	}
	var resp response
	if msg.Error != nil {
		resp.err = cdperr.CdpErrorFrom(msg.Error.Code, msg.Error.Message, msg.Error.Data)
	} else {
		resp.result = msg.Result
	}
	pc.ch <- resp
}

func (m *Multiplexer) dispatchEvent(msg *transport.Message) {
	// Snapshot the handler list under a brief read lock, then release it
	// before invoking handlers, so Off never races a dispatch in flight.
	m.subMu.RLock()
	var handlers []Handler
	if msg.SessionID != "" {
		for _, s := range m.session[msg.SessionID] {
			if s.method == msg.Method {
				handlers = append(handlers, s.handler)
			}
		}
	}
	for _, s := range m.global {
		if s.method == msg.Method {
			handlers = append(handlers, s.handler)
		}
	}
	m.subMu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	m.queueMu.Lock()
	q := m.queues[msg.SessionID]
	if q == nil {
		q = &dispatchQueue{}
		m.queues[msg.SessionID] = q
	}
	m.queueMu.Unlock()

	method := msg.Method
	params := msg.Params
	q.enqueue(func() {
		for _, h := range handlers {
			func() {
				defer func() {
					if r := recover(); r != nil {
						m.errf("event handler for %s panicked: %v", method, r)
					}
				}()
				h(params)
			}()
		}
	})
}

func (m *Multiplexer) shutdown() {
	m.closeOnce.Do(func() {
		close(m.closed)
		m.mu.Lock()
		pending := m.pending
		m.pending = make(map[int64]*pendingCall)
		m.mu.Unlock()
		for _, pc := range pending {
			pc.ch <- response{err: cdperr.TransportClosed}
		}
	})
}

// Closed returns a channel closed once the multiplexer has shut down,
// letting callers observe transport loss without a failed Send.
func (m *Multiplexer) Closed() <-chan struct{} { return m.closed }

// Deadline is a small helper building a context with the per-component
// default deadline when the caller didn't already set one.
func Deadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// DefaultCommandTimeout bounds a single CDP command round trip.
const DefaultCommandTimeout = 30 * time.Second

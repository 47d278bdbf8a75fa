package targetmgr

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

// scriptedTransport replies to writes according to a method->responder map,
// and can also push unsolicited events, mirroring the fake used in the mux
// package's own tests.
type scriptedTransport struct {
	mu      sync.Mutex
	feed    chan transport.Message
	respond map[string]func(id int64) transport.Message
	closeCh chan struct{}
	closed  bool
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{
		feed:    make(chan transport.Message, 64),
		respond: make(map[string]func(id int64) transport.Message),
		closeCh: make(chan struct{}),
	}
}

func (s *scriptedTransport) Write(m *transport.Message) error {
	s.mu.Lock()
	r, ok := s.respond[m.Method]
	s.mu.Unlock()
	if !ok {
		s.feed <- transport.Message{ID: m.ID, Result: json.RawMessage(`{}`)}
		return nil
	}
	s.feed <- r(m.ID)
	return nil
}

func (s *scriptedTransport) Read(m *transport.Message) error {
	select {
	case msg, ok := <-s.feed:
		if !ok {
			return cdperr.TransportClosed
		}
		*m = msg
		return nil
	case <-s.closeCh:
		return cdperr.TransportClosed
	}
}

func (s *scriptedTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.closeCh)
	}
	return nil
}

func TestAttachDetach(t *testing.T) {
	st := newScriptedTransport()
	st.respond["Target.attachToTarget"] = func(id int64) transport.Message {
		return transport.Message{ID: id, Result: json.RawMessage(`{"sessionId":"sess-1"}`)}
	}

	m := mux.New(st)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	mgr := New(m)
	sess, err := mgr.Attach(context.Background(), "target-1")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if sess.State() != StateAttached {
		t.Fatalf("expected attached, got %v", sess.State())
	}

	if err := mgr.Detach(context.Background(), sess); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if sess.State() != StateDetached {
		t.Fatalf("expected detached, got %v", sess.State())
	}
	if err := sess.checkLive(); err == nil {
		t.Fatalf("expected checkLive to fail after detach")
	}
}

func TestDetachedFromTargetEventMarksSessionDead(t *testing.T) {
	st := newScriptedTransport()
	st.respond["Target.attachToTarget"] = func(id int64) transport.Message {
		return transport.Message{ID: id, Result: json.RawMessage(`{"sessionId":"sess-2"}`)}
	}
	m := mux.New(st)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	mgr := New(m)
	mgr.autoAttach = true
	sess, err := mgr.Attach(context.Background(), "target-2")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	mgr.mu.Lock()
	mgr.sessions[sess.SessionID] = sess
	mgr.mu.Unlock()

	st.feed <- transport.Message{Method: "Target.detachedFromTarget", Params: json.RawMessage(`{"sessionId":"sess-2"}`)}

	deadline := time.After(time.Second)
	for sess.State() != StateDetached {
		select {
		case <-deadline:
			t.Fatalf("session never transitioned to detached")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

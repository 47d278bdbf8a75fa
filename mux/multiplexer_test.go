package mux

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/kuromi/browser-core/cdperr"
	"github.com/kuromi/browser-core/transport"
)

// fakeTransport is an in-memory transport.Transport double: writes are
// recorded, and tests push canned responses/events via feed.
type fakeTransport struct {
	mu      sync.Mutex
	writes  []transport.Message
	feed    chan transport.Message
	closed  bool
	closeCh chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{feed: make(chan transport.Message, 64), closeCh: make(chan struct{})}
}

func (f *fakeTransport) Write(m *transport.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return cdperr.TransportClosed
	}
	f.writes = append(f.writes, *m)
	return nil
}

func (f *fakeTransport) Read(m *transport.Message) error {
	select {
	case msg, ok := <-f.feed:
		if !ok {
			return cdperr.TransportClosed
		}
		*m = msg
		return nil
	case <-f.closeCh:
		return cdperr.TransportClosed
	}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.closeCh)
	}
	return nil
}

func (f *fakeTransport) push(m transport.Message) { f.feed <- m }

func TestSendResolvesOnResponse(t *testing.T) {
	ft := newFakeTransport()
	m := New(ft)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	done := make(chan struct{})
	var result json.RawMessage
	var err error
	go func() {
		result, err = m.Send(context.Background(), "Page.navigate", nil, "")
		close(done)
	}()

	// Wait for the write, then reply.
	time.Sleep(20 * time.Millisecond)
	ft.mu.Lock()
	id := ft.writes[0].ID
	ft.mu.Unlock()
	ft.push(transport.Message{ID: id, Result: json.RawMessage(`{"frameId":"abc"}`)})

	<-done
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if string(result) != `{"frameId":"abc"}` {
		t.Fatalf("unexpected result: %s", result)
	}
}

func TestSendSurfacesCdpError(t *testing.T) {
	ft := newFakeTransport()
	m := New(ft)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := m.Send(context.Background(), "DOM.querySelector", nil, "")
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	ft.mu.Lock()
	id := ft.writes[0].ID
	ft.mu.Unlock()
	ft.push(transport.Message{ID: id, Error: &transport.WireError{Code: -32000, Message: "No node with given id"}})

	err := <-done
	cerr, ok := err.(*cdperr.Error)
	if !ok {
		t.Fatalf("expected *cdperr.Error, got %T: %v", err, err)
	}
	if cerr.Kind != cdperr.KindStaleNode {
		t.Fatalf("expected translated StaleNode, got %v", cerr.Kind)
	}
}

func TestIDsAreMonotonicAndUnique(t *testing.T) {
	ft := newFakeTransport()
	m := New(ft)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			m.Send(ctx, "Runtime.evaluate", nil, "")
		}()
	}
	wg.Wait()
	time.Sleep(20 * time.Millisecond)

	ft.mu.Lock()
	defer ft.mu.Unlock()
	seen := make(map[int64]bool)
	var ids []int64
	for _, w := range ft.writes {
		if seen[w.ID] {
			t.Fatalf("id %d used twice", w.ID)
		}
		seen[w.ID] = true
		ids = append(ids, w.ID)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("ids not strictly increasing: %v", ids)
		}
	}
}

func TestTransportCloseFailsAllPending(t *testing.T) {
	ft := newFakeTransport()
	m := New(ft)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	done := make(chan error, 1)
	go func() {
		_, err := m.Send(context.Background(), "Page.navigate", nil, "")
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	ft.Close()

	err := <-done
	if cerr, ok := err.(*cdperr.Error); !ok || cerr.Kind != cdperr.KindTransportClosed {
		t.Fatalf("expected TransportClosed, got %v", err)
	}
}

func TestEventsReachHandlersInBrowserOrder(t *testing.T) {
	ft := newFakeTransport()
	m := New(ft)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	const n = 50
	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	m.On("Network.requestWillBeSent", "sess1", func(p json.RawMessage) {
		var wire struct {
			Seq int `json:"seq"`
		}
		json.Unmarshal(p, &wire)
		mu.Lock()
		got = append(got, wire.Seq)
		if len(got) == n {
			close(done)
		}
		mu.Unlock()
	})

	for i := 0; i < n; i++ {
		b, _ := json.Marshal(map[string]int{"seq": i})
		ft.push(transport.Message{Method: "Network.requestWillBeSent", SessionID: "sess1", Params: b})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handlers never saw all events")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, seq := range got {
		if seq != i {
			t.Fatalf("events out of order at %d: %v", i, got)
		}
	}
}

func TestEventFanOutSessionThenGlobal(t *testing.T) {
	ft := newFakeTransport()
	m := New(ft)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	var mu sync.Mutex
	var order []string
	wg := sync.WaitGroup{}
	wg.Add(2)
	m.On("Network.requestWillBeSent", "sess1", func(json.RawMessage) {
		mu.Lock()
		order = append(order, "session")
		mu.Unlock()
		wg.Done()
	})
	m.On("Network.requestWillBeSent", "", func(json.RawMessage) {
		mu.Lock()
		order = append(order, "global")
		mu.Unlock()
		wg.Done()
	})

	ft.push(transport.Message{Method: "Network.requestWillBeSent", SessionID: "sess1", Params: json.RawMessage(`{}`)})
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 {
		t.Fatalf("expected both handlers invoked, got %v", order)
	}
}

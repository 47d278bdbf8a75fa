package netmon

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

func newTestMonitor(t *testing.T) (*Monitor, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	m := mux.New(ft)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)
	return NewMonitor(m, "sess-1"), ft
}

func TestMonitorCorrelatesRequestAndResponse(t *testing.T) {
	mon, ft := newTestMonitor(t)

	ft.feed <- transport.Message{
		Method: "Network.requestWillBeSent", SessionID: "sess-1",
		Params: json.RawMessage(`{"requestId":"r1","request":{"url":"https://x.test/","method":"GET","headers":{}}}`),
	}
	ft.feed <- transport.Message{
		Method: "Network.responseReceived", SessionID: "sess-1",
		Params: json.RawMessage(`{"requestId":"r1","response":{"status":200,"statusText":"OK","headers":{},"mimeType":"text/html"}}`),
	}

	deadline := time.After(time.Second)
	for {
		reqs := mon.GetRequests()
		if len(reqs) == 1 && reqs[0].Response != nil {
			if reqs[0].Response.Status != 200 {
				t.Fatalf("unexpected status: %d", reqs[0].Response.Status)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("request/response never correlated: %+v", reqs)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestWaitForRequestUnblocksOnMatch(t *testing.T) {
	mon, ft := newTestMonitor(t)

	done := make(chan *RequestRecord, 1)
	go func() {
		rec, err := mon.WaitForRequest(context.Background(), func(r *RequestRecord) bool {
			return r.URL == "https://match.test/"
		})
		if err != nil {
			t.Errorf("WaitForRequest: %v", err)
			return
		}
		done <- rec
	}()

	ft.feed <- transport.Message{
		Method: "Network.requestWillBeSent", SessionID: "sess-1",
		Params: json.RawMessage(`{"requestId":"r2","request":{"url":"https://nomatch.test/","method":"GET","headers":{}}}`),
	}
	ft.feed <- transport.Message{
		Method: "Network.requestWillBeSent", SessionID: "sess-1",
		Params: json.RawMessage(`{"requestId":"r3","request":{"url":"https://match.test/","method":"GET","headers":{}}}`),
	}

	select {
	case rec := <-done:
		if rec.RequestID != "r3" {
			t.Fatalf("expected r3, got %s", rec.RequestID)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForRequest never unblocked")
	}
}

package netmon

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/kuromi/browser-core/mux"
	"github.com/kuromi/browser-core/transport"
)

type fakeEnabler struct{ called bool }

func (f *fakeEnabler) EnableFetch(ctx context.Context, patterns []map[string]any) error {
	f.called = true
	return nil
}

// recordingTransport records every outbound message (for assertions) while
// auto-acknowledging it with an empty result, so Send() calls never block.
type recordingTransport struct {
	mu     sync.Mutex
	writes []transport.Message
	feed   chan transport.Message
	done   chan struct{}
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{feed: make(chan transport.Message, 64), done: make(chan struct{})}
}

func (r *recordingTransport) Write(m *transport.Message) error {
	r.mu.Lock()
	r.writes = append(r.writes, *m)
	r.mu.Unlock()
	r.feed <- transport.Message{ID: m.ID, Result: json.RawMessage(`{}`)}
	return nil
}

func (r *recordingTransport) Read(m *transport.Message) error {
	select {
	case msg := <-r.feed:
		*m = msg
		return nil
	case <-r.done:
		return context.Canceled
	}
}

func (r *recordingTransport) Close() error {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	return nil
}

func (r *recordingTransport) methodCalled(method string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.writes {
		if w.Method == method {
			return true
		}
	}
	return false
}

func TestInterceptorBlocksFirstMatchingRule(t *testing.T) {
	rt := newRecordingTransport()
	m := mux.New(rt)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	rules := []Rule{
		{
			Name:   "block-ads",
			Match:  func(r *InterceptedRequest) bool { return r.URL == "https://ads.test/" },
			Action: ActionBlock,
		},
	}
	_, err := NewInterceptor(context.Background(), m, "sess-1", &fakeEnabler{}, rules)
	if err != nil {
		t.Fatalf("NewInterceptor: %v", err)
	}

	rt.feed <- transport.Message{
		Method: "Fetch.requestPaused", SessionID: "sess-1",
		Params: json.RawMessage(`{"requestId":"f1","request":{"url":"https://ads.test/","method":"GET","headers":{}}}`),
	}

	deadline := time.After(time.Second)
	for !rt.methodCalled("Fetch.failRequest") {
		select {
		case <-deadline:
			t.Fatalf("expected Fetch.failRequest, writes=%+v", rt.writes)
		case <-time.After(5 * time.Millisecond):
		}
	}
	if rt.methodCalled("Fetch.continueRequest") {
		t.Fatal("blocked request should not also be continued")
	}
}

func TestInterceptorContinuesUnmatchedRequest(t *testing.T) {
	rt := newRecordingTransport()
	m := mux.New(rt)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	_, err := NewInterceptor(context.Background(), m, "sess-1", &fakeEnabler{}, nil)
	if err != nil {
		t.Fatalf("NewInterceptor: %v", err)
	}

	rt.feed <- transport.Message{
		Method: "Fetch.requestPaused", SessionID: "sess-1",
		Params: json.RawMessage(`{"requestId":"f2","request":{"url":"https://ok.test/","method":"GET","headers":{}}}`),
	}

	deadline := time.After(time.Second)
	for !rt.methodCalled("Fetch.continueRequest") {
		select {
		case <-deadline:
			t.Fatal("expected Fetch.continueRequest for unmatched request")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestMatchPatternGlobAndRegex(t *testing.T) {
	cases := []struct {
		pattern string
		url     string
		want    bool
	}{
		{"*api/ping*", "https://x.test/api/ping?x=1", true},
		{"*api/ping*", "https://x.test/api/pong", false},
		{"*.png", "https://x.test/img/x.png", true},
		{"*.png", "https://x.test/img/x.jpg", false},
		{"https://?.test/", "https://a.test/", true},
		{"https://?.test/", "https://ab.test/", false},
		{`^https://[ab]\.test/$`, "https://a.test/", true},
		{`^https://[ab]\.test/$`, "https://c.test/", false},
	}
	for _, c := range cases {
		got := MatchPattern(c.pattern)(&InterceptedRequest{URL: c.url})
		if got != c.want {
			t.Errorf("MatchPattern(%q)(%q) = %v, want %v", c.pattern, c.url, got, c.want)
		}
	}
}

func TestDecodeFetchBodyPassesThroughUncompressed(t *testing.T) {
	b, err := decodeFetchBody("aGVsbG8=", "")
	if err != nil {
		t.Fatalf("decodeFetchBody: %v", err)
	}
	if string(b) != "hello" {
		t.Fatalf("got %q", b)
	}
}

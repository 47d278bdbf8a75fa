package input

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/kuromi/browser-core/mux"
	"github.com/kuromi/browser-core/transport"
)

type recordingTransport struct {
	mu     sync.Mutex
	writes []transport.Message
	feed   chan transport.Message
	done   chan struct{}
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{feed: make(chan transport.Message, 256), done: make(chan struct{})}
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

func (r *recordingTransport) count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, w := range r.writes {
		if w.Method == method {
			n++
		}
	}
	return n
}

func newTestSynth(t *testing.T) (*Synthesizer, *recordingTransport) {
	t.Helper()
	rt := newRecordingTransport()
	m := mux.New(rt)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)
	s := NewSynthesizer(m, 42)
	s.Timing.StepDelay = time.Microsecond
	s.Timing.PrePressMin, s.Timing.PrePressMax = 0, 0
	s.Timing.HoldMin, s.Timing.HoldMax = 0, 0
	s.Timing.InterClickMin, s.Timing.InterClickMax = 0, 0
	s.Keyboard.MinDelay = time.Microsecond
	s.Keyboard.MaxDelay = 2 * time.Microsecond
	s.Keyboard.WordPauseProbability = 0
	s.Keyboard.SentencePauseMin, s.Keyboard.SentencePauseMax = 0, 0
	return s, rt
}

func TestBezierPathEndpointsArePinned(t *testing.T) {
	s, _ := newTestSynth(t)
	from, to := point{40, 25}, point{300, 150}
	path := s.bezierPath(from, to)
	if path[0] != from {
		t.Fatalf("path does not start at the current cursor: %+v", path[0])
	}
	if last := path[len(path)-1]; last != to {
		t.Fatalf("path did not land on target: %+v", last)
	}
	if len(path) < 2 {
		t.Fatalf("expected multi-step path, got %d", len(path))
	}
}

func TestMoveToDispatchesMouseMovedPerStep(t *testing.T) {
	s, rt := newTestSynth(t)
	if err := s.MoveTo(context.Background(), "sess", 100, 100); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	if rt.count("Input.dispatchMouseEvent") < s.Timing.MinSteps {
		t.Fatalf("expected at least %d mouse events, got %d", s.Timing.MinSteps, rt.count("Input.dispatchMouseEvent"))
	}
}

func TestClickDispatchesPressThenRelease(t *testing.T) {
	s, rt := newTestSynth(t)
	if err := s.Click(context.Background(), "sess", 50, 50); err != nil {
		t.Fatalf("Click: %v", err)
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	var sawPress, sawRelease bool
	for _, w := range rt.writes {
		if w.Method != "Input.dispatchMouseEvent" {
			continue
		}
		var p struct{ Type string }
		_ = json.Unmarshal(w.Params, &p)
		if p.Type == "mousePressed" {
			sawPress = true
		}
		if p.Type == "mouseReleased" {
			if !sawPress {
				t.Fatalf("mouseReleased observed before mousePressed")
			}
			sawRelease = true
		}
	}
	if !sawPress || !sawRelease {
		t.Fatalf("expected both press and release events, press=%v release=%v", sawPress, sawRelease)
	}
}

func TestClickCountDispatchesOrderedPairs(t *testing.T) {
	s, rt := newTestSynth(t)
	if err := s.ClickCount(context.Background(), "sess", 50, 50, 2); err != nil {
		t.Fatalf("ClickCount: %v", err)
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	type buttonEvent struct {
		typ   string
		count int
	}
	var got []buttonEvent
	for _, w := range rt.writes {
		if w.Method != "Input.dispatchMouseEvent" {
			continue
		}
		var p struct {
			Type       string `json:"type"`
			ClickCount int    `json:"clickCount"`
		}
		_ = json.Unmarshal(w.Params, &p)
		if p.Type == "mousePressed" || p.Type == "mouseReleased" {
			got = append(got, buttonEvent{p.Type, p.ClickCount})
		}
	}
	want := []buttonEvent{
		{"mousePressed", 1}, {"mouseReleased", 1},
		{"mousePressed", 2}, {"mouseReleased", 2},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d button events, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTypeDispatchesKeyEventsForEachRune(t *testing.T) {
	s, rt := newTestSynth(t)
	s.Keyboard.TypoProbability = 0
	if err := s.Type(context.Background(), "sess", "hi"); err != nil {
		t.Fatalf("Type: %v", err)
	}
	// "h" and "i" each produce keyDown+char+keyUp = 3 events.
	if got := rt.count("Input.dispatchKeyEvent"); got != 6 {
		t.Fatalf("expected 6 key events, got %d", got)
	}
}

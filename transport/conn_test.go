package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsEchoServer upgrades every request to a websocket and echoes back any
// text frame it receives.
func wsEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			typ, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(typ, data); err != nil {
				return
			}
		}
	}))
	return s
}

func TestDialAndRoundTrip(t *testing.T) {
	s := wsEchoServer(t)
	defer s.Close()

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := DialContext(ctx, url)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	defer c.Close()

	out := &Message{ID: 1, Method: "Page.enable"}
	if err := c.Write(out); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var in Message
	if err := c.Read(&in); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if in.ID != 1 || in.Method != "Page.enable" {
		t.Fatalf("round trip mismatch: got %+v", in)
	}
}

func TestCloseIsTerminal(t *testing.T) {
	s := wsEchoServer(t)
	defer s.Close()

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/"
	c, err := DialContext(context.Background(), url)
	if err != nil {
		t.Fatalf("DialContext: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Write(&Message{ID: 1, Method: "Page.enable"}); err == nil {
		t.Fatalf("expected write after close to fail")
	}
}

func TestForceIP(t *testing.T) {
	got := ForceIP("ws://localhost:9222/devtools/browser/abc")
	if !strings.HasPrefix(got, "ws://127.0.0.1:9222") {
		t.Fatalf("ForceIP did not resolve localhost: %s", got)
	}
}

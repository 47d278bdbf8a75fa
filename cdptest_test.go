package browsercore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// wireMessage mirrors transport.Message's JSON shape without importing the
// unexported pieces of that package, so the fake peer can decode/encode
// frames exactly as the real browser-side CDP endpoint would.
type wireMessage struct {
	ID        int64           `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *wireError      `json:"error,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

type wireError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// handlerFunc answers one inbound command and returns the raw JSON to send
// back as its "result" field (or an error).
type handlerFunc func(req wireMessage) (json.RawMessage, error)

// fakeCDPServer is a minimal in-process stand-in for a Chrome DevTools
// endpoint: it upgrades to a websocket, dispatches inbound commands to a
// per-method handler table (falling back to an empty object result for
// anything unregistered), and lets tests push asynchronous events with an
// arbitrary sessionId.
type fakeCDPServer struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	handlers map[string]handlerFunc
	conn     *websocket.Conn
	connCh   chan struct{}
}

func newFakeCDPServer(t *testing.T) *fakeCDPServer {
	t.Helper()
	f := &fakeCDPServer{
		t:        t,
		handlers: make(map[string]handlerFunc),
		connCh:   make(chan struct{}),
	}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conn = c
		f.mu.Unlock()
		close(f.connCh)
		f.serve(c)
	}))
	return f
}

func (f *fakeCDPServer) wsURL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/"
}

func (f *fakeCDPServer) Close() { f.srv.Close() }

// on registers a canned handler for an exact CDP method name.
func (f *fakeCDPServer) on(method string, h handlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
}

// onOK registers a handler that always returns result as-is.
func (f *fakeCDPServer) onOK(method string, result json.RawMessage) {
	f.on(method, func(wireMessage) (json.RawMessage, error) { return result, nil })
}

func (f *fakeCDPServer) serve(c *websocket.Conn) {
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req wireMessage
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		if req.ID == 0 {
			// not a command we need to answer
			continue
		}
		f.mu.Lock()
		h, ok := f.handlers[req.Method]
		f.mu.Unlock()

		resp := wireMessage{ID: req.ID, SessionID: req.SessionID}
		if ok {
			result, err := h(req)
			if err != nil {
				resp.Error = &wireError{Code: -32000, Message: err.Error()}
			} else if result == nil {
				resp.Result = json.RawMessage(`{}`)
			} else {
				resp.Result = result
			}
		} else {
			resp.Result = json.RawMessage(`{}`)
		}
		b, _ := json.Marshal(resp)
		f.mu.Lock()
		writeErr := c.WriteMessage(websocket.TextMessage, b)
		f.mu.Unlock()
		if writeErr != nil {
			return
		}
	}
}

// pushEvent waits for the client to have connected, then sends an
// unsolicited CDP event frame with the given sessionId.
func (f *fakeCDPServer) pushEvent(method, sessionID string, params json.RawMessage) {
	<-f.connCh
	msg := wireMessage{Method: method, Params: params, SessionID: sessionID}
	b, _ := json.Marshal(msg)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		_ = f.conn.WriteMessage(websocket.TextMessage, b)
	}
}

// rawf builds a one-line json.RawMessage literal via fmt.Sprintf, for
// tests that want canned CDP results without a struct literal.
func rawf(format string, a ...any) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(format, a...))
}

package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// CDP responses (screenshots, response bodies) can be enormous; the
// read ceiling is 100 MiB.
var (
	// DefaultReadBufferSize is the default maximum read buffer size.
	DefaultReadBufferSize = 100 * 1024 * 1024

	// DefaultWriteBufferSize is the default maximum write buffer size.
	DefaultWriteBufferSize = 10 * 1024 * 1024

	// DefaultPingInterval is how often an application-level ping is sent.
	DefaultPingInterval = 15 * time.Second

	// DefaultPongTimeout is how long to wait for a pong before declaring the
	// connection dead.
	DefaultPongTimeout = 45 * time.Second
)

var ErrInvalidWebsocketMessage = errors.New("transport: invalid websocket message")

// Transport is the common interface the Multiplexer depends on to
// send/receive envelopes, letting tests substitute a fake in place of a
// real *Conn.
type Transport interface {
	Read(*Message) error
	Write(*Message) error
	io.Closer
}

// Conn wraps a gorilla/websocket.Conn connection: dial, read, write, and
// keepalive ping/pong with terminal-on-failure semantics.
type Conn struct {
	*websocket.Conn

	// buf helps us reuse space when reading from the websocket.
	buf bytes.Buffer

	// reuse the easyjson structs to avoid allocs per Read/Write.
	lexer  jlexer.Lexer
	writer jwriter.Writer

	dbgf func(string, ...any)

	mu       sync.Mutex
	closed   bool
	lastPong atomic64

	pingInterval time.Duration
	pongTimeout  time.Duration

	stopPing chan struct{}
}

// atomic64 is a mutex-guarded unix-nano timestamp shared between the ping
// loop and the pong handler.
type atomic64 struct {
	mu sync.Mutex
	v  int64
}

func (a *atomic64) set(v int64) {
	a.mu.Lock()
	a.v = v
	a.mu.Unlock()
}

func (a *atomic64) get() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}

// DialOption is a dial option.
type DialOption func(*Conn)

// WithConnDebugf is a dial option to set a protocol logger.
func WithConnDebugf(f func(string, ...any)) DialOption {
	return func(c *Conn) { c.dbgf = f }
}

// WithPingInterval overrides DefaultPingInterval for one connection.
func WithPingInterval(d time.Duration) DialOption {
	return func(c *Conn) { c.pingInterval = d }
}

// WithPongTimeout overrides DefaultPongTimeout for one connection.
func WithPongTimeout(d time.Duration) DialOption {
	return func(c *Conn) { c.pongTimeout = d }
}

// DialContext dials the specified websocket URL using gorilla/websocket.
func DialContext(ctx context.Context, urlstr string, opts ...DialOption) (*Conn, error) {
	d := &websocket.Dialer{
		ReadBufferSize:  DefaultReadBufferSize,
		WriteBufferSize: DefaultWriteBufferSize,
	}

	conn, _, err := d.DialContext(ctx, urlstr, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(int64(DefaultReadBufferSize))

	c := &Conn{
		Conn:         conn,
		pingInterval: DefaultPingInterval,
		pongTimeout:  DefaultPongTimeout,
		stopPing:     make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	c.lastPong.set(time.Now().UnixNano())
	conn.SetPongHandler(func(string) error {
		c.lastPong.set(time.Now().UnixNano())
		return nil
	})
	go c.pingLoop()

	return c, nil
}

// pingLoop sends a periodic application-level ping; if no pong has been
// observed within pongTimeout, the connection is closed, making the next
// Read/Write return a terminal error.
func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopPing:
			return
		case <-ticker.C:
			if time.Since(time.Unix(0, c.lastPong.get())) > c.pongTimeout {
				c.Close()
				return
			}
			c.mu.Lock()
			err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.mu.Unlock()
			if err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) bufReadAll(r io.Reader) ([]byte, error) {
	c.buf.Reset()
	_, err := c.buf.ReadFrom(r)
	return c.buf.Bytes(), err
}

// Read reads the next message, skipping and logging malformed frames rather
// than treating them as a transport-closing error.
func (c *Conn) Read(msg *Message) error {
	for {
		typ, r, err := c.NextReader()
		if err != nil {
			return err
		}
		if typ != websocket.TextMessage {
			if c.dbgf != nil {
				c.dbgf("skipping non-text websocket frame type %d", typ)
			}
			continue
		}

		buf, err := c.bufReadAll(r)
		if err != nil {
			return err
		}
		if c.dbgf != nil {
			c.dbgf("<- %s", buf)
		}

		c.lexer = jlexer.Lexer{Data: buf}
		msg.UnmarshalEasyJSON(&c.lexer)
		if err := c.lexer.Error(); err != nil {
			if c.dbgf != nil {
				c.dbgf("skipping unparseable frame: %v", err)
			}
			continue
		}

		// msg.Params/Result alias into c.buf's backing array via
		// bufReadAll; copy them out so the next read doesn't corrupt
		// data a caller is still holding.
		msg.Params = append([]byte{}, msg.Params...)
		msg.Result = append([]byte{}, msg.Result...)
		return nil
	}
}

// Write writes a message.
func (c *Conn) Write(msg *Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}

	w, err := c.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	defer w.Close()

	c.writer = jwriter.Writer{}
	msg.MarshalEasyJSON(&c.writer)
	if err := c.writer.Error; err != nil {
		return err
	}

	if c.dbgf != nil {
		buf, _ := c.writer.BuildBytes()
		c.dbgf("-> %s", buf)
		_, err = w.Write(buf)
		return err
	}
	_, err = c.writer.DumpTo(w)
	return err
}

// Close is terminal: the transport cannot be reused after any I/O error
// or explicit close.
func (c *Conn) Close() error {
	c.mu.Lock()
	already := c.closed
	c.closed = true
	c.mu.Unlock()
	if already {
		return nil
	}
	close(c.stopPing)
	return c.Conn.Close()
}

// ForceIP forces the host component in urlstr to be an IP address.
//
// Since Chrome 66+, Chrome DevTools Protocol clients connecting to a browser
// must send the "Host:" header as either an IP address, or "localhost".
func ForceIP(urlstr string) string {
	if i := strings.Index(urlstr, "://"); i != -1 {
		scheme := urlstr[:i+3]
		host, port, path := urlstr[len(scheme):], "", ""
		if i := strings.Index(host, "/"); i != -1 {
			host, path = host[:i], host[i:]
		}
		if i := strings.Index(host, ":"); i != -1 {
			host, port = host[:i], host[i:]
		}
		if addr, err := net.ResolveIPAddr("ip", host); err == nil {
			urlstr = scheme + addr.IP.String() + port + path
		}
	}
	return urlstr
}

package browsercore

import (
	"context"
	"fmt"
	"sync"

	"github.com/kuromi/browser-core/eventbus"
	"github.com/kuromi/browser-core/mux"
	"github.com/kuromi/browser-core/targetmgr"
	"github.com/kuromi/browser-core/transport"
)

// Browser owns the single WebSocket connection to one running browser
// instance: the Transport, the Session Multiplexer
// running over it, and the Target Manager that discovers and attaches to
// targets. Constructed via Connect/ConnectHost, never directly.
type Browser struct {
	cfg   browserConfig
	conn  *transport.Conn
	mux   *mux.Multiplexer
	tgt   *targetmgr.Manager
	bus   *eventbus.Bus
	hooks *eventbus.HookManager

	mu     sync.Mutex
	pages  map[string]*Page
	closed bool
}

// Connect dials a browser-level DevTools WebSocket URL (as returned by
// /json/version's webSocketDebuggerUrl) and starts the Multiplexer's read
// loop. The returned Browser owns conn for its lifetime; Close tears both
// down.
func Connect(ctx context.Context, browserWSURL string, opts ...BrowserOption) (*Browser, error) {
	cfg := defaultBrowserConfig()
	for _, o := range opts {
		o(&cfg)
	}

	conn, err := transport.DialContext(ctx, browserWSURL, cfg.dialOptions()...)
	if err != nil {
		return nil, fmt.Errorf("browsercore: connect: %w", err)
	}

	m := mux.New(conn, cfg.muxOptions()...)
	runCtx, cancel := context.WithCancel(context.Background())
	go m.Run(runCtx)

	b := &Browser{
		cfg:   cfg,
		conn:  conn,
		mux:   m,
		tgt:   targetmgr.New(m),
		bus:   eventbus.NewBus(),
		hooks: eventbus.NewHookManager(),
		pages: make(map[string]*Page),
	}

	if err := b.tgt.EnableDiscover(ctx); err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("browsercore: enable target discovery: %w", err)
	}
	if cfg.autoAttach {
		if err := b.tgt.EnableAutoAttach(ctx, nil); err != nil {
			cancel()
			conn.Close()
			return nil, fmt.Errorf("browsercore: enable auto-attach: %w", err)
		}
	}

	go func() {
		<-m.Closed()
		cancel()
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		b.hooks.Run(eventbus.BrowserDisconnected, nil)
		b.bus.Emit("disconnected", nil)
	}()

	b.hooks.Run(eventbus.BrowserConnected, map[string]any{"url": browserWSURL})
	return b, nil
}

// ConnectHost discovers the browser-level WebSocket URL from an
// already-listening DevTools HTTP host ("host:port") via /json/version,
// then dials it.
func ConnectHost(ctx context.Context, host string, opts ...BrowserOption) (*Browser, error) {
	v, err := targetmgr.DiscoverVersion(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("browsercore: discover %s: %w", host, err)
	}
	return Connect(ctx, v.WebSocketDebuggerURL, opts...)
}

// Bus returns the Browser's general-purpose event bus.
func (b *Browser) Bus() *eventbus.Bus { return b.bus }

// Hooks returns the Browser's lifecycle hook manager.
func (b *Browser) Hooks() *eventbus.HookManager { return b.hooks }

// Targets returns every target the browser currently reports.
func (b *Browser) Targets(ctx context.Context) ([]*targetmgr.TargetInfo, error) {
	return b.tgt.Targets(ctx)
}

// NewPage creates a new blank target, attaches to it, and builds the full
// Page Runtime stack (DOM Service, Network Monitor, Input Synthesizer,
// Stealth Patcher, Network-Idle tracker) around the resulting session. Navigate with Page.Goto.
func (b *Browser) NewPage(ctx context.Context, opts ...PageOption) (*Page, error) {
	var cfg pageConfig
	for _, o := range opts {
		o(&cfg)
	}

	hookCtx := b.hooks.Run(eventbus.PageCreated, nil)
	if hookCtx.Cancelled() {
		return nil, fmt.Errorf("browsercore: page creation cancelled by hook")
	}

	sess, err := b.tgt.CreatePage(ctx, "about:blank")
	if err != nil {
		return nil, err
	}
	p, err := newPage(ctx, b, sess, cfg)
	if err != nil {
		b.tgt.Detach(ctx, sess)
		return nil, err
	}

	b.mu.Lock()
	b.pages[sess.SessionID] = p
	b.mu.Unlock()
	return p, nil
}

// AttachPage attaches to an already-existing target (e.g. one surfaced by
// Targets, or a child frame/worker session delivered to an
// EnableAutoAttach callback) and builds the same Page Runtime stack as
// NewPage.
func (b *Browser) AttachPage(ctx context.Context, targetID string, opts ...PageOption) (*Page, error) {
	var cfg pageConfig
	for _, o := range opts {
		o(&cfg)
	}
	sess, err := b.tgt.Attach(ctx, targetID)
	if err != nil {
		return nil, err
	}
	p, err := newPage(ctx, b, sess, cfg)
	if err != nil {
		b.tgt.Detach(ctx, sess)
		return nil, err
	}
	b.mu.Lock()
	b.pages[sess.SessionID] = p
	b.mu.Unlock()
	return p, nil
}

func (b *Browser) forgetPage(sessionID string) {
	b.mu.Lock()
	delete(b.pages, sessionID)
	b.mu.Unlock()
}

// Close detaches every open page and closes the underlying transport. The
// Browser is unusable afterward; a closed transport cannot be reused.
func (b *Browser) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	pages := make([]*Page, 0, len(b.pages))
	for _, p := range b.pages {
		pages = append(pages, p)
	}
	b.mu.Unlock()

	for _, p := range pages {
		_ = p.Close(ctx)
	}
	b.hooks.Run(eventbus.BrowserClose, nil)
	return b.conn.Close()
}

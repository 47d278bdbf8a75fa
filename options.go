package browsercore

import (
	"time"

	"github.com/kuromi/browser-core/mux"
	"github.com/kuromi/browser-core/stealth"
	"github.com/kuromi/browser-core/transport"
)

// LogFunc is the common logging func type threaded through every
// long-lived component (transport, mux, and this facade).
type LogFunc func(string, ...any)

// BrowserOption configures Connect/ConnectHost.
type BrowserOption func(*browserConfig)

type browserConfig struct {
	logf, debugf, errf LogFunc
	pingInterval       time.Duration
	pongTimeout        time.Duration
	mouseSeed          int64
	autoAttach         bool
}

func defaultBrowserConfig() browserConfig {
	return browserConfig{
		logf:   func(string, ...any) {},
		debugf: func(string, ...any) {},
		errf:   func(string, ...any) {},
	}
}

// WithLogf sets the informational log hook.
func WithLogf(f LogFunc) BrowserOption { return func(c *browserConfig) { c.logf = f } }

// WithDebugf sets the protocol-trace log hook (every inbound/outbound frame).
func WithDebugf(f LogFunc) BrowserOption { return func(c *browserConfig) { c.debugf = f } }

// WithErrorf sets the error log hook.
func WithErrorf(f LogFunc) BrowserOption { return func(c *browserConfig) { c.errf = f } }

// WithPingInterval overrides the transport's application-level ping cadence.
func WithPingInterval(d time.Duration) BrowserOption {
	return func(c *browserConfig) { c.pingInterval = d }
}

// WithPongTimeout overrides how long the transport waits for a pong before
// declaring the connection dead.
func WithPongTimeout(d time.Duration) BrowserOption {
	return func(c *browserConfig) { c.pongTimeout = d }
}

// WithMouseSeed fixes the Input Synthesis RNG seed, so a test can reproduce
// an exact recorded mouse path.
func WithMouseSeed(seed int64) BrowserOption {
	return func(c *browserConfig) { c.mouseSeed = seed }
}

// WithAutoAttach enables Target Manager auto-attach for new targets
// (frames, workers) as they appear, rather than requiring an explicit
// Attach call for each one.
func WithAutoAttach() BrowserOption {
	return func(c *browserConfig) { c.autoAttach = true }
}

func (c browserConfig) muxOptions() []mux.Option {
	return []mux.Option{
		mux.WithLogf(mux.LogFunc(c.logf)),
		mux.WithDebugf(mux.LogFunc(c.debugf)),
		mux.WithErrorf(mux.LogFunc(c.errf)),
	}
}

func (c browserConfig) dialOptions() []transport.DialOption {
	var opts []transport.DialOption
	if c.debugf != nil {
		opts = append(opts, transport.WithConnDebugf(func(s string, a ...any) { c.debugf(s, a...) }))
	}
	if c.pingInterval > 0 {
		opts = append(opts, transport.WithPingInterval(c.pingInterval))
	}
	if c.pongTimeout > 0 {
		opts = append(opts, transport.WithPongTimeout(c.pongTimeout))
	}
	return opts
}

// PageOption configures Browser.NewPage.
type PageOption func(*pageConfig)

type pageConfig struct {
	fingerprint *stealth.Profile
}

// WithFingerprint applies profile to the page before any navigation, via
// the Stealth Patcher.
func WithFingerprint(profile stealth.Profile) PageOption {
	return func(c *pageConfig) { c.fingerprint = &profile }
}

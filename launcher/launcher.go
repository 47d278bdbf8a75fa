// Package launcher is a thin, optional helper around browsercore.Connect
// for callers who don't already have a running browser to point at.
// Process supervision itself (crash detection, profile directory policy,
// remote fleet management) is left to the caller; this package only gets
// a websocket URL into browsercore.Connect's hands.
package launcher

import (
	"context"

	browsercore "github.com/kuromi/browser-core"
)

// Allocator creates and tears down Browsers. Implementations abstract
// over how the underlying browser process (or lack thereof) is managed.
type Allocator interface {
	// Allocate connects to a browser, starting one first if the
	// implementation owns process lifecycle. Cancelling ctx releases
	// whatever resources Allocate acquired.
	Allocate(ctx context.Context, opts ...browsercore.BrowserOption) (*browsercore.Browser, error)

	// Wait blocks until every Browser this allocator produced has fully
	// released its resources. Cancelling the context passed to Allocate
	// already triggers this; Wait is for callers that want to block
	// explicitly (e.g. before process exit).
	Wait()
}

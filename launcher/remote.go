package launcher

import (
	"context"
	"sync"

	browsercore "github.com/kuromi/browser-core"
)

// RemoteAllocator connects to an already-running browser, either by a
// browser-level WebSocket URL directly or by discovering one from a
// DevTools HTTP host's /json/version endpoint.
type RemoteAllocator struct {
	wsURL string
	host  string

	wg sync.WaitGroup
}

// NewRemoteAllocator targets an already-known browser WebSocket URL, such as
// one returned by a prior DiscoverVersion call or printed by a browser
// started out-of-process.
func NewRemoteAllocator(wsURL string) *RemoteAllocator {
	return &RemoteAllocator{wsURL: wsURL}
}

// NewRemoteAllocatorHost targets a DevTools HTTP host ("host:port"),
// discovering the WebSocket URL on each Allocate call.
func NewRemoteAllocatorHost(host string) *RemoteAllocator {
	return &RemoteAllocator{host: host}
}

// Allocate satisfies Allocator.
func (a *RemoteAllocator) Allocate(ctx context.Context, opts ...browsercore.BrowserOption) (*browsercore.Browser, error) {
	a.wg.Add(1)
	var (
		b   *browsercore.Browser
		err error
	)
	if a.wsURL != "" {
		b, err = browsercore.Connect(ctx, a.wsURL, opts...)
	} else {
		b, err = browsercore.ConnectHost(ctx, a.host, opts...)
	}
	if err != nil {
		a.wg.Done()
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = b.Close(context.Background())
		a.wg.Done()
	}()
	return b, nil
}

// Wait satisfies Allocator.
func (a *RemoteAllocator) Wait() { a.wg.Wait() }

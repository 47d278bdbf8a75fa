package waiter

import (
	"context"
	"encoding/json"

	"github.com/kuromi/browser-core/cdperr"
	"github.com/kuromi/browser-core/mux"
)

// WaitForEvent blocks until method fires on sessionID (or globally, if
// sessionID is empty) and returns its params, or returns a KindWaitTimeout
// error if ctx ends first.
func WaitForEvent(ctx context.Context, m *mux.Multiplexer, sessionID, method string) (json.RawMessage, error) {
	ch := make(chan json.RawMessage, 1)
	m.On(method, sessionID, func(p json.RawMessage) {
		select {
		case ch <- p:
		default:
		}
	})
	// There is no unsubscribe-by-handle in the multiplexer's subscription
	// table; the handler above becomes a no-op send-on-full once this
	// function returns, since the channel is buffered and never read again.
	select {
	case p := <-ch:
		return p, nil
	case <-ctx.Done():
		return nil, cdperr.WaitTimeout("event " + method)
	}
}

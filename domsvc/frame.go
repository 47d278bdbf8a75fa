package domsvc

import (
	"context"
	"encoding/json"

	"github.com/kuromi/browser-core/cdperr"
	"github.com/kuromi/browser-core/mux"
)

// FrameService scopes a Service to a single iframe's content document.
// Same-origin frames reuse the page's session; a cross-origin OOPIF gets its
// own Session from the Target Manager, attached by the facade before
// ContentDocument is called.
type FrameService struct {
	parent *Service
}

// NewFrameService wraps parent for frame-scoped lookups.
func NewFrameService(parent *Service) *FrameService {
	return &FrameService{parent: parent}
}

// ContentDocument resolves e (expected to be an <iframe>/<frame> element)
// to the Service governing its content document, provided the frame shares
// e's session (same-origin, or already attached via Target Manager
// auto-attach with flatten:true so it shares the connection's session
// space).
func (fs *FrameService) ContentDocument(ctx context.Context, iframe *Element) (*Service, error) {
	if iframe.stale() {
		return nil, cdperr.StaleNode
	}
	result, err := iframe.svc.m.Send(ctx, "DOM.describeNode", rawJSON(map[string]any{
		"nodeId": iframe.NodeID, "depth": 0,
	}), iframe.SessionID)
	if err != nil {
		return nil, iframe.translateStale(err)
	}
	var wire struct {
		Node struct {
			FrameID         string `json:"frameId"`
			ContentDocument *struct {
				NodeID int64 `json:"nodeId"`
			} `json:"contentDocument"`
		} `json:"node"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return nil, err
	}
	if wire.Node.ContentDocument == nil {
		return nil, &cdperr.Error{Kind: cdperr.KindUnknown, Message: "frame has no content document (cross-origin OOPIF requires its own attached session)"}
	}
	child := &Service{
		m:         iframe.svc.m,
		sessionID: iframe.SessionID,
	}
	child.mu.Lock()
	child.rootNode = wire.Node.ContentDocument.NodeID
	child.mu.Unlock()
	return child, nil
}

// ForSession constructs a Service for a frame that runs in its own session
// (an OOPIF reached via Target Manager auto-attach).
func ForSession(ctx context.Context, m *mux.Multiplexer, sessionID string) (*Service, error) {
	return NewService(ctx, m, sessionID)
}

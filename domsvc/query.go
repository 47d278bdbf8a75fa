package domsvc

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/kuromi/browser-core/cdperr"
	"github.com/kuromi/browser-core/internal/jsassets"
	"github.com/kuromi/browser-core/mux"
)

// Service resolves Selectors against a single session's document and mints
// Element handles. One Service exists per frame; the facade
// constructs one for the main frame, and FrameService.ContentDocument one
// more per traversed iframe (see frame.go). Shadow-root piercing
// (shadow.go) stays within the same Service.
type Service struct {
	m         *mux.Multiplexer
	sessionID string

	mu       sync.Mutex
	rootNode int64

	generation atomic.Uint64
}

// NewService fetches the document root and subscribes to DOM.documentUpdated
// so outstanding Element handles can detect invalidation.
func NewService(ctx context.Context, m *mux.Multiplexer, sessionID string) (*Service, error) {
	s := &Service{m: m, sessionID: sessionID}
	if err := s.refreshRoot(ctx); err != nil {
		return nil, err
	}
	m.On("DOM.documentUpdated", sessionID, func(json.RawMessage) {
		s.generation.Add(1)
	})
	return s, nil
}

func (s *Service) currentGeneration() uint64 {
	return s.generation.Load()
}

func (s *Service) refreshRoot(ctx context.Context) error {
	result, err := s.m.Send(ctx, "DOM.getDocument", rawJSON(map[string]any{"depth": 1}), s.sessionID)
	if err != nil {
		return err
	}
	var wire struct {
		Root struct {
			NodeID int64 `json:"nodeId"`
		} `json:"root"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return err
	}
	s.mu.Lock()
	s.rootNode = wire.Root.NodeID
	s.mu.Unlock()
	return nil
}

func (s *Service) rootNodeID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rootNode
}

// Query resolves sel against root (or the document root if root is nil) and
// returns every matching Element, in document order.
func (s *Service) Query(ctx context.Context, sel Selector, root *Element) ([]*Element, error) {
	switch sel.Kind {
	case KindCSS:
		return s.queryCSS(ctx, sel.Query, root, true)
	default:
		return s.queryXPath(ctx, sel.Query, root)
	}
}

// QueryOne returns the first match or nil if none exists.
func (s *Service) QueryOne(ctx context.Context, sel Selector, root *Element) (*Element, error) {
	if sel.Kind == KindCSS {
		els, err := s.queryCSS(ctx, sel.Query, root, false)
		if err != nil || len(els) == 0 {
			return nil, err
		}
		return els[0], nil
	}
	els, err := s.queryXPath(ctx, sel.Query, root)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

func (s *Service) queryCSS(ctx context.Context, css string, root *Element, all bool) ([]*Element, error) {
	nodeID := s.rootNodeID()
	if root != nil {
		if root.stale() {
			return nil, cdperr.StaleNode
		}
		nodeID = root.NodeID
	}
	method := "DOM.querySelector"
	if all {
		method = "DOM.querySelectorAll"
	}
	result, err := s.m.Send(ctx, method, rawJSON(map[string]any{"nodeId": nodeID, "selector": css}), s.sessionID)
	if err != nil {
		return nil, s.translateStale(err)
	}
	if all {
		var wire struct {
			NodeIDs []int64 `json:"nodeIds"`
		}
		if err := json.Unmarshal(result, &wire); err != nil {
			return nil, err
		}
		out := make([]*Element, 0, len(wire.NodeIDs))
		for _, id := range wire.NodeIDs {
			out = append(out, s.elementFromNodeID(id))
		}
		return out, nil
	}
	var wire struct {
		NodeID int64 `json:"nodeId"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return nil, err
	}
	if wire.NodeID == 0 {
		return nil, nil
	}
	return []*Element{s.elementFromNodeID(wire.NodeID)}, nil
}

// queryXPath evaluates the XPath expression via Runtime.evaluate +
// document.evaluate against root's subtree (or document), then resolves
// each resulting JS node to a CDP node_id via DOM.requestNode.
func (s *Service) queryXPath(ctx context.Context, xpath string, root *Element) ([]*Element, error) {
	if root != nil {
		if root.stale() {
			return nil, cdperr.StaleNode
		}
		if _, err := root.resolveIfNeeded(ctx); err != nil {
			return nil, err
		}
	}
	var objectIDs []string
	if root != nil {
		vals, err := root.callFunctionRaw(ctx, jsassets.EvaluateXPathSnapshot, []any{xpath})
		if err != nil {
			return nil, err
		}
		objectIDs = vals
	} else {
		vals, err := s.callFunctionOnDocument(ctx, jsassets.EvaluateXPathSnapshot, xpath)
		if err != nil {
			return nil, err
		}
		objectIDs = vals
	}

	out := make([]*Element, 0, len(objectIDs))
	for _, oid := range objectIDs {
		el, err := s.elementFromRemoteObjectID(ctx, oid)
		if err != nil {
			continue
		}
		out = append(out, el)
	}
	return out, nil
}

// callFunctionOnDocument evaluates decl with `this` bound to document
// when there is no root Element to bind `this` to.
func (s *Service) callFunctionOnDocument(ctx context.Context, decl string, arg string) ([]string, error) {
	result, err := s.m.Send(ctx, "Runtime.evaluate", rawJSON(map[string]any{
		"expression":    "(" + decl + ").call(document, " + jsonQuote(arg) + ")",
		"returnByValue": false,
	}), s.sessionID)
	if err != nil {
		return nil, err
	}
	var wire struct {
		Result struct {
			ObjectID string `json:"objectId"`
		} `json:"result"`
		ExceptionDetails *exceptionDetails `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return nil, err
	}
	if wire.ExceptionDetails != nil {
		return nil, wire.ExceptionDetails.scriptError()
	}
	return s.arrayObjectItems(ctx, wire.Result.ObjectID)
}

// arrayObjectItems reads each indexed property off a JS array RemoteObject
// via Runtime.getProperties, returning their objectIds.
func (s *Service) arrayObjectItems(ctx context.Context, arrayObjectID string) ([]string, error) {
	if arrayObjectID == "" {
		return nil, nil
	}
	result, err := s.m.Send(ctx, "Runtime.getProperties", rawJSON(map[string]any{
		"objectId": arrayObjectID, "ownProperties": true,
	}), s.sessionID)
	if err != nil {
		return nil, err
	}
	var wire struct {
		Result []struct {
			Name  string `json:"name"`
			Value struct {
				ObjectID string `json:"objectId"`
				Type     string `json:"type"`
			} `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return nil, err
	}
	var ids []string
	for _, p := range wire.Result {
		if p.Value.ObjectID != "" && p.Value.Type == "object" {
			ids = append(ids, p.Value.ObjectID)
		}
	}
	return ids, nil
}

func jsonQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (s *Service) elementFromNodeID(nodeID int64) *Element {
	return &Element{
		SessionID:  s.sessionID,
		NodeID:     nodeID,
		svc:        s,
		generation: s.currentGeneration(),
	}
}

func (s *Service) elementFromRemoteObjectID(ctx context.Context, objectID string) (*Element, error) {
	result, err := s.m.Send(ctx, "DOM.requestNode", rawJSON(map[string]any{"objectId": objectID}), s.sessionID)
	if err != nil {
		return nil, s.translateStale(err)
	}
	var wire struct {
		NodeID int64 `json:"nodeId"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return nil, err
	}
	return &Element{
		SessionID:      s.sessionID,
		NodeID:         wire.NodeID,
		RemoteObjectID: objectID,
		svc:            s,
		generation:     s.currentGeneration(),
	}, nil
}

func (s *Service) translateStale(err error) error {
	if cerr, ok := err.(*cdperr.Error); ok && cerr.Kind == cdperr.KindStaleNode {
		return cdperr.StaleNode
	}
	return err
}

// resolveIfNeeded lazily resolves e's RemoteObjectID, returning it.
func (e *Element) resolveIfNeeded(ctx context.Context) (string, error) {
	if e.RemoteObjectID != "" {
		return e.RemoteObjectID, nil
	}
	if err := e.resolve(ctx); err != nil {
		return "", err
	}
	return e.RemoteObjectID, nil
}

// callFunctionRaw invokes decl with `this` bound to e's object and returns
// the objectIds of an array-typed result, used by queryXPath to collect
// per-node matches scoped to an element subtree.
func (e *Element) callFunctionRaw(ctx context.Context, decl string, args []any) ([]string, error) {
	if e.RemoteObjectID == "" {
		if err := e.resolve(ctx); err != nil {
			return nil, err
		}
	}
	callArgs := make([]map[string]any, 0, len(args))
	for _, a := range args {
		b, _ := json.Marshal(a)
		callArgs = append(callArgs, map[string]any{"value": json.RawMessage(b)})
	}
	result, err := e.svc.m.Send(ctx, "Runtime.callFunctionOn", rawJSON(map[string]any{
		"functionDeclaration": decl,
		"objectId":            e.RemoteObjectID,
		"arguments":           callArgs,
		"returnByValue":       false,
		"awaitPromise":        false,
	}), e.SessionID)
	if err != nil {
		return nil, err
	}
	var wire struct {
		Result struct {
			ObjectID string `json:"objectId"`
		} `json:"result"`
		ExceptionDetails *exceptionDetails `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return nil, err
	}
	if wire.ExceptionDetails != nil {
		return nil, wire.ExceptionDetails.scriptError()
	}
	return e.svc.arrayObjectItems(ctx, wire.Result.ObjectID)
}

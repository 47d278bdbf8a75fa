package domsvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kuromi/browser-core/cdperr"
)

// Element is a stable reference to a DOM node within a session. NodeID is
// invalidated on document replacement; BackendNodeID survives node_id
// invalidation within the same document instance; RemoteObjectID is a JS object
// reference for function calls.
type Element struct {
	SessionID      string
	NodeID         int64
	BackendNodeID  int64
	RemoteObjectID string

	svc *Service
	// generation is the Service's document generation at the time this
	// handle was minted; if it no longer matches svc.generation, NodeID is
	// stale.
	generation uint64
}

// stale reports whether e's node_id was invalidated by a same-target
// navigation since the handle was created.
func (e *Element) stale() bool {
	return e.svc != nil && e.generation != e.svc.currentGeneration()
}

func rawJSON(v any) json.Marshaler {
	b, err := json.Marshal(v)
	if err != nil {
		return rawJSONBytes(nil)
	}
	return rawJSONBytes(b)
}

type rawJSONBytes json.RawMessage

func (r rawJSONBytes) MarshalJSON() ([]byte, error) { return r, nil }

// Click scrolls the element into view, reads its box model, computes the
// geometric center, and dispatches mouseMoved -> mousePressed ->
// mouseReleased with a hold delay.
func (e *Element) Click(ctx context.Context, dispatch MouseDispatcher, force bool) error {
	if e.stale() {
		return cdperr.StaleNode
	}
	box, err := e.boundingBoxRaw(ctx)
	if err != nil || box == nil {
		if !force {
			return &cdperr.Error{Kind: cdperr.KindNotVisible, Message: "element has no box model"}
		}
		return e.jsClick(ctx)
	}
	if err := e.scrollIntoView(ctx); err != nil {
		return err
	}
	box, err = e.boundingBoxRaw(ctx)
	if err != nil || box == nil {
		if !force {
			return &cdperr.Error{Kind: cdperr.KindNotVisible, Message: "element has no box model after scroll"}
		}
		return e.jsClick(ctx)
	}
	cx, cy := box.center()
	return dispatch.Click(ctx, e.SessionID, cx, cy)
}

func (e *Element) jsClick(ctx context.Context) error {
	_, err := e.callFunction(ctx, "function(){ this.click(); }", nil, false)
	return err
}

func (e *Element) scrollIntoView(ctx context.Context) error {
	_, err := e.svc.m.Send(ctx, "DOM.scrollIntoViewIfNeeded", rawJSON(map[string]any{"nodeId": e.NodeID}), e.SessionID)
	if err != nil {
		return e.translateStale(err)
	}
	return nil
}

// translateStale converts the browser's "no node with given id" error to
// StaleNode, so a handle invalidated by navigation fails uniformly.
func (e *Element) translateStale(err error) error {
	if cerr, ok := err.(*cdperr.Error); ok && cerr.Kind == cdperr.KindStaleNode {
		return cdperr.StaleNode
	}
	return err
}

// Box is a content-box axis-aligned bounding box.
type Box struct {
	X, Y, Width, Height float64
}

func (b *Box) center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

func (e *Element) boundingBoxRaw(ctx context.Context) (*Box, error) {
	result, err := e.svc.m.Send(ctx, "DOM.getBoxModel", rawJSON(map[string]any{"nodeId": e.NodeID}), e.SessionID)
	if err != nil {
		if cerr, ok := err.(*cdperr.Error); ok && cerr.Kind == cdperr.KindStaleNode {
			return nil, cdperr.StaleNode
		}
		return nil, err
	}
	var wire struct {
		Model struct {
			Content []float64 `json:"content"`
		} `json:"model"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return nil, err
	}
	c := wire.Model.Content
	if len(c) != 8 {
		return nil, nil
	}
	minX, maxX, minY, maxY := c[0], c[0], c[1], c[1]
	for i := 0; i < 8; i += 2 {
		if c[i] < minX {
			minX = c[i]
		}
		if c[i] > maxX {
			maxX = c[i]
		}
		if c[i+1] < minY {
			minY = c[i+1]
		}
		if c[i+1] > maxY {
			maxY = c[i+1]
		}
	}
	return &Box{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, nil
}

// BoundingBox returns the element's content-box AABB, or nil if it is not
// laid out.
func (e *Element) BoundingBox(ctx context.Context) (*Box, error) {
	if e.stale() {
		return nil, cdperr.StaleNode
	}
	return e.boundingBoxRaw(ctx)
}

// MouseDispatcher is the narrow interface Input Synthesis exposes to the DOM
// layer, avoiding a domsvc -> input import cycle (input depends on nothing
// from domsvc; the facade wires a concrete *input.Synthesizer in).
type MouseDispatcher interface {
	Click(ctx context.Context, sessionID string, x, y float64) error
	Type(ctx context.Context, sessionID string, text string) error
}

// Type focuses the node then dispatches the given text through dispatch.
func (e *Element) Type(ctx context.Context, dispatch MouseDispatcher, text string) error {
	if e.stale() {
		return cdperr.StaleNode
	}
	if err := e.Focus(ctx); err != nil {
		return err
	}
	return dispatch.Type(ctx, e.SessionID, text)
}

// Focus calls DOM.focus.
func (e *Element) Focus(ctx context.Context) error {
	if e.stale() {
		return cdperr.StaleNode
	}
	_, err := e.svc.m.Send(ctx, "DOM.focus", rawJSON(map[string]any{"nodeId": e.NodeID}), e.SessionID)
	return e.translateStale(err)
}

// Fill clears the element's value, assigns value, and dispatches synthetic
// input then change events in that order.
func (e *Element) Fill(ctx context.Context, value string) error {
	if e.stale() {
		return cdperr.StaleNode
	}
	script := `function(v){
		this.value = v;
		this.dispatchEvent(new Event('input', {bubbles: true}));
		this.dispatchEvent(new Event('change', {bubbles: true}));
	}`
	_, err := e.callFunction(ctx, script, []any{value}, false)
	return err
}

// Attr reads an attribute via Runtime.callFunctionOn.
func (e *Element) Attr(ctx context.Context, name string) (string, bool, error) {
	if e.stale() {
		return "", false, cdperr.StaleNode
	}
	var out *string
	script := `function(n){ return this.hasAttribute(n) ? this.getAttribute(n) : null; }`
	if err := e.callFunctionInto(ctx, script, []any{name}, &out); err != nil {
		return "", false, err
	}
	if out == nil {
		return "", false, nil
	}
	return *out, true, nil
}

// SetAttr calls DOM.setAttributeValue.
func (e *Element) SetAttr(ctx context.Context, name, value string) error {
	if e.stale() {
		return cdperr.StaleNode
	}
	_, err := e.svc.m.Send(ctx, "DOM.setAttributeValue", rawJSON(map[string]any{
		"nodeId": e.NodeID, "name": name, "value": value,
	}), e.SessionID)
	return e.translateStale(err)
}

// RemoveAttr calls DOM.removeAttribute.
func (e *Element) RemoveAttr(ctx context.Context, name string) error {
	if e.stale() {
		return cdperr.StaleNode
	}
	_, err := e.svc.m.Send(ctx, "DOM.removeAttribute", rawJSON(map[string]any{
		"nodeId": e.NodeID, "name": name,
	}), e.SessionID)
	return e.translateStale(err)
}

// Property reads a JS property via Runtime.callFunctionOn.
func (e *Element) Property(ctx context.Context, name string, out any) error {
	if e.stale() {
		return cdperr.StaleNode
	}
	script := fmt.Sprintf(`function(){ return this[%q]; }`, name)
	return e.callFunctionInto(ctx, script, nil, out)
}

// CallBool invokes decl (a zero-argument function expression) with `this`
// bound to e and decodes its boolean result into out. Exported for the
// Waiter condition catalog, which needs arbitrary boolean predicates over
// an element without depending on domsvc internals.
func (e *Element) CallBool(ctx context.Context, decl string, out *bool) error {
	if e.stale() {
		return cdperr.StaleNode
	}
	return e.callFunctionInto(ctx, decl, nil, out)
}

// TextContent reads this.textContent, used by shadow-pierce callers and
// Waiter text conditions.
func (e *Element) TextContent(ctx context.Context) (string, error) {
	var out string
	err := e.callFunctionInto(ctx, `function(){ return this.textContent; }`, nil, &out)
	return out, err
}

func (e *Element) callFunction(ctx context.Context, decl string, args []any, returnByValue bool) (json.RawMessage, error) {
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
	params := map[string]any{
		"functionDeclaration": decl,
		"objectId":            e.RemoteObjectID,
		"arguments":           callArgs,
		"returnByValue":       returnByValue,
		"awaitPromise":        false,
	}
	result, err := e.svc.m.Send(ctx, "Runtime.callFunctionOn", rawJSON(params), e.SessionID)
	if err != nil {
		return nil, err
	}
	var wire struct {
		Result           remoteObjectWire  `json:"result"`
		ExceptionDetails *exceptionDetails `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return nil, err
	}
	if wire.ExceptionDetails != nil {
		return nil, wire.ExceptionDetails.scriptError()
	}
	return wire.Result.Value, nil
}

func (e *Element) callFunctionInto(ctx context.Context, decl string, args []any, out any) error {
	val, err := e.callFunction(ctx, decl, args, true)
	if err != nil {
		return err
	}
	if out == nil || len(val) == 0 {
		return nil
	}
	return json.Unmarshal(val, out)
}

// BackendNode lazily resolves and caches the element's backend node id via
// DOM.describeNode. Unlike NodeID it stays valid across node_id
// invalidations within the same document instance, so callers can hold it
// across a DOM.documentUpdated and re-resolve with Reattach.
func (e *Element) BackendNode(ctx context.Context) (int64, error) {
	if e.BackendNodeID != 0 {
		return e.BackendNodeID, nil
	}
	result, err := e.svc.m.Send(ctx, "DOM.describeNode", rawJSON(map[string]any{"nodeId": e.NodeID}), e.SessionID)
	if err != nil {
		return 0, e.translateStale(err)
	}
	var wire struct {
		Node struct {
			BackendNodeID int64 `json:"backendNodeId"`
		} `json:"node"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return 0, err
	}
	e.BackendNodeID = wire.Node.BackendNodeID
	return e.BackendNodeID, nil
}

// Reattach mints a fresh node id for a handle whose NodeID was invalidated,
// using the cached backend node id. It fails with StaleNode if no backend
// node id was ever resolved or the node no longer exists in the document.
func (e *Element) Reattach(ctx context.Context) error {
	if e.BackendNodeID == 0 {
		return cdperr.StaleNode
	}
	result, err := e.svc.m.Send(ctx, "DOM.pushNodesByBackendIdsToFrontend", rawJSON(map[string]any{
		"backendNodeIds": []int64{e.BackendNodeID},
	}), e.SessionID)
	if err != nil {
		return e.translateStale(err)
	}
	var wire struct {
		NodeIDs []int64 `json:"nodeIds"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return err
	}
	if len(wire.NodeIDs) == 0 || wire.NodeIDs[0] == 0 {
		return cdperr.StaleNode
	}
	e.NodeID = wire.NodeIDs[0]
	e.RemoteObjectID = ""
	e.generation = e.svc.currentGeneration()
	return nil
}

// Parent returns the parent element, or nil at the document root.
func (e *Element) Parent(ctx context.Context) (*Element, error) {
	els, err := e.related(ctx, `function(){ return [this.parentElement].filter(Boolean); }`)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

// Children returns the element's child elements in document order.
func (e *Element) Children(ctx context.Context) ([]*Element, error) {
	return e.related(ctx, `function(){ return Array.from(this.children); }`)
}

// Next returns the next element sibling, or nil if e is the last child.
func (e *Element) Next(ctx context.Context) (*Element, error) {
	els, err := e.related(ctx, `function(){ return [this.nextElementSibling].filter(Boolean); }`)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

// Prev returns the previous element sibling, or nil if e is the first child.
func (e *Element) Prev(ctx context.Context) (*Element, error) {
	els, err := e.related(ctx, `function(){ return [this.previousElementSibling].filter(Boolean); }`)
	if err != nil || len(els) == 0 {
		return nil, err
	}
	return els[0], nil
}

func (e *Element) related(ctx context.Context, decl string) ([]*Element, error) {
	if e.stale() {
		return nil, cdperr.StaleNode
	}
	ids, err := e.callFunctionRaw(ctx, decl, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*Element, 0, len(ids))
	for _, oid := range ids {
		el, err := e.svc.elementFromRemoteObjectID(ctx, oid)
		if err != nil {
			continue
		}
		out = append(out, el)
	}
	return out, nil
}

// resolve obtains a RemoteObjectID for this node via DOM.resolveNode,
// lazily; handles only pay for the ids an operation actually needs.
func (e *Element) resolve(ctx context.Context) error {
	result, err := e.svc.m.Send(ctx, "DOM.resolveNode", rawJSON(map[string]any{"nodeId": e.NodeID}), e.SessionID)
	if err != nil {
		return e.translateStale(err)
	}
	var wire struct {
		Object struct {
			ObjectID string `json:"objectId"`
		} `json:"object"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return err
	}
	e.RemoteObjectID = wire.Object.ObjectID
	return nil
}

type remoteObjectWire struct {
	Type     string          `json:"type"`
	Value    json.RawMessage `json:"value"`
	ObjectID string          `json:"objectId"`
}

type exceptionDetails struct {
	Text      string `json:"text"`
	Exception *struct {
		Description string `json:"description"`
	} `json:"exception"`
}

func (x *exceptionDetails) scriptError() *cdperr.Error {
	msg := x.Text
	if x.Exception != nil && x.Exception.Description != "" {
		msg = x.Exception.Description
	}
	return &cdperr.Error{Kind: cdperr.KindScriptError, Message: msg}
}

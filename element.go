package browsercore

import (
	"context"

	"github.com/kuromi/browser-core/domsvc"
)

// Element is a stable reference to a DOM node, bound to the Page whose Input
// Synthesizer its Click/Type/Press/Shortcut methods dispatch through. The
// relations (Parent/Children/Next/Prev) and Query/QueryAll are redefined here
// to return *Element values; every other operation (Fill, Focus,
// BoundingBox, Attr/SetAttr/RemoveAttr, Property) is promoted directly from
// the embedded *domsvc.Element.
type Element struct {
	*domsvc.Element
	page *Page
}

func wrapElements(p *Page, els []*domsvc.Element) []*Element {
	out := make([]*Element, len(els))
	for i, el := range els {
		out[i] = &Element{Element: el, page: p}
	}
	return out
}

// Click scrolls the element into view and dispatches a mouse path to its
// center through the page's Input Synthesizer.
// force=true falls back to a synthetic this.click() when the element has
// no box model, instead of failing with NotVisible.
func (e *Element) Click(ctx context.Context, force bool) error {
	return e.Element.Click(ctx, e.page.input, force)
}

// Type focuses the element and types text through the page's Input
// Synthesizer.
func (e *Element) Type(ctx context.Context, text string) error {
	return e.Element.Type(ctx, e.page.input, text)
}

// Press focuses the element and dispatches a single named key or rune
// through the page's Input Synthesizer.
func (e *Element) Press(ctx context.Context, key string) error {
	if err := e.Focus(ctx); err != nil {
		return err
	}
	return e.page.input.Press(ctx, e.SessionID, key)
}

// Shortcut focuses the element and dispatches a modifier-chord key
// sequence (e.g. Shortcut(ctx, "Control", "a")) through the page's Input
// Synthesizer.
func (e *Element) Shortcut(ctx context.Context, keys ...string) error {
	if err := e.Focus(ctx); err != nil {
		return err
	}
	return e.page.input.Shortcut(ctx, e.SessionID, keys...)
}

// Parent returns the parent element, or nil at the document root.
func (e *Element) Parent(ctx context.Context) (*Element, error) {
	el, err := e.Element.Parent(ctx)
	if err != nil || el == nil {
		return nil, err
	}
	return &Element{Element: el, page: e.page}, nil
}

// Children returns the element's child elements in document order.
func (e *Element) Children(ctx context.Context) ([]*Element, error) {
	els, err := e.Element.Children(ctx)
	if err != nil {
		return nil, err
	}
	return wrapElements(e.page, els), nil
}

// Next returns the next element sibling, or nil if this is the last child.
func (e *Element) Next(ctx context.Context) (*Element, error) {
	el, err := e.Element.Next(ctx)
	if err != nil || el == nil {
		return nil, err
	}
	return &Element{Element: el, page: e.page}, nil
}

// Prev returns the previous element sibling, or nil if this is the first
// child.
func (e *Element) Prev(ctx context.Context) (*Element, error) {
	el, err := e.Element.Prev(ctx)
	if err != nil || el == nil {
		return nil, err
	}
	return &Element{Element: el, page: e.page}, nil
}

// Query resolves a selector scoped to this element.
func (e *Element) Query(ctx context.Context, selStr string) (*Element, error) {
	sel := domsvc.Parse(selStr)
	el, err := e.page.dom.QueryOne(ctx, sel, e.Element)
	if err != nil || el == nil {
		return nil, err
	}
	return &Element{Element: el, page: e.page}, nil
}

// QueryAll resolves a selector scoped to this element, returning every
// match.
func (e *Element) QueryAll(ctx context.Context, selStr string) ([]*Element, error) {
	sel := domsvc.Parse(selStr)
	els, err := e.page.dom.Query(ctx, sel, e.Element)
	if err != nil {
		return nil, err
	}
	return wrapElements(e.page, els), nil
}

package domsvc

import (
	"context"

	"github.com/kuromi/browser-core/cdperr"
	"github.com/kuromi/browser-core/internal/jsassets"
	"golang.org/x/sync/errgroup"
)

// QueryPiercingShadow runs css against root's subtree (document if root is
// nil), descending into every open shadow root reachable from it, and
// resolves each match to an Element.
func (s *Service) QueryPiercingShadow(ctx context.Context, css string, root *Element) ([]*Element, error) {
	var objectIDs []string
	var err error
	if root != nil {
		if root.stale() {
			return nil, cdperr.StaleNode
		}
		objectIDs, err = root.callFunctionRaw(ctx, jsassets.ShadowPierceWalker, []any{css})
	} else {
		objectIDs, err = s.callFunctionOnDocument(ctx, jsassets.ShadowPierceWalker, css)
	}
	if err != nil {
		return nil, err
	}
	if len(objectIDs) == 0 {
		return nil, nil
	}

	elements := make([]*Element, len(objectIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, oid := range objectIDs {
		i, oid := i, oid
		g.Go(func() error {
			el, err := s.elementFromRemoteObjectID(gctx, oid)
			if err != nil {
				return nil // a single unresolved match is dropped, not fatal
			}
			elements[i] = el
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Element, 0, len(elements))
	for _, el := range elements {
		if el != nil {
			out = append(out, el)
		}
	}
	return out, nil
}

// HasShadowRoot reports whether e hosts an open shadow root, used by
// callers deciding whether a plain Query needs to fall back to
// QueryPiercingShadow.
func (e *Element) HasShadowRoot(ctx context.Context) (bool, error) {
	var out bool
	err := e.callFunctionInto(ctx, `function(){ return !!this.shadowRoot; }`, nil, &out)
	return out, err
}

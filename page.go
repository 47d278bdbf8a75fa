package browsercore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kuromi/browser-core/domsvc"
	"github.com/kuromi/browser-core/eventbus"
	"github.com/kuromi/browser-core/input"
	"github.com/kuromi/browser-core/netmon"
	"github.com/kuromi/browser-core/netmon/har"
	"github.com/kuromi/browser-core/page"
	"github.com/kuromi/browser-core/stealth"
	"github.com/kuromi/browser-core/targetmgr"
	"github.com/kuromi/browser-core/waiter"
)

// WaitUntil is a navigation wait condition: one of
// WaitCommit, WaitDOMContentLoad, WaitLoad, WaitNetworkIdle.
type WaitUntil = page.WaitUntil

const (
	WaitCommit         = page.WaitCommit
	WaitDOMContentLoad = page.WaitDOMContentLoad
	WaitLoad           = page.WaitLoad
	WaitNetworkIdle    = page.WaitNetworkIdle
)

// Page is one attached target's full runtime: navigation and evaluation
// (Page Runtime), selector-driven DOM access (DOM Service), human-paced
// input (Input Synthesis), request capture and interception (Network
// Layer), and fingerprint consistency (Stealth Patcher), bundled behind
// the session they share.
type Page struct {
	br   *Browser
	Sess *targetmgr.Session

	// ID is a process-local identifier for this Page, independent of the
	// CDP target/session ids. The HAR built by this Page uses it as the id
	// of its page entry; hook payloads do not carry it.
	ID string

	createdAt time.Time

	rt      *page.Runtime
	dom     *domsvc.Service
	frames  *domsvc.FrameService
	mon     *netmon.Monitor
	idle    *waiter.NetworkIdleTracker
	input   *input.Synthesizer
	stealth *stealth.Patcher

	interceptor *netmon.Interceptor
}

func newPage(ctx context.Context, br *Browser, sess *targetmgr.Session, cfg pageConfig) (*Page, error) {
	rt, err := page.New(ctx, br.mux, sess)
	if err != nil {
		return nil, fmt.Errorf("browsercore: page runtime: %w", err)
	}
	dom, err := domsvc.NewService(ctx, br.mux, sess.SessionID)
	if err != nil {
		return nil, fmt.Errorf("browsercore: dom service: %w", err)
	}

	p := &Page{
		br:        br,
		Sess:      sess,
		ID:        uuid.NewString(),
		createdAt: time.Now(),
		rt:        rt,
		dom:       dom,
		frames:    domsvc.NewFrameService(dom),
		mon:       netmon.NewMonitor(br.mux, sess.SessionID),
		idle:      waiter.NewNetworkIdleTracker(br.mux, sess.SessionID),
		input:     input.NewSynthesizer(br.mux, br.cfg.mouseSeed),
		stealth:   stealth.New(br.mux, sess.SessionID),
	}

	if cfg.fingerprint != nil {
		if err := p.stealth.Apply(ctx, *cfg.fingerprint); err != nil {
			return nil, fmt.Errorf("browsercore: apply fingerprint: %w", err)
		}
	}

	return p, nil
}

// Goto navigates the main frame and waits for wait. deadline of zero uses the
// component default (30s).
func (p *Page) Goto(ctx context.Context, url string, wait WaitUntil, deadline time.Duration) (string, error) {
	hookCtx := p.br.hooks.Run(eventbus.PageNavigate, map[string]any{"url": url})
	if hookCtx.Cancelled() {
		return "", fmt.Errorf("browsercore: navigation to %s cancelled by hook", url)
	}
	finalURL, err := p.rt.Goto(ctx, url, wait, p.idle, deadline)
	if err != nil {
		p.br.hooks.Run(eventbus.PageError, map[string]any{"url": url, "err": err})
		return "", err
	}
	p.br.hooks.Run(eventbus.PageLoad, map[string]any{"url": finalURL})
	return finalURL, nil
}

// Evaluate maps to Runtime.evaluate on this page's session.
func (p *Page) Evaluate(ctx context.Context, expr string, opts page.EvaluateOptions, out any) error {
	return p.rt.Evaluate(ctx, expr, opts, out)
}

// Query resolves selStr against the document root and returns the first
// match, or nil if none exists.
func (p *Page) Query(ctx context.Context, selStr string) (*Element, error) {
	sel := domsvc.Parse(selStr)
	el, err := p.dom.QueryOne(ctx, sel, nil)
	if err != nil || el == nil {
		return nil, err
	}
	return &Element{Element: el, page: p}, nil
}

// QueryAll resolves selStr against the document root and returns every
// match in document order.
func (p *Page) QueryAll(ctx context.Context, selStr string) ([]*Element, error) {
	sel := domsvc.Parse(selStr)
	els, err := p.dom.Query(ctx, sel, nil)
	if err != nil {
		return nil, err
	}
	return wrapElements(p, els), nil
}

// PierceShadow resolves a CSS selector through every open shadow root in
// the document.
func (p *Page) PierceShadow(ctx context.Context, css string) ([]*Element, error) {
	els, err := p.dom.QueryPiercingShadow(ctx, css, nil)
	if err != nil {
		return nil, err
	}
	return wrapElements(p, els), nil
}

// EnterFrame resolves iframe's content document to a new Page sharing this
// page's session, runtime, and subsystems, but scoped to the frame's
// document for Query/QueryAll/PierceShadow.
func (p *Page) EnterFrame(ctx context.Context, iframe *Element) (*Page, error) {
	svc, err := p.frames.ContentDocument(ctx, iframe.Element)
	if err != nil {
		return nil, err
	}
	child := *p
	child.dom = svc
	child.frames = domsvc.NewFrameService(svc)
	return &child, nil
}

// Click queries selStr and clicks the resulting element. force=true dispatches
// a synthetic this.click() instead of failing when the element has no box
// model.
func (p *Page) Click(ctx context.Context, selStr string, force bool) error {
	el, err := p.Query(ctx, selStr)
	if err != nil {
		return err
	}
	if el == nil {
		return fmt.Errorf("browsercore: no element matches %q", selStr)
	}
	return el.Click(ctx, force)
}

// Type queries selStr, focuses it, and types text through the Input
// Synthesizer.
func (p *Page) Type(ctx context.Context, selStr, text string) error {
	el, err := p.Query(ctx, selStr)
	if err != nil {
		return err
	}
	if el == nil {
		return fmt.Errorf("browsercore: no element matches %q", selStr)
	}
	return el.Type(ctx, text)
}

// Fill queries selStr and assigns value via the synthetic input/change
// event sequence.
func (p *Page) Fill(ctx context.Context, selStr, value string) error {
	el, err := p.Query(ctx, selStr)
	if err != nil {
		return err
	}
	if el == nil {
		return fmt.Errorf("browsercore: no element matches %q", selStr)
	}
	return el.Fill(ctx, value)
}

// WaitForSelector polls until an element matching selStr reaches state
// ("attached", "detached", "visible", or "hidden") or timeout elapses. It
// returns the resolved element for attached/visible states.
func (p *Page) WaitForSelector(ctx context.Context, selStr, state string, timeout time.Duration) (*Element, error) {
	sel := domsvc.Parse(selStr)
	switch state {
	case "detached":
		return nil, p.WaitFor(ctx, waiter.SelectorDetached(p.dom, sel), timeout)
	case "hidden":
		el, err := p.dom.QueryOne(ctx, sel, nil)
		if err != nil {
			return nil, err
		}
		if el == nil {
			return nil, nil
		}
		return nil, p.WaitFor(ctx, waiter.ElementHidden(el), timeout)
	case "visible":
		if err := p.WaitFor(ctx, waiter.SelectorAttached(p.dom, sel), timeout); err != nil {
			return nil, err
		}
		el, err := p.dom.QueryOne(ctx, sel, nil)
		if err != nil || el == nil {
			return nil, err
		}
		if err := p.WaitFor(ctx, waiter.ElementVisible(el), timeout); err != nil {
			return nil, err
		}
		return &Element{Element: el, page: p}, nil
	default: // "attached"
		if err := p.WaitFor(ctx, waiter.SelectorAttached(p.dom, sel), timeout); err != nil {
			return nil, err
		}
		el, err := p.dom.QueryOne(ctx, sel, nil)
		if err != nil || el == nil {
			return nil, err
		}
		return &Element{Element: el, page: p}, nil
	}
}

// WaitFor polls cond until it holds or timeout elapses.
func (p *Page) WaitFor(ctx context.Context, cond waiter.Condition, timeout time.Duration) error {
	return waiter.Wait(ctx, cond, waiter.PollOptions{Timeout: timeout})
}

// WaitForEvent registers a one-shot wait on the named CDP event for this
// session.
func (p *Page) WaitForEvent(ctx context.Context, method string) ([]byte, error) {
	return waiter.WaitForEvent(ctx, p.br.mux, p.Sess.SessionID, method)
}

// Condition exposes the Waiter condition catalog bound to this page's
// session/DOM Service, for callers composing All/Any/Not themselves.
func (p *Page) Condition() *ConditionBuilder {
	return &ConditionBuilder{p: p}
}

// ConditionBuilder constructs waiter.Condition values scoped to one Page.
type ConditionBuilder struct{ p *Page }

func (c *ConditionBuilder) DocumentReady(want string) waiter.Condition {
	return waiter.DocumentReady(c.p.br.mux, c.p.Sess.SessionID, want)
}
func (c *ConditionBuilder) URLEquals(want string) waiter.Condition {
	return waiter.URLEquals(c.p.br.mux, c.p.Sess.SessionID, want)
}
func (c *ConditionBuilder) TitleEquals(want string) waiter.Condition {
	return waiter.TitleEquals(c.p.br.mux, c.p.Sess.SessionID, want)
}
func (c *ConditionBuilder) JSExpression(expr string) waiter.Condition {
	return waiter.JSExpression(c.p.br.mux, c.p.Sess.SessionID, expr)
}

// Intercept installs (or replaces) the Request Interceptor's rule list. The
// Fetch domain is enabled on first call.
func (p *Page) Intercept(ctx context.Context, rules []netmon.Rule) error {
	if p.interceptor == nil {
		ic, err := netmon.NewInterceptor(ctx, p.br.mux, p.Sess.SessionID, p.rt, rules)
		if err != nil {
			return err
		}
		p.interceptor = ic
		return nil
	}
	p.interceptor.SetRules(rules)
	return nil
}

// Requests returns every request record the Network Monitor has observed
// so far.
func (p *Page) Requests() []*netmon.RequestRecord { return p.mon.GetRequests() }

// ResponseBody fetches a captured response's body.
func (p *Page) ResponseBody(ctx context.Context, requestID string) (body string, base64Encoded bool, err error) {
	return p.mon.GetResponseBody(ctx, requestID)
}

// WaitForRequest blocks until a request matching predicate has been seen.
func (p *Page) WaitForRequest(ctx context.Context, predicate func(*netmon.RequestRecord) bool) (*netmon.RequestRecord, error) {
	return p.mon.WaitForRequest(ctx, predicate)
}

// WaitForResponse blocks until a request matching predicate has completed
// with a response.
func (p *Page) WaitForResponse(ctx context.Context, predicate func(*netmon.RequestRecord) bool) (*netmon.RequestRecord, error) {
	return p.mon.WaitForResponse(ctx, predicate)
}

// HAR assembles every request the Monitor has observed into a HAR 1.2 log.
// The page title is read from the captured document body rather than a live
// evaluate call, so a HAR can still be built after the page has closed.
func (p *Page) HAR(ctx context.Context) har.HAR {
	records := p.mon.GetRequests()
	h := har.Assemble(har.Creator{Name: "kuromi-browser-core", Version: "1.0"}, records)
	title := ""
	for _, r := range records {
		if r.Response == nil || r.Response.MimeType != "text/html" {
			continue
		}
		body, _, err := p.mon.GetResponseBody(ctx, r.RequestID)
		if err != nil {
			continue
		}
		if t, ok := netmon.DocumentTitle(body); ok {
			title = t
			break
		}
	}
	h.Log.Pages = []har.Page{{
		ID:              p.ID,
		Title:           title,
		StartedDateTime: p.createdAt.Format(time.RFC3339Nano),
	}}
	return h
}

// ApplyStealth applies profile to this page's session.
func (p *Page) ApplyStealth(ctx context.Context, profile stealth.Profile) error {
	return p.stealth.Apply(ctx, profile)
}

// Input exposes the page's Input Synthesizer for direct mouse/keyboard
// control beyond the Click/Type/Fill convenience methods.
func (p *Page) Input() *input.Synthesizer { return p.input }

// Close detaches the page's session, releasing its DOM handles, event
// subscriptions, and injected stealth prelude.
func (p *Page) Close(ctx context.Context) error {
	p.br.hooks.Run(eventbus.PageClose, nil)
	_ = p.stealth.Remove(ctx)
	_ = p.rt.Close(ctx)
	p.br.forgetPage(p.Sess.SessionID)
	return p.br.tgt.Detach(ctx, p.Sess)
}

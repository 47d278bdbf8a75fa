// Package waiter implements the polled-condition and event-wait engine: a
// closed catalog of Conditions, a non-overshooting polling loop, one-shot CDP
// event waits, a network-idle tracker, and All/Any/Not composites evaluated
// concurrently.
package waiter

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kuromi/browser-core/domsvc"
	"github.com/kuromi/browser-core/mux"
)

// Condition is the closed interface every waitable predicate satisfies.
type Condition interface {
	// Evaluate reports whether the condition currently holds.
	Evaluate(ctx context.Context) (bool, error)
	// Describe names the condition for KindWaitTimeout's Description field.
	Describe() string
}

type condFunc struct {
	desc string
	fn   func(ctx context.Context) (bool, error)
}

func (c *condFunc) Evaluate(ctx context.Context) (bool, error) { return c.fn(ctx) }
func (c *condFunc) Describe() string                           { return c.desc }

func newCond(desc string, fn func(ctx context.Context) (bool, error)) Condition {
	return &condFunc{desc: desc, fn: fn}
}

// SelectorAttached holds once a matching node_id exists.
func SelectorAttached(svc *domsvc.Service, sel domsvc.Selector) Condition {
	return newCond("selector attached: "+sel.Raw, func(ctx context.Context) (bool, error) {
		el, err := svc.QueryOne(ctx, sel, nil)
		return el != nil, err
	})
}

// SelectorDetached holds once no matching node exists anymore.
func SelectorDetached(svc *domsvc.Service, sel domsvc.Selector) Condition {
	return newCond("selector detached: "+sel.Raw, func(ctx context.Context) (bool, error) {
		el, err := svc.QueryOne(ctx, sel, nil)
		return el == nil, err
	})
}

// ElementVisible holds while el has a non-empty box model (offsetWidth,
// offsetHeight, or getClientRects().length).
func ElementVisible(el *domsvc.Element) Condition {
	return newCond("element visible", func(ctx context.Context) (bool, error) {
		return evalVisible(ctx, el)
	})
}

// ElementHidden is the complement of ElementVisible.
func ElementHidden(el *domsvc.Element) Condition {
	return newCond("element hidden", func(ctx context.Context) (bool, error) {
		v, err := evalVisible(ctx, el)
		return !v, err
	})
}

func evalVisible(ctx context.Context, el *domsvc.Element) (bool, error) {
	var out bool
	err := el.CallBool(ctx, `function(){
		return Boolean(this.offsetWidth || this.offsetHeight || this.getClientRects().length);
	}`, &out)
	return out, err
}

// ElementEnabled holds while el.disabled is falsy.
func ElementEnabled(el *domsvc.Element) Condition {
	return newCond("element enabled", func(ctx context.Context) (bool, error) {
		var disabled bool
		err := el.CallBool(ctx, `function(){ return Boolean(this.disabled); }`, &disabled)
		return !disabled, err
	})
}

// ElementDisabled is the complement of ElementEnabled.
func ElementDisabled(el *domsvc.Element) Condition {
	return newCond("element disabled", func(ctx context.Context) (bool, error) {
		var disabled bool
		err := el.CallBool(ctx, `function(){ return Boolean(this.disabled); }`, &disabled)
		return disabled, err
	})
}

// ElementChecked holds while el.checked is true.
func ElementChecked(el *domsvc.Element) Condition {
	return newCond("element checked", func(ctx context.Context) (bool, error) {
		var checked bool
		err := el.CallBool(ctx, `function(){ return Boolean(this.checked); }`, &checked)
		return checked, err
	})
}

// TextEquals holds once el's textContent exactly equals want.
func TextEquals(el *domsvc.Element, want string) Condition {
	return newCond(fmt.Sprintf("text == %q", want), func(ctx context.Context) (bool, error) {
		got, err := el.TextContent(ctx)
		return got == want, err
	})
}

// TextContains holds once el's textContent contains want as a substring.
func TextContains(el *domsvc.Element, want string) Condition {
	return newCond(fmt.Sprintf("text contains %q", want), func(ctx context.Context) (bool, error) {
		got, err := el.TextContent(ctx)
		if err != nil {
			return false, err
		}
		return strings.Contains(got, want), nil
	})
}

// TextMatches holds once el's textContent matches re.
func TextMatches(el *domsvc.Element, re *regexp.Regexp) Condition {
	return newCond("text matches "+re.String(), func(ctx context.Context) (bool, error) {
		got, err := el.TextContent(ctx)
		if err != nil {
			return false, err
		}
		return re.MatchString(got), nil
	})
}

// AttributeEquals holds once el's attribute name equals want.
func AttributeEquals(el *domsvc.Element, name, want string) Condition {
	return newCond(fmt.Sprintf("@%s == %q", name, want), func(ctx context.Context) (bool, error) {
		got, ok, err := el.Attr(ctx, name)
		if err != nil {
			return false, err
		}
		return ok && got == want, nil
	})
}

// AttributeHas holds once el carries the attribute at all, any value.
func AttributeHas(el *domsvc.Element, name string) Condition {
	return newCond("@"+name+" present", func(ctx context.Context) (bool, error) {
		_, ok, err := el.Attr(ctx, name)
		return ok, err
	})
}

// AttributeContains holds once el's attribute name contains want as a
// substring.
func AttributeContains(el *domsvc.Element, name, want string) Condition {
	return newCond(fmt.Sprintf("@%s contains %q", name, want), func(ctx context.Context) (bool, error) {
		got, ok, err := el.Attr(ctx, name)
		if err != nil {
			return false, err
		}
		return ok && strings.Contains(got, want), nil
	})
}

// ClassPresent holds once el's classList contains class.
func ClassPresent(el *domsvc.Element, class string) Condition {
	return newCond("class "+class, func(ctx context.Context) (bool, error) {
		var has bool
		err := el.CallBool(ctx, fmt.Sprintf(`function(){ return this.classList.contains(%q); }`, class), &has)
		return has, err
	})
}

// DocumentReady holds once document.readyState equals want ("interactive"
// or "complete").
func DocumentReady(m *mux.Multiplexer, sessionID, want string) Condition {
	return newCond("document.readyState == "+want, func(ctx context.Context) (bool, error) {
		var state string
		if err := evaluateInto(ctx, m, sessionID, "document.readyState", &state); err != nil {
			return false, err
		}
		return state == want, nil
	})
}

// URLEquals holds once window.location.href equals want.
func URLEquals(m *mux.Multiplexer, sessionID, want string) Condition {
	return newCond("url == "+want, func(ctx context.Context) (bool, error) {
		var href string
		if err := evaluateInto(ctx, m, sessionID, "window.location.href", &href); err != nil {
			return false, err
		}
		return href == want, nil
	})
}

// URLContains holds once window.location.href contains want.
func URLContains(m *mux.Multiplexer, sessionID, want string) Condition {
	return newCond("url contains "+want, func(ctx context.Context) (bool, error) {
		var href string
		if err := evaluateInto(ctx, m, sessionID, "window.location.href", &href); err != nil {
			return false, err
		}
		return strings.Contains(href, want), nil
	})
}

// URLMatches holds once window.location.href matches re.
func URLMatches(m *mux.Multiplexer, sessionID string, re *regexp.Regexp) Condition {
	return newCond("url matches "+re.String(), func(ctx context.Context) (bool, error) {
		var href string
		if err := evaluateInto(ctx, m, sessionID, "window.location.href", &href); err != nil {
			return false, err
		}
		return re.MatchString(href), nil
	})
}

// URLPredicate holds once pred returns true for window.location.href.
func URLPredicate(m *mux.Multiplexer, sessionID string, pred func(string) bool) Condition {
	return newCond("url predicate", func(ctx context.Context) (bool, error) {
		var href string
		if err := evaluateInto(ctx, m, sessionID, "window.location.href", &href); err != nil {
			return false, err
		}
		return pred(href), nil
	})
}

// TitleContains holds once document.title contains want.
func TitleContains(m *mux.Multiplexer, sessionID, want string) Condition {
	return newCond("title contains "+want, func(ctx context.Context) (bool, error) {
		var title string
		if err := evaluateInto(ctx, m, sessionID, "document.title", &title); err != nil {
			return false, err
		}
		return strings.Contains(title, want), nil
	})
}

// TitleEquals holds once document.title equals want.
func TitleEquals(m *mux.Multiplexer, sessionID, want string) Condition {
	return newCond("title == "+want, func(ctx context.Context) (bool, error) {
		var title string
		if err := evaluateInto(ctx, m, sessionID, "document.title", &title); err != nil {
			return false, err
		}
		return title == want, nil
	})
}

// JSExpression holds once evaluating expr returns a truthy value.
func JSExpression(m *mux.Multiplexer, sessionID, expr string) Condition {
	return newCond("js: "+expr, func(ctx context.Context) (bool, error) {
		var truthy bool
		if err := evaluateInto(ctx, m, sessionID, "Boolean("+expr+")", &truthy); err != nil {
			return false, err
		}
		return truthy, nil
	})
}

func evaluateInto(ctx context.Context, m *mux.Multiplexer, sessionID, expr string, out any) error {
	params := map[string]any{"expression": expr, "returnByValue": true}
	b, _ := json.Marshal(params)
	result, err := m.Send(ctx, "Runtime.evaluate", rawJSON(b), sessionID)
	if err != nil {
		return err
	}
	var wire struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return err
	}
	if len(wire.Result.Value) == 0 {
		return nil
	}
	return json.Unmarshal(wire.Result.Value, out)
}

type rawJSONBytes json.RawMessage

func (r rawJSONBytes) MarshalJSON() ([]byte, error) { return r, nil }

func rawJSON(b []byte) json.Marshaler { return rawJSONBytes(b) }

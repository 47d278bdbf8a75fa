// Package domsvc implements the DOM Service and Element Runtime: selector
// parsing, node resolution, and shadow/frame traversal.
package domsvc

import "strings"

// Kind is the tagged Selector variant.
type Kind int

const (
	KindCSS Kind = iota
	KindXPath
)

// Selector is the parsed, deterministic form of a user-supplied selector
// string.
type Selector struct {
	Kind  Kind
	Query string
	Raw   string
}

// Parse resolves a user selector string to its CSS or XPath form. First
// match wins; the function is total (every string produces a Selector)
// and deterministic (same string -> same result).
func Parse(s string) Selector {
	raw := s

	switch {
	case strings.HasPrefix(s, "#"):
		return Selector{Kind: KindCSS, Query: s, Raw: raw}
	case strings.HasPrefix(s, "."):
		return Selector{Kind: KindCSS, Query: s, Raw: raw}
	case strings.HasPrefix(s, "t:"):
		return Selector{Kind: KindCSS, Query: strings.TrimPrefix(s, "t:"), Raw: raw}
	case strings.HasPrefix(s, "tag:"):
		return Selector{Kind: KindCSS, Query: strings.TrimPrefix(s, "tag:"), Raw: raw}
	case strings.HasPrefix(s, "@"):
		attr := strings.TrimPrefix(s, "@")
		if i := strings.IndexByte(attr, '='); i >= 0 {
			name, value := attr[:i], attr[i+1:]
			return Selector{Kind: KindCSS, Query: "[" + name + `="` + escapeAttrValue(value) + `"]`, Raw: raw}
		}
		return Selector{Kind: KindCSS, Query: "[" + attr + "]", Raw: raw}
	case strings.HasPrefix(s, "text:"):
		return Selector{Kind: KindXPath, Query: containsTextXPath(strings.TrimPrefix(s, "text:")), Raw: raw}
	case strings.HasPrefix(s, "tx:"):
		return Selector{Kind: KindXPath, Query: containsTextXPath(strings.TrimPrefix(s, "tx:")), Raw: raw}
	case strings.HasPrefix(s, "text="):
		return Selector{Kind: KindXPath, Query: exactTextXPath(strings.TrimPrefix(s, "text=")), Raw: raw}
	case strings.HasPrefix(s, "x:"):
		return Selector{Kind: KindXPath, Query: strings.TrimPrefix(s, "x:"), Raw: raw}
	case strings.HasPrefix(s, "xpath:"):
		return Selector{Kind: KindXPath, Query: strings.TrimPrefix(s, "xpath:"), Raw: raw}
	case strings.HasPrefix(s, "/") || strings.HasPrefix(s, "("):
		return Selector{Kind: KindXPath, Query: s, Raw: raw}
	default:
		return Selector{Kind: KindCSS, Query: s, Raw: raw}
	}
}

// escapeAttrValue escapes characters that would break out of the
// double-quoted attribute-value CSS string being generated, so the
// construction point (here) rather than later string concatenation is
// where injection is prevented.
func escapeAttrValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return v
}

// xpathLiteral builds an XPath string literal for v, switching to concat()
// when v itself contains both quote characters, the standard XPath 1.0
// technique for safely embedding arbitrary text.
func xpathLiteral(v string) string {
	if !strings.Contains(v, `"`) {
		return `"` + v + `"`
	}
	if !strings.Contains(v, `'`) {
		return `'` + v + `'`
	}
	parts := strings.Split(v, `"`)
	b := strings.Builder{}
	b.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(`, '"', `)
		}
		b.WriteString(`"` + p + `"`)
	}
	b.WriteString(")")
	return b.String()
}

func containsTextXPath(text string) string {
	return `//*[contains(text(),` + xpathLiteral(text) + `)]`
}

func exactTextXPath(text string) string {
	return `//*[text()=` + xpathLiteral(text) + `]`
}

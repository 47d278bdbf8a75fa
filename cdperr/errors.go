// Package cdperr defines the error taxonomy shared by every layer of the
// browser-core protocol stack.
//
// Lower layers never retry and never hide a failure: every public operation
// either returns a value or an *Error whose Kind can be switched on.
package cdperr

import "fmt"

// Kind enumerates the failure categories a caller needs to distinguish.
type Kind int

const (
	// KindUnknown is never returned by this package; it is the zero value.
	KindUnknown Kind = iota
	KindTransportClosed
	KindCdpError
	KindTimeout
	KindNavigationError
	KindNavigationTimeout
	KindScriptError
	KindNotVisible
	KindStaleNode
	KindSessionGone
	KindTargetGone
	KindWaitTimeout
)

func (k Kind) String() string {
	switch k {
	case KindTransportClosed:
		return "TransportClosed"
	case KindCdpError:
		return "CdpError"
	case KindTimeout:
		return "Timeout"
	case KindNavigationError:
		return "NavigationError"
	case KindNavigationTimeout:
		return "NavigationTimeout"
	case KindScriptError:
		return "ScriptError"
	case KindNotVisible:
		return "NotVisible"
	case KindStaleNode:
		return "StaleNode"
	case KindSessionGone:
		return "SessionGone"
	case KindTargetGone:
		return "TargetGone"
	case KindWaitTimeout:
		return "WaitTimeout"
	default:
		return "Unknown"
	}
}

// Error is the single error type returned across package boundaries in this
// module. It carries enough structure for callers to dispatch on Kind
// without string matching, while still satisfying the error interface for
// ordinary propagation with fmt.Errorf("...: %w", err).
type Error struct {
	Kind Kind

	// Message is a human-readable description.
	Message string

	// CdpCode/CdpData are populated only for errors built by CdpErrorFrom
	// (KindCdpError, or KindStaleNode for a missing-node reply), mirroring
	// the {code, message, data} envelope CDP returns on command failure.
	CdpCode int64
	CdpData any

	// Description carries the last condition description for KindWaitTimeout.
	Description string

	// Stack carries a JS stack trace for KindScriptError, when the browser
	// supplied one.
	Stack string

	// Wrapped is the underlying error, if any (e.g. context.DeadlineExceeded).
	Wrapped error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindCdpError:
		return fmt.Sprintf("cdp error %d: %s", e.CdpCode, e.Message)
	case KindWaitTimeout:
		return fmt.Sprintf("wait timeout: %s", e.Description)
	case KindScriptError:
		if e.Stack != "" {
			return fmt.Sprintf("script error: %s\n%s", e.Message, e.Stack)
		}
		return fmt.Sprintf("script error: %s", e.Message)
	default:
		if e.Message != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.Message)
		}
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is supports errors.Is(err, cdperr.TransportClosed) style sentinel checks
// by comparing Kind rather than identity, since callers construct their own
// *Error values with additional context.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == KindUnknown {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel zero-context values, useful with errors.Is for the kinds that
// carry no extra payload worth inspecting.
var (
	TransportClosed = &Error{Kind: KindTransportClosed, Message: "transport closed"}
	SessionGone     = &Error{Kind: KindSessionGone, Message: "session detached"}
	TargetGone      = &Error{Kind: KindTargetGone, Message: "target gone"}
	StaleNode       = &Error{Kind: KindStaleNode, Message: "node id invalidated"}
)

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind that wraps an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Wrapped: err}
}

// CdpErrorFrom builds a KindCdpError from the CDP wire error envelope,
// translating well-known codes to more specific kinds
// (e.g. "No node with given id" -> StaleNode).
func CdpErrorFrom(code int64, message string, data any) *Error {
	if code == -32000 && (message == "No node with given id" || message == "Could not find node with given id") {
		return &Error{Kind: KindStaleNode, Message: message, CdpCode: code, CdpData: data}
	}
	return &Error{Kind: KindCdpError, Message: message, CdpCode: code, CdpData: data}
}

// Timeout builds a KindTimeout error for a command that exceeded its deadline.
func Timeout(method string) *Error {
	return &Error{Kind: KindTimeout, Message: fmt.Sprintf("command %q exceeded deadline", method)}
}

// WaitTimeout builds a KindWaitTimeout error carrying the condition description.
func WaitTimeout(description string) *Error {
	return &Error{Kind: KindWaitTimeout, Description: description, Message: description}
}

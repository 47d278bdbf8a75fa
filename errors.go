package browsercore

import "github.com/kuromi/browser-core/cdperr"

// Error is the single error type every public operation in this module
// fails with. It is a type alias, not a redefinition, so
// errors.As/errors.Is work identically whether a caller imports cdperr
// directly or only this package.
type Error = cdperr.Error

// Kind is the failure-category enum carried by every Error.
type Kind = cdperr.Kind

// Kind values, re-exported for callers that don't want to import cdperr
// just to switch on err.Kind.
const (
	KindTransportClosed   = cdperr.KindTransportClosed
	KindCdpError          = cdperr.KindCdpError
	KindTimeout           = cdperr.KindTimeout
	KindNavigationError   = cdperr.KindNavigationError
	KindNavigationTimeout = cdperr.KindNavigationTimeout
	KindScriptError       = cdperr.KindScriptError
	KindNotVisible        = cdperr.KindNotVisible
	KindStaleNode         = cdperr.KindStaleNode
	KindSessionGone       = cdperr.KindSessionGone
	KindTargetGone        = cdperr.KindTargetGone
	KindWaitTimeout       = cdperr.KindWaitTimeout
)

// Sentinel errors suitable for errors.Is comparisons.
var (
	ErrTransportClosed = cdperr.TransportClosed
	ErrSessionGone     = cdperr.SessionGone
	ErrTargetGone      = cdperr.TargetGone
	ErrStaleNode       = cdperr.StaleNode
)

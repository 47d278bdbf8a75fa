// Package targetmgr implements the Target Manager: target
// discovery, page creation, and session attach/detach over a shared
// mux.Multiplexer.
package targetmgr

import (
	"sync"
)

// SessionState is the lifecycle of a Session.
type SessionState int

const (
	StateAttaching SessionState = iota
	StateAttached
	StateDetaching
	StateDetached
)

func (s SessionState) String() string {
	switch s {
	case StateAttaching:
		return "attaching"
	case StateAttached:
		return "attached"
	case StateDetaching:
		return "detaching"
	case StateDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// Session represents attachment to one target. A session
// exclusively owns its target's command stream; domains enabled and
// subscriptions registered through it are torn down together on detach.
type Session struct {
	TargetID  string
	SessionID string

	mgr *Manager

	mu            sync.Mutex
	state         SessionState
	enabledDomain map[string]bool
}

func newSession(mgr *Manager, targetID, sessionID string) *Session {
	return &Session{
		TargetID:      targetID,
		SessionID:     sessionID,
		mgr:           mgr,
		state:         StateAttached,
		enabledDomain: make(map[string]bool),
	}
}

// State returns the session's current lifecycle state. All state
// mutations are serialized behind s.mu.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st SessionState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// MarkDomainEnabled records that a CDP domain has been enabled on this
// session, so callers can enable idempotently.
func (s *Session) MarkDomainEnabled(domain string) (alreadyEnabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabledDomain[domain] {
		return true
	}
	s.enabledDomain[domain] = true
	return false
}

// EnabledDomains returns every CDP domain marked enabled on this session,
// in no particular order.
func (s *Session) EnabledDomains() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.enabledDomain))
	for d := range s.enabledDomain {
		out = append(out, d)
	}
	return out
}

// checkLive returns cdperr.SessionGone if the session has been detached;
// a detached session's handles fail with SessionGone on use.
func (s *Session) checkLive() error {
	if s.State() == StateDetached {
		return sessionGoneErr
	}
	return nil
}

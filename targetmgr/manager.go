package targetmgr

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/kuromi/browser-core/cdperr"
	"github.com/kuromi/browser-core/mux"
)

var sessionGoneErr = cdperr.SessionGone

// TargetInfo describes a page, iframe, service-worker, or shared-worker
// as reported by the browser.
type TargetInfo struct {
	TargetID string
	Type     string
	URL      string
	Title    string
	OpenerID string
	Attached bool
}

// Manager discovers targets and caches them, refreshed on
// Target.targetCreated/Destroyed/InfoChanged events.
type Manager struct {
	m *mux.Multiplexer

	mu       sync.RWMutex
	cache    map[string]*TargetInfo
	sessions map[string]*Session // sessionId -> Session

	autoAttach     bool
	onAutoAttached func(*Session)
}

// New creates a Manager bound to a running Multiplexer.
func New(m *mux.Multiplexer) *Manager {
	mgr := &Manager{
		m:        m,
		cache:    make(map[string]*TargetInfo),
		sessions: make(map[string]*Session),
	}
	m.On("Target.targetCreated", "", mgr.onTargetCreated)
	m.On("Target.targetDestroyed", "", mgr.onTargetDestroyed)
	m.On("Target.targetInfoChanged", "", mgr.onTargetInfoChanged)
	m.On("Target.attachedToTarget", "", mgr.onAttachedToTarget)
	m.On("Target.detachedFromTarget", "", mgr.onDetachedFromTarget)
	return mgr
}

type targetInfoWire struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Attached bool   `json:"attached"`
	OpenerID string `json:"openerId"`
}

func (mgr *Manager) onTargetCreated(params json.RawMessage) {
	var ev struct {
		TargetInfo targetInfoWire `json:"targetInfo"`
	}
	if json.Unmarshal(params, &ev) != nil {
		return
	}
	mgr.mu.Lock()
	mgr.cache[ev.TargetInfo.TargetID] = &TargetInfo{
		TargetID: ev.TargetInfo.TargetID,
		Type:     ev.TargetInfo.Type,
		URL:      ev.TargetInfo.URL,
		Title:    ev.TargetInfo.Title,
		OpenerID: ev.TargetInfo.OpenerID,
		Attached: ev.TargetInfo.Attached,
	}
	mgr.mu.Unlock()
}

func (mgr *Manager) onTargetDestroyed(params json.RawMessage) {
	var ev struct {
		TargetID string `json:"targetId"`
	}
	if json.Unmarshal(params, &ev) != nil {
		return
	}
	mgr.mu.Lock()
	delete(mgr.cache, ev.TargetID)
	mgr.mu.Unlock()
}

func (mgr *Manager) onTargetInfoChanged(params json.RawMessage) {
	var ev struct {
		TargetInfo targetInfoWire `json:"targetInfo"`
	}
	if json.Unmarshal(params, &ev) != nil {
		return
	}
	mgr.mu.Lock()
	if ti, ok := mgr.cache[ev.TargetInfo.TargetID]; ok {
		ti.URL = ev.TargetInfo.URL
		ti.Title = ev.TargetInfo.Title
		ti.Attached = ev.TargetInfo.Attached
	}
	mgr.mu.Unlock()
}

func (mgr *Manager) onAttachedToTarget(params json.RawMessage) {
	if !mgr.autoAttach {
		return
	}
	var ev struct {
		SessionID  string         `json:"sessionId"`
		TargetInfo targetInfoWire `json:"targetInfo"`
	}
	if json.Unmarshal(params, &ev) != nil {
		return
	}
	sess := newSession(mgr, ev.TargetInfo.TargetID, ev.SessionID)
	mgr.mu.Lock()
	mgr.sessions[ev.SessionID] = sess
	mgr.mu.Unlock()
	if mgr.onAutoAttached != nil {
		mgr.onAutoAttached(sess)
	}
}

func (mgr *Manager) onDetachedFromTarget(params json.RawMessage) {
	var ev struct {
		SessionID string `json:"sessionId"`
	}
	if json.Unmarshal(params, &ev) != nil {
		return
	}
	mgr.mu.Lock()
	sess, ok := mgr.sessions[ev.SessionID]
	delete(mgr.sessions, ev.SessionID)
	mgr.mu.Unlock()
	if ok {
		sess.setState(StateDetached)
		mgr.m.OffSession(ev.SessionID)
	}
}

type rawParams json.RawMessage

func (p rawParams) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return p, nil
}

func marshalParams(v any) json.Marshaler {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return rawParams(nil)
	}
	return rawParams(b)
}

// Targets fetches Target.getTargets and merges it with the cache kept
// current by targetInfoChanged events.
func (mgr *Manager) Targets(ctx context.Context) ([]*TargetInfo, error) {
	result, err := mgr.m.Send(ctx, "Target.getTargets", nil, "")
	if err != nil {
		return nil, err
	}
	var wire struct {
		TargetInfos []targetInfoWire `json:"targetInfos"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return nil, err
	}
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	out := make([]*TargetInfo, 0, len(wire.TargetInfos))
	for _, ti := range wire.TargetInfos {
		info := &TargetInfo{
			TargetID: ti.TargetID, Type: ti.Type, URL: ti.URL,
			Title: ti.Title, OpenerID: ti.OpenerID, Attached: ti.Attached,
		}
		mgr.cache[ti.TargetID] = info
		out = append(out, info)
	}
	return out, nil
}

// Attach sends Target.attachToTarget{flatten:true}, constructs a Session,
// and registers it.
func (mgr *Manager) Attach(ctx context.Context, targetID string) (*Session, error) {
	params := map[string]any{"targetId": targetID, "flatten": true}
	result, err := mgr.m.Send(ctx, "Target.attachToTarget", marshalParams(params), "")
	if err != nil {
		if cerr, ok := err.(*cdperr.Error); ok && cerr.Kind == cdperr.KindCdpError {
			return nil, cdperr.Wrap(cdperr.KindTargetGone, err, "attach to target %s failed", targetID)
		}
		return nil, err
	}
	var wire struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return nil, err
	}
	sess := newSession(mgr, targetID, wire.SessionID)
	mgr.mu.Lock()
	mgr.sessions[wire.SessionID] = sess
	mgr.mu.Unlock()
	return sess, nil
}

// Detach sends Target.detachFromTarget, removes session-scoped
// subscriptions, and marks the session detached.
func (mgr *Manager) Detach(ctx context.Context, sess *Session) error {
	sess.setState(StateDetaching)
	params := map[string]any{"sessionId": sess.SessionID}
	_, err := mgr.m.Send(ctx, "Target.detachFromTarget", marshalParams(params), "")
	mgr.m.OffSession(sess.SessionID)
	mgr.mu.Lock()
	delete(mgr.sessions, sess.SessionID)
	mgr.mu.Unlock()
	sess.setState(StateDetached)
	return err
}

// CreatePage sends Target.createTarget then attaches to it.
func (mgr *Manager) CreatePage(ctx context.Context, url string) (*Session, error) {
	if url == "" {
		url = "about:blank"
	}
	result, err := mgr.m.Send(ctx, "Target.createTarget", marshalParams(map[string]any{"url": url}), "")
	if err != nil {
		return nil, cdperr.Wrap(cdperr.KindTargetGone, err, "browser refused to create target")
	}
	var wire struct {
		TargetID string `json:"targetId"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return nil, err
	}
	return mgr.Attach(ctx, wire.TargetID)
}

// EnableDiscover turns on Target.setDiscoverTargets so the cache is kept
// current by targetCreated/Destroyed/InfoChanged events rather than only by
// explicit Targets calls.
func (mgr *Manager) EnableDiscover(ctx context.Context) error {
	_, err := mgr.m.Send(ctx, "Target.setDiscoverTargets", marshalParams(map[string]any{"discover": true}), "")
	return err
}

// EnableAutoAttach subscribes to new targets so that frame/worker sessions
// are attached automatically as they appear. onAttached is invoked for every new session,
// including the initial flattened attach.
func (mgr *Manager) EnableAutoAttach(ctx context.Context, onAttached func(*Session)) error {
	mgr.autoAttach = true
	mgr.onAutoAttached = onAttached
	params := map[string]any{"autoAttach": true, "waitForDebuggerOnStart": false, "flatten": true}
	_, err := mgr.m.Send(ctx, "Target.setAutoAttach", marshalParams(params), "")
	return err
}

// Session looks up an already-attached session by id.
func (mgr *Manager) Session(sessionID string) (*Session, bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	s, ok := mgr.sessions[sessionID]
	return s, ok
}

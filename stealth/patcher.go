package stealth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kuromi/browser-core/internal/jsassets"
	"github.com/kuromi/browser-core/mux"
)

// Patcher applies a Profile to one attached session: Emulation and
// Network overrides first, then the injected prelude.
type Patcher struct {
	m         *mux.Multiplexer
	sessionID string

	mu              sync.Mutex
	preludeScriptID string
}

// New constructs a Patcher bound to an already-attached session.
func New(m *mux.Multiplexer, sessionID string) *Patcher {
	return &Patcher{m: m, sessionID: sessionID}
}

// Apply pushes every non-zero field of profile to the session: a
// navigator/window override script (re-injected idempotently — a second
// Apply call replaces the previous script rather than stacking two), plus
// the matching Emulation/Network domain overrides so navigator.platform,
// the User-Agent string, and the emulated timezone/locale/viewport never
// disagree with each other.
func (p *Patcher) Apply(ctx context.Context, profile Profile) error {
	if profile.UserAgent != "" {
		if err := p.setUserAgent(ctx, profile); err != nil {
			return fmt.Errorf("stealth: user agent override: %w", err)
		}
	}
	if len(profile.ExtraHeaders) > 0 {
		if err := p.setExtraHeaders(ctx, profile.ExtraHeaders); err != nil {
			return fmt.Errorf("stealth: extra headers: %w", err)
		}
	}
	if profile.Timezone != "" {
		if _, err := p.m.Send(ctx, "Emulation.setTimezoneOverride", rawJSON(map[string]any{
			"timezoneId": profile.Timezone,
		}), p.sessionID); err != nil {
			return fmt.Errorf("stealth: timezone override: %w", err)
		}
	}
	if profile.Locale != "" {
		if _, err := p.m.Send(ctx, "Emulation.setLocaleOverride", rawJSON(map[string]any{
			"locale": profile.Locale,
		}), p.sessionID); err != nil {
			return fmt.Errorf("stealth: locale override: %w", err)
		}
	}
	if profile.Viewport != nil {
		if err := p.setViewport(ctx, *profile.Viewport); err != nil {
			return fmt.Errorf("stealth: viewport override: %w", err)
		}
	}
	if err := p.injectPrelude(ctx, profile); err != nil {
		return fmt.Errorf("stealth: prelude injection: %w", err)
	}
	return nil
}

func (p *Patcher) setUserAgent(ctx context.Context, profile Profile) error {
	params := map[string]any{"userAgent": profile.UserAgent}
	if profile.AcceptLanguage != "" {
		params["acceptLanguage"] = profile.AcceptLanguage
	}
	if profile.Platform != "" {
		params["platform"] = profile.Platform
	}
	if len(profile.UABrands) > 0 {
		// Client Hints metadata must agree with UserAgent/Platform above, or
		// Sec-CH-UA-* request headers will contradict the UA string itself.
		platform := profile.UAPlatform
		if platform == "" {
			platform = profile.Platform
		}
		params["userAgentMetadata"] = map[string]any{
			"brands":   profile.UABrands,
			"platform": platform,
			"mobile":   profile.Viewport != nil && profile.Viewport.Mobile,
		}
	}
	_, err := p.m.Send(ctx, "Network.setUserAgentOverride", rawJSON(params), p.sessionID)
	return err
}

func (p *Patcher) setExtraHeaders(ctx context.Context, headers map[string]string) error {
	_, err := p.m.Send(ctx, "Network.setExtraHTTPHeaders", rawJSON(map[string]any{
		"headers": headers,
	}), p.sessionID)
	return err
}

func (p *Patcher) setViewport(ctx context.Context, v Viewport) error {
	scale := v.DeviceScaleFactor
	if scale == 0 {
		scale = 1.0
	}
	_, err := p.m.Send(ctx, "Emulation.setDeviceMetricsOverride", rawJSON(map[string]any{
		"width":             v.Width,
		"height":            v.Height,
		"deviceScaleFactor": scale,
		"mobile":            v.Mobile,
	}), p.sessionID)
	return err
}

// injectPrelude pushes the parameterized stealth prelude via
// Page.addScriptToEvaluateOnNewDocument. The profile is passed as a single
// JSON-encoded argument embedded in the call expression — json.Marshal
// escapes every byte that could break out of the literal, so this never
// concatenates caller-controlled strings into the script the way a naive
// fmt.Sprintf("...%s...", value) would.
func (p *Patcher) injectPrelude(ctx context.Context, profile Profile) error {
	argJSON, err := json.Marshal(profile.preludeArgs())
	if err != nil {
		return err
	}
	source := fmt.Sprintf("(%s)(%s);", jsassets.StealthPrelude, argJSON)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.preludeScriptID != "" {
		_, _ = p.m.Send(ctx, "Page.removeScriptToEvaluateOnNewDocument", rawJSON(map[string]any{
			"identifier": p.preludeScriptID,
		}), p.sessionID)
		p.preludeScriptID = ""
	}

	result, err := p.m.Send(ctx, "Page.addScriptToEvaluateOnNewDocument", rawJSON(map[string]any{
		"source": source,
	}), p.sessionID)
	if err != nil {
		return err
	}
	var wire struct {
		Identifier string `json:"identifier"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return err
	}
	p.preludeScriptID = wire.Identifier

	// Apply immediately to the current document too, in case the session
	// already has a live page (addScriptToEvaluateOnNewDocument only takes
	// effect on the *next* navigation).
	_, err = p.m.Send(ctx, "Runtime.evaluate", rawJSON(map[string]any{
		"expression": source,
	}), p.sessionID)
	return err
}

// Remove drops the injected prelude script, leaving future navigations
// unpatched. Emulation/Network overrides already applied by Apply are left
// in place; call the corresponding *.clearOverride/reset methods directly
// if those need undoing too.
func (p *Patcher) Remove(ctx context.Context) error {
	p.mu.Lock()
	id := p.preludeScriptID
	p.preludeScriptID = ""
	p.mu.Unlock()
	if id == "" {
		return nil
	}
	_, err := p.m.Send(ctx, "Page.removeScriptToEvaluateOnNewDocument", rawJSON(map[string]any{
		"identifier": id,
	}), p.sessionID)
	return err
}

type rawJSONBytes []byte

func (r rawJSONBytes) MarshalJSON() ([]byte, error) { return r, nil }

func rawJSON(v map[string]any) json.Marshaler {
	b, err := json.Marshal(v)
	if err != nil {
		return rawJSONBytes("{}")
	}
	return rawJSONBytes(b)
}

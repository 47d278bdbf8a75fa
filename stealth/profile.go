// Package stealth applies a caller-supplied fingerprint profile to an
// attached session: navigator/window overrides injected as a new-document
// script, plus the matching Emulation/Network domain overrides so the
// patched values stay internally consistent.
package stealth

// Plugin describes one fake navigator.plugins entry.
type Plugin struct {
	Name        string `json:"name"`
	Filename    string `json:"filename"`
	Description string `json:"description"`
}

// Viewport overrides the emulated device metrics.
type Viewport struct {
	Width             int64
	Height            int64
	DeviceScaleFactor float64
	Mobile            bool
}

// Profile is an opaque bundle of fingerprint values a caller assembles
// however it wants (hardcoded, loaded from a file, generated by some other
// tool) and hands to a Patcher. This package never constructs one itself —
// generating realistic, population-consistent fingerprint data is a
// separate concern from applying them to a live session.
type Profile struct {
	UserAgent      string
	AcceptLanguage string
	Platform       string
	Vendor         string
	Languages      []string
	Timezone       string // IANA timezone id, e.g. "America/Los_Angeles"
	Locale         string // e.g. "en-US"

	HardwareConcurrency int
	DeviceMemory        float64
	Webdriver           *bool // nil leaves navigator.webdriver untouched
	Plugins             []Plugin

	Viewport *Viewport

	// WebGLVendor/WebGLRenderer override WebGL's UNMASKED_VENDOR_WEBGL /
	// UNMASKED_RENDERER_WEBGL debug parameters, which otherwise leak the
	// real GPU regardless of the navigator.platform override above.
	WebGLVendor, WebGLRenderer string

	// CanvasNoise/AudioNoise enable deterministic per-pixel/per-sample
	// perturbation of canvas readback and AudioBuffer sample data, seeded
	// by FingerprintSeed, so two sessions with the same seed reproduce the
	// same noise while two different seeds
	// defeat naive canvas/audio hashing.
	CanvasNoise     bool
	AudioNoise      bool
	FingerprintSeed int64

	// UABrands/UAPlatform override navigator.userAgentData's Client Hints
	// brand list and platform so they stay consistent with UserAgent and
	// Platform above.
	UABrands   []ClientHintBrand
	UAPlatform string

	// ExtraHeaders are merged into every outgoing request via
	// Network.setExtraHTTPHeaders (e.g. Accept-Language, Sec-CH-UA-*).
	ExtraHeaders map[string]string
}

// ClientHintBrand is one entry of navigator.userAgentData.brands.
type ClientHintBrand struct {
	Brand   string `json:"brand"`
	Version string `json:"version"`
}

// preludeArgs is the subset of Profile serialized into the injected script;
// field names match what internal/jsassets.StealthPrelude's
// applyStealthProfile reads off its argument.
type preludeArgs struct {
	Webdriver           *bool             `json:"webdriver,omitempty"`
	Timezone            string            `json:"timezone,omitempty"`
	Locale              string            `json:"locale,omitempty"`
	Platform            string            `json:"platform,omitempty"`
	Vendor              string            `json:"vendor,omitempty"`
	Languages           []string          `json:"languages,omitempty"`
	HardwareConcurrency int               `json:"hardwareConcurrency,omitempty"`
	DeviceMemory        float64           `json:"deviceMemory,omitempty"`
	Plugins             []Plugin          `json:"plugins,omitempty"`
	WebGLVendor         string            `json:"webglVendor,omitempty"`
	WebGLRenderer       string            `json:"webglRenderer,omitempty"`
	CanvasNoise         bool              `json:"canvasNoise,omitempty"`
	AudioNoise          bool              `json:"audioNoise,omitempty"`
	FingerprintSeed     int64             `json:"fingerprintSeed,omitempty"`
	UABrands            []ClientHintBrand `json:"uaBrands,omitempty"`
	UAPlatform          string            `json:"uaPlatform,omitempty"`
}

func (p Profile) preludeArgs() preludeArgs {
	return preludeArgs{
		Webdriver:           p.Webdriver,
		Timezone:            p.Timezone,
		Locale:              p.Locale,
		Platform:            p.Platform,
		Vendor:              p.Vendor,
		Languages:           p.Languages,
		HardwareConcurrency: p.HardwareConcurrency,
		DeviceMemory:        p.DeviceMemory,
		Plugins:             p.Plugins,
		WebGLVendor:         p.WebGLVendor,
		WebGLRenderer:       p.WebGLRenderer,
		CanvasNoise:         p.CanvasNoise,
		AudioNoise:          p.AudioNoise,
		FingerprintSeed:     p.FingerprintSeed,
		UABrands:            p.UABrands,
		UAPlatform:          p.UAPlatform,
	}
}

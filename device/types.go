// Package device holds a small, hand-picked set of device presets — the
// concrete values a fingerprint profile needs to agree on (UA, platform,
// viewport, WebGL vendor/renderer) to stay internally consistent for a
// named device. Generating a realistic, population-weighted fingerprint
// corpus is out of scope; this package only supplies a few concrete,
// mutually consistent starting points a caller can hand to
// stealth.Profile as-is, or copy and override fields on.
package device

import "github.com/kuromi/browser-core/stealth"

// Info is one device/platform preset.
type Info struct {
	Name string

	UserAgent string
	Platform  string // navigator.platform value, e.g. "MacIntel"
	Vendor    string // navigator.vendor value

	Width, Height     int64
	DeviceScaleFactor float64
	Mobile            bool

	// WebGLVendor/WebGLRenderer are the UNMASKED_VENDOR_WEBGL /
	// UNMASKED_RENDERER_WEBGL strings; they must agree with Platform (an
	// "macOS" UA pairs with an Apple GPU string, never an NVIDIA one).
	WebGLVendor, WebGLRenderer string

	Timezone string // IANA timezone id plausible for this platform
	Locale   string
}

// String satisfies fmt.Stringer.
func (i Info) String() string { return i.Name }

// Profile converts the preset into a stealth.Profile ready to hand to
// browsercore.WithFingerprint or Patcher.Apply. Callers wanting canvas or
// audio noise set those fields (and a FingerprintSeed) on the result.
func (i Info) Profile() stealth.Profile {
	return stealth.Profile{
		UserAgent:     i.UserAgent,
		Platform:      i.Platform,
		Vendor:        i.Vendor,
		Timezone:      i.Timezone,
		Locale:        i.Locale,
		WebGLVendor:   i.WebGLVendor,
		WebGLRenderer: i.WebGLRenderer,
		Viewport: &stealth.Viewport{
			Width:             i.Width,
			Height:            i.Height,
			DeviceScaleFactor: i.DeviceScaleFactor,
			Mobile:            i.Mobile,
		},
	}
}

// Presets is a small curated set, not a generated corpus. Desktop entries
// pair platform/WebGL/timezone the way a real machine of that kind would;
// mobile entries set Mobile=true and a touch-sized viewport.
var Presets = map[string]Info{
	"desktop-macos": {
		Name:              "Desktop macOS / Chrome",
		UserAgent:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Platform:          "MacIntel",
		Vendor:            "Google Inc.",
		Width:             1440,
		Height:            900,
		DeviceScaleFactor: 2,
		WebGLVendor:       "Google Inc. (Apple)",
		WebGLRenderer:     "ANGLE (Apple, Apple M1, OpenGL 4.1)",
		Timezone:          "America/Los_Angeles",
		Locale:            "en-US",
	},
	"desktop-windows": {
		Name:              "Desktop Windows / Chrome",
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Platform:          "Win32",
		Vendor:            "Google Inc.",
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
		WebGLVendor:       "Google Inc. (NVIDIA)",
		WebGLRenderer:     "ANGLE (NVIDIA, NVIDIA GeForce RTX 3060 Direct3D11 vs_5_0 ps_5_0, D3D11)",
		Timezone:          "America/New_York",
		Locale:            "en-US",
	},
	"iphone-13": {
		Name:              "iPhone 13 / Safari",
		UserAgent:         "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
		Platform:          "iPhone",
		Vendor:            "Apple Computer, Inc.",
		Width:             390,
		Height:            844,
		DeviceScaleFactor: 3,
		Mobile:            true,
		WebGLVendor:       "Apple Inc.",
		WebGLRenderer:     "Apple GPU",
		Timezone:          "America/Chicago",
		Locale:            "en-US",
	},
	"pixel-5": {
		Name:              "Pixel 5 / Chrome",
		UserAgent:         "Mozilla/5.0 (Linux; Android 13; Pixel 5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
		Platform:          "Linux armv8l",
		Vendor:            "Google Inc.",
		Width:             393,
		Height:            851,
		DeviceScaleFactor: 2.75,
		Mobile:            true,
		WebGLVendor:       "Qualcomm",
		WebGLRenderer:     "Adreno (TM) 620",
		Timezone:          "America/Denver",
		Locale:            "en-US",
	},
}

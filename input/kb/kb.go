// Package kb provides keyboard mappings for Chrome DOM keys, for use when
// synthesizing Input.dispatchKeyEvent sequences.
//
// The table hand-encodes the subset of DOM keys the keyboard synthesizer
// actually needs: printable ASCII plus the common named control keys. Key
// and code values follow the Chromium DOM key tables.
// Anything outside that set still round-trips through EncodeUnidentified
// with keyCode 0.
package kb

import "fmt"

// Key holds the per-rune data needed to synthesize a keyDown/keyChar/keyUp
// triple for Input.dispatchKeyEvent.
type Key struct {
	Code       string
	Key        string
	Text       string
	Unmodified string
	Native     int64
	Windows    int64
	Shift      bool
	Print      bool
}

// EventParams mirrors the CDP Input.dispatchKeyEvent parameter object.
type EventParams struct {
	Type                  string
	Key                   string
	Code                  string
	Text                  string
	UnmodifiedText        string
	NativeVirtualKeyCode  int64
	WindowsVirtualKeyCode int64
	Modifiers             int64
}

// Modifier bitmask values for Input.dispatchKeyEvent/dispatchMouseEvent's
// "modifiers" parameter.
const (
	ModifierAlt     int64 = 1 << 0
	ModifierControl int64 = 1 << 1
	ModifierMeta    int64 = 1 << 2
	ModifierShift   int64 = 1 << 3
)

const (
	typeKeyDown = "keyDown"
	typeKeyUp   = "keyUp"
	typeKeyChar = "char"
)

// NamedKey holds event data for a key identified by name rather than by
// rune: arrows, function keys, editing keys, and modifiers have no
// printable rune form.
// ModifierBit is nonzero for keys that themselves contribute to the
// modifier mask while held (Shift, Control, Alt, Meta).
type NamedKey struct {
	Code        string
	Key         string
	Native      int64
	Windows     int64
	Text        string
	Print       bool
	ModifierBit int64
}

// Named maps a canonical key name to its definition. Keys also present in
// the rune table (Keys) share the same Code/Key/Native/Windows values so a
// name-based and rune-based dispatch of the same physical key are
// indistinguishable on the wire.
var Named = map[string]NamedKey{}

func regNamed(name string, k NamedKey) { Named[name] = k }

// aliases maps informal key names to their canonical entry in Named.
var aliases = map[string]string{
	"Ctrl":     "Control",
	"Esc":      "Escape",
	"Cmd":      "Meta",
	"Command":  "Meta",
	"Option":   "Alt",
	"Return":   "Enter",
	"Del":      "Delete",
	"Spacebar": "Space",
	"Win":      "Meta",
}

// ResolveName applies the alias table, returning name unchanged if it has
// no alias.
func ResolveName(name string) string {
	if canon, ok := aliases[name]; ok {
		return canon
	}
	return name
}

// LookupNamed resolves name (after aliasing) to its NamedKey definition.
func LookupNamed(name string) (NamedKey, bool) {
	k, ok := Named[ResolveName(name)]
	return k, ok
}

// Keys maps a rune to its Key definition.
var Keys = map[rune]Key{}

func reg(r rune, k Key) { Keys[r] = k }

func init() {
	registerLetters()
	registerDigits()
	registerPunctuation()
	registerControls()
	registerNamed()
}

// registerNamed populates Named: the key names a caller can pass to
// Press/Shortcut that rune-based dispatch (Type/Encode) cannot reach,
// plus the control keys already in Keys so Press("Enter") and typing
// '\r' dispatch identical events.
func registerNamed() {
	regNamed("Enter", NamedKey{Code: "Enter", Key: "Enter", Native: 0x0d, Windows: 0x0d, Text: "\r", Print: true})
	regNamed("Tab", NamedKey{Code: "Tab", Key: "Tab", Native: 0x09, Windows: 0x09})
	regNamed("Backspace", NamedKey{Code: "Backspace", Key: "Backspace", Native: 0x08, Windows: 0x08})
	regNamed("Escape", NamedKey{Code: "Escape", Key: "Escape", Native: 0x1b, Windows: 0x1b})
	regNamed("Delete", NamedKey{Code: "Delete", Key: "Delete", Native: 0x2e, Windows: 0x2e})
	regNamed("Space", NamedKey{Code: "Space", Key: " ", Native: 0x20, Windows: 0x20, Text: " ", Print: true})

	regNamed("ArrowLeft", NamedKey{Code: "ArrowLeft", Key: "ArrowLeft", Native: 0x25, Windows: 0x25})
	regNamed("ArrowUp", NamedKey{Code: "ArrowUp", Key: "ArrowUp", Native: 0x26, Windows: 0x26})
	regNamed("ArrowRight", NamedKey{Code: "ArrowRight", Key: "ArrowRight", Native: 0x27, Windows: 0x27})
	regNamed("ArrowDown", NamedKey{Code: "ArrowDown", Key: "ArrowDown", Native: 0x28, Windows: 0x28})
	regNamed("Home", NamedKey{Code: "Home", Key: "Home", Native: 0x24, Windows: 0x24})
	regNamed("End", NamedKey{Code: "End", Key: "End", Native: 0x23, Windows: 0x23})
	regNamed("PageUp", NamedKey{Code: "PageUp", Key: "PageUp", Native: 0x21, Windows: 0x21})
	regNamed("PageDown", NamedKey{Code: "PageDown", Key: "PageDown", Native: 0x22, Windows: 0x22})
	regNamed("Insert", NamedKey{Code: "Insert", Key: "Insert", Native: 0x2d, Windows: 0x2d})
	regNamed("CapsLock", NamedKey{Code: "CapsLock", Key: "CapsLock", Native: 0x14, Windows: 0x14})

	for i := 1; i <= 12; i++ {
		name := fmt.Sprintf("F%d", i)
		vk := int64(0x70 + i - 1)
		regNamed(name, NamedKey{Code: name, Key: name, Native: vk, Windows: vk})
	}

	regNamed("Shift", NamedKey{Code: "ShiftLeft", Key: "Shift", Native: 0x10, Windows: 0x10, ModifierBit: ModifierShift})
	regNamed("Control", NamedKey{Code: "ControlLeft", Key: "Control", Native: 0x11, Windows: 0x11, ModifierBit: ModifierControl})
	regNamed("Alt", NamedKey{Code: "AltLeft", Key: "Alt", Native: 0x12, Windows: 0x12, ModifierBit: ModifierAlt})
	regNamed("Meta", NamedKey{Code: "MetaLeft", Key: "Meta", Native: 0x5b, Windows: 0x5b, ModifierBit: ModifierMeta})
}

func registerLetters() {
	for c := 'a'; c <= 'z'; c++ {
		code := "Key" + string(c-32)
		native := int64(c - 32)
		reg(c, Key{Code: code, Key: string(c), Text: string(c), Unmodified: string(c), Native: native, Windows: native, Print: true})
		upper := c - 32
		reg(upper, Key{Code: code, Key: string(upper), Text: string(upper), Unmodified: string(c), Native: native, Windows: native, Shift: true, Print: true})
	}
}

func registerDigits() {
	shiftedDigit := map[rune]rune{
		'0': ')', '1': '!', '2': '@', '3': '#', '4': '$',
		'5': '%', '6': '^', '7': '&', '8': '*', '9': '(',
	}
	for c := '0'; c <= '9'; c++ {
		code := "Digit" + string(c)
		native := int64(c)
		reg(c, Key{Code: code, Key: string(c), Text: string(c), Unmodified: string(c), Native: native, Windows: native, Print: true})
		shifted := shiftedDigit[c]
		reg(shifted, Key{Code: code, Key: string(shifted), Text: string(shifted), Unmodified: string(c), Native: native, Windows: native, Shift: true, Print: true})
	}
}

type punctEntry struct {
	r, shiftedR rune
	code        string
}

func registerPunctuation() {
	entries := []punctEntry{
		{'-', '_', "Minus"},
		{'=', '+', "Equal"},
		{'[', '{', "BracketLeft"},
		{']', '}', "BracketRight"},
		{'\\', '|', "Backslash"},
		{';', ':', "Semicolon"},
		{'\'', '"', "Quote"},
		{'`', '~', "Backquote"},
		{',', '<', "Comma"},
		{'.', '>', "Period"},
		{'/', '?', "Slash"},
	}
	for _, e := range entries {
		native := int64(e.r)
		reg(e.r, Key{Code: e.code, Key: string(e.r), Text: string(e.r), Unmodified: string(e.r), Native: native, Windows: native, Print: true})
		reg(e.shiftedR, Key{Code: e.code, Key: string(e.shiftedR), Text: string(e.shiftedR), Unmodified: string(e.r), Native: native, Windows: native, Shift: true, Print: true})
	}
	reg(' ', Key{Code: "Space", Key: " ", Text: " ", Unmodified: " ", Native: 0x20, Windows: 0x20, Print: true})
}

func registerControls() {
	reg('\b', Key{Code: "Backspace", Key: "Backspace", Native: 0x08, Windows: 0x08})
	reg('\t', Key{Code: "Tab", Key: "Tab", Native: 0x09, Windows: 0x09})
	reg('\r', Key{Code: "Enter", Key: "Enter", Text: "\r", Unmodified: "\r", Native: 0x0d, Windows: 0x0d, Print: true})
	reg(0x1b, Key{Code: "Escape", Key: "Escape", Native: 0x1b, Windows: 0x1b})
	reg(0x7f, Key{Code: "Delete", Key: "Delete", Native: 0x2e, Windows: 0x2e})
}

// EncodeUnidentified builds a keyDown/char/keyUp (or keyDown/keyUp, for
// non-printable runes) sequence for a rune absent from Keys.
func EncodeUnidentified(r rune) []EventParams {
	down := EventParams{Type: typeKeyDown, Key: "Unidentified"}
	up := EventParams{Type: typeKeyUp, Key: "Unidentified"}
	if isPrint(r) {
		ch := EventParams{Type: typeKeyChar, Key: "Unidentified", Text: string(r), UnmodifiedText: string(r)}
		return []EventParams{down, ch, up}
	}
	return []EventParams{down, up}
}

func isPrint(r rune) bool {
	return r >= 0x20 && r != 0x7f
}

// Encode builds the keyDown/char/keyUp (or keyDown/keyUp) sequence for r.
func Encode(r rune) []EventParams {
	if r == '\n' {
		r = '\r'
	}
	v, ok := Keys[r]
	if !ok {
		return EncodeUnidentified(r)
	}
	down := EventParams{
		Type:                  typeKeyDown,
		Key:                   v.Key,
		Code:                  v.Code,
		NativeVirtualKeyCode:  v.Native,
		WindowsVirtualKeyCode: v.Windows,
	}
	if v.Shift {
		down.Modifiers |= ModifierShift
	}
	up := down
	up.Type = typeKeyUp
	if v.Print {
		ch := down
		ch.Type = typeKeyChar
		ch.Text = v.Text
		ch.UnmodifiedText = v.Unmodified
		ch.NativeVirtualKeyCode = int64(r)
		ch.WindowsVirtualKeyCode = int64(r)
		return []EventParams{down, ch, up}
	}
	return []EventParams{down, up}
}

// EncodeNamed builds the keyDown/(char)/keyUp sequence for a named key, after
// alias resolution. ok is false if name doesn't resolve to an entry in Named.
func EncodeNamed(name string) (events []EventParams, ok bool) {
	k, ok := LookupNamed(name)
	if !ok {
		return nil, false
	}
	down := EventParams{
		Type:                  typeKeyDown,
		Key:                   k.Key,
		Code:                  k.Code,
		NativeVirtualKeyCode:  k.Native,
		WindowsVirtualKeyCode: k.Windows,
	}
	up := down
	up.Type = typeKeyUp
	if k.Print {
		ch := down
		ch.Type = typeKeyChar
		ch.Text = k.Text
		ch.UnmodifiedText = k.Text
		return []EventParams{down, ch, up}, true
	}
	return []EventParams{down, up}, true
}

// DownEvent and UpEvent build a single keyDown/keyUp EventParams for a
// named key, for callers that hold a modifier key across other keystrokes
// (input.Synthesizer.Shortcut) rather than tapping it with EncodeNamed.
func DownEvent(name string) (EventParams, bool) {
	k, ok := LookupNamed(name)
	if !ok {
		return EventParams{}, false
	}
	return EventParams{
		Type:                  typeKeyDown,
		Key:                   k.Key,
		Code:                  k.Code,
		NativeVirtualKeyCode:  k.Native,
		WindowsVirtualKeyCode: k.Windows,
	}, true
}

func UpEvent(name string) (EventParams, bool) {
	ev, ok := DownEvent(name)
	if ok {
		ev.Type = typeKeyUp
	}
	return ev, ok
}

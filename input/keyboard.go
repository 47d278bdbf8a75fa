package input

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode"

	"github.com/kuromi/browser-core/input/kb"
)

// KeyboardTiming controls inter-keystroke pacing and typo injection.
type KeyboardTiming struct {
	// MinDelay/MaxDelay bound the pause between ordinary keystrokes.
	MinDelay, MaxDelay time.Duration
	// WordPauseMin/Max bound the extra pause after a word boundary
	// (space), applied with WordPauseProbability.
	WordPauseMin, WordPauseMax time.Duration
	WordPauseProbability       float64
	// SentencePauseMin/Max bound the extra pause after sentence-terminating
	// punctuation ('.', '!', '?'), applied every time.
	SentencePauseMin, SentencePauseMax time.Duration
	// TypoProbability is the chance that a letter with a QWERTY neighbour
	// in the adjacency table is preceded by a wrong keystroke (that
	// neighbour) that gets backspaced before the intended letter is typed.
	TypoProbability float64
}

// DefaultKeyboardTiming spaces ordinary keystrokes 35–140 ms apart (about
// 690 CPM on average before word and sentence pauses are added).
var DefaultKeyboardTiming = KeyboardTiming{
	MinDelay:             35 * time.Millisecond,
	MaxDelay:             140 * time.Millisecond,
	WordPauseMin:         100 * time.Millisecond,
	WordPauseMax:         500 * time.Millisecond,
	WordPauseProbability: 0.3,
	SentencePauseMin:     200 * time.Millisecond,
	SentencePauseMax:     500 * time.Millisecond,
	TypoProbability:      0.02,
}

// WithKeyboardTiming returns s configured with the given timing, for
// callers that want a distinct profile from the package default.
func (s *Synthesizer) WithKeyboardTiming(t KeyboardTiming) *Synthesizer {
	s.Keyboard = t
	return s
}

// adjacentKey returns a plausible fat-finger substitute for r, used to
// synthesize a typo. Falls back to r itself (a no-op "typo") when r isn't
// in the small QWERTY adjacency table.
func adjacentKey(r rune) rune {
	lower := unicode.ToLower(r)
	neighbor, ok := qwertyAdjacency[lower]
	if !ok {
		return r
	}
	if unicode.IsUpper(r) {
		return unicode.ToUpper(neighbor)
	}
	return neighbor
}

var qwertyAdjacency = map[rune]rune{
	'a': 's', 's': 'a', 'd': 'f', 'f': 'd', 'g': 'h', 'h': 'g',
	'j': 'k', 'k': 'j', 'l': 'k', 'q': 'w', 'w': 'q', 'e': 'r',
	'r': 'e', 't': 'y', 'y': 't', 'u': 'i', 'i': 'u', 'o': 'p',
	'p': 'o', 'z': 'x', 'x': 'z', 'c': 'v', 'v': 'c', 'b': 'n',
	'n': 'b', 'm': 'n',
}

// Type dispatches a keyDown/char/keyUp sequence per rune in text, with
// randomized inter-keystroke delay, word-boundary pauses, and occasional
// typo-then-backspace-then-correct sequences.
func (s *Synthesizer) Type(ctx context.Context, sessionID string, text string) error {
	for _, r := range text {
		if s.Keyboard.TypoProbability > 0 && unicode.IsLetter(r) && s.randFloat() < s.Keyboard.TypoProbability {
			wrong := adjacentKey(r)
			if wrong != r {
				if err := s.pressRune(ctx, sessionID, wrong); err != nil {
					return err
				}
				if err := s.delay(ctx); err != nil {
					return err
				}
				if err := s.pressRune(ctx, sessionID, '\b'); err != nil {
					return err
				}
				if err := s.delay(ctx); err != nil {
					return err
				}
			}
		}
		if err := s.pressRune(ctx, sessionID, r); err != nil {
			return err
		}
		if err := s.interKeyDelay(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synthesizer) pressRune(ctx context.Context, sessionID string, r rune) error {
	for _, ev := range kb.Encode(r) {
		if err := s.dispatchKey(ctx, sessionID, ev); err != nil {
			return err
		}
	}
	return nil
}

// heldModifiers returns the modifier mask contributed by every key
// currently held for sessionID.
func (s *Synthesizer) heldModifiers(sessionID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var mask int64
	for name := range s.heldKeys[sessionID] {
		if k, ok := kb.LookupNamed(name); ok {
			mask |= k.ModifierBit
		}
	}
	return mask
}

func (s *Synthesizer) setHeld(sessionID, name string, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.heldKeys[sessionID] == nil {
		s.heldKeys[sessionID] = make(map[string]bool)
	}
	if down {
		s.heldKeys[sessionID][name] = true
	} else {
		delete(s.heldKeys[sessionID], name)
	}
}

// Press dispatches one named key or, for a
// single-character name, one rune, applying whatever modifier mask is
// currently held for sessionID via Shortcut.
func (s *Synthesizer) Press(ctx context.Context, sessionID, name string) error {
	evs := s.encodeKeyOrRune(name)
	mods := s.heldModifiers(sessionID)
	// Control/Alt/Meta chords don't insert text in a real browser (the
	// keyboard layout has no output for e.g. Ctrl+A); drop the synthesized
	// char event so a Shortcut doesn't fabricate an insertion.
	suppressChar := mods&(kb.ModifierControl|kb.ModifierAlt|kb.ModifierMeta) != 0
	for _, ev := range evs {
		if suppressChar && ev.Type == "char" {
			continue
		}
		ev.Modifiers |= mods
		if err := s.dispatchKey(ctx, sessionID, ev); err != nil {
			return err
		}
	}
	return nil
}

// encodeKeyOrRune resolves name against the named-key table first, then as
// a single printable rune. An unknown name is sent verbatim with keyCode 0.
func (s *Synthesizer) encodeKeyOrRune(name string) []kb.EventParams {
	if evs, ok := kb.EncodeNamed(name); ok {
		return evs
	}
	r := []rune(name)
	if len(r) == 1 {
		return kb.Encode(r[0])
	}
	return []kb.EventParams{
		{Type: "keyDown", Key: name},
		{Type: "keyUp", Key: name},
	}
}

// Shortcut holds each of keys[:len(keys)-1] down, in order, dispatches a
// full keyDown/keyUp (or keyDown/char/keyUp) on the last key with the
// accumulated modifier mask applied, then releases the held keys in
// reverse order — one keyDown for each modifier with no text, one keyDown
// for the main key carrying the modifier mask, then symmetric keyUps in
// reverse.
func (s *Synthesizer) Shortcut(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	mods := keys[:len(keys)-1]
	main := keys[len(keys)-1]

	held := make([]string, 0, len(mods))
	for _, m := range mods {
		name := kb.ResolveName(m)
		down, ok := kb.DownEvent(name)
		if !ok {
			return fmt.Errorf("input: unknown modifier key %q", m)
		}
		down.Modifiers = s.heldModifiers(sessionID)
		if err := s.dispatchKey(ctx, sessionID, down); err != nil {
			return err
		}
		s.setHeld(sessionID, name, true)
		held = append(held, name)
	}

	pressErr := s.Press(ctx, sessionID, main)

	var releaseErr error
	for i := len(held) - 1; i >= 0; i-- {
		name := held[i]
		s.setHeld(sessionID, name, false)
		up, _ := kb.UpEvent(name)
		up.Modifiers = s.heldModifiers(sessionID)
		if err := s.dispatchKey(ctx, sessionID, up); err != nil && releaseErr == nil {
			releaseErr = err
		}
	}
	if pressErr != nil {
		return pressErr
	}
	return releaseErr
}

func (s *Synthesizer) dispatchKey(ctx context.Context, sessionID string, ev kb.EventParams) error {
	params := map[string]any{
		"type": ev.Type,
	}
	if ev.Key != "" {
		params["key"] = ev.Key
	}
	if ev.Code != "" {
		params["code"] = ev.Code
	}
	if ev.Text != "" {
		params["text"] = ev.Text
	}
	if ev.UnmodifiedText != "" {
		params["unmodifiedText"] = ev.UnmodifiedText
	}
	if ev.NativeVirtualKeyCode != 0 {
		params["nativeVirtualKeyCode"] = ev.NativeVirtualKeyCode
	}
	if ev.WindowsVirtualKeyCode != 0 {
		params["windowsVirtualKeyCode"] = ev.WindowsVirtualKeyCode
	}
	if ev.Modifiers != 0 {
		params["modifiers"] = ev.Modifiers
	}
	b, _ := json.Marshal(params)
	_, err := s.m.Send(ctx, "Input.dispatchKeyEvent", rawJSON(b), sessionID)
	return err
}

func (s *Synthesizer) interKeyDelay(ctx context.Context, justTyped rune) error {
	d := s.uniform(s.Keyboard.MinDelay, s.Keyboard.MaxDelay)
	switch justTyped {
	case '.', '!', '?':
		d += s.uniform(s.Keyboard.SentencePauseMin, s.Keyboard.SentencePauseMax)
	case ' ':
		if s.randFloat() < s.Keyboard.WordPauseProbability {
			d += s.uniform(s.Keyboard.WordPauseMin, s.Keyboard.WordPauseMax)
		}
	}
	return s.sleep(ctx, d)
}

func (s *Synthesizer) delay(ctx context.Context) error {
	return s.interKeyDelay(ctx, 0)
}

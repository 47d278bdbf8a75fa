package input

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kuromi/browser-core/input/kb"
)

func dispatchedKeyEvents(rt *recordingTransport) []kb.EventParams {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	var out []kb.EventParams
	for _, w := range rt.writes {
		if w.Method != "Input.dispatchKeyEvent" {
			continue
		}
		var p struct {
			Type                  string `json:"type"`
			Key                   string `json:"key"`
			Code                  string `json:"code"`
			Text                  string `json:"text"`
			Modifiers             int64  `json:"modifiers"`
			NativeVirtualKeyCode  int64  `json:"nativeVirtualKeyCode"`
			WindowsVirtualKeyCode int64  `json:"windowsVirtualKeyCode"`
		}
		_ = json.Unmarshal(w.Params, &p)
		out = append(out, kb.EventParams{
			Type:                  p.Type,
			Key:                   p.Key,
			Code:                  p.Code,
			Text:                  p.Text,
			Modifiers:             p.Modifiers,
			NativeVirtualKeyCode:  p.NativeVirtualKeyCode,
			WindowsVirtualKeyCode: p.WindowsVirtualKeyCode,
		})
	}
	return out
}

func TestPressNamedKeyDispatchesBackspace(t *testing.T) {
	s, rt := newTestSynth(t)
	if err := s.Press(context.Background(), "sess", "Backspace"); err != nil {
		t.Fatalf("Press: %v", err)
	}
	evs := dispatchedKeyEvents(rt)
	if len(evs) != 2 {
		t.Fatalf("expected keyDown+keyUp, got %d events: %+v", len(evs), evs)
	}
	if evs[0].Type != "keyDown" || evs[0].Key != "Backspace" {
		t.Fatalf("unexpected first event: %+v", evs[0])
	}
	if evs[1].Type != "keyUp" || evs[1].Key != "Backspace" {
		t.Fatalf("unexpected second event: %+v", evs[1])
	}
}

func TestPressResolvesAlias(t *testing.T) {
	s, rt := newTestSynth(t)
	if err := s.Press(context.Background(), "sess", "Esc"); err != nil {
		t.Fatalf("Press: %v", err)
	}
	evs := dispatchedKeyEvents(rt)
	if len(evs) != 2 || evs[0].Key != "Escape" {
		t.Fatalf("expected alias Esc to resolve to Escape, got %+v", evs)
	}
}

// TestShortcutModifierMaskAndOrder: Shortcut("Control",
// "a") must dispatch a keyDown for Control with no text, then a keyDown for
// "a" carrying the Control bit in its modifier mask, then symmetric keyUps
// in reverse order.
func TestShortcutModifierMaskAndOrder(t *testing.T) {
	s, rt := newTestSynth(t)
	if err := s.Shortcut(context.Background(), "sess", "Control", "a"); err != nil {
		t.Fatalf("Shortcut: %v", err)
	}
	evs := dispatchedKeyEvents(rt)
	if len(evs) < 4 {
		t.Fatalf("expected at least 4 key events, got %d: %+v", len(evs), evs)
	}
	if evs[0].Type != "keyDown" || evs[0].Key != "Control" || evs[0].Text != "" {
		t.Fatalf("first event should be Control keyDown with no text, got %+v", evs[0])
	}
	var aDown kb.EventParams
	found := false
	for _, ev := range evs {
		if ev.Type == "keyDown" && ev.Key == "a" {
			aDown = ev
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("no keyDown for 'a' found in %+v", evs)
	}
	if aDown.Modifiers&kb.ModifierControl == 0 {
		t.Fatalf("expected 'a' keyDown to carry ModifierControl, got modifiers=%d", aDown.Modifiers)
	}
	last := evs[len(evs)-1]
	if last.Type != "keyUp" || last.Key != "Control" {
		t.Fatalf("expected the final event to be Control's keyUp (reverse release order), got %+v", last)
	}
}

func TestPressUnknownNameSentVerbatim(t *testing.T) {
	s, rt := newTestSynth(t)
	if err := s.Press(context.Background(), "sess", "MediaPlayPause"); err != nil {
		t.Fatalf("Press: %v", err)
	}
	evs := dispatchedKeyEvents(rt)
	if len(evs) != 2 {
		t.Fatalf("expected keyDown+keyUp, got %+v", evs)
	}
	if evs[0].Key != "MediaPlayPause" || evs[0].WindowsVirtualKeyCode != 0 {
		t.Fatalf("unknown key should be sent verbatim with keyCode 0, got %+v", evs[0])
	}
}

func TestHeldModifiersClearedAfterShortcut(t *testing.T) {
	s, _ := newTestSynth(t)
	if err := s.Shortcut(context.Background(), "sess", "Control", "a"); err != nil {
		t.Fatalf("Shortcut: %v", err)
	}
	if mask := s.heldModifiers("sess"); mask != 0 {
		t.Fatalf("expected no held modifiers after Shortcut completes, got mask=%d", mask)
	}
}

package browsercore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestConnectAndClose(t *testing.T) {
	f := newFakeCDPServer(t)
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b, err := Connect(ctx, f.wsURL())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if b.Bus() == nil || b.Hooks() == nil {
		t.Fatalf("expected Bus and Hooks to be non-nil")
	}
	if err := b.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// closing twice must be a no-op, not an error or panic.
	if err := b.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestNewPage(t *testing.T) {
	f := newFakeCDPServer(t)
	defer f.Close()

	const targetID = "TARGET-1"
	const sessionID = "SESSION-1"

	f.onOK("Target.createTarget", rawf(`{"targetId":%q}`, targetID))
	f.onOK("Target.attachToTarget", rawf(`{"sessionId":%q}`, sessionID))
	f.onOK("Page.enable", nil)
	f.onOK("DOM.enable", nil)
	f.onOK("Runtime.enable", nil)
	f.onOK("Network.enable", nil)
	f.onOK("DOM.getDocument", rawf(`{"root":{"nodeId":1}}`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b, err := Connect(ctx, f.wsURL())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer b.Close(ctx)

	p, err := b.NewPage(ctx)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if p.Sess.SessionID != sessionID {
		t.Fatalf("expected session id %q, got %q", sessionID, p.Sess.SessionID)
	}
	if p.ID == "" {
		t.Fatalf("expected a non-empty process-local Page ID")
	}

	b.mu.Lock()
	_, tracked := b.pages[sessionID]
	b.mu.Unlock()
	if !tracked {
		t.Fatalf("expected Browser to track the new Page by session id")
	}
}

func TestNewPageFailsWhenCreateTargetErrors(t *testing.T) {
	f := newFakeCDPServer(t)
	defer f.Close()

	f.on("Target.createTarget", func(wireMessage) (json.RawMessage, error) {
		return nil, errors.New("no more targets")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b, err := Connect(ctx, f.wsURL())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer b.Close(ctx)

	if _, err := b.NewPage(ctx); err == nil {
		t.Fatalf("expected NewPage to fail when Target.createTarget errors")
	}
}

package domsvc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kuromi/browser-core/transport"
)

func TestBoundingBoxComputesAABBFromContentQuad(t *testing.T) {
	st := newScriptedTransport()
	svc, _ := newTestService(t, st)

	st.respond["DOM.getBoxModel"] = func(id int64) transport.Message {
		return transport.Message{ID: id, Result: json.RawMessage(
			`{"model":{"content":[10,20, 110,20, 110,70, 10,70]}}`)}
	}

	el := svc.elementFromNodeID(42)
	box, err := el.BoundingBox(context.Background())
	if err != nil {
		t.Fatalf("BoundingBox: %v", err)
	}
	if box.X != 10 || box.Y != 20 || box.Width != 100 || box.Height != 50 {
		t.Fatalf("unexpected box: %+v", box)
	}
	cx, cy := box.center()
	if cx != 60 || cy != 45 {
		t.Fatalf("unexpected center: (%v, %v)", cx, cy)
	}
}

func TestBoundingBoxNilWhenNotLaidOut(t *testing.T) {
	st := newScriptedTransport()
	svc, _ := newTestService(t, st)

	st.respond["DOM.getBoxModel"] = func(id int64) transport.Message {
		return transport.Message{ID: id, Result: json.RawMessage(`{"model":{"content":[]}}`)}
	}

	el := svc.elementFromNodeID(7)
	box, err := el.BoundingBox(context.Background())
	if err != nil {
		t.Fatalf("BoundingBox: %v", err)
	}
	if box != nil {
		t.Fatalf("expected nil box, got %+v", box)
	}
}

func TestAttrReadsViaCallFunctionOn(t *testing.T) {
	st := newScriptedTransport()
	svc, _ := newTestService(t, st)

	st.respond["DOM.resolveNode"] = func(id int64) transport.Message {
		return transport.Message{ID: id, Result: json.RawMessage(`{"object":{"objectId":"obj-1"}}`)}
	}
	st.respond["Runtime.callFunctionOn"] = func(id int64) transport.Message {
		return transport.Message{ID: id, Result: json.RawMessage(`{"result":{"type":"string","value":"submit"}}`)}
	}

	el := svc.elementFromNodeID(3)
	val, ok, err := el.Attr(context.Background(), "type")
	if err != nil {
		t.Fatalf("Attr: %v", err)
	}
	if !ok || val != "submit" {
		t.Fatalf("expected (submit, true), got (%q, %v)", val, ok)
	}
}

func TestSetAttrSendsDOMSetAttributeValue(t *testing.T) {
	st := newScriptedTransport()
	svc, _ := newTestService(t, st)

	st.respond["DOM.setAttributeValue"] = func(id int64) transport.Message {
		return transport.Message{ID: id, Result: json.RawMessage(`{}`)}
	}

	el := svc.elementFromNodeID(9)
	if err := el.SetAttr(context.Background(), "data-x", "1"); err != nil {
		t.Fatalf("SetAttr: %v", err)
	}
}

func TestStaleHandleRejectsOperations(t *testing.T) {
	st := newScriptedTransport()
	svc, _ := newTestService(t, st)

	el := svc.elementFromNodeID(1)
	svc.generation.Add(1)

	if _, _, err := el.Attr(context.Background(), "id"); err == nil {
		t.Fatalf("expected stale error")
	}
	if err := el.Focus(context.Background()); err == nil {
		t.Fatalf("expected stale error")
	}
	if _, err := el.BoundingBox(context.Background()); err == nil {
		t.Fatalf("expected stale error")
	}
}

package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestEmitDispatchesToAllListeners(t *testing.T) {
	b := NewBus()
	var got []string
	b.On("tick", func(payload any) { got = append(got, "a:"+payload.(string)) })
	b.On("tick", func(payload any) { got = append(got, "b:"+payload.(string)) })

	b.Emit("tick", "x")

	if len(got) != 2 || got[0] != "a:x" || got[1] != "b:x" {
		t.Fatalf("got %v", got)
	}
}

func TestOnceListenerFiresOnlyOnce(t *testing.T) {
	b := NewBus()
	calls := 0
	b.Once("tick", func(any) { calls++ })

	b.Emit("tick", nil)
	b.Emit("tick", nil)

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestOffRemovesListener(t *testing.T) {
	b := NewBus()
	calls := 0
	id := b.On("tick", func(any) { calls++ })

	if !b.Off("tick", id) {
		t.Fatal("expected Off to find the listener")
	}
	b.Emit("tick", nil)

	if calls != 0 {
		t.Fatalf("expected 0 calls after Off, got %d", calls)
	}
}

func TestAsyncListenerDoesNotBlockEmit(t *testing.T) {
	b := NewBus()
	release := make(chan struct{})
	started := make(chan struct{})
	b.On("tick", func(any) {
		close(started)
		<-release
	}, Async())

	done := make(chan struct{})
	go func() {
		b.Emit("tick", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit should not block on an async listener")
	}
	<-started
	close(release)
}

func TestWaitForReturnsPayloadOnEmit(t *testing.T) {
	b := NewBus()
	go func() {
		time.Sleep(5 * time.Millisecond)
		b.Emit("ready", "done")
	}()

	payload, err := b.WaitFor(context.Background(), "ready", time.Second)
	if err != nil {
		t.Fatalf("WaitFor: %v", err)
	}
	if payload.(string) != "done" {
		t.Fatalf("got %v", payload)
	}
}

func TestWaitForTimesOut(t *testing.T) {
	b := NewBus()
	_, err := b.WaitFor(context.Background(), "never", 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestListenerPanicDoesNotCrashEmit(t *testing.T) {
	b := NewBus()
	after := false
	b.On("tick", func(any) { panic("boom") })
	b.On("tick", func(any) { after = true })

	b.Emit("tick", nil)

	if !after {
		t.Fatal("expected listener after the panicking one to still run")
	}
}

package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSubscribePublish(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	if b.Count() != 1 {
		t.Fatalf("Count = %d, want 1", b.Count())
	}

	b.Publish(Event{Type: EventTreeChanged, Trigger: "manual"})

	select {
	case ev := <-ch:
		if ev.Type != EventTreeChanged {
			t.Errorf("Type = %q, want %q", ev.Type, EventTreeChanged)
		}
		if ev.Timestamp == 0 {
			t.Error("Timestamp should be set")
		}
		if ev.ID == "" {
			t.Error("ID should be set")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestMultipleSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	b.Publish(Event{Type: EventTreeWiped})

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != EventTreeWiped {
				t.Errorf("subscriber %d: Type = %q", i, ev.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
	if b.Count() != 0 {
		t.Errorf("Count = %d, want 0", b.Count())
	}
}

func TestSlowConsumerDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			b.Publish(Event{Type: EventTreeChanged})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow consumer")
	}
	if len(ch) != 64 {
		t.Errorf("buffered = %d, want 64", len(ch))
	}
}

func TestMarshalEvent(t *testing.T) {
	data, err := MarshalEvent(Event{ID: "x", Type: EventNotice, Message: "Login to browse courses and tasks!", Timestamp: 1})
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["type"] != EventNotice {
		t.Errorf("type = %v", decoded["type"])
	}
	if _, ok := decoded["trigger"]; ok {
		t.Error("empty trigger should be omitted")
	}
}

package events

import (
	"sync"
	"testing"
	"time"
)

func TestSubscribeReceivesMatchingType(t *testing.T) {
	eb := NewEventBus()
	got := make(chan Event, 1)
	eb.Subscribe(EventModeSwitched, func(e Event) { got <- e })

	eb.PublishModeSwitched("continuous", "recovery", "R_10", 3, 42.5)

	select {
	case e := <-got:
		if e.Type != EventModeSwitched {
			t.Errorf("type = %s", e.Type)
		}
		if e.Data["loss_streak"] != 3 {
			t.Errorf("loss_streak = %v", e.Data["loss_streak"])
		}
		if e.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never called")
	}
}

func TestSubscriberIgnoresOtherTypes(t *testing.T) {
	eb := NewEventBus()
	got := make(chan Event, 1)
	eb.Subscribe(EventEmergencyHalt, func(e Event) { got <- e })

	eb.PublishTradeClosed("R_10", "c1", 2.0, 0.03, 500, true)

	select {
	case e := <-got:
		t.Errorf("unexpected event %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAll(t *testing.T) {
	eb := NewEventBus()
	var mu sync.Mutex
	count := 0
	done := make(chan struct{}, 3)
	eb.SubscribeAll(func(e Event) {
		mu.Lock()
		count++
		mu.Unlock()
		done <- struct{}{}
	})

	eb.PublishEmergencyHalt("boom")
	eb.PublishRiskReduced(2, 0.7225, 1.4)
	eb.PublishError("engine", "analysis failed", nil)

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestBroadcastCallbacks(t *testing.T) {
	got := make(chan interface{}, 1)
	SetBroadcastStatus(func(data interface{}) { got <- data })
	defer SetBroadcastStatus(nil)

	BroadcastStatus("snapshot")
	select {
	case v := <-got:
		if v != "snapshot" {
			t.Errorf("data = %v", v)
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast callback never fired")
	}
}

func TestBroadcastWithoutCallbackIsNoop(t *testing.T) {
	SetBroadcastEvent(nil)
	BroadcastEvent("ignored") // must not panic
}

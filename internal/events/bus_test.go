package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan PhotoCapturedEvent, 1)

	unsub := bus.Subscribe(func(e PhotoCapturedEvent) {
		received <- e
	})
	defer unsub()

	ev := PhotoCapturedEvent{
		JobID:     "job-1",
		CameraID:  "0",
		Sensor:    "BACK",
		Path:      "/tmp/a.jpg",
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(ev)

	got := <-received
	if got.Path != ev.Path {
		t.Errorf("Expected path %s, got %s", ev.Path, got.Path)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan SessionStateChangedEvent, 1)
	received2 := make(chan SessionStateChangedEvent, 1)

	unsub1 := bus.Subscribe(func(e SessionStateChangedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e SessionStateChangedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(SessionStateChangedEvent{SessionID: "s1", From: "configuring", To: "active"})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan PhotoFailedEvent, 1)

	unsub := bus.Subscribe(func(e PhotoFailedEvent) {
		received <- e
	})

	bus.Publish(PhotoFailedEvent{Path: "/tmp/a.jpg"})
	<-received

	unsub()

	bus.Publish(PhotoFailedEvent{Path: "/tmp/b.jpg"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	photoReceived := make(chan bool, 1)
	switchReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ PhotoCapturedEvent) {
		photoReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ SensorSwitchedEvent) {
		switchReceived <- true
	})
	defer unsub2()

	bus.Publish(PhotoCapturedEvent{Path: "/tmp/a.jpg"})
	<-photoReceived

	select {
	case <-switchReceived:
		t.Fatal("Switch subscriber should NOT have received PhotoCapturedEvent")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(SensorSwitchedEvent{From: "BACK", To: "FRONT", Success: true})
	<-switchReceived

	select {
	case <-photoReceived:
		t.Fatal("Photo subscriber should NOT have received SensorSwitchedEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ PreviewRequestEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(PreviewRequestEvent{
					CameraID:  "0",
					Zoom:      1.0,
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"SessionStateChanged", SessionStateChangedEvent{SessionID: "s1"}},
		{"PreviewRequest", PreviewRequestEvent{CameraID: "0"}},
		{"PhotoCaptured", PhotoCapturedEvent{JobID: "j1"}},
		{"PhotoFailed", PhotoFailedEvent{JobID: "j1"}},
		{"SensorSwitched", SensorSwitchedEvent{To: "FRONT"}},
		{"ListenerFailed", ListenerFailedEvent{Listener: "preview"}},
		{"LogEntry", LogEntryEvent{Seq: 1, Message: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case SessionStateChangedEvent:
				unsub = bus.Subscribe(func(e SessionStateChangedEvent) { received <- e })
			case PreviewRequestEvent:
				unsub = bus.Subscribe(func(e PreviewRequestEvent) { received <- e })
			case PhotoCapturedEvent:
				unsub = bus.Subscribe(func(e PhotoCapturedEvent) { received <- e })
			case PhotoFailedEvent:
				unsub = bus.Subscribe(func(e PhotoFailedEvent) { received <- e })
			case SensorSwitchedEvent:
				unsub = bus.Subscribe(func(e SensorSwitchedEvent) { received <- e })
			case ListenerFailedEvent:
				unsub = bus.Subscribe(func(e ListenerFailedEvent) { received <- e })
			case LogEntryEvent:
				unsub = bus.Subscribe(func(e LogEntryEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	if unsub == nil {
		t.Fatal("Expected a no-op unsubscribe for unknown handler types")
	}
	unsub()
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[PhotoCapturedEvent](bus, ch)
	defer unsub()

	ev := PhotoCapturedEvent{JobID: "job-1", Path: "/tmp/a.jpg"}
	bus.Publish(ev)

	received := <-ch
	photo, ok := received.(PhotoCapturedEvent)
	if !ok {
		t.Fatalf("Expected PhotoCapturedEvent, got %T", received)
	}
	if photo.JobID != ev.JobID {
		t.Errorf("Expected job_id %s, got %s", ev.JobID, photo.JobID)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := SubscribeToChannel[SensorSwitchedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(SensorSwitchedEvent{To: "FRONT"})
		done <- true
	}()

	<-done
}

func TestBus_EveryTypeRouted(t *testing.T) {
	for typ := TypeSessionStateChanged; typ <= TypeLogEntry; typ++ {
		if _, ok := routes[typ]; !ok {
			t.Errorf("event type %d has no route", typ)
		}
	}
}

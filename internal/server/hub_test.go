package server

import (
	"testing"
	"time"
)

func TestHubBroadcastDeliversToAllSubscribers(t *testing.T) {
	hub := NewHub(nil)
	first := hub.Subscribe()
	second := hub.Subscribe()
	defer hub.Unsubscribe(first.ID)
	defer hub.Unsubscribe(second.ID)

	reading := Reading{Timestamp: time.Now(), HeartRate: 72}
	hub.Broadcast(reading)

	for _, subscriber := range []*Subscriber{first, second} {
		select {
		case received := <-subscriber.C:
			if received.HeartRate != reading.HeartRate {
				t.Fatalf("expected heartRate %v, got %v", reading.HeartRate, received.HeartRate)
			}
		case <-time.After(time.Second):
			t.Fatal("expected broadcast reading")
		}
	}
}

func TestHubPreservesOrderPerSubscriber(t *testing.T) {
	hub := NewHub(nil)
	subscriber := hub.Subscribe()
	defer hub.Unsubscribe(subscriber.ID)

	for i := 0; i < 10; i++ {
		hub.Broadcast(Reading{HeartRate: float64(i)})
	}

	for i := 0; i < 10; i++ {
		select {
		case received := <-subscriber.C:
			if received.HeartRate != float64(i) {
				t.Fatalf("expected reading %d in order, got %v", i, received.HeartRate)
			}
		case <-time.After(time.Second):
			t.Fatalf("missing reading %d", i)
		}
	}
}

func TestHubUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	subscriber := hub.Subscribe()

	hub.Unsubscribe(subscriber.ID)
	hub.Unsubscribe(subscriber.ID)

	if count := hub.Count(); count != 0 {
		t.Fatalf("expected no subscribers, got %d", count)
	}

	if _, open := <-subscriber.C; open {
		t.Fatal("expected closed channel")
	}
}

func TestHubDropsStalledSubscriberOnly(t *testing.T) {
	hub := NewHub(nil)

	stalled := hub.Subscribe()
	for i := 0; i < subscriberBuffer; i++ {
		hub.Broadcast(Reading{HeartRate: float64(i)})
	}

	healthy := hub.Subscribe()
	defer hub.Unsubscribe(healthy.ID)

	// The stalled subscriber's buffer is full; this delivery drops it and
	// still reaches the healthy one.
	hub.Broadcast(Reading{HeartRate: 200})

	select {
	case received := <-healthy.C:
		if received.HeartRate != 200 {
			t.Fatalf("expected heartRate 200, got %v", received.HeartRate)
		}
	case <-time.After(time.Second):
		t.Fatal("expected delivery to healthy subscriber")
	}

	if count := hub.Count(); count != 1 {
		t.Fatalf("expected only the healthy subscriber, got %d", count)
	}

	// Drain the stalled subscriber's buffer; the close marks the drop.
	for i := 0; i < subscriberBuffer; i++ {
		<-stalled.C
	}
	select {
	case _, open := <-stalled.C:
		if open {
			t.Fatal("expected stalled subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("expected closed channel for stalled subscriber")
	}

	// A later broadcast reaches only the survivor.
	hub.Broadcast(Reading{HeartRate: 201})
	select {
	case received := <-healthy.C:
		if received.HeartRate != 201 {
			t.Fatalf("expected heartRate 201, got %v", received.HeartRate)
		}
	case <-time.After(time.Second):
		t.Fatal("expected second delivery to healthy subscriber")
	}
}

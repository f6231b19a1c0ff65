package events

import (
	"testing"
	"time"
)

func TestBusDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewBus()
	created := bus.Subscribe(EventAssignmentCreated)
	unassigned := bus.Subscribe(EventAssignmentUnassigned)

	bus.Publish(EventAssignmentCreated, Payload{"assignment_id": "a1"})

	select {
	case p := <-created:
		if p["assignment_id"] != "a1" {
			t.Fatalf("payload = %v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("created subscriber did not receive event")
	}

	select {
	case p := <-unassigned:
		t.Fatalf("unassigned subscriber got %v", p)
	default:
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventAssignmentRejected)
	for i := 0; i < cap(sub)+5; i++ {
		bus.Publish(EventAssignmentRejected, Payload{"n": i})
	}
	if len(sub) != cap(sub) {
		t.Fatalf("buffered = %d, want %d", len(sub), cap(sub))
	}
	if got := bus.Dropped(); got != 5 {
		t.Fatalf("dropped = %d, want 5", got)
	}
}

func TestBusWithBufferClampsToOne(t *testing.T) {
	bus := NewBusWithBuffer(0)
	if sub := bus.Subscribe(EventAssignmentCreated); cap(sub) != 1 {
		t.Fatalf("cap = %d, want 1", cap(sub))
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventAssignmentCreated)
	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-sub; ok {
		t.Fatal("expected subscriber closed by Close")
	}
	// Unsubscribing after Close must not double-close.
	bus.Unsubscribe(EventAssignmentCreated, sub)
	bus.Publish(EventAssignmentCreated, Payload{})

	if _, ok := <-bus.Subscribe(EventAssignmentCreated); ok {
		t.Fatal("subscribe after Close should return a closed channel")
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventAssignmentCreated)
	bus.Unsubscribe(EventAssignmentCreated, sub)

	if _, ok := <-sub; ok {
		t.Fatal("expected closed channel")
	}
	bus.Publish(EventAssignmentCreated, Payload{})
}

var _ Broker = (*Bus)(nil)

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import (
	"sync"
	"sync/atomic"

	"github.com/friendsincode/haulroster/internal/telemetry"
)

// EventType names an assignment lifecycle event.
type EventType string

const (
	EventAssignmentCreated    EventType = "assignment.created"
	EventAssignmentUnassigned EventType = "assignment.unassigned"
	EventAssignmentRejected   EventType = "assignment.rejected"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 32

// Publisher is the write side of a bus. The dispatch service only publishes.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Broker is a bus that also hands out subscriptions and owns resources.
type Broker interface {
	Publisher
	Subscribe(eventType EventType) Subscriber
	Unsubscribe(eventType EventType, sub Subscriber)
	Close() error
}

// Payload is the event body. Values must survive a JSON round trip so
// that remote brokers can relay them.
type Payload map[string]any

// Subscriber receives event payloads. It is closed on Unsubscribe or when
// the bus closes.
type Subscriber chan Payload

// Bus is an in-process pubsub. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventType][]Subscriber
	buffer int
	closed bool

	dropped atomic.Uint64
}

// NewBus creates a bus with DefaultBuffer per subscriber.
func NewBus() *Bus {
	return NewBusWithBuffer(DefaultBuffer)
}

// NewBusWithBuffer creates a bus whose subscribers queue up to n events.
func NewBusWithBuffer(n int) *Bus {
	if n < 1 {
		n = 1
	}
	return &Bus{subs: make(map[EventType][]Subscriber), buffer: n}
}

// Subscribe registers a subscriber for eventType. Subscribing to a closed
// bus returns a closed channel.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[eventType] = append(b.subs[eventType], ch)
	return ch
}

func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs[eventType] {
		select {
		case sub <- payload:
		default:
			b.dropped.Add(1)
			telemetry.EventsDroppedTotal.WithLabelValues(string(eventType)).Inc()
		}
	}
}

// Unsubscribe removes and closes sub. Unknown subscribers are ignored.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Dropped reports how many deliveries were skipped for full buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber. Later publishes are no-ops.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for eventType, subs := range b.subs {
		for _, sub := range subs {
			close(sub)
		}
		delete(b.subs, eventType)
	}
	return nil
}

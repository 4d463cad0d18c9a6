// Package server implements the per-room multicast topic that fans live events
// out to every subscribed session.
package server

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Topic delivers events published to one room to every current subscriber, in
// publish order. Delivery is best effort: a subscriber whose queue is full
// misses the event and the publisher carries on.
type Topic struct {
	roomID   uuid.UUID
	capacity int

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Subscription is one receiver attached to a Topic.
type Subscription struct {
	topic   *Topic
	events  chan ServerEvent
	dropped atomic.Uint64
	once    sync.Once
}

func newTopic(roomID uuid.UUID, capacity int) *Topic {
	if capacity <= 0 {
		capacity = 1
	}
	return &Topic{
		roomID:   roomID,
		capacity: capacity,
		subs:     make(map[*Subscription]struct{}),
	}
}

// RoomID returns the room this topic carries.
func (t *Topic) RoomID() uuid.UUID {
	return t.roomID
}

// Subscribe registers a receiver that observes events published from now on.
func (t *Topic) Subscribe() *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub := &Subscription{
		topic:  t,
		events: make(chan ServerEvent, t.capacity),
	}
	t.subs[sub] = struct{}{}
	return sub
}

// Publish queues event for every subscriber and returns the number of
// subscribers that received it. It never blocks.
func (t *Topic) Publish(event ServerEvent) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	delivered := 0
	for sub := range t.subs {
		select {
		case sub.events <- event:
			delivered++
		default:
			sub.dropped.Add(1)
		}
	}
	return delivered
}

// SubscriberCount returns the number of open subscriptions.
func (t *Topic) SubscriberCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

func (t *Topic) unsubscribe(sub *Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.subs[sub]; !ok {
		return
	}
	delete(t.subs, sub)
	close(sub.events)
}

// Events returns the channel of delivered events. It is closed by Close.
func (s *Subscription) Events() <-chan ServerEvent {
	return s.events
}

// Dropped returns how many events were discarded because the queue was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription from its topic. It is safe to call more
// than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.topic.unsubscribe(s)
	})
}

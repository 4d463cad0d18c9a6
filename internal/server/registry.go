// Package server keeps the process-wide index from room id to its live topic.
package server

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type registryEntry struct {
	topic *Topic
	refs  int
}

// Registry maps room ids to topics. Exactly one topic exists per room id.
// Topics live for the lifetime of the registry unless idle eviction is
// enabled, in which case a topic is dropped once no session holds it.
type Registry struct {
	mu       sync.Mutex
	topics   map[uuid.UUID]*registryEntry
	capacity int
	evict    bool
	log      zerolog.Logger
}

// NewRegistry creates a registry whose topics buffer capacity events per
// subscriber.
func NewRegistry(capacity int, evictIdle bool, log zerolog.Logger) *Registry {
	return &Registry{
		topics:   make(map[uuid.UUID]*registryEntry),
		capacity: capacity,
		evict:    evictIdle,
		log:      log.With().Str("component", "registry").Logger(),
	}
}

// GetOrCreateTopic returns the topic for roomID, creating it on first access.
func (r *Registry) GetOrCreateTopic(roomID uuid.UUID) *Topic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entryLocked(roomID).topic
}

// Acquire returns the topic for roomID and records one more holder. Every
// Acquire must be paired with a Release.
func (r *Registry) Acquire(roomID uuid.UUID) *Topic {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.entryLocked(roomID)
	entry.refs++
	return entry.topic
}

// Release drops one holder of roomID's topic.
func (r *Registry) Release(roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.topics[roomID]
	if !ok {
		return
	}
	if entry.refs > 0 {
		entry.refs--
	}
	if r.evict && entry.refs == 0 && entry.topic.SubscriberCount() == 0 {
		delete(r.topics, roomID)
		r.log.Debug().Str("room_id", roomID.String()).Msg("evicted idle topic")
	}
}

// Len returns the number of topics currently indexed.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}

func (r *Registry) entryLocked(roomID uuid.UUID) *registryEntry {
	entry, ok := r.topics[roomID]
	if !ok {
		entry = &registryEntry{topic: newTopic(roomID, r.capacity)}
		r.topics[roomID] = entry
		r.log.Debug().Str("room_id", roomID.String()).Msg("created topic")
	}
	return entry
}

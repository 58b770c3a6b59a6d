package gateway

import (
	"sync"

	"github.com/google/uuid"

	"github.com/chukwukap/waffles/internal/events"
)

// EventRing keeps a small bounded window of recent events per game, used
// only to seed the join snapshot. It is not an offline buffer: a
// disconnected client gets a fresh snapshot, never a replay.
type EventRing struct {
	mu       sync.Mutex
	capacity int
	rings    map[uuid.UUID][]*events.Event
}

// NewEventRing creates a ring keeping the last capacity events per game.
func NewEventRing(capacity int) *EventRing {
	if capacity <= 0 {
		capacity = 32
	}
	return &EventRing{
		capacity: capacity,
		rings:    make(map[uuid.UUID][]*events.Event),
	}
}

// Add records an event for the game, evicting the oldest past capacity.
func (r *EventRing) Add(gameID uuid.UUID, event *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ring := append(r.rings[gameID], event)
	if len(ring) > r.capacity {
		ring = ring[len(ring)-r.capacity:]
	}
	r.rings[gameID] = ring
}

// Recent returns the buffered events for the game, oldest first.
func (r *EventRing) Recent(gameID uuid.UUID) []*events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	ring := r.rings[gameID]
	out := make([]*events.Event, len(ring))
	copy(out, ring)
	return out
}

// Drop discards the game's buffer once its channel is torn down.
func (r *EventRing) Drop(gameID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rings, gameID)
}

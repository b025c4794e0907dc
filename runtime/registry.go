package runtime

import (
	"log/slog"
	"sync"

	"vdm-lab/contract"
	"vdm-lab/domain"
	"vdm-lab/domain/event"
)

type subscriberSet map[contract.Subscriber]struct{}

// Registry tracks the live transport endpoints subscribed to each room and
// performs ordered broadcast to them. It holds only delivery back-references,
// never room state.
type Registry struct {
	mu          sync.RWMutex
	log         *slog.Logger
	subscribers map[domain.RoomID]subscriberSet
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:         log,
		subscribers: make(map[domain.RoomID]subscriberSet),
	}
}

// Subscribe registers a transport under a room.
func (r *Registry) Subscribe(roomID domain.RoomID, sub contract.Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subscribers[roomID]; !ok {
		r.subscribers[roomID] = make(subscriberSet)
	}
	r.subscribers[roomID][sub] = struct{}{}
	r.log.Info("New connection", "room_id", roomID, "total", len(r.subscribers[roomID]))
}

// Unsubscribe removes a transport; it is idempotent and leaves no empty sets
// behind.
func (r *Registry) Unsubscribe(roomID domain.RoomID, sub contract.Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subscribers[roomID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(r.subscribers, roomID)
	}
}

// Count returns the number of live subscribers of a room.
func (r *Registry) Count(roomID domain.RoomID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers[roomID])
}

// Broadcast serializes the event once and hands the same frame to every
// subscriber of the room. Delivery is a non-blocking enqueue into each
// subscriber's own queue, so one slow or broken endpoint cannot stall the
// others; a subscriber that refuses the frame is dropped and logged. Within
// one room, sequential Broadcast calls reach each remaining subscriber in
// issue order.
func (r *Registry) Broadcast(roomID domain.RoomID, evt event.Outbound) {
	frame, err := event.Encode(evt)
	if err != nil {
		r.log.Error("Failed to encode outbound event", "kind", evt.Kind(), "error", err)
		return
	}

	r.mu.RLock()
	subs := make([]contract.Subscriber, 0, len(r.subscribers[roomID]))
	for sub := range r.subscribers[roomID] {
		subs = append(subs, sub)
	}
	r.mu.RUnlock()

	var failed []contract.Subscriber
	for _, sub := range subs {
		if err := sub.Deliver(frame); err != nil {
			r.log.Warn("Dropping unresponsive subscriber", "room_id", roomID, "error", err)
			failed = append(failed, sub)
		}
	}
	for _, sub := range failed {
		r.Unsubscribe(roomID, sub)
	}
}

// SendTo delivers an event to a single subscriber, for private notices that
// must not be broadcast.
func (r *Registry) SendTo(sub contract.Subscriber, evt event.Outbound) {
	frame, err := event.Encode(evt)
	if err != nil {
		r.log.Error("Failed to encode outbound event", "kind", evt.Kind(), "error", err)
		return
	}
	if err := sub.Deliver(frame); err != nil {
		r.log.Warn("Private delivery failed", "error", err)
	}
}

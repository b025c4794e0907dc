// Package runtime wires rooms, connections, and turn resolution together.
// It orchestrates the system without containing domain rules.
package runtime

import (
	"fmt"
	"log/slog"
	"sync"

	"vdm-lab/contract"
	"vdm-lab/domain"
	"vdm-lab/errors"
)

// Rooms holds every active room in memory, keyed by room id. It owns the
// id→room map exclusively; individual rooms carry their own locks.
type Rooms struct {
	mu    sync.Mutex
	log   *slog.Logger
	store contract.RoomStore
	rooms map[domain.RoomID]*domain.Room
}

func NewRooms(log *slog.Logger, store contract.RoomStore) *Rooms {
	return &Rooms{
		log:   log,
		store: store,
		rooms: make(map[domain.RoomID]*domain.Room),
	}
}

// GetOrCreate returns the in-memory room, loading a persisted snapshot on
// first reference or creating a fresh lobby when none exists. Creation is
// serialized under the map lock so exactly one room object ever exists per id,
// no matter how many connections race on it. Loaded participants are forced
// inactive: a restarted process has no live connections.
func (r *Rooms) GetOrCreate(id domain.RoomID) *domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[id]; ok {
		return room
	}

	if snapshot, found, err := r.store.Load(id); err != nil {
		r.log.Error("Failed to load room, starting fresh", "room_id", id, "error", err)
	} else if found {
		room := domain.FromSnapshot(snapshot)
		room.DeactivateAll()
		r.rooms[id] = room
		r.log.Info(fmt.Sprintf("Restored room '%s' from storage", id))
		return room
	}

	r.log.Info(fmt.Sprintf("Creating new room '%s'", id))
	room := domain.NewRoom(id)
	r.rooms[id] = room
	return room
}

// Get is a read-only lookup; it never creates.
func (r *Rooms) Get(id domain.RoomID) (*domain.Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	return room, ok
}

// Save snapshots an active room and hands it to the persistence collaborator.
// Saving a room that is not in memory is a no-op with a warning.
func (r *Rooms) Save(id domain.RoomID) error {
	r.mu.Lock()
	room, ok := r.rooms[id]
	r.mu.Unlock()
	if !ok {
		r.log.Warn("Attempted to save non-existent or inactive room", "room_id", id)
		return errors.ErrRoomNotLoaded
	}
	if err := r.store.Save(room.Snapshot()); err != nil {
		return fmt.Errorf("saving room %s: %w", id, err)
	}
	return nil
}

// All returns the rooms currently held in memory, for periodic autosave.
func (r *Rooms) All() []*domain.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

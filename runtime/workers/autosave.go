package workers

import (
	"context"
	"log/slog"
	"time"

	"vdm-lab/contract"
	"vdm-lab/domain"
)

// RoomLister exposes the rooms currently held in memory.
type RoomLister interface {
	All() []*domain.Room
}

// Autosave periodically snapshots every in-memory room to the persistence
// store, so a crash loses at most one interval of play.
type Autosave struct {
	rooms    RoomLister
	store    contract.RoomStore
	interval time.Duration
	log      *slog.Logger
}

func NewAutosave(rooms RoomLister, store contract.RoomStore,
	interval time.Duration, log *slog.Logger) *Autosave {
	return &Autosave{rooms: rooms, store: store, interval: interval, log: log}
}

func (w *Autosave) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping autosave worker")
			return nil
		case <-ticker.C:
			for _, room := range w.rooms.All() {
				if err := w.store.Save(room.Snapshot()); err != nil {
					w.log.Error("Autosave failed", "room_id", room.ID(), "error", err)
				}
			}
		}
	}
}

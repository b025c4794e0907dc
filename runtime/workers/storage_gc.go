package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const gcDiscardRatio = 0.5

// StorageGC periodically reclaims badger value-log space. Badger never runs
// value-log GC on its own, so a long-lived server needs this loop.
type StorageGC struct {
	db       *badger.DB
	interval time.Duration
	log      *slog.Logger
}

func NewStorageGC(db *badger.DB, interval time.Duration, log *slog.Logger) *StorageGC {
	return &StorageGC{db: db, interval: interval, log: log}
}

func (w *StorageGC) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping storage GC worker")
			return nil
		case <-ticker.C:
			// One call rewrites at most one value-log file; loop until
			// there is nothing left worth rewriting.
			for {
				if err := w.db.RunValueLogGC(gcDiscardRatio); err != nil {
					break
				}
				w.log.Debug("Reclaimed one value-log file")
			}
		}
	}
}

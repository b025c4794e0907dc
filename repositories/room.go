package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"vdm-lab/domain"
)

// RoomRepository persists room snapshots in BadgerDB under "room:{room_id}".
type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) RoomRepository {
	return RoomRepository{db: db, log: log}
}

func roomKey(id domain.RoomID) []byte {
	return []byte(fmt.Sprintf("room:%s", id))
}

func (r RoomRepository) Save(snapshot domain.Snapshot) error {
	bytes, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding room %s: %w", snapshot.RoomID, err)
	}
	r.log.Info(fmt.Sprintf("Saving session for room '%s'", snapshot.RoomID))
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(domain.RoomID(snapshot.RoomID)), bytes)
	})
}

func (r RoomRepository) Load(id domain.RoomID) (domain.Snapshot, bool, error) {
	var snapshot domain.Snapshot
	found := false
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			if err := json.Unmarshal(value, &snapshot); err != nil {
				return fmt.Errorf("decoding room %s: %w", id, err)
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	return snapshot, found, nil
}

package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"vdm-lab/contract"
)

// UserRepository persists registered accounts in BadgerDB under
// "user:{lowercase name}", so name lookups are case-insensitive by key.
type UserRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewUserRepository(db *badger.DB, log *slog.Logger) UserRepository {
	return UserRepository{db: db, log: log}
}

func userKey(name string) []byte {
	return []byte(fmt.Sprintf("user:%s", strings.ToLower(name)))
}

func (r UserRepository) Put(account contract.UserAccount) error {
	bytes, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("encoding account %s: %w", account.Name, err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(account.Name), bytes)
	})
}

func (r UserRepository) Get(name string) (contract.UserAccount, bool, error) {
	var account contract.UserAccount
	found := false
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(name))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			if err := json.Unmarshal(value, &account); err != nil {
				return fmt.Errorf("decoding account %s: %w", name, err)
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return contract.UserAccount{}, false, err
	}
	return account, found, nil
}

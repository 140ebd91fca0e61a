// Package badger stores keys and the announcement in an embedded BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/vovakirdan/keyroom-server/internal/store"
)

const (
	keyPrefix       = "key:"
	announcementKey = "announcement:latest"
)

// BadgerStore implements store.Store on a BadgerDB directory.
type BadgerStore struct {
	db *badger.DB
}

type record struct {
	Owner      string     `json:"owner"`
	Used       bool       `json:"used"`
	RedeemedBy string     `json:"redeemedBy,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	RedeemedAt *time.Time `json:"redeemedAt,omitempty"`
}

type announcementRecord struct {
	Latest    string    `json:"latest"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Open opens (or creates) a Badger database in dir.
func Open(dir string) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// LoadKeys iterates every key record.
func (s *BadgerStore) LoadKeys(_ context.Context) (store.KeyTable, error) {
	table := store.KeyTable{}
	prefix := []byte(keyPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			code := string(item.Key()[len(prefix):])

			var rec record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode key %s: %w", code, err)
			}

			table[code] = store.Key{
				Code:       code,
				Owner:      rec.Owner,
				Used:       rec.Used,
				RedeemedBy: rec.RedeemedBy,
				CreatedAt:  rec.CreatedAt,
				RedeemedAt: rec.RedeemedAt,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// SaveKeys replaces every key record inside a single transaction.
func (s *BadgerStore) SaveKeys(_ context.Context, table store.KeyTable) error {
	prefix := []byte(keyPrefix)

	return s.db.Update(func(txn *badger.Txn) error {
		var stale [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			if _, keep := table[string(k[len(prefix):])]; !keep {
				stale = append(stale, k)
			}
		}
		it.Close()

		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete stale key: %w", err)
			}
		}

		for code, k := range table {
			data, err := json.Marshal(record{
				Owner:      k.Owner,
				Used:       k.Used,
				RedeemedBy: k.RedeemedBy,
				CreatedAt:  k.CreatedAt,
				RedeemedAt: k.RedeemedAt,
			})
			if err != nil {
				return fmt.Errorf("encode key: %w", err)
			}
			if err := txn.Set([]byte(keyPrefix+code), data); err != nil {
				return fmt.Errorf("set key: %w", err)
			}
		}
		return nil
	})
}

// LoadAnnouncement reads the latest announcement.
func (s *BadgerStore) LoadAnnouncement(_ context.Context) (store.Announcement, error) {
	var rec announcementRecord

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(announcementKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return store.Announcement{}, store.ErrNotFound
		}
		return store.Announcement{}, fmt.Errorf("read announcement: %w", err)
	}

	return store.Announcement{Text: rec.Latest, UpdatedAt: rec.UpdatedAt}, nil
}

// SaveAnnouncement overwrites the latest announcement.
func (s *BadgerStore) SaveAnnouncement(_ context.Context, a store.Announcement) error {
	data, err := json.Marshal(announcementRecord{Latest: a.Text, UpdatedAt: a.UpdatedAt})
	if err != nil {
		return fmt.Errorf("encode announcement: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(announcementKey), data)
	})
}

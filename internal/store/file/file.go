// Package file persists keys and the announcement as JSON snapshot files.
// Every save rewrites the whole file through a temp file and a rename.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vovakirdan/keyroom-server/internal/store"
)

// FileStore implements store.Store on top of two JSON files.
type FileStore struct {
	keysPath         string
	announcementPath string

	mu sync.Mutex
}

// New creates a file store. Parent directories are created on first save.
func New(keysPath, announcementPath string) *FileStore {
	return &FileStore{
		keysPath:         keysPath,
		announcementPath: announcementPath,
	}
}

// diskKey is the on-disk shape of a key entry.
// User is the field name older key files used for the owner.
type diskKey struct {
	Owner      string     `json:"owner,omitempty"`
	User       string     `json:"user,omitempty"`
	Used       bool       `json:"used"`
	RedeemedBy string     `json:"redeemedBy,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	RedeemedAt *time.Time `json:"redeemedAt,omitempty"`
}

type diskAnnouncement struct {
	Latest    string     `json:"latest"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Close is a no-op; files are not held open between operations.
func (s *FileStore) Close() error {
	return nil
}

// ==== KeyStore implementation ====

// LoadKeys reads the key table. A missing file yields an empty table.
func (s *FileStore) LoadKeys(_ context.Context) (store.KeyTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.keysPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store.KeyTable{}, nil
		}
		return nil, fmt.Errorf("read keys file: %w", err)
	}

	var raw map[string]diskKey
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode keys file: %w", err)
	}

	table := make(store.KeyTable, len(raw))
	for code, dk := range raw {
		owner := dk.Owner
		if owner == "" {
			owner = dk.User
		}
		k := store.Key{
			Code:       code,
			Owner:      owner,
			Used:       dk.Used,
			RedeemedBy: dk.RedeemedBy,
			RedeemedAt: dk.RedeemedAt,
		}
		if dk.CreatedAt != nil {
			k.CreatedAt = *dk.CreatedAt
		}
		table[code] = k
	}
	return table, nil
}

// SaveKeys rewrites the key table file.
func (s *FileStore) SaveKeys(_ context.Context, table store.KeyTable) error {
	raw := make(map[string]diskKey, len(table))
	for code, k := range table {
		dk := diskKey{
			Owner:      k.Owner,
			Used:       k.Used,
			RedeemedBy: k.RedeemedBy,
			RedeemedAt: k.RedeemedAt,
		}
		if !k.CreatedAt.IsZero() {
			created := k.CreatedAt
			dk.CreatedAt = &created
		}
		raw[code] = dk
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode keys: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(s.keysPath, data)
}

// ==== AnnouncementStore implementation ====

// LoadAnnouncement reads the announcement file.
func (s *FileStore) LoadAnnouncement(_ context.Context) (store.Announcement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.announcementPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store.Announcement{}, store.ErrNotFound
		}
		return store.Announcement{}, fmt.Errorf("read announcement file: %w", err)
	}

	var raw diskAnnouncement
	if err := json.Unmarshal(data, &raw); err != nil {
		return store.Announcement{}, fmt.Errorf("decode announcement file: %w", err)
	}

	a := store.Announcement{Text: raw.Latest}
	if raw.UpdatedAt != nil {
		a.UpdatedAt = *raw.UpdatedAt
	}
	return a, nil
}

// SaveAnnouncement rewrites the announcement file.
func (s *FileStore) SaveAnnouncement(_ context.Context, a store.Announcement) error {
	raw := diskAnnouncement{Latest: a.Text}
	if !a.UpdatedAt.IsZero() {
		updated := a.UpdatedAt
		raw.UpdatedAt = &updated
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode announcement: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeFileAtomic(s.announcementPath, data)
}

// writeFileAtomic replaces path with data via a temp file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

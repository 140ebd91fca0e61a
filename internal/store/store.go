package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a persisted value has never been written.
var ErrNotFound = errors.New("not found")

// Key is a one-time login key as persisted.
// Used only ever moves from false to true; keys are never deleted.
type Key struct {
	Code       string
	Owner      string
	Used       bool
	RedeemedBy string
	CreatedAt  time.Time
	RedeemedAt *time.Time
}

// KeyTable maps a key code to its record.
type KeyTable map[string]Key

// Clone returns a deep copy of the table.
func (t KeyTable) Clone() KeyTable {
	out := make(KeyTable, len(t))
	for code, k := range t {
		if k.RedeemedAt != nil {
			at := *k.RedeemedAt
			k.RedeemedAt = &at
		}
		out[code] = k
	}
	return out
}

// Announcement is the single current operator announcement.
type Announcement struct {
	Text      string
	UpdatedAt time.Time
}

// KeyStore persists the whole key table as one snapshot.
type KeyStore interface {
	// LoadKeys returns the persisted table, or an empty table if nothing was saved yet.
	LoadKeys(ctx context.Context) (KeyTable, error)

	// SaveKeys replaces the persisted table with the given one.
	SaveKeys(ctx context.Context, table KeyTable) error
}

// AnnouncementStore persists the latest announcement.
type AnnouncementStore interface {
	// LoadAnnouncement returns ErrNotFound if no announcement was ever saved.
	LoadAnnouncement(ctx context.Context) (Announcement, error)

	// SaveAnnouncement overwrites the persisted announcement.
	SaveAnnouncement(ctx context.Context, a Announcement) error
}

// Store combines all persistence interfaces.
type Store interface {
	KeyStore
	AnnouncementStore

	// Close releases underlying resources.
	Close() error
}

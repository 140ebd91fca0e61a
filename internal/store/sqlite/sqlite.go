package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/keyroom-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS one_time_keys (
	code        TEXT PRIMARY KEY,
	owner       TEXT NOT NULL,
	used        BOOLEAN NOT NULL DEFAULT 0,
	redeemed_by TEXT,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	redeemed_at DATETIME
);

CREATE TABLE IF NOT EXISTS announcements (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	text       TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== KeyStore implementation ====

// LoadKeys reads every key row.
func (s *SQLiteStore) LoadKeys(ctx context.Context) (store.KeyTable, error) {
	query := `
		SELECT code, owner, used, COALESCE(redeemed_by, ''), created_at, redeemed_at
		FROM one_time_keys
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	table := store.KeyTable{}
	for rows.Next() {
		var k store.Key
		var redeemedAt sql.NullTime
		if err := rows.Scan(&k.Code, &k.Owner, &k.Used, &k.RedeemedBy, &k.CreatedAt, &redeemedAt); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		if redeemedAt.Valid {
			at := redeemedAt.Time
			k.RedeemedAt = &at
		}
		table[k.Code] = k
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}

	return table, nil
}

// SaveKeys replaces all key rows inside one transaction.
func (s *SQLiteStore) SaveKeys(ctx context.Context, table store.KeyTable) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM one_time_keys`); err != nil {
		return fmt.Errorf("clear keys: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO one_time_keys (code, owner, used, redeemed_by, created_at, redeemed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for code, k := range table {
		created := k.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		var redeemedBy sql.NullString
		if k.RedeemedBy != "" {
			redeemedBy = sql.NullString{String: k.RedeemedBy, Valid: true}
		}
		var redeemedAt sql.NullTime
		if k.RedeemedAt != nil {
			redeemedAt = sql.NullTime{Time: *k.RedeemedAt, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, code, k.Owner, k.Used, redeemedBy, created, redeemedAt); err != nil {
			return fmt.Errorf("insert key: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ==== AnnouncementStore implementation ====

// LoadAnnouncement reads the single announcement row.
func (s *SQLiteStore) LoadAnnouncement(ctx context.Context) (store.Announcement, error) {
	query := `SELECT text, updated_at FROM announcements WHERE id = 1`

	var a store.Announcement
	err := s.db.QueryRowContext(ctx, query).Scan(&a.Text, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Announcement{}, store.ErrNotFound
		}
		return store.Announcement{}, fmt.Errorf("query announcement: %w", err)
	}
	return a, nil
}

// SaveAnnouncement upserts the single announcement row.
func (s *SQLiteStore) SaveAnnouncement(ctx context.Context, a store.Announcement) error {
	query := `
		INSERT INTO announcements (id, text, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text = excluded.text, updated_at = excluded.updated_at
	`
	updated := a.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	if _, err := s.db.ExecContext(ctx, query, a.Text, updated); err != nil {
		return fmt.Errorf("save announcement: %w", err)
	}
	return nil
}

// Package store persists keypad indicator colours in SQLite so they survive
// a restart. Key transitions are never stored.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"keybowd/internal/keypad"
	"keybowd/internal/logging"
)

// Store is a SQLite-backed keypad.ColorStore.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

var _ keypad.ColorStore = (*Store)(nil)

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; LED calls are already serialised by the keypad.
	db.SetMaxOpenConns(1)

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:  db,
		log: logging.Default().WithComponent("store").Logger,
	}
	s.log.Debug("colour store opened", "path", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// LoadColors returns every stored colour keyed by key index.
func (s *Store) LoadColors() (map[int]keypad.Color, error) {
	rows, err := s.db.Query("SELECT key_index, r, g, b FROM key_colors ORDER BY key_index")
	if err != nil {
		return nil, fmt.Errorf("query colours: %w", err)
	}
	defer rows.Close()

	colors := make(map[int]keypad.Color)
	for rows.Next() {
		var index, r, g, b int
		if err := rows.Scan(&index, &r, &g, &b); err != nil {
			return nil, fmt.Errorf("scan colour: %w", err)
		}
		c, err := keypad.NewColor(r, g, b)
		if err != nil {
			return nil, fmt.Errorf("stored colour for key %d: %w", index, err)
		}
		colors[index] = c
	}
	return colors, rows.Err()
}

// SaveColor records the colour of key index.
func (s *Store) SaveColor(index int, c keypad.Color) error {
	_, err := s.db.Exec(`
		INSERT INTO key_colors (key_index, r, g, b, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key_index) DO UPDATE SET r = excluded.r, g = excluded.g, b = excluded.b, updated_at = excluded.updated_at`,
		index, int(c.R), int(c.G), int(c.B), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save colour %d: %w", index, err)
	}
	return nil
}

// UpdatedAt returns when the colour of key index was last saved.
func (s *Store) UpdatedAt(index int) (time.Time, error) {
	var ns int64
	err := s.db.QueryRow("SELECT updated_at FROM key_colors WHERE key_index = ?", index).Scan(&ns)
	if err == sql.ErrNoRows {
		return time.Time{}, fmt.Errorf("no colour stored for key %d", index)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query colour %d: %w", index, err)
	}
	return time.Unix(0, ns), nil
}

// Reset deletes every stored colour.
func (s *Store) Reset() error {
	if _, err := s.db.Exec("DELETE FROM key_colors"); err != nil {
		return fmt.Errorf("reset colours: %w", err)
	}
	return nil
}

// Status returns the schema migration status.
func (s *Store) Status() (*MigrationStatus, error) {
	return GetMigrationStatus(s.db)
}

// Package localstore is the client's persistent key-value store.
//
// It plays the part browser local storage plays for a web client: the
// editor's auto-save snapshot and the session credential live here. It is a
// single SQLite file with one table; values are opaque bytes.
//
// The store is shared and unguarded at the application level: whoever
// writes last wins. SQLite serialises the writes themselves.
package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/sharebin/internal/apperror"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite connection pool.
type Store struct {
	conn *sql.DB
}

// Open creates or opens the store at path. ":memory:" gives a throwaway
// store for tests.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("localstore: opening %s: %w", path, err)
	}
	// One connection: keeps ":memory:" a single database and makes the
	// store behave like a synchronous key-value API.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("localstore: pinging %s: %w", path, err)
	}

	if _, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("localstore: creating kv table: %w", err)
	}

	return &Store{conn: conn}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("localstore: putting %s: %w", key, err)
	}
	return nil
}

// Get returns the value for key, or an apperror.ErrNotFound error.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("key", key)
		}
		return nil, fmt.Errorf("localstore: getting %s: %w", key, err)
	}
	return value, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("localstore: deleting %s: %w", key, err)
	}
	return nil
}

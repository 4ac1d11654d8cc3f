package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using a single SQLite table.
// Expired rows are treated as misses and purged when read or overwritten.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv_entries (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		expires_at INTEGER,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_kv_entries_expires_at ON kv_entries(expires_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the value for key. An expired row is deleted and reported as ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	var expiresAt sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)

	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}

	if expiresAt.Valid && s.now().UnixNano() >= expiresAt.Int64 {
		_, _ = s.db.ExecContext(ctx,
			`DELETE FROM kv_entries WHERE key = ? AND expires_at = ?`, key, expiresAt.Int64)
		return "", ErrNotFound
	}
	return value, nil
}

// Set upserts value for key.
func (s *SQLiteStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var expiresAt sql.NullInt64
	if ttl > 0 {
		expiresAt = sql.NullInt64{Int64: s.now().Add(ttl).UnixNano(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, expires_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   expires_at = excluded.expires_at,
		   updated_at = excluded.updated_at`,
		key, value, expiresAt, s.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key)
	return err
}

// PurgeExpired deletes every expired row and returns how many were removed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Count returns the number of rows, expired ones included.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv_entries`).Scan(&count)
	return count, err
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore implements Store on an embedded BadgerDB. Expiry uses Badger's native entry TTL.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens a BadgerDB at path. An empty path opens an in-memory database.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	opts.ValueLogFileSize = 16 << 20

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Get returns the value for key.
func (s *BadgerStore) Get(_ context.Context, key string) (string, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// Set stores value for key with an optional TTL.
func (s *BadgerStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), []byte(value))
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Delete removes key.
func (s *BadgerStore) Delete(_ context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Ping fails once the database is closed.
func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger db is closed")
	}
	return nil
}

// RunGC reclaims value log space. ErrNoRewrite means there was nothing to do.
func (s *BadgerStore) RunGC() error {
	err := s.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

package storage

import (
	"context"
	"fmt"

	"github.com/novellize/novellize/internal/config"
)

// Backend names a Store implementation.
type Backend string

const (
	// BackendMemory keeps entries in process. Lost on restart.
	BackendMemory Backend = "memory"
	// BackendRedis uses a remote Redis server, shared by every instance.
	BackendRedis Backend = "redis"
	// BackendBadger uses an embedded BadgerDB directory.
	BackendBadger Backend = "badger"
	// BackendSQLite uses an embedded SQLite file.
	BackendSQLite Backend = "sqlite"
)

// NewStore creates the Store selected by cfg.Backend.
// Supported backends: "memory" (default), "redis", "badger", "sqlite".
func NewStore(ctx context.Context, cfg *config.CacheConfig) (Store, error) {
	switch Backend(cfg.Backend) {
	case BackendMemory, "":
		return NewMemoryStore(cfg.MemoryCapacity), nil
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis backend requires redis_url")
		}
		return NewRedisStore(ctx, cfg.RedisURL)
	case BackendBadger:
		return NewBadgerStore(cfg.BadgerPath)
	case BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s (supported: memory, redis, badger, sqlite)", cfg.Backend)
	}
}

// DataPaths returns the on-disk locations used by the configured backend, for disk usage reporting.
func DataPaths(cfg *config.CacheConfig) []string {
	switch Backend(cfg.Backend) {
	case BackendBadger:
		return []string{cfg.BadgerPath}
	case BackendSQLite:
		return []string{cfg.SQLitePath, cfg.SQLitePath + "-wal", cfg.SQLitePath + "-shm"}
	default:
		return nil
	}
}

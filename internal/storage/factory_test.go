package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/novellize/novellize/internal/config"
)

func TestNewStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		cfg     config.CacheConfig
		want    string
		wantErr bool
	}{
		{name: "empty defaults to memory", cfg: config.CacheConfig{}, want: "*storage.MemoryStore"},
		{name: "memory", cfg: config.CacheConfig{Backend: "memory", MemoryCapacity: 4}, want: "*storage.MemoryStore"},
		{name: "sqlite", cfg: config.CacheConfig{Backend: "sqlite", SQLitePath: filepath.Join(dir, "c.db")}, want: "*storage.SQLiteStore"},
		{name: "badger", cfg: config.CacheConfig{Backend: "badger", BadgerPath: filepath.Join(dir, "badger")}, want: "*storage.BadgerStore"},
		{name: "redis", cfg: config.CacheConfig{Backend: "redis", RedisURL: "redis://" + mr.Addr()}, want: "*storage.RedisStore"},
		{name: "redis without url", cfg: config.CacheConfig{Backend: "redis"}, wantErr: true},
		{name: "unknown", cfg: config.CacheConfig{Backend: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			store, err := NewStore(ctx, &cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer store.Close()
			if got := typeName(store); got != tt.want {
				t.Errorf("NewStore type = %s, want %s", got, tt.want)
			}
		})
	}
}

func typeName(s Store) string {
	switch s.(type) {
	case *MemoryStore:
		return "*storage.MemoryStore"
	case *SQLiteStore:
		return "*storage.SQLiteStore"
	case *BadgerStore:
		return "*storage.BadgerStore"
	case *RedisStore:
		return "*storage.RedisStore"
	default:
		return "unknown"
	}
}

func TestDataPaths(t *testing.T) {
	if got := DataPaths(&config.CacheConfig{Backend: "memory"}); got != nil {
		t.Errorf("memory backend should have no data paths, got %v", got)
	}
	got := DataPaths(&config.CacheConfig{Backend: "sqlite", SQLitePath: "/tmp/c.db"})
	if len(got) != 3 || got[0] != "/tmp/c.db" {
		t.Errorf("sqlite data paths = %v", got)
	}
}

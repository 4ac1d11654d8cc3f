package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/novellize/novellize/internal/config"
)

func writeSized(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "cache.db")
	wal := db + "-wal"
	badgerDir := filepath.Join(dir, "badger")
	indexDir := filepath.Join(badgerDir, "index.bleve")

	writeSized(t, db, 5)
	writeSized(t, wal, 2)
	writeSized(t, filepath.Join(badgerDir, "000001.vlog"), 10)
	writeSized(t, filepath.Join(indexDir, "store"), 4)

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"sqlite file and wal", []string{db, wal, db + "-shm"}, 7},
		{"directory walked", []string{badgerDir}, 14},
		{"nested path counted once", []string{indexDir, badgerDir}, 14},
		{"duplicates counted once", []string{db, db, dir + "/./cache.db"}, 5},
		{"empty and missing skipped", []string{"", filepath.Join(dir, "nope"), wal}, 2},
		{"nothing", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DiskUsageBytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDiskUsageBytes_DataPaths(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "cache.db")
	writeSized(t, db, 3)
	writeSized(t, db+"-wal", 1)

	paths := DataPaths(&config.CacheConfig{Backend: "sqlite", SQLitePath: db})
	got, err := DiskUsageBytes(paths...)
	if err != nil {
		t.Fatal(err)
	}
	if got != 4 {
		t.Errorf("got %d, want 4", got)
	}
}

package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiskUsageBytes sums the on-disk size of the cache and index locations in paths.
// Directories are walked; a path inside another listed directory is counted once.
// Empty and missing paths are skipped.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range outermost(paths) {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// outermost cleans paths and drops empties, duplicates and paths nested under another entry.
func outermost(paths []string) []string {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			cleaned = append(cleaned, filepath.Clean(p))
		}
	}
	sort.Strings(cleaned)
	out := cleaned[:0]
	for _, p := range cleaned {
		if n := len(out); n > 0 {
			last := out[n-1]
			if p == last || strings.HasPrefix(p, last+string(filepath.Separator)) {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

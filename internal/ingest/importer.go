// Package ingest seeds the catalog from json, yaml and xlsx files.
//
// An import is a read-modify-write of the stored catalog. The store also records
// which file contributed each entry, so importing a file replaces only that
// file's entries: novels written by other files, other processes or the cache
// proxy survive. An id already in the catalog wins over a later file's copy.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/novellize/novellize/internal/keyword"
	"github.com/novellize/novellize/internal/metrics"
	"github.com/novellize/novellize/internal/models"
	"github.com/novellize/novellize/pkg/utils"
)

var (
	// ErrCatalogRead is returned when the current catalog could not be read.
	// Nothing is written in that case.
	ErrCatalogRead = errors.New("catalog read failed")
	// ErrCatalogWrite is returned when the merged catalog could not be stored.
	ErrCatalogWrite = errors.New("catalog write failed")
)

// CatalogStore holds the catalog snapshot and the file each imported entry came from.
type CatalogStore interface {
	LoadCatalog(ctx context.Context) ([]models.Novel, map[models.NovelID]string, error)
	PublishCatalog(ctx context.Context, novels []models.Novel, sources map[models.NovelID]string, ttl time.Duration) error
}

// Result summarizes one file import.
type Result struct {
	File     string `json:"file"`
	Format   Format `json:"format"`
	Imported int    `json:"imported"`
	Dropped  int    `json:"dropped"`
	// Catalog is the size of the published catalog after the import.
	Catalog int `json:"catalog"`
}

// Importer decodes catalog files and merges them into the stored catalog.
type Importer struct {
	store  CatalogStore
	index  keyword.Index
	ttl    time.Duration
	logger *zap.Logger

	mu sync.Mutex
	// files holds what this process imported, to restore entries a removed
	// file was shadowing.
	files map[string][]models.Novel
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithLogger sets the importer logger.
func WithLogger(l *zap.Logger) ImporterOption {
	return func(imp *Importer) { imp.logger = utils.LoggerOrNop(l) }
}

// WithIndex rebuilds index after every publish.
func WithIndex(index keyword.Index) ImporterOption {
	return func(imp *Importer) { imp.index = index }
}

// NewImporter creates an importer over store. ttl is passed to every catalog
// write; zero means no expiry.
func NewImporter(store CatalogStore, ttl time.Duration, opts ...ImporterOption) *Importer {
	imp := &Importer{
		store:  store,
		ttl:    ttl,
		logger: zap.NewNop(),
		files:  make(map[string][]models.Novel),
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// ImportFile decodes the file at path, drops novels that cannot be scored, and
// merges the rest into the catalog in place of the file's previous entries.
func (imp *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		metrics.CatalogImports.WithLabelValues(string(format), "error").Inc()
		return nil, fmt.Errorf("read file: %w", err)
	}
	decoded, err := Decode(content, format)
	if err != nil {
		metrics.CatalogImports.WithLabelValues(string(format), "error").Inc()
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(abs), err)
	}

	valid := make([]models.Novel, 0, len(decoded))
	for i := range decoded {
		if decoded[i].Valid() {
			valid = append(valid, decoded[i])
		}
	}

	imp.mu.Lock()
	defer imp.mu.Unlock()

	current, sources, err := imp.store.LoadCatalog(ctx)
	if err != nil {
		metrics.CatalogImports.WithLabelValues(string(format), "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrCatalogRead, err)
	}
	merged, owners := replaceFile(current, sources, abs, valid)
	if err := imp.publishLocked(ctx, merged, owners); err != nil {
		metrics.CatalogImports.WithLabelValues(string(format), "error").Inc()
		return nil, err
	}
	imp.files[abs] = valid
	metrics.CatalogImports.WithLabelValues(string(format), "success").Inc()

	res := &Result{
		File:     abs,
		Format:   format,
		Imported: len(valid),
		Dropped:  len(decoded) - len(valid),
		Catalog:  len(merged),
	}
	imp.logger.Info("catalog file imported",
		zap.String("file", abs),
		zap.Int("imported", res.Imported),
		zap.Int("dropped", res.Dropped),
		zap.Int("catalog", res.Catalog))
	return res, nil
}

// RemoveFile withdraws the novels contributed by path. Ids it was shadowing are
// restored from other files this importer has seen. Paths that own nothing are
// a no-op.
func (imp *Importer) RemoveFile(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	imp.mu.Lock()
	defer imp.mu.Unlock()

	current, sources, err := imp.store.LoadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogRead, err)
	}
	_, seen := imp.files[abs]
	if !seen && !ownsAny(sources, abs) {
		return nil
	}
	delete(imp.files, abs)

	merged, owners := replaceFile(current, sources, abs, nil)
	for _, other := range imp.sortedFilesLocked() {
		merged, owners = replaceFile(merged, owners, other, imp.files[other])
	}
	if err := imp.publishLocked(ctx, merged, owners); err != nil {
		return err
	}
	imp.logger.Info("catalog file removed", zap.String("file", abs), zap.Int("catalog", len(merged)))
	return nil
}

// Files returns the file paths imported by this importer, sorted.
func (imp *Importer) Files() []string {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.sortedFilesLocked()
}

func (imp *Importer) sortedFilesLocked() []string {
	paths := make([]string, 0, len(imp.files))
	for p := range imp.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (imp *Importer) publishLocked(ctx context.Context, merged []models.Novel, owners map[models.NovelID]string) error {
	if err := imp.store.PublishCatalog(ctx, merged, owners, imp.ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogWrite, err)
	}
	if imp.index != nil {
		if err := imp.index.Rebuild(ctx, merged); err != nil {
			// The catalog is already published; search lags until the next import.
			imp.logger.Warn("search index rebuild failed", zap.Error(err))
		}
	}
	return nil
}

// replaceFile returns current with the entries owned by path replaced by novels.
// Entries path still provides keep their position; the rest are dropped and new
// ids are appended. Ids owned by anyone else win over path's copy. The returned
// owner record covers only entries present in the result.
func replaceFile(current []models.Novel, sources map[models.NovelID]string, path string, novels []models.Novel) ([]models.Novel, map[models.NovelID]string) {
	incoming := make(map[models.NovelID]models.Novel, len(novels))
	for _, n := range novels {
		if _, dup := incoming[n.ID]; !dup {
			incoming[n.ID] = n
		}
	}

	merged := make([]models.Novel, 0, len(current)+len(novels))
	owners := make(map[models.NovelID]string, len(sources))
	present := make(map[models.NovelID]struct{}, len(current))
	for _, n := range current {
		if n.ID == "" {
			// Unscoreable placeholders stay where another writer put them.
			merged = append(merged, n)
			continue
		}
		if _, dup := present[n.ID]; dup {
			continue
		}
		owner := sources[n.ID]
		if owner == path {
			replacement, ok := incoming[n.ID]
			if !ok {
				continue
			}
			n = replacement
		}
		present[n.ID] = struct{}{}
		merged = append(merged, n)
		if owner != "" {
			owners[n.ID] = owner
		}
	}
	for _, n := range novels {
		if _, ok := present[n.ID]; ok {
			continue
		}
		present[n.ID] = struct{}{}
		merged = append(merged, n)
		owners[n.ID] = path
	}
	return merged, owners
}

func ownsAny(sources map[models.NovelID]string, path string) bool {
	for _, owner := range sources {
		if owner == path {
			return true
		}
	}
	return false
}

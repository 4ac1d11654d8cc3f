// Package keyword provides full-text search over the novel catalog.
package keyword

import (
	"context"

	"github.com/novellize/novellize/internal/models"
)

// Index defines catalog text search operations.
type Index interface {
	// Rebuild replaces the indexed contents with novels.
	Rebuild(ctx context.Context, novels []models.Novel) error
	Search(ctx context.Context, query string, limit int, fuzzy bool) ([]*Result, error)
	DocCount() (uint64, error)
	Close() error
}

// Result is a single search hit.
type Result struct {
	ID    string
	Score float64
}

// Resolve joins hits to the novels they name, in hit order. The index can trail
// the catalog after an expiry, so ids missing from novels are skipped.
func Resolve(hits []*Result, novels []models.Novel) []models.SearchHit {
	byID := make(map[models.NovelID]models.Novel, len(novels))
	for _, n := range novels {
		if _, ok := byID[n.ID]; !ok {
			byID[n.ID] = n
		}
	}
	out := make([]models.SearchHit, 0, len(hits))
	for _, h := range hits {
		if n, ok := byID[models.NovelID(h.ID)]; ok {
			out = append(out, models.SearchHit{Novel: n, Score: h.Score})
		}
	}
	return out
}

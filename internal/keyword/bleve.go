package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/novellize/novellize/internal/models"
)

const (
	// TitleBoost multiplies the contribution of title matches.
	TitleBoost = 3.0
	// Fuzziness is the maximum edit distance for fuzzy term matching.
	Fuzziness = 1

	batchSize = 500
)

// novelDoc is the indexed projection of a novel.
type novelDoc struct {
	Title     string `json:"title"`
	Text      string `json:"text"`
	Genres    string `json:"genres"`
	Tags      string `json:"tags"`
	Publisher string `json:"publisher"`
}

func newNovelDoc(n *models.Novel) novelDoc {
	return novelDoc{
		Title:     n.Title,
		Text:      n.Synopsis,
		Genres:    strings.Join(n.GenreNames(), " "),
		Tags:      strings.Join(n.Tags, " "),
		Publisher: n.Publisher,
	}
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

var _ Index = (*BleveIndex)(nil)

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer lowercases and tokenizes without stemming, so "isekai"
	// matches the exact word.
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	for _, name := range []string{"title", "text", "genres", "tags", "publisher"} {
		docMapping.AddFieldMappingsAt(name, textField)
	}
	im.AddDocumentMapping("novel", docMapping)
	im.DefaultType = "novel"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path keeps the
// index in memory.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Rebuild deletes every indexed novel and indexes novels in batches. Novels
// without an id are skipped.
func (b *BleveIndex) Rebuild(ctx context.Context, novels []models.Novel) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.allIDs()
	if err != nil {
		return err
	}
	batch := b.index.NewBatch()
	for _, id := range existing {
		batch.Delete(id)
	}
	for i := range novels {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := &novels[i]
		if n.ID == "" {
			continue
		}
		if err := batch.Index(string(n.ID), newNovelDoc(n)); err != nil {
			return fmt.Errorf("index novel %s: %w", n.ID, err)
		}
		if batch.Size() >= batchSize {
			if err := b.index.Batch(batch); err != nil {
				return fmt.Errorf("Bleve batch failed: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("Bleve batch failed: %w", err)
		}
	}
	return nil
}

func (b *BleveIndex) allIDs() ([]string, error) {
	count, err := b.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("failed to get doc count: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(count)
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve list failed: %w", err)
	}
	ids := make([]string, len(results.Hits))
	for i, hit := range results.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Search returns up to limit novels matching query, best first.
// Scoring is additive: (title score * TitleBoost) + other field score, multiplied by
// the squared fraction of query terms the novel matches so novels matching every
// term outrank partial matches. fuzzy enables edit-distance term matching.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, fuzzy bool) ([]*Result, error) {
	terms := tokenizeQuery(query)
	if len(terms) == 0 || limit <= 0 {
		return []*Result{}, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}

	titleScores, err := b.fieldScores(ctx, buildQuery(terms, fuzzy, "title"), reqSize)
	if err != nil {
		return nil, fmt.Errorf("Bleve title search failed: %w", err)
	}
	bodyQuery := bleve.NewDisjunctionQuery(
		buildQuery(terms, fuzzy, "text"),
		buildQuery(terms, fuzzy, "genres"),
		buildQuery(terms, fuzzy, "tags"),
		buildQuery(terms, fuzzy, "publisher"),
	)
	bodyScores, err := b.fieldScores(ctx, bodyQuery, reqSize)
	if err != nil {
		return nil, fmt.Errorf("Bleve body search failed: %w", err)
	}

	coverage := map[string]int{}
	if len(terms) > 1 {
		coverage = b.termCoverage(ctx, terms, reqSize, fuzzy)
	}

	merged := make([]*Result, 0, len(titleScores)+len(bodyScores))
	seen := make(map[string]struct{}, len(titleScores)+len(bodyScores))
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		score := titleScores[id]*TitleBoost + bodyScores[id]
		if len(terms) > 1 {
			matched := coverage[id]
			if matched == 0 {
				matched = 1
			}
			c := float64(matched) / float64(len(terms))
			score *= c * c
		}
		merged = append(merged, &Result{ID: id, Score: score})
	}
	for id := range titleScores {
		add(id)
	}
	for id := range bodyScores {
		add(id)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func (b *BleveIndex) fieldScores(ctx context.Context, q blevequery.Query, size int) (map[string]float64, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = size
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	scores := make(map[string]float64, len(results.Hits))
	for _, hit := range results.Hits {
		scores[hit.ID] = hit.Score
	}
	return scores, nil
}

// termCoverage counts how many query terms each novel matches in any field.
func (b *BleveIndex) termCoverage(ctx context.Context, terms []string, size int, fuzzy bool) map[string]int {
	coverage := make(map[string]int)
	for _, term := range terms {
		req := bleve.NewSearchRequest(buildQuery([]string{term}, fuzzy, ""))
		req.Size = size
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			continue
		}
		for _, hit := range results.Hits {
			coverage[hit.ID]++
		}
	}
	return coverage
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildQuery ORs one match or fuzzy query per term. An empty field searches all fields.
func buildQuery(terms []string, fuzzy bool, field string) blevequery.Query {
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		if fuzzy {
			fq := bleve.NewFuzzyQuery(term)
			fq.SetFuzziness(Fuzziness)
			if field != "" {
				fq.SetField(field)
			}
			queries = append(queries, fq)
			continue
		}
		mq := bleve.NewMatchQuery(term)
		if field != "" {
			mq.SetField(field)
		}
		queries = append(queries, mq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DocCount returns the number of indexed novels.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

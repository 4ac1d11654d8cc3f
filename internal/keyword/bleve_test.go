package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/novellize/novellize/internal/models"
)

func testCatalog() []models.Novel {
	return []models.Novel{
		{
			ID:       "1",
			Title:    "The Dragon Academy",
			Genres:   []models.Genre{{Name: "Fantasy"}},
			Tags:     []string{"magic", "school"},
			Synopsis: "A young mage enrolls at a school for dragon riders.",
		},
		{
			ID:        "2",
			Title:     "Office Hours",
			Genres:    []models.Genre{{Name: "Romance"}},
			Tags:      []string{"slow-burn"},
			Publisher: "Moonlight Press",
			Synopsis:  "Two rivals share a cramped office and a dragon-shaped mug.",
		},
		{
			ID:       "3",
			Title:    "Starfall",
			Genres:   []models.Genre{{Name: "Sci-Fi"}},
			Tags:     []string{"space"},
			Synopsis: "A pilot crashes on a frozen moon.",
		},
	}
}

func newMemIndex(t *testing.T, novels []models.Novel) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex("")
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	if err := idx.Rebuild(context.Background(), novels); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	return idx
}

func TestBleveIndex_TitleMatchesRankFirst(t *testing.T) {
	idx := newMemIndex(t, testCatalog())

	results, err := idx.Search(context.Background(), "dragon", 10, false)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "1" {
		t.Errorf("first result = %s, want title match 1", results[0].ID)
	}
}

func TestBleveIndex_SearchesGenresTagsPublisher(t *testing.T) {
	idx := newMemIndex(t, testCatalog())
	tests := []struct {
		query string
		want  string
	}{
		{"romance", "2"},
		{"space", "3"},
		{"moonlight", "2"},
		{"MAGIC", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			results, err := idx.Search(context.Background(), tt.query, 10, false)
			if err != nil {
				t.Fatal(err)
			}
			if len(results) == 0 || results[0].ID != tt.want {
				t.Errorf("Search(%q) = %v, want first %s", tt.query, results, tt.want)
			}
		})
	}
}

func TestBleveIndex_TermCoverage(t *testing.T) {
	idx := newMemIndex(t, testCatalog())

	results, err := idx.Search(context.Background(), "dragon office", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].ID != "2" {
		t.Errorf("novel matching both terms should rank first, got %v", results)
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx := newMemIndex(t, testCatalog())

	exact, err := idx.Search(context.Background(), "starfal", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(exact) != 0 {
		t.Errorf("exact search for a typo returned %d results", len(exact))
	}

	fuzzy, err := idx.Search(context.Background(), "starfal", 10, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(fuzzy) == 0 || fuzzy[0].ID != "3" {
		t.Errorf("fuzzy search = %v, want 3", fuzzy)
	}
}

func TestBleveIndex_EmptyQueryAndLimit(t *testing.T) {
	idx := newMemIndex(t, testCatalog())

	results, err := idx.Search(context.Background(), "   ", 10, false)
	if err != nil || len(results) != 0 {
		t.Errorf("blank query: %v, %v", results, err)
	}
	results, err = idx.Search(context.Background(), "dragon", 1, false)
	if err != nil || len(results) != 1 {
		t.Errorf("limit 1: %v, %v", results, err)
	}
}

func TestBleveIndex_RebuildReplacesContents(t *testing.T) {
	idx := newMemIndex(t, testCatalog())

	replacement := []models.Novel{
		{ID: "9", Title: "Dragon Tea House", Genres: []models.Genre{}, Tags: []string{}},
		{ID: "", Title: "no id", Genres: []models.Genre{}, Tags: []string{}},
	}
	if err := idx.Rebuild(context.Background(), replacement); err != nil {
		t.Fatal(err)
	}
	count, err := idx.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("DocCount() = %d, want 1", count)
	}
	results, err := idx.Search(context.Background(), "dragon", 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "9" {
		t.Errorf("results after rebuild = %v", results)
	}
}

func TestBleveIndex_ReopenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleve")

	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	if err := idx.Rebuild(context.Background(), testCatalog()); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	count, err := reopened.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("DocCount() after reopen = %d, want 3", count)
	}
}

func TestBleveIndex_CancelledRebuild(t *testing.T) {
	idx := newMemIndex(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := idx.Rebuild(ctx, testCatalog()); err == nil {
		t.Error("expected context error")
	}
}

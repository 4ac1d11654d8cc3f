package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/novellize/novellize/internal/catalog"
	"github.com/novellize/novellize/internal/keyword"
	"github.com/novellize/novellize/internal/metrics"
	"github.com/novellize/novellize/internal/models"
	"github.com/novellize/novellize/internal/storage"
)

const jsonCatalog = `[
  {"id": "1", "title": "The Dragon Academy", "genres": [{"name": "Fantasy"}], "tags": ["magic"], "rating": 4.5},
  {"id": 2, "title": "Office Hours", "genres": ["Romance"], "tags": [], "rating": 3.9, "extra": {"kept": true}},
  {"id": "3", "title": "", "genres": [], "tags": []},
  {"id": "4", "title": "No Tags", "genres": []}
]`

const yamlCatalog = `
novels:
  - id: 10
    title: Starfall
    genres: [Sci-Fi]
    tags: [space]
    seriesStatus: COMPLETED
    rating: 4.1
  - id: "1"
    title: Duplicate of the academy
    genres: []
    tags: []
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestImporter(t *testing.T) (*Importer, *catalog.Client, *keyword.BleveIndex) {
	t.Helper()
	client := catalog.NewClient(storage.NewMemoryStore(0), zap.NewNop())
	idx, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return NewImporter(client, time.Hour, WithIndex(idx), WithLogger(zap.NewNop())), client, idx
}

func TestImportFile_JSON(t *testing.T) {
	imp, client, idx := newTestImporter(t)
	path := writeFile(t, t.TempDir(), "catalog.json", jsonCatalog)
	before := testutil.ToFloat64(metrics.CatalogImports.WithLabelValues("json", "success"))

	res, err := imp.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 2 || res.Dropped != 2 || res.Catalog != 2 || res.Format != FormatJSON {
		t.Errorf("unexpected result: %+v", res)
	}

	novels, ok := client.Catalog(context.Background())
	if !ok || len(novels) != 2 {
		t.Fatalf("catalog = %v, %v", novels, ok)
	}
	if novels[1].ID != "2" || novels[1].Genres[0].Name != "Romance" {
		t.Errorf("second novel = %+v", novels[1])
	}

	count, err := idx.DocCount()
	if err != nil || count != 2 {
		t.Errorf("index count = %d, %v", count, err)
	}
	if got := testutil.ToFloat64(metrics.CatalogImports.WithLabelValues("json", "success")); got != before+1 {
		t.Errorf("import metric = %v, want %v", got, before+1)
	}
}

func catalogIDs(t *testing.T, client *catalog.Client) []models.NovelID {
	t.Helper()
	novels, ok := client.Catalog(context.Background())
	if !ok {
		t.Fatal("catalog missing")
	}
	ids := make([]models.NovelID, len(novels))
	for i, n := range novels {
		ids[i] = n.ID
	}
	return ids
}

func assertIDs(t *testing.T, got, want []models.NovelID) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ids = %v, want %v", got, want)
		}
	}
}

func TestImportFile_FirstImportWinsDuplicates(t *testing.T) {
	imp, client, _ := newTestImporter(t)
	dir := t.TempDir()
	jsonPath := writeFile(t, dir, "a.json", jsonCatalog)
	yamlPath := writeFile(t, dir, "b.yaml", yamlCatalog)

	if _, err := imp.ImportFile(context.Background(), yamlPath); err != nil {
		t.Fatal(err)
	}
	res, err := imp.ImportFile(context.Background(), jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if res.Catalog != 3 {
		t.Errorf("catalog size = %d, want 3", res.Catalog)
	}
	assertIDs(t, catalogIDs(t, client), []models.NovelID{"10", "1", "2"})
	novels, _ := client.Catalog(context.Background())
	if novels[1].Title != "Duplicate of the academy" {
		t.Errorf("earlier import should win duplicates, got %q", novels[1].Title)
	}

	// Removing the earlier file hands the shadowed id to the later one.
	if err := imp.RemoveFile(context.Background(), yamlPath); err != nil {
		t.Fatal(err)
	}
	assertIDs(t, catalogIDs(t, client), []models.NovelID{"2", "1"})
	novels, _ = client.Catalog(context.Background())
	if novels[1].Title != "The Dragon Academy" {
		t.Errorf("restored entry = %q", novels[1].Title)
	}
	if files := imp.Files(); len(files) != 1 || files[0] != jsonPath {
		t.Errorf("Files() = %v", files)
	}
}

func TestImportFile_KeepsEntriesFromOtherWriters(t *testing.T) {
	ctx := context.Background()
	client := catalog.NewClient(storage.NewMemoryStore(0), zap.NewNop())
	external := models.Novel{ID: "ext", Title: "Posted Elsewhere", Genres: []models.Genre{}, Tags: []string{}}
	if !client.SetCatalog(ctx, []models.Novel{external}, 0) {
		t.Fatal("seed failed")
	}
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `[{"id":"a1","title":"A One","genres":[],"tags":[]}]`)
	b := writeFile(t, dir, "b.json", `[{"id":"b1","title":"B One","genres":[],"tags":[]}]`)

	// Separate importers stand in for separate CLI runs.
	if _, err := NewImporter(client, 0).ImportFile(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := NewImporter(client, 0).ImportFile(ctx, b); err != nil {
		t.Fatal(err)
	}
	assertIDs(t, catalogIDs(t, client), []models.NovelID{"ext", "a1", "b1"})

	// Re-importing a changed file swaps only its own entries.
	writeFile(t, dir, "a.json", `[{"id":"a2","title":"A Two","genres":[],"tags":[]},{"id":"ext","title":"Shadowed","genres":[],"tags":[]}]`)
	res, err := NewImporter(client, 0).ImportFile(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if res.Catalog != 3 {
		t.Errorf("catalog size = %d, want 3", res.Catalog)
	}
	assertIDs(t, catalogIDs(t, client), []models.NovelID{"ext", "b1", "a2"})
	novels, _ := client.Catalog(ctx)
	if novels[0].Title != "Posted Elsewhere" {
		t.Errorf("external entry overwritten: %q", novels[0].Title)
	}

	// A fresh importer can still withdraw what an earlier run imported.
	if err := NewImporter(client, 0).RemoveFile(ctx, b); err != nil {
		t.Fatal(err)
	}
	assertIDs(t, catalogIDs(t, client), []models.NovelID{"ext", "a2"})
}

func TestReplaceFile(t *testing.T) {
	novel := func(id, title string) models.Novel {
		return models.Novel{ID: models.NovelID(id), Title: title, Genres: []models.Genre{}, Tags: []string{}}
	}
	current := []models.Novel{novel("x", "X"), novel("p1", "old"), {}, novel("p2", "gone"), novel("x", "dup")}
	sources := map[models.NovelID]string{"p1": "/p.json", "p2": "/p.json", "stale": "/p.json"}

	merged, owners := replaceFile(current, sources, "/p.json", []models.Novel{novel("p3", "new"), novel("p1", "fresh"), novel("x", "mine")})

	var ids []models.NovelID
	for _, n := range merged {
		ids = append(ids, n.ID)
	}
	assertIDs(t, ids, []models.NovelID{"x", "p1", "", "p3"})
	if merged[0].Title != "X" || merged[1].Title != "fresh" {
		t.Errorf("merged = %+v", merged)
	}
	if len(owners) != 2 || owners["p1"] != "/p.json" || owners["p3"] != "/p.json" {
		t.Errorf("owners = %v", owners)
	}
}

func TestImportFile_XLSX(t *testing.T) {
	imp, client, _ := newTestImporter(t)
	path := filepath.Join(t.TempDir(), "catalog.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"id", "title", "genres", "tags", "seriesStatus", "rating", "availability", "price"},
		{"x1", "Moon Gate", "Fantasy, Adventure", "portal,", "ongoing", "4.2", "paid", "2.99"},
		{"x2", "Broken Row", "Drama", "", "", "not a number", "", ""},
		{"", "", "", "", "", "", "", ""},
		{"x3", "Quiet Tea", "", "", "completed", "", "free", ""},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cellName, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	res, err := imp.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 2 {
		t.Fatalf("imported = %d, want 2", res.Imported)
	}
	novels, _ := client.Catalog(context.Background())
	first := novels[0]
	if first.ID != "x1" || len(first.Genres) != 2 || first.Genres[1].Name != "Adventure" {
		t.Errorf("first = %+v", first)
	}
	if len(first.Tags) != 1 || first.Tags[0] != "portal" {
		t.Errorf("tags = %v", first.Tags)
	}
	if first.SeriesStatus != models.StatusOngoing || first.Rating != 4.2 {
		t.Errorf("status/rating = %s/%v", first.SeriesStatus, first.Rating)
	}
	if first.Availability == nil || first.Availability.Type != models.AvailabilityPaid ||
		first.Availability.Price == nil || *first.Availability.Price != 2.99 {
		t.Errorf("availability = %+v", first.Availability)
	}
	if novels[1].ID != "x3" || novels[1].Genres == nil {
		t.Errorf("second = %+v", novels[1])
	}
}

func TestImportFile_Errors(t *testing.T) {
	imp, _, _ := newTestImporter(t)
	dir := t.TempDir()

	if _, err := imp.ImportFile(context.Background(), writeFile(t, dir, "notes.txt", "hi")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("txt err = %v", err)
	}
	if _, err := imp.ImportFile(context.Background(), filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for a missing file")
	}
	if _, err := imp.ImportFile(context.Background(), writeFile(t, dir, "bad.json", "not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := imp.ImportFile(context.Background(), writeFile(t, dir, "bad.yaml", "a: [unclosed")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

// brokenStore fails reads or writes.
type brokenStore struct {
	readErr, writeErr error
	published         bool
}

func (b *brokenStore) LoadCatalog(context.Context) ([]models.Novel, map[models.NovelID]string, error) {
	return nil, nil, b.readErr
}

func (b *brokenStore) PublishCatalog(context.Context, []models.Novel, map[models.NovelID]string, time.Duration) error {
	b.published = true
	return b.writeErr
}

func TestImportFile_StoreFailures(t *testing.T) {
	path := writeFile(t, t.TempDir(), "catalog.json", jsonCatalog)

	write := &brokenStore{writeErr: errors.New("down")}
	if _, err := NewImporter(write, 0).ImportFile(context.Background(), path); !errors.Is(err, ErrCatalogWrite) {
		t.Errorf("err = %v, want ErrCatalogWrite", err)
	}

	read := &brokenStore{readErr: errors.New("down")}
	if _, err := NewImporter(read, 0).ImportFile(context.Background(), path); !errors.Is(err, ErrCatalogRead) {
		t.Errorf("err = %v, want ErrCatalogRead", err)
	}
	if read.published {
		t.Error("catalog must not be written after a failed read")
	}
}

func TestRemoveFile_Unknown(t *testing.T) {
	imp, _, _ := newTestImporter(t)
	if err := imp.RemoveFile(context.Background(), "/nowhere/catalog.json"); err != nil {
		t.Errorf("RemoveFile() = %v", err)
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path string
		want Format
		err  bool
	}{
		{"a.json", FormatJSON, false},
		{"a.YML", FormatYAML, false},
		{"a.yaml", FormatYAML, false},
		{"a.xlsx", FormatXLSX, false},
		{"a.csv", "", true},
		{"noext", "", true},
	}
	for _, tt := range tests {
		got, err := FormatFor(tt.path)
		if (err != nil) != tt.err || got != tt.want {
			t.Errorf("FormatFor(%q) = %q, %v", tt.path, got, err)
		}
	}
}

func TestDecode_SingleObjectAndRawKept(t *testing.T) {
	novels, err := Decode([]byte(`{"id":"5","title":"Solo","genres":[],"tags":[],"custom":1}`), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if len(novels) != 1 || novels[0].ID != "5" {
		t.Fatalf("novels = %+v", novels)
	}
}

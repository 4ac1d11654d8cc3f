package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/novellize/novellize/internal/models"
	"github.com/novellize/novellize/internal/storage"
)

// failingStore fails every operation with err.
type failingStore struct {
	err error
}

func (f *failingStore) Get(context.Context, string) (string, error) { return "", f.err }
func (f *failingStore) Set(context.Context, string, string, time.Duration) error {
	return f.err
}
func (f *failingStore) Delete(context.Context, string) error { return f.err }
func (f *failingStore) Ping(context.Context) error           { return f.err }
func (f *failingStore) Close() error                         { return nil }

const twoNovels = `[
	{"id":"a","title":"NovelA","genres":[{"name":"Fantasy"}],"tags":["magic"],"rating":4.5,"coverImage":"a.png","views":12},
	{"id":"b","title":"NovelB","genres":[{"name":"Romance"}],"tags":["slow-burn"],"rating":3.0}
]`

func newTestClient() (*Client, *storage.MemoryStore) {
	store := storage.NewMemoryStore(0)
	return NewClient(store, zap.NewNop()), store
}

func TestGetNovels_Representations(t *testing.T) {
	ctx := context.Background()
	quoted, _ := json.Marshal(twoNovels)

	tests := []struct {
		name   string
		stored string
		want   []string
	}{
		{"array", twoNovels, []string{"a", "b"}},
		{"json string", string(quoted), []string{"a", "b"}},
		{"single object", `{"id":"solo","title":"Solo","genres":[],"tags":[]}`, []string{"solo"}},
		{"numeric id", `[{"id":42,"title":"Answer","genres":[],"tags":[]}]`, []string{"42"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store := newTestClient()
			_ = store.Set(ctx, CatalogKey, tt.stored, 0)

			novels, ok := c.Catalog(ctx)
			if !ok {
				t.Fatal("expected hit")
			}
			if len(novels) != len(tt.want) {
				t.Fatalf("got %d novels, want %d", len(novels), len(tt.want))
			}
			for i, id := range tt.want {
				if string(novels[i].ID) != id {
					t.Errorf("novel %d id = %s, want %s", i, novels[i].ID, id)
				}
			}
		})
	}
}

func TestGetNovels_Misses(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		stored *string
	}{
		{"missing key", nil},
		{"not json", strPtr("definitely not json")},
		{"json number", strPtr("12")},
		{"json null", strPtr("null")},
		{"broken array", strPtr(`[{"id":"a"`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, store := newTestClient()
			if tt.stored != nil {
				_ = store.Set(ctx, CatalogKey, *tt.stored, 0)
			}
			novels, ok := c.Catalog(ctx)
			if ok || novels != nil {
				t.Errorf("expected miss, got %v, %v", novels, ok)
			}
		})
	}
}

func TestGetNovels_TransportErrorIsMiss(t *testing.T) {
	c := NewClient(&failingStore{err: errors.New("connection refused")}, zap.NewNop())
	if novels, ok := c.Catalog(context.Background()); ok || novels != nil {
		t.Errorf("expected miss on transport error, got %v, %v", novels, ok)
	}
}

func TestGetNovels_MalformedEntryBecomesPlaceholder(t *testing.T) {
	ctx := context.Background()
	c, store := newTestClient()
	_ = store.Set(ctx, CatalogKey, `[{"id":"a","title":"A","genres":[],"tags":[]},{"id":"b","genres":"oops"}]`, 0)

	novels, ok := c.Catalog(ctx)
	if !ok {
		t.Fatal("expected hit")
	}
	if len(novels) != 2 {
		t.Fatalf("got %d novels, want 2", len(novels))
	}
	if !novels[0].Valid() {
		t.Error("first novel should be valid")
	}
	if novels[1].Valid() {
		t.Error("malformed entry should not be valid")
	}
}

func TestSet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	single := map[string]any{"id": "s", "title": "Single", "genres": []any{}, "tags": []any{}}

	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{"array of objects", json.RawMessage(twoNovels), []string{"a", "b"}},
		{"single object", single, []string{"s"}},
		{"stringified blob", twoNovels, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient()
			if !c.Set(ctx, CatalogKey, tt.value, time.Hour) {
				t.Fatal("Set returned false")
			}
			novels, ok := c.GetNovels(ctx, CatalogKey)
			if !ok {
				t.Fatal("expected hit")
			}
			if len(novels) != len(tt.want) {
				t.Fatalf("got %d novels, want %d", len(novels), len(tt.want))
			}
			for i, id := range tt.want {
				if string(novels[i].ID) != id {
					t.Errorf("novel %d id = %s, want %s", i, novels[i].ID, id)
				}
			}
		})
	}
}

func TestSetCatalog_PreservesUnknownFields(t *testing.T) {
	ctx := context.Background()
	c, store := newTestClient()
	_ = store.Set(ctx, CatalogKey, twoNovels, 0)

	novels, _ := c.Catalog(ctx)
	if !c.SetCatalog(ctx, novels, time.Hour) {
		t.Fatal("SetCatalog returned false")
	}
	raw, err := store.Get(ctx, CatalogKey)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(raw, `"views":12`) {
		t.Errorf("unknown field dropped on rewrite: %s", raw)
	}
}

func TestSet_TransportErrorIsFalse(t *testing.T) {
	c := NewClient(&failingStore{err: errors.New("timeout")}, zap.NewNop())
	if c.Set(context.Background(), CatalogKey, []models.Novel{}, time.Hour) {
		t.Error("expected false on transport error")
	}
}

func TestSerialize(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"json string kept", `{"a":1}`, `{"a":1}`},
		{"plain string quoted", "hello", `"hello"`},
		{"bytes kept", []byte(`[1,2]`), `[1,2]`},
		{"struct marshalled", struct {
			A int `json:"a"`
		}{A: 1}, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Serialize(tt.value)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Serialize() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRawProxy(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient()

	verified, err := c.SetRaw(ctx, "profile:1", map[string]any{"name": "reader"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !verified {
		t.Error("expected verified write")
	}
	value, found, err := c.GetRaw(ctx, "profile:1")
	if err != nil || !found {
		t.Fatalf("GetRaw: %v, found=%v", err, found)
	}
	raw, ok := value.(json.RawMessage)
	if !ok || string(raw) != `{"name":"reader"}` {
		t.Errorf("GetRaw = %#v", value)
	}

	_, _ = c.SetRaw(ctx, "greeting", "hello there", 0)
	value, _, _ = c.GetRaw(ctx, "greeting")
	if value != "hello there" {
		t.Errorf("plain text round trip = %#v", value)
	}

	if _, found, _ := c.GetRaw(ctx, "missing"); found {
		t.Error("expected missing key to be not found")
	}
}

func TestRawProxy_StringsKeepTheirType(t *testing.T) {
	ctx := context.Background()
	c, store := newTestClient()

	tests := []struct {
		name   string
		value  any
		stored string
		want   string
	}{
		{"numeric text", "123", `"123"`, `"123"`},
		{"null text", "null", `"null"`, `"null"`},
		{"array text", `[{"id":"a"}]`, `"[{\"id\":\"a\"}]"`, `"[{\"id\":\"a\"}]"`},
		{"plain text", "hello there", "hello there", `"hello there"`},
		{"number", json.RawMessage("123"), "123", "123"},
		{"boolean", true, "true", "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verified, err := c.SetRaw(ctx, "k", tt.value, 0)
			if err != nil || !verified {
				t.Fatalf("SetRaw: verified=%v, err=%v", verified, err)
			}
			if stored, _ := store.Get(ctx, "k"); stored != tt.stored {
				t.Errorf("stored %q, want %q", stored, tt.stored)
			}
			value, found, err := c.GetRaw(ctx, "k")
			if err != nil || !found {
				t.Fatalf("GetRaw: found=%v, err=%v", found, err)
			}
			out, err := json.Marshal(map[string]any{"data": value})
			if err != nil {
				t.Fatal(err)
			}
			if want := `{"data":` + tt.want + `}`; string(out) != want {
				t.Errorf("response = %s, want %s", out, want)
			}
		})
	}
}

func TestLoadAndPublishCatalog(t *testing.T) {
	ctx := context.Background()
	c, store := newTestClient()

	novels, sources, err := c.LoadCatalog(ctx)
	if err != nil || len(novels) != 0 || sources == nil || len(sources) != 0 {
		t.Fatalf("empty store: %v, %v, %v", novels, sources, err)
	}

	published := []models.Novel{{ID: "a", Title: "A", Genres: []models.Genre{}, Tags: []string{}}}
	if err := c.PublishCatalog(ctx, published, map[models.NovelID]string{"a": "/seed/a.json"}, time.Hour); err != nil {
		t.Fatal(err)
	}
	novels, sources, err = c.LoadCatalog(ctx)
	if err != nil || len(novels) != 1 || novels[0].ID != "a" || sources["a"] != "/seed/a.json" {
		t.Errorf("after publish: %v, %v, %v", novels, sources, err)
	}

	_ = store.Set(ctx, CatalogKey, "not a catalog", 0)
	_ = store.Set(ctx, SourcesKey, "[1,2]", 0)
	novels, sources, err = c.LoadCatalog(ctx)
	if err != nil || len(novels) != 0 || len(sources) != 0 {
		t.Errorf("undecodable values should read as empty: %v, %v, %v", novels, sources, err)
	}
}

func TestLoadCatalog_TransportError(t *testing.T) {
	c := NewClient(&failingStore{err: errors.New("down")}, zap.NewNop())
	if _, _, err := c.LoadCatalog(context.Background()); err == nil {
		t.Error("LoadCatalog should surface transport errors")
	}
	if err := c.PublishCatalog(context.Background(), nil, nil, 0); err == nil {
		t.Error("PublishCatalog should fail when the store is down")
	}
}

func TestSetRaw_TooLarge(t *testing.T) {
	c := NewClient(storage.NewMemoryStore(0), zap.NewNop(), WithMaxValueLength(10))
	_, err := c.SetRaw(context.Background(), "k", strings.Repeat("x", 11), 0)
	if !errors.Is(err, ErrValueTooLarge) {
		t.Errorf("err = %v, want ErrValueTooLarge", err)
	}
}

func TestRawProxy_TransportError(t *testing.T) {
	c := NewClient(&failingStore{err: errors.New("down")}, zap.NewNop())
	if _, _, err := c.GetRaw(context.Background(), "k"); err == nil {
		t.Error("GetRaw should surface transport errors")
	}
	if _, err := c.SetRaw(context.Background(), "k", "v", 0); err == nil {
		t.Error("SetRaw should surface transport errors")
	}
}

func strPtr(s string) *string { return &s }

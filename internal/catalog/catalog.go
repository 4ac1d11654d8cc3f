// Package catalog reads and writes the cached novel catalog snapshot and backs the
// raw key-value proxy. Transport and decoding failures never reach callers of the
// catalog methods: they are logged and reported as a miss.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/novellize/novellize/internal/metrics"
	"github.com/novellize/novellize/internal/models"
	"github.com/novellize/novellize/internal/storage"
)

// CatalogKey is the well-known key holding the serialized novel catalog.
const CatalogKey = "novels"

// SourcesKey records which imported file contributed each catalog entry, as a
// JSON object from novel id to absolute file path.
const SourcesKey = CatalogKey + ":sources"

// DefaultMaxValueLength bounds raw proxy writes, in characters.
const DefaultMaxValueLength = 1_000_000

// ErrValueTooLarge is returned by SetRaw when the serialized value exceeds the limit.
var ErrValueTooLarge = errors.New("value exceeds maximum length")

// Client wraps a storage.Store with catalog-aware encoding.
type Client struct {
	store          storage.Store
	logger         *zap.Logger
	maxValueLength int
}

// Option configures a Client.
type Option func(*Client)

// WithMaxValueLength sets the raw write limit. Non-positive values keep the default.
func WithMaxValueLength(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxValueLength = n
		}
	}
}

// NewClient creates a catalog client over store.
func NewClient(store storage.Store, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		store:          store,
		logger:         logger,
		maxValueLength: DefaultMaxValueLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Catalog returns the novels stored under CatalogKey.
func (c *Client) Catalog(ctx context.Context) ([]models.Novel, bool) {
	return c.GetNovels(ctx, CatalogKey)
}

// SetCatalog replaces the catalog snapshot.
func (c *Client) SetCatalog(ctx context.Context, novels []models.Novel, ttl time.Duration) bool {
	return c.Set(ctx, CatalogKey, novels, ttl)
}

// LoadCatalog reads the catalog and its source record for a read-modify-write.
// A missing or undecodable value reads as empty. Transport failures are returned
// so the caller never overwrites a catalog it could not see.
func (c *Client) LoadCatalog(ctx context.Context) ([]models.Novel, map[models.NovelID]string, error) {
	var novels []models.Novel
	raw, err := c.store.Get(ctx, CatalogKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, nil, fmt.Errorf("read catalog: %w", err)
	default:
		decoded, _, err := DecodeNovels([]byte(raw))
		if err != nil {
			c.logger.Warn("undecodable catalog will be replaced", zap.Error(err))
		}
		novels = decoded
	}

	sources := make(map[models.NovelID]string)
	raw, err = c.store.Get(ctx, SourcesKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, nil, fmt.Errorf("read catalog sources: %w", err)
	default:
		if err := json.Unmarshal([]byte(raw), &sources); err != nil {
			c.logger.Warn("undecodable catalog sources ignored", zap.Error(err))
			sources = make(map[models.NovelID]string)
		}
	}
	return novels, sources, nil
}

// PublishCatalog writes the catalog, then its source record, both with ttl.
func (c *Client) PublishCatalog(ctx context.Context, novels []models.Novel, sources map[models.NovelID]string, ttl time.Duration) error {
	if !c.SetCatalog(ctx, novels, ttl) {
		return fmt.Errorf("write %s failed", CatalogKey)
	}
	if !c.Set(ctx, SourcesKey, sources, ttl) {
		return fmt.Errorf("write %s failed", SourcesKey)
	}
	return nil
}

// GetNovels reads key and decodes it as a novel sequence. The stored text may be a
// JSON array, a JSON string holding the array, or a single object. Entries that fail
// to decode become zero-value placeholders, which are not Valid. Returns false on a
// miss, a transport error, or an undecodable payload.
func (c *Client) GetNovels(ctx context.Context, key string) ([]models.Novel, bool) {
	raw, err := c.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.RecordCatalogLookup("miss", 0)
		return nil, false
	}
	if err != nil {
		c.logger.Warn("catalog read failed", zap.String("key", key), zap.Error(err))
		metrics.RecordCatalogLookup("error", 0)
		return nil, false
	}

	novels, skipped, err := DecodeNovels([]byte(raw))
	if err != nil {
		c.logger.Warn("catalog payload is not a novel sequence",
			zap.String("key", key), zap.Int("bytes", len(raw)), zap.Error(err))
		metrics.RecordCatalogLookup("malformed", 0)
		return nil, false
	}
	if skipped > 0 {
		c.logger.Warn("catalog entries failed to decode",
			zap.String("key", key), zap.Int("skipped", skipped), zap.Int("total", len(novels)))
	}
	metrics.RecordCatalogLookup("hit", len(novels))
	return novels, true
}

// Set serializes value to JSON text and stores it under key. Strings and byte
// slices that already hold JSON are written unchanged; any other string is written
// as a JSON string literal. Returns false on any failure.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	text, err := Serialize(value)
	if err != nil {
		c.logger.Warn("catalog value not serializable", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := c.store.Set(ctx, key, text, ttl); err != nil {
		c.logger.Warn("catalog write failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if novels, ok := value.([]models.Novel); ok {
		metrics.CatalogSize.Set(float64(len(novels)))
	}
	return true
}

// GetRaw returns the value stored under key for the proxy: JSON text comes back as
// json.RawMessage, anything else as a string. found is false on a miss.
// Values written through SetRaw keep their JSON type.
func (c *Client) GetRaw(ctx context.Context, key string) (value any, found bool, err error) {
	raw, err := c.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw), true, nil
	}
	return raw, true, nil
}

// SetRaw stores a proxied value. Plain text is stored as given. A string that
// would itself parse as JSON ("123", "null", "[1]") is stored as a JSON string
// literal so GetRaw still returns a string. Other values are serialized to JSON
// text. The write is read back and compared; verified reports whether the stored
// text matches.
func (c *Client) SetRaw(ctx context.Context, key string, value any, ttl time.Duration) (verified bool, err error) {
	var text string
	switch v := value.(type) {
	case string:
		text = v
		if json.Valid([]byte(v)) {
			quoted, err := json.Marshal(v)
			if err != nil {
				return false, fmt.Errorf("serialize value: %w", err)
			}
			text = string(quoted)
		}
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return false, fmt.Errorf("serialize value: %w", err)
		}
		text = string(data)
	}

	if n := len([]rune(text)); n > c.maxValueLength {
		return false, fmt.Errorf("%w: %d > %d", ErrValueTooLarge, n, c.maxValueLength)
	}

	if err := c.store.Set(ctx, key, text, ttl); err != nil {
		return false, fmt.Errorf("set %s: %w", key, err)
	}

	readBack, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("write verification read failed", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return readBack == text, nil
}

// Ping checks the underlying store.
func (c *Client) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Serialize returns the canonical JSON text for value.
func Serialize(value any) (string, error) {
	switch v := value.(type) {
	case string:
		if json.Valid([]byte(v)) {
			return v, nil
		}
	case []byte:
		if json.Valid(v) {
			return string(v), nil
		}
		value = string(v)
	case json.RawMessage:
		if json.Valid(v) {
			return string(v), nil
		}
		return "", errors.New("invalid raw JSON")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeNovels decodes a stored catalog payload. skipped counts entries that
// failed to decode and were replaced by placeholders.
func DecodeNovels(data []byte) (novels []models.Novel, skipped int, err error) {
	data = bytes.TrimSpace(data)

	// One level of double encoding: "[{...}]" stored as a JSON string.
	if len(data) > 0 && data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, 0, fmt.Errorf("decode string payload: %w", err)
		}
		data = bytes.TrimSpace([]byte(inner))
	}

	if len(data) == 0 {
		return nil, 0, errors.New("empty payload")
	}

	switch data[0] {
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, 0, fmt.Errorf("decode array payload: %w", err)
		}
		novels = make([]models.Novel, len(entries))
		for i, entry := range entries {
			if err := json.Unmarshal(entry, &novels[i]); err != nil {
				novels[i] = models.Novel{}
				skipped++
			}
		}
		return novels, skipped, nil
	case '{':
		var novel models.Novel
		if err := json.Unmarshal(data, &novel); err != nil {
			return nil, 0, fmt.Errorf("decode object payload: %w", err)
		}
		return []models.Novel{novel}, 0, nil
	default:
		return nil, 0, fmt.Errorf("unexpected payload starting with %q", data[0])
	}
}

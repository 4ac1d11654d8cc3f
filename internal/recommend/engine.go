// Package recommend composes the catalog, the preference extractor, the ranker and
// the explanation call into one recommendation cycle.
package recommend

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/novellize/novellize/internal/llm"
	"github.com/novellize/novellize/internal/metrics"
	"github.com/novellize/novellize/internal/models"
	"github.com/novellize/novellize/internal/ranking"
	"github.com/novellize/novellize/pkg/utils"
)

// Fixed user-facing messages.
const (
	EmptyCatalogMessage   = "Our novel catalog is being refreshed right now. Please check back in a few minutes for recommendations!"
	NoUserMessageMessage  = "Tell me what kind of novel you're in the mood for, like a genre, a trope, or a favorite title."
	NoMatchesMessage      = "I couldn't find novels that match those preferences yet. Try different genres or fewer restrictions!"
	FallbackExplanation   = "Here are some novels that match what you're looking for. Happy reading!"
	InternalErrorMessage  = "Sorry, something went wrong while finding recommendations. Please try again in a moment."
	InvalidRequestMessage = "Sorry, I couldn't read that request. Please send your message again."
)

// CatalogSource provides the cached catalog. ok is false when the catalog is
// missing or unusable.
type CatalogSource interface {
	Catalog(ctx context.Context) (novels []models.Novel, ok bool)
}

// PreferenceExtractor turns free text into preferences. It must not fail.
type PreferenceExtractor interface {
	Extract(ctx context.Context, input string) models.NovelPreference
}

// Outcome is the terminal state of a chat request.
type Outcome string

const (
	OutcomeRecommended   Outcome = "recommended"
	OutcomeEmptyCatalog  Outcome = "empty_catalog"
	OutcomeNoUserMessage Outcome = "no_user_message"
)

// Options tunes the engine.
type Options struct {
	DefaultLimit int
	MaxLimit     int
	// Explanation call settings
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

func (o *Options) applyDefaults() {
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = 5
	}
	if o.MaxLimit < o.DefaultLimit {
		o.MaxLimit = o.DefaultLimit
	}
}

// Engine runs recommendation requests. It holds no per-request state.
type Engine struct {
	catalog   CatalogSource
	extractor PreferenceExtractor
	llm       llm.Client
	ranker    *ranking.Ranker
	logger    *zap.Logger
	opts      Options
}

// NewEngine wires an Engine from its collaborators.
func NewEngine(catalog CatalogSource, extractor PreferenceExtractor, client llm.Client, ranker *ranking.Ranker, logger *zap.Logger, opts Options) *Engine {
	opts.applyDefaults()
	if ranker == nil {
		ranker = ranking.NewRanker(nil)
	}
	return &Engine{
		catalog:   catalog,
		extractor: extractor,
		llm:       client,
		ranker:    ranker,
		logger:    utils.LoggerOrNop(logger),
		opts:      opts,
	}
}

// Recommend returns up to limit catalog novels for prefs, best first. limit <= 0
// uses the default limit; larger values are capped. A missing or empty catalog
// yields an empty slice.
func (e *Engine) Recommend(ctx context.Context, prefs models.NovelPreference, limit int) []models.Novel {
	novels, ok := e.catalog.Catalog(ctx)
	if !ok {
		return []models.Novel{}
	}
	return e.rank(e.logger, novels, prefs, limit)
}

// rank filters invalid entries, then scores and truncates.
func (e *Engine) rank(logger *zap.Logger, novels []models.Novel, prefs models.NovelPreference, limit int) []models.Novel {
	valid := FilterValid(novels)
	if dropped := len(novels) - len(valid); dropped > 0 {
		logger.Debug("dropped invalid catalog entries", zap.Int("dropped", dropped), zap.Int("total", len(novels)))
	}
	if len(valid) == 0 {
		return []models.Novel{}
	}

	start := time.Now()
	ranked := e.ranker.Rank(valid, &prefs, e.limit(limit))
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	return ranked
}

func (e *Engine) limit(limit int) int {
	if limit <= 0 {
		return e.opts.DefaultLimit
	}
	if limit > e.opts.MaxLimit {
		return e.opts.MaxLimit
	}
	return limit
}

// Chat runs one request over a transcript:
// catalog check, then preference extraction from the latest user turn,
// scoring, and explanation. The response always has the uniform shape.
func (e *Engine) Chat(ctx context.Context, messages []models.ChatMessage) (*models.ChatResponse, Outcome) {
	start := time.Now()
	logger := e.logger.With(zap.String("request_id", RequestID(ctx)))

	novels, ok := e.catalog.Catalog(ctx)
	if !ok || len(novels) == 0 {
		logger.Info("catalog empty, short-circuiting")
		metrics.RecordRecommendation(string(OutcomeEmptyCatalog), 0, time.Since(start))
		return models.NewChatResponse(EmptyCatalogMessage, nil, models.NovelPreference{}), OutcomeEmptyCatalog
	}

	input, ok := models.LastUserMessage(messages)
	if !ok {
		metrics.RecordRecommendation(string(OutcomeNoUserMessage), 0, time.Since(start))
		return models.NewChatResponse(NoUserMessageMessage, nil, models.NovelPreference{}), OutcomeNoUserMessage
	}

	prefs := e.extractor.Extract(ctx, input)
	logger.Debug("preferences extracted", zap.String("input", utils.Truncate(input, 120)), zap.Any("preferences", prefs))

	recs := e.rank(logger, novels, prefs, 0)
	explanation := e.explain(ctx, logger, recs, prefs)

	logger.Info("recommendation served",
		zap.Int("catalog", len(novels)),
		zap.Int("results", len(recs)),
		zap.Duration("elapsed", time.Since(start)))
	metrics.RecordRecommendation(string(OutcomeRecommended), len(recs), time.Since(start))
	return models.NewChatResponse(explanation, recs, prefs), OutcomeRecommended
}

type requestIDKey struct{}

// WithRequestID attaches id to ctx for log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id attached to ctx, or a new random one.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// FilterValid returns the novels that can be scored, in order.
func FilterValid(novels []models.Novel) []models.Novel {
	valid := make([]models.Novel, 0, len(novels))
	for i := range novels {
		if novels[i].Valid() {
			valid = append(valid, novels[i])
		}
	}
	return valid
}

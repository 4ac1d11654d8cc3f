package recommend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/novellize/novellize/internal/llm"
	"github.com/novellize/novellize/internal/metrics"
	"github.com/novellize/novellize/internal/models"
	"github.com/novellize/novellize/pkg/utils"
)

const explainPurpose = "explanation"

// MaxExplanationWords caps the explanation shown to the reader.
const MaxExplanationWords = 100

const explainSystemPrompt = `You are a friendly librarian for a web novel community.
Explain in at most 100 words why the listed novels fit the reader's preferences.
Write plain prose, no lists or headings, and mention novels by title.`

// Explain asks the model for a short rationale. Failures and blank replies give
// FallbackExplanation; an empty list gives NoMatchesMessage without a call.
func (e *Engine) Explain(ctx context.Context, novels []models.Novel, prefs models.NovelPreference) string {
	return e.explain(ctx, e.logger, novels, prefs)
}

func (e *Engine) explain(ctx context.Context, logger *zap.Logger, novels []models.Novel, prefs models.NovelPreference) string {
	if len(novels) == 0 {
		return NoMatchesMessage
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := e.llm.CreateChatCompletion(ctx, llm.Request{
		Purpose: explainPurpose,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: explainSystemPrompt},
			{Role: llm.RoleUser, Content: explainPrompt(novels, prefs)},
		},
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
	metrics.RecordLLMCall(explainPurpose, time.Since(start), err)
	if err != nil {
		logger.Warn("explanation failed, using fallback", zap.Error(err))
		metrics.RecordLLMFallback(explainPurpose)
		return FallbackExplanation
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		metrics.RecordLLMFallback(explainPurpose)
		return FallbackExplanation
	}
	return utils.TruncateWords(reply, MaxExplanationWords)
}

// explainPrompt lists the preferences and one line per novel.
func explainPrompt(novels []models.Novel, prefs models.NovelPreference) string {
	var b strings.Builder
	prefJSON, err := json.Marshal(prefs)
	if err != nil {
		prefJSON = []byte("{}")
	}
	fmt.Fprintf(&b, "Reader preferences: %s\n\nRecommended novels:\n", prefJSON)
	for i := range novels {
		n := &novels[i]
		fmt.Fprintf(&b, "- %s | genres: %s | tags: %s | rating: %.1f",
			n.Title, strings.Join(n.GenreNames(), ", "), strings.Join(n.Tags, ", "), n.Rating)
		if n.SeriesStatus != "" {
			fmt.Fprintf(&b, " | status: %s", n.SeriesStatus)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

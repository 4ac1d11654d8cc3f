// Package ranking scores catalog novels against a reader's preferences.
package ranking

import (
	"strings"

	"github.com/novellize/novellize/internal/models"
)

// ScoringContext provides everything a scorer needs for one novel.
type ScoringContext struct {
	// Novel is the candidate being scored.
	Novel *models.Novel
	// Preferences are the reader's extracted preferences.
	Preferences *models.NovelPreference
	// Genres are the novel's genre names, lowercased.
	Genres []string
	// Tags are the novel's tags, lowercased.
	Tags []string
}

// NewScoringContext lowercases the novel's genres and tags once so every
// scorer can match against them.
func NewScoringContext(novel *models.Novel, prefs *models.NovelPreference) *ScoringContext {
	ctx := &ScoringContext{
		Novel:       novel,
		Preferences: prefs,
	}
	if novel == nil {
		return ctx
	}
	ctx.Genres = make([]string, 0, len(novel.Genres))
	for _, g := range novel.Genres {
		ctx.Genres = append(ctx.Genres, strings.ToLower(g.Name))
	}
	ctx.Tags = make([]string, 0, len(novel.Tags))
	for _, tag := range novel.Tags {
		ctx.Tags = append(ctx.Tags, strings.ToLower(tag))
	}
	return ctx
}

// ready reports whether both sides of the comparison are present.
func (c *ScoringContext) ready() bool {
	return c != nil && c.Novel != nil && c.Preferences != nil
}

// Scorer is the interface for the additive signals.
type Scorer interface {
	// Score returns the weighted contribution of this signal.
	Score(ctx *ScoringContext) float64
	// Name returns the name of the scorer for debugging/logging.
	Name() string
}

// Penalty is the interface for exclusion rules applied after the additive score.
type Penalty interface {
	// Penalize returns the amount to subtract, or 0 when the rule does not fire.
	Penalize(ctx *ScoringContext) float64
	// Name returns the name of the penalty for debugging/logging.
	Name() string
}

// ScoreBreakdown provides detailed scoring information for debugging.
type ScoreBreakdown struct {
	// FinalScore is the computed final score.
	FinalScore float64
	// Signals holds each scorer's contribution by name.
	Signals map[string]float64
	// Penalties holds each fired penalty by name.
	Penalties map[string]float64
}

// NewScoreBreakdown creates a new ScoreBreakdown instance.
func NewScoreBreakdown() *ScoreBreakdown {
	return &ScoreBreakdown{
		Signals:   make(map[string]float64),
		Penalties: make(map[string]float64),
	}
}

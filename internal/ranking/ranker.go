package ranking

import (
	"sort"

	"github.com/novellize/novellize/internal/models"
)

// Ranker combines the scorers and penalties to rank novels.
// It holds no mutable state and is safe for concurrent use.
type Ranker struct {
	config    *RankingConfig
	scorers   []Scorer
	penalties []Penalty
}

// NewRanker creates a new Ranker with the given configuration. A nil config uses
// the defaults; a non-nil config is used as given, zero weights included.
func NewRanker(config *RankingConfig) *Ranker {
	if config == nil {
		config = DefaultRankingConfig()
	}

	return &Ranker{
		config:    config,
		scorers:   DefaultScorers(config),
		penalties: DefaultPenalties(config),
	}
}

// WithScorers replaces the additive scorers.
func (r *Ranker) WithScorers(scorers []Scorer) *Ranker {
	r.scorers = scorers
	return r
}

// WithPenalties replaces the exclusion penalties.
func (r *Ranker) WithPenalties(penalties []Penalty) *Ranker {
	r.penalties = penalties
	return r
}

// Score returns the score of novel against prefs. It is a pure function of its inputs.
func (r *Ranker) Score(novel *models.Novel, prefs *models.NovelPreference) float64 {
	return r.ScoreWithContext(NewScoringContext(novel, prefs))
}

// ScoreWithContext calculates the score using a pre-built context:
// sum of signals, minus every fired penalty.
func (r *Ranker) ScoreWithContext(ctx *ScoringContext) float64 {
	score := 0.0
	for _, s := range r.scorers {
		score += s.Score(ctx)
	}
	for _, p := range r.penalties {
		score -= p.Penalize(ctx)
	}
	return score
}

// ScoreWithBreakdown returns detailed scoring information.
func (r *Ranker) ScoreWithBreakdown(novel *models.Novel, prefs *models.NovelPreference) *ScoreBreakdown {
	ctx := NewScoringContext(novel, prefs)
	breakdown := NewScoreBreakdown()

	score := 0.0
	for _, s := range r.scorers {
		v := s.Score(ctx)
		breakdown.Signals[s.Name()] = v
		score += v
	}
	for _, p := range r.penalties {
		if v := p.Penalize(ctx); v != 0 {
			breakdown.Penalties[p.Name()] = v
			score -= v
		}
	}
	breakdown.FinalScore = score
	return breakdown
}

// RankedNovel holds a novel with its computed score.
type RankedNovel struct {
	Novel models.Novel
	Score float64
}

// RankNovels scores every novel, drops those scoring <= 0, and sorts the rest by
// score descending. Equal scores keep catalog order. limit <= 0 keeps everything.
func (r *Ranker) RankNovels(novels []models.Novel, prefs *models.NovelPreference, limit int) []RankedNovel {
	results := make([]RankedNovel, 0, len(novels))
	for i := range novels {
		score := r.Score(&novels[i], prefs)
		if score > 0 {
			results = append(results, RankedNovel{Novel: novels[i], Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 {
		results = TopN(results, limit)
	}
	return results
}

// Rank is RankNovels without the scores.
func (r *Ranker) Rank(novels []models.Novel, prefs *models.NovelPreference, limit int) []models.Novel {
	ranked := r.RankNovels(novels, prefs, limit)
	out := make([]models.Novel, 0, len(ranked))
	for _, rn := range ranked {
		out = append(out, rn.Novel)
	}
	return out
}

// GetConfig returns the ranking configuration.
func (r *Ranker) GetConfig() *RankingConfig {
	return r.config
}

// TopN returns the top N results.
func TopN(results []RankedNovel, n int) []RankedNovel {
	if n >= len(results) {
		return results
	}
	return results[:n]
}

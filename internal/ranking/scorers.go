package ranking

import "strings"

// GenreScorer rewards novels whose genres cover the wanted genres.
type GenreScorer struct {
	config *RankingConfig
}

// NewGenreScorer creates a new GenreScorer.
func NewGenreScorer(config *RankingConfig) *GenreScorer {
	return &GenreScorer{config: config}
}

// Name returns the scorer name.
func (s *GenreScorer) Name() string {
	return "genre"
}

// Score returns the fraction of preferred genres found in the novel, times the genre weight.
func (s *GenreScorer) Score(ctx *ScoringContext) float64 {
	if !ctx.ready() || ctx.Preferences.Genres == nil {
		return 0
	}
	return MatchFraction(ctx.Preferences.Genres, ctx.Genres) * s.config.GenreWeight
}

// TagScorer rewards novels whose tags cover the wanted tags.
type TagScorer struct {
	config *RankingConfig
}

// NewTagScorer creates a new TagScorer.
func NewTagScorer(config *RankingConfig) *TagScorer {
	return &TagScorer{config: config}
}

// Name returns the scorer name.
func (s *TagScorer) Name() string {
	return "tags"
}

// Score returns the fraction of preferred tags found in the novel, times the tag weight.
func (s *TagScorer) Score(ctx *ScoringContext) float64 {
	if !ctx.ready() || ctx.Preferences.Tags == nil {
		return 0
	}
	return MatchFraction(ctx.Preferences.Tags, ctx.Tags) * s.config.TagWeight
}

// StatusScorer gives a flat bonus when the series status is exactly the wanted one.
type StatusScorer struct {
	config *RankingConfig
}

// NewStatusScorer creates a new StatusScorer.
func NewStatusScorer(config *RankingConfig) *StatusScorer {
	return &StatusScorer{config: config}
}

// Name returns the scorer name.
func (s *StatusScorer) Name() string {
	return "status"
}

// Score returns the status weight on an exact match.
func (s *StatusScorer) Score(ctx *ScoringContext) float64 {
	if !ctx.ready() || ctx.Preferences.Status == "" {
		return 0
	}
	if string(ctx.Novel.SeriesStatus) == ctx.Preferences.Status {
		return s.config.StatusWeight
	}
	return 0
}

// TypeScorer gives a flat bonus when the chapter type is exactly the wanted one.
type TypeScorer struct {
	config *RankingConfig
}

// NewTypeScorer creates a new TypeScorer.
func NewTypeScorer(config *RankingConfig) *TypeScorer {
	return &TypeScorer{config: config}
}

// Name returns the scorer name.
func (s *TypeScorer) Name() string {
	return "type"
}

// Score returns the type weight on an exact match.
func (s *TypeScorer) Score(ctx *ScoringContext) float64 {
	if !ctx.ready() || ctx.Preferences.Type == "" {
		return 0
	}
	if ctx.Novel.Classification() == ctx.Preferences.Type {
		return s.config.TypeWeight
	}
	return 0
}

// RatingScorer gives a flat bonus when the novel meets the rating floor.
// The margin above the floor does not matter.
type RatingScorer struct {
	config *RankingConfig
}

// NewRatingScorer creates a new RatingScorer.
func NewRatingScorer(config *RankingConfig) *RatingScorer {
	return &RatingScorer{config: config}
}

// Name returns the scorer name.
func (s *RatingScorer) Name() string {
	return "rating"
}

// Score returns the rating weight when rating >= minRating.
func (s *RatingScorer) Score(ctx *ScoringContext) float64 {
	if !ctx.ready() || ctx.Preferences.MinRating == nil {
		return 0
	}
	if ctx.Novel.Rating >= *ctx.Preferences.MinRating {
		return s.config.RatingWeight
	}
	return 0
}

// DefaultScorers returns the five additive signals in evaluation order.
func DefaultScorers(config *RankingConfig) []Scorer {
	return []Scorer{
		NewGenreScorer(config),
		NewTagScorer(config),
		NewStatusScorer(config),
		NewTypeScorer(config),
		NewRatingScorer(config),
	}
}

// MatchFraction returns the share of wanted terms that occur, case-insensitively,
// as a substring of at least one of have. have must already be lowercased.
// An empty wanted list yields 0.
func MatchFraction(wanted, have []string) float64 {
	matched := 0
	for _, w := range wanted {
		if ContainsAny(have, w) {
			matched++
		}
	}
	denom := len(wanted)
	if denom < 1 {
		denom = 1
	}
	return float64(matched) / float64(denom)
}

// ContainsAny reports whether term occurs, case-insensitively, in any of have.
// have must already be lowercased. A blank term matches nothing.
func ContainsAny(have []string, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return false
	}
	for _, h := range have {
		if strings.Contains(h, term) {
			return true
		}
	}
	return false
}

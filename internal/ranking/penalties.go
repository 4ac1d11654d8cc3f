package ranking

// ExcludedGenrePenalty fires when any novel genre matches any excluded genre.
type ExcludedGenrePenalty struct {
	config *RankingConfig
}

// NewExcludedGenrePenalty creates a new ExcludedGenrePenalty.
func NewExcludedGenrePenalty(config *RankingConfig) *ExcludedGenrePenalty {
	return &ExcludedGenrePenalty{config: config}
}

// Name returns the penalty name.
func (p *ExcludedGenrePenalty) Name() string {
	return "excluded_genre"
}

// Penalize returns the configured penalty on the first matching exclusion.
func (p *ExcludedGenrePenalty) Penalize(ctx *ScoringContext) float64 {
	if !ctx.ready() {
		return 0
	}
	for _, ex := range ctx.Preferences.ExcludedGenres {
		if ContainsAny(ctx.Genres, ex) {
			return p.config.ExcludedGenrePenalty
		}
	}
	return 0
}

// ExcludedTagPenalty fires when any novel tag matches any excluded tag.
type ExcludedTagPenalty struct {
	config *RankingConfig
}

// NewExcludedTagPenalty creates a new ExcludedTagPenalty.
func NewExcludedTagPenalty(config *RankingConfig) *ExcludedTagPenalty {
	return &ExcludedTagPenalty{config: config}
}

// Name returns the penalty name.
func (p *ExcludedTagPenalty) Name() string {
	return "excluded_tag"
}

// Penalize returns the configured penalty on the first matching exclusion.
func (p *ExcludedTagPenalty) Penalize(ctx *ScoringContext) float64 {
	if !ctx.ready() {
		return 0
	}
	for _, ex := range ctx.Preferences.ExcludedTags {
		if ContainsAny(ctx.Tags, ex) {
			return p.config.ExcludedTagPenalty
		}
	}
	return 0
}

// DefaultPenalties returns the exclusion penalties. Both may fire for one novel.
func DefaultPenalties(config *RankingConfig) []Penalty {
	return []Penalty{
		NewExcludedGenrePenalty(config),
		NewExcludedTagPenalty(config),
	}
}

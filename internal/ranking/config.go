package ranking

// RankingConfig holds the weights and penalties of the novel scoring model.
type RankingConfig struct {
	// Signal weights
	GenreWeight  float64 `yaml:"genre_weight" mapstructure:"genre_weight" validate:"gte=0"`   // default: 3.0
	TagWeight    float64 `yaml:"tag_weight" mapstructure:"tag_weight" validate:"gte=0"`       // default: 2.0
	StatusWeight float64 `yaml:"status_weight" mapstructure:"status_weight" validate:"gte=0"` // default: 1.5
	TypeWeight   float64 `yaml:"type_weight" mapstructure:"type_weight" validate:"gte=0"`     // default: 1.0
	RatingWeight float64 `yaml:"rating_weight" mapstructure:"rating_weight" validate:"gte=0"` // default: 1.0

	// Exclusion penalties, subtracted after the weighted sum
	ExcludedGenrePenalty float64 `yaml:"excluded_genre_penalty" mapstructure:"excluded_genre_penalty" validate:"gte=0"` // default: 5.0
	ExcludedTagPenalty   float64 `yaml:"excluded_tag_penalty" mapstructure:"excluded_tag_penalty" validate:"gte=0"`     // default: 5.0
}

// DefaultRankingConfig returns the default ranking configuration.
func DefaultRankingConfig() *RankingConfig {
	return &RankingConfig{
		GenreWeight:  3.0,
		TagWeight:    2.0,
		StatusWeight: 1.5,
		TypeWeight:   1.0,
		RatingWeight: 1.0,

		ExcludedGenrePenalty: 5.0,
		ExcludedTagPenalty:   5.0,
	}
}

// IsZero reports whether no weight or penalty is set.
func (c *RankingConfig) IsZero() bool {
	return *c == RankingConfig{}
}

// ApplyDefaults replaces an entirely unset configuration with the defaults.
// Individual zero values are kept: a zero weight drops that signal and a zero
// penalty disables that exclusion.
func (c *RankingConfig) ApplyDefaults() {
	if c.IsZero() {
		*c = *DefaultRankingConfig()
	}
}

package ranking

import (
	"testing"

	"github.com/novellize/novellize/internal/models"
)

func TestMatchFraction(t *testing.T) {
	tests := []struct {
		name   string
		wanted []string
		have   []string
		want   float64
	}{
		{"all match", []string{"fan", "rom"}, []string{"fantasy", "romance"}, 1.0},
		{"case insensitive wanted", []string{"FANTASY"}, []string{"fantasy"}, 1.0},
		{"partial", []string{"fantasy", "horror", "mystery", "drama"}, []string{"fantasy"}, 0.25},
		{"none", []string{"horror"}, []string{"fantasy"}, 0},
		{"empty wanted", []string{}, []string{"fantasy"}, 0},
		{"blank entry never matches", []string{" "}, []string{"fantasy"}, 0},
		{"duplicates in have", []string{"fantasy"}, []string{"fantasy", "fantasy"}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchFraction(tt.wanted, tt.have); !approx(got, tt.want) {
				t.Errorf("MatchFraction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScorers_AbsentFieldsContributeZero(t *testing.T) {
	config := DefaultRankingConfig()
	novel := novelA()
	novel.SeriesStatus = models.StatusOngoing
	novel.ChapterType = "Web Novel"
	ctx := NewScoringContext(&novel, &models.NovelPreference{})

	for _, s := range DefaultScorers(config) {
		if got := s.Score(ctx); got != 0 {
			t.Errorf("%s scored %v with empty preferences", s.Name(), got)
		}
	}
	for _, p := range DefaultPenalties(config) {
		if got := p.Penalize(ctx); got != 0 {
			t.Errorf("%s penalized %v with empty preferences", p.Name(), got)
		}
	}
}

func TestScorers_Names(t *testing.T) {
	want := []string{"genre", "tags", "status", "type", "rating"}
	scorers := DefaultScorers(DefaultRankingConfig())
	if len(scorers) != len(want) {
		t.Fatalf("got %d scorers", len(scorers))
	}
	for i, s := range scorers {
		if s.Name() != want[i] {
			t.Errorf("scorer %d name = %s, want %s", i, s.Name(), want[i])
		}
	}
}

func TestRatingScorer(t *testing.T) {
	s := NewRatingScorer(&RankingConfig{RatingWeight: 2})
	novel := models.Novel{ID: "x", Title: "X", Genres: []models.Genre{}, Tags: []string{}, Rating: 3.5}

	tests := []struct {
		min  float64
		want float64
	}{
		{3.5, 2},
		{3.0, 2},
		{4.0, 0},
	}
	for _, tt := range tests {
		ctx := NewScoringContext(&novel, &models.NovelPreference{MinRating: models.Float64(tt.min)})
		if got := s.Score(ctx); got != tt.want {
			t.Errorf("min %v: got %v, want %v", tt.min, got, tt.want)
		}
	}
}

func TestPenalties_CustomAmounts(t *testing.T) {
	config := &RankingConfig{ExcludedGenrePenalty: 7, ExcludedTagPenalty: 1}
	config.ApplyDefaults()
	ranker := NewRanker(config)
	a := novelA()
	prefs := models.NovelPreference{ExcludedGenres: []string{"fantasy"}, ExcludedTags: []string{"magic"}}
	if got := ranker.Score(&a, &prefs); !approx(got, -8) {
		t.Errorf("Score() = %v, want -8", got)
	}
}

func TestNewScoringContext_NilNovel(t *testing.T) {
	ctx := NewScoringContext(nil, &models.NovelPreference{Genres: []string{"x"}})
	if got := NewGenreScorer(DefaultRankingConfig()).Score(ctx); got != 0 {
		t.Errorf("nil novel scored %v", got)
	}
}

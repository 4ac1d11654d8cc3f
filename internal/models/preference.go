package models

import "github.com/goccy/go-json"

// NovelPreference is the structured form of what a reader asked for.
// A nil slice or pointer means the field was not given; an empty slice means it
// was given with no entries. Scoring treats the two differently.
type NovelPreference struct {
	Genres         []string `json:"genres"`
	Tags           []string `json:"tags"`
	Mood           []string `json:"mood"`
	Status         string   `json:"status"`
	Type           string   `json:"type"`
	SeriesType     string   `json:"seriesType"`
	MinRating      *float64 `json:"minRating"`
	ExcludedGenres []string `json:"excludedGenres"`
	ExcludedTags   []string `json:"excludedTags"`
	Availability   string   `json:"availability"`
}

// IsEmpty reports whether no field is set.
func (p *NovelPreference) IsEmpty() bool {
	return p.Genres == nil && p.Tags == nil && p.Mood == nil &&
		p.Status == "" && p.Type == "" && p.SeriesType == "" &&
		p.MinRating == nil && p.ExcludedGenres == nil && p.ExcludedTags == nil &&
		p.Availability == ""
}

// MarshalJSON writes only the fields that are set, so an empty preference is {}.
func (p NovelPreference) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{})
	if p.Genres != nil {
		out["genres"] = p.Genres
	}
	if p.Tags != nil {
		out["tags"] = p.Tags
	}
	if p.Mood != nil {
		out["mood"] = p.Mood
	}
	if p.Status != "" {
		out["status"] = p.Status
	}
	if p.Type != "" {
		out["type"] = p.Type
	}
	if p.SeriesType != "" {
		out["seriesType"] = p.SeriesType
	}
	if p.MinRating != nil {
		out["minRating"] = *p.MinRating
	}
	if p.ExcludedGenres != nil {
		out["excludedGenres"] = p.ExcludedGenres
	}
	if p.ExcludedTags != nil {
		out["excludedTags"] = p.ExcludedTags
	}
	if p.Availability != "" {
		out["availability"] = p.Availability
	}
	return json.Marshal(out)
}

// Float64 returns a pointer to v. Handy for MinRating literals.
func Float64(v float64) *float64 {
	return &v
}

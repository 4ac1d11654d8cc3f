// Package models defines the catalog, preference, and chat types shared across Novellize.
package models

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"
)

// SeriesStatus is the publication state of a novel.
type SeriesStatus string

const (
	StatusOngoing   SeriesStatus = "ONGOING"
	StatusCompleted SeriesStatus = "COMPLETED"
	StatusOnHold    SeriesStatus = "ON_HOLD"
	StatusCancelled SeriesStatus = "CANCELLED"
	StatusUpcoming  SeriesStatus = "UPCOMING"
)

// AvailabilityType is the pricing model of a novel.
type AvailabilityType string

const (
	AvailabilityFree     AvailabilityType = "FREE"
	AvailabilityFreemium AvailabilityType = "FREEMIUM"
	AvailabilityPaid     AvailabilityType = "PAID"
)

// Availability describes how a novel can be read.
type Availability struct {
	Type  AvailabilityType `json:"type"`
	Price *float64         `json:"price,omitempty"`
}

// Genre is a single genre label. Catalog entries store genres as {"name": ...};
// older ingestion runs wrote bare strings, which decode the same way.
type Genre struct {
	Name string `json:"name"`
}

// UnmarshalJSON accepts either {"name": "..."} or "...".
func (g *Genre) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		g.Name = name
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	g.Name = obj.Name
	return nil
}

// NovelID is an opaque identifier. The document store hands out string ids but
// hand-edited catalogs sometimes carry numbers.
type NovelID string

// UnmarshalJSON accepts a JSON string or number; null leaves the id empty.
func (id *NovelID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		*id = NovelID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*id = NovelID(n.String())
	return nil
}

// Novel is the read-only projection of a catalog entry consumed by the recommender.
// A decoded Novel keeps the JSON it came from and encodes back to exactly that,
// so descriptive fields this package does not model survive a round trip.
type Novel struct {
	ID           NovelID       `json:"id"`
	Title        string        `json:"title"`
	Genres       []Genre       `json:"genres"`
	Tags         []string      `json:"tags"`
	SeriesStatus SeriesStatus  `json:"seriesStatus,omitempty"`
	ChapterType  string        `json:"chapterType,omitempty"`
	Type         string        `json:"type,omitempty"`
	Rating       float64       `json:"rating"`
	Availability *Availability `json:"availability,omitempty"`
	CoverImage   string        `json:"coverImage,omitempty"`
	Publisher    string        `json:"publisher,omitempty"`
	Synopsis     string        `json:"synopsis,omitempty"`

	raw json.RawMessage
}

// novelFields has Novel's layout without its JSON methods.
type novelFields Novel

// UnmarshalJSON decodes the known fields and retains the original bytes.
func (n *Novel) UnmarshalJSON(data []byte) error {
	var f novelFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Novel(f)
	n.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the original catalog bytes when the novel was decoded,
// otherwise the modelled fields.
func (n Novel) MarshalJSON() ([]byte, error) {
	if len(n.raw) > 0 {
		return n.raw, nil
	}
	return json.Marshal(novelFields(n))
}

// Valid reports whether the novel can be scored: it needs an id and a title,
// and genres and tags must be present (possibly empty).
func (n *Novel) Valid() bool {
	if n == nil {
		return false
	}
	return n.ID != "" && strings.TrimSpace(n.Title) != "" && n.Genres != nil && n.Tags != nil
}

// Classification returns the chapter type, falling back to the legacy type field.
func (n *Novel) Classification() string {
	if n.ChapterType != "" {
		return n.ChapterType
	}
	return n.Type
}

// GenreNames returns the genre names in catalog order.
func (n *Novel) GenreNames() []string {
	names := make([]string, 0, len(n.Genres))
	for _, g := range n.Genres {
		names = append(names, g.Name)
	}
	return names
}

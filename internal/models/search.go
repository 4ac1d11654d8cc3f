package models

// SearchHit is one catalog text search match.
type SearchHit struct {
	Novel Novel   `json:"novel"`
	Score float64 `json:"score"`
}

// SearchResponse is the result of a catalog text search.
type SearchResponse struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

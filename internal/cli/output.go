// Package cli renders recommendation and search results for the terminal.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/novellize/novellize/internal/models"
	"github.com/novellize/novellize/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

const (
	rule          = "─────────────────────────────────────────────────────────"
	synopsisWords = 40
)

// WriteRecommendations writes a chat response to w in the given format.
func WriteRecommendations(w io.Writer, resp *models.ChatResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n\n", resp.Explanation)
	if len(resp.Recommendations) == 0 {
		fmt.Fprintln(w, "No recommendations.")
		return nil
	}
	fmt.Fprintf(w, "%d recommendation(s):\n", len(resp.Recommendations))
	for i := range resp.Recommendations {
		writeCard(w, i+1, &resp.Recommendations[i], 0)
	}
	return nil
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, resp *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\nFound %d novel(s) for %q\n", len(resp.Results), resp.Query)
	for i := range resp.Results {
		writeCard(w, i+1, &resp.Results[i].Novel, resp.Results[i].Score)
	}
	return nil
}

// PrintRecommendations prints a chat response to stdout as text.
func PrintRecommendations(resp *models.ChatResponse) {
	_ = WriteRecommendations(os.Stdout, resp, OutputText)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeCard prints one novel. A zero score is omitted.
func writeCard(w io.Writer, rank int, n *models.Novel, score float64) {
	fmt.Fprintln(w, rule)
	if score != 0 {
		fmt.Fprintf(w, "%d. %s  (score %.3f)\n", rank, n.Title, score)
	} else {
		fmt.Fprintf(w, "%d. %s\n", rank, n.Title)
	}
	fmt.Fprintf(w, "   ID: %s\n", n.ID)
	if genres := n.GenreNames(); len(genres) > 0 {
		fmt.Fprintf(w, "   Genres: %s\n", strings.Join(genres, ", "))
	}
	if len(n.Tags) > 0 {
		fmt.Fprintf(w, "   Tags: %s\n", strings.Join(n.Tags, ", "))
	}
	details := make([]string, 0, 4)
	if n.Rating > 0 {
		details = append(details, fmt.Sprintf("%s %.1f", Stars(n.Rating), n.Rating))
	}
	if n.SeriesStatus != "" {
		details = append(details, string(n.SeriesStatus))
	}
	if c := n.Classification(); c != "" {
		details = append(details, c)
	}
	if a := n.Availability; a != nil && a.Type != "" {
		if a.Price != nil {
			details = append(details, fmt.Sprintf("%s $%.2f", a.Type, *a.Price))
		} else {
			details = append(details, string(a.Type))
		}
	}
	if len(details) > 0 {
		fmt.Fprintf(w, "   %s\n", strings.Join(details, " | "))
	}
	if n.Synopsis != "" {
		fmt.Fprintf(w, "\n   %s\n", utils.TruncateWords(n.Synopsis, synopsisWords))
	}
	fmt.Fprintln(w)
}

// Stars renders a 0-5 rating as five stars, rounding to the nearest whole star.
func Stars(rating float64) string {
	full := int(rating + 0.5)
	if full < 0 {
		full = 0
	}
	if full > 5 {
		full = 5
	}
	return strings.Repeat("★", full) + strings.Repeat("☆", 5-full)
}

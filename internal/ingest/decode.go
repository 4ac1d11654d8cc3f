package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/novellize/novellize/internal/catalog"
	"github.com/novellize/novellize/internal/models"
)

// ErrUnsupportedFormat is returned for files that are not json, yaml or xlsx.
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// Format names a catalog file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// FormatFor maps a file extension to a Format.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Decode parses content in the given format. JSON and YAML accept a list of
// novels, a single novel, or an object with a "novels" list.
func Decode(content []byte, format Format) ([]models.Novel, error) {
	switch format {
	case FormatJSON:
		return decodeJSON(content)
	case FormatYAML:
		return decodeYAML(content)
	case FormatXLSX:
		return decodeXLSX(content)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func decodeJSON(content []byte) ([]models.Novel, error) {
	content = bytes.TrimSpace(content)
	if len(content) > 0 && content[0] == '{' {
		var wrapper struct {
			Novels json.RawMessage `json:"novels"`
		}
		if err := json.Unmarshal(content, &wrapper); err == nil && len(wrapper.Novels) > 0 {
			content = wrapper.Novels
		}
	}
	novels, _, err := catalog.DecodeNovels(content)
	return novels, err
}

// decodeYAML converts the document to JSON so both formats share decoding rules.
func decodeYAML(content []byte) ([]models.Novel, error) {
	var doc any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if doc == nil {
		return nil, errors.New("empty YAML document")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert YAML: %w", err)
	}
	return decodeJSON(data)
}

// Spreadsheet columns, matched case-insensitively against the header row.
const (
	colID           = "id"
	colTitle        = "title"
	colGenres       = "genres"
	colTags         = "tags"
	colSeriesStatus = "seriesstatus"
	colChapterType  = "chaptertype"
	colType         = "type"
	colRating       = "rating"
	colAvailability = "availability"
	colPrice        = "price"
	colCoverImage   = "coverimage"
	colPublisher    = "publisher"
	colSynopsis     = "synopsis"
)

// decodeXLSX reads the first sheet. The first row names the columns; list cells
// are comma separated. Rows whose rating or price does not parse are skipped.
func decodeXLSX(content []byte) ([]models.Novel, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, errors.New("sheet has no header row")
	}

	columns := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns[colID]; !ok {
		return nil, errors.New("header row has no id column")
	}
	if _, ok := columns[colTitle]; !ok {
		return nil, errors.New("header row has no title column")
	}

	novels := make([]models.Novel, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cell := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if cell(colID) == "" && cell(colTitle) == "" {
			continue
		}
		n, err := novelFromRow(cell)
		if err != nil {
			continue
		}
		novels = append(novels, n)
	}
	return novels, nil
}

func novelFromRow(cell func(string) string) (models.Novel, error) {
	n := models.Novel{
		ID:           models.NovelID(cell(colID)),
		Title:        cell(colTitle),
		Tags:         splitList(cell(colTags)),
		SeriesStatus: models.SeriesStatus(strings.ToUpper(cell(colSeriesStatus))),
		ChapterType:  cell(colChapterType),
		Type:         cell(colType),
		CoverImage:   cell(colCoverImage),
		Publisher:    cell(colPublisher),
		Synopsis:     cell(colSynopsis),
	}
	genres := splitList(cell(colGenres))
	n.Genres = make([]models.Genre, len(genres))
	for i, g := range genres {
		n.Genres[i] = models.Genre{Name: g}
	}
	if v := cell(colRating); v != "" {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return models.Novel{}, fmt.Errorf("rating %q: %w", v, err)
		}
		n.Rating = rating
	}
	if v := cell(colAvailability); v != "" {
		n.Availability = &models.Availability{Type: models.AvailabilityType(strings.ToUpper(v))}
		if p := cell(colPrice); p != "" {
			price, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return models.Novel{}, fmt.Errorf("price %q: %w", p, err)
			}
			n.Availability.Price = &price
		}
	}
	return n, nil
}

// splitList splits a comma separated cell, dropping blank items. An empty cell
// yields an empty, non-nil list.
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package preference turns a reader's free-text request into a NovelPreference.
// Extraction is best effort: any failure yields a fallback preference instead of an error.
package preference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/novellize/novellize/internal/llm"
	"github.com/novellize/novellize/internal/metrics"
	"github.com/novellize/novellize/internal/models"
	"github.com/novellize/novellize/pkg/utils"
)

const purpose = "preferences"

// Options tunes the extraction call.
type Options struct {
	Temperature float32
	MaxTokens   int
	// Timeout bounds the call. Zero means only the caller's context applies.
	Timeout time.Duration
}

// Extractor issues the preference-extraction chat completion.
type Extractor struct {
	client llm.Client
	logger *zap.Logger
	opts   Options
}

// NewExtractor creates an Extractor over client.
func NewExtractor(client llm.Client, logger *zap.Logger, opts Options) *Extractor {
	return &Extractor{
		client: client,
		logger: utils.LoggerOrNop(logger),
		opts:   opts,
	}
}

// Extract returns the preferences expressed in input. It never fails: when the
// call errors or the reply is not a usable JSON object, Fallback(input) is returned.
func (e *Extractor) Extract(ctx context.Context, input string) models.NovelPreference {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := e.client.CreateChatCompletion(ctx, llm.Request{
		Purpose: purpose,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: SystemPrompt},
			{Role: llm.RoleUser, Content: input},
		},
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
		JSONMode:    true,
	})
	metrics.RecordLLMCall(purpose, time.Since(start), err)
	if err != nil {
		e.logger.Warn("preference extraction failed, using fallback",
			zap.Error(err), zap.Bool("breaker_open", llm.IsRejected(err)))
		metrics.RecordLLMFallback(purpose)
		return Fallback(input)
	}

	prefs, err := Parse(reply)
	if err != nil {
		e.logger.Warn("preference reply is not a JSON object, using fallback",
			zap.Error(err), zap.String("reply", utils.Truncate(reply, 200)))
		metrics.RecordLLMFallback(purpose)
		return Fallback(input)
	}
	return prefs
}

// Fallback is the minimal preference used when extraction fails: the whole
// input, lowercased, as a single genre.
func Fallback(input string) models.NovelPreference {
	return models.NovelPreference{
		Genres: []string{strings.ToLower(strings.TrimSpace(input))},
	}
}

// Parse decodes a model reply into a normalized NovelPreference. Code fences and
// prose around the object are tolerated; anything but a JSON object is an error.
func Parse(reply string) (models.NovelPreference, error) {
	data := extractObject(reply)
	if len(data) == 0 || data[0] != '{' {
		return models.NovelPreference{}, errors.New("no JSON object in reply")
	}

	var w wirePreference
	if err := json.Unmarshal(data, &w); err != nil {
		return models.NovelPreference{}, fmt.Errorf("decode preference: %w", err)
	}

	prefs := models.NovelPreference{
		Genres:         []string(w.Genres),
		Tags:           []string(w.Tags),
		Mood:           []string(w.Mood),
		Status:         w.Status,
		Type:           w.Type,
		SeriesType:     w.SeriesType,
		MinRating:      w.MinRating.ptr(),
		ExcludedGenres: []string(w.ExcludedGenres),
		ExcludedTags:   []string(w.ExcludedTags),
		Availability:   w.Availability,
	}
	Normalize(&prefs)
	return prefs, nil
}

// Normalize trims every entry, drops blank list entries, canonicalizes status and
// availability spellings and clamps minRating to [0, 5]. A list that becomes empty
// stays present.
func Normalize(p *models.NovelPreference) {
	p.Genres = cleanList(p.Genres)
	p.Tags = cleanList(p.Tags)
	p.Mood = cleanList(p.Mood)
	p.ExcludedGenres = cleanList(p.ExcludedGenres)
	p.ExcludedTags = cleanList(p.ExcludedTags)

	p.Status = canonicalEnum(p.Status, statusValues)
	p.Availability = canonicalEnum(p.Availability, availabilityValues)
	p.Type = strings.TrimSpace(p.Type)
	p.SeriesType = strings.TrimSpace(p.SeriesType)

	if p.MinRating != nil {
		r := *p.MinRating
		if r < 0 {
			r = 0
		}
		if r > 5 {
			r = 5
		}
		p.MinRating = &r
	}
}

var statusValues = []string{
	string(models.StatusOngoing),
	string(models.StatusCompleted),
	string(models.StatusOnHold),
	string(models.StatusCancelled),
	string(models.StatusUpcoming),
}

var availabilityValues = []string{
	string(models.AvailabilityFree),
	string(models.AvailabilityFreemium),
	string(models.AvailabilityPaid),
}

// canonicalEnum maps "on hold" or "On-Hold" to "ON_HOLD" when it names a known
// value; unknown values are only trimmed.
func canonicalEnum(v string, known []string) string {
	v = strings.TrimSpace(v)
	upper := strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_").Replace(v))
	for _, k := range known {
		if upper == k {
			return k
		}
	}
	return v
}

func cleanList(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// extractObject strips Markdown code fences and surrounding prose.
func extractObject(reply string) []byte {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "json")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") {
		start := strings.IndexByte(s, '{')
		end := strings.LastIndexByte(s, '}')
		if start < 0 || end < start {
			return nil
		}
		s = s[start : end+1]
	}
	return bytes.TrimSpace([]byte(s))
}

// wirePreference is the reply shape with the leniency models need: a single
// string where a list is expected, and numeric strings for minRating.
type wirePreference struct {
	Genres         flexStrings `json:"genres"`
	Tags           flexStrings `json:"tags"`
	Mood           flexStrings `json:"mood"`
	Status         string      `json:"status"`
	Type           string      `json:"type"`
	SeriesType     string      `json:"seriesType"`
	MinRating      flexNumber  `json:"minRating"`
	ExcludedGenres flexStrings `json:"excludedGenres"`
	ExcludedTags   flexStrings `json:"excludedTags"`
	Availability   string      `json:"availability"`
}

type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*f = flexStrings{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	if many == nil {
		many = []string{}
	}
	*f = many
	return nil
}

type flexNumber struct {
	value float64
	set   bool
}

func (f *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = flexNumber{}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexNumber{value: n, set: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("minRating: %w", err)
	}
	*f = flexNumber{value: n, set: true}
	return nil
}

func (f flexNumber) ptr() *float64 {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}

// Package sitemap renders the public sitemap for the catalog.
package sitemap

import (
	"encoding/xml"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/novellize/novellize/internal/models"
)

const xmlns = "http://www.sitemaps.org/schemas/sitemap/0.9"

// StaticPages are listed before any novel page.
var StaticPages = []string{"/", "/browse", "/forum", "/chat"}

// ErrInvalidBaseURL is returned when the base URL is not an absolute http(s) URL.
var ErrInvalidBaseURL = errors.New("sitemap base URL must be an absolute http(s) URL")

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// Build renders a sitemap for baseURL with the static pages and one entry per
// valid novel, deduplicated by id in catalog order. A zero lastMod omits lastmod.
func Build(baseURL string, novels []models.Novel, lastMod time.Time) ([]byte, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, ErrInvalidBaseURL
	}
	root := base.String()

	var mod string
	if !lastMod.IsZero() {
		mod = lastMod.UTC().Format("2006-01-02")
	}

	set := urlSet{Xmlns: xmlns, URLs: make([]urlEntry, 0, len(StaticPages)+len(novels))}
	for _, page := range StaticPages {
		priority := "0.8"
		if page == "/" {
			priority = "1.0"
		}
		set.URLs = append(set.URLs, urlEntry{Loc: root + page, LastMod: mod, ChangeFreq: "daily", Priority: priority})
	}

	seen := make(map[models.NovelID]struct{}, len(novels))
	for i := range novels {
		n := &novels[i]
		if !n.Valid() {
			continue
		}
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		set.URLs = append(set.URLs, urlEntry{
			Loc:        root + "/novel/" + url.PathEscape(string(n.ID)),
			LastMod:    mod,
			ChangeFreq: "weekly",
			Priority:   "0.6",
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

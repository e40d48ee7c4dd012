package feed

import (
	"time"
)

// Item types

type Item struct {
	Published  time.Time
	Title      string
	URL        string
	Author     string
	Summary    string
	Categories []string
	Source     string // Registry source name that produced the item
}

// Candidate is the raw, not yet validated form of an Item as read by an adapter.
type Candidate struct {
	Published  time.Time
	Title      string
	URL        string
	Author     string
	Summary    string
	Categories []string
	Source     string
}

// Stats are per-run adapter counters, diagnostic only.
type Stats struct {
	Seen  int // candidate entries found in the document
	Dated int // entries with a parseable date
	Valid int // entries that became Items
}

// Source configuration types

type Format string

const (
	FormatAtom Format = "atom"
	FormatRSS  Format = "rss"
	FormatHTML Format = "html"
)

type Source struct {
	Name            string            // Derived from filename (without extension)
	Format          Format            `yaml:"format"`
	URL             string            `yaml:"url"` // Shorthand for a single endpoint
	Endpoints       []string          `yaml:"endpoints"`
	Section         string            `yaml:"section"`
	Enabled         bool              `yaml:"enabled"`
	InsecureTLS     bool              `yaml:"insecure_tls"`
	Timeout         int               `yaml:"timeout"` // seconds
	StrictStatus    bool              `yaml:"strict_status"`
	Headers         map[string]string `yaml:"headers"`
	TranslateFrom   string            `yaml:"translate_from"`
	LabelAsCategory bool              `yaml:"label_as_category"`
	ExtractSummary  bool              `yaml:"extract_summary"`
	Fields          SourceFields      `yaml:"fields"`
	HTML            SourceHTML        `yaml:"html"`
	Filters         []SourceFilter    `yaml:"filters"`
}

type SourceFields struct {
	Date             string `yaml:"date"`
	DateLayout       string `yaml:"date_layout"`
	VideoID          string `yaml:"video_id"` // Extension element, e.g. "yt:videoId"
	VideoURLTemplate string `yaml:"video_url_template"`
	LinkFallbackGUID bool   `yaml:"link_fallback_guid"`
}

type SourceHTML struct {
	BaseURL      string `yaml:"base_url"`
	Block        string `yaml:"block"`
	LinkPattern  string `yaml:"link_pattern"`
	TitlePattern string `yaml:"title_pattern"`
	TimePattern  string `yaml:"time_pattern"`
	TimeLayout   string `yaml:"time_layout"`
	MaxItems     int    `yaml:"max_items"`
}

type SourceFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

func (s *Source) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

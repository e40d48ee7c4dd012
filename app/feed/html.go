package feed

import (
	"cmp"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const DefaultHTMLMaxItems = 20

// HTMLAdapter extracts items from pages that publish no feed. The document is
// split into repeating blocks on a literal marker and each block is matched
// with the source's patterns.
type HTMLAdapter struct {
	now func() time.Time
}

func NewHTMLAdapter(now func() time.Time) *HTMLAdapter {
	return &HTMLAdapter{now: now}
}

type htmlPatterns struct {
	link  *regexp.Regexp
	title *regexp.Regexp
	time  *regexp.Regexp
}

func compileHTMLPatterns(cfg SourceHTML) (*htmlPatterns, error) {
	var p htmlPatterns
	var err error

	if p.link, err = regexp.Compile(cfg.LinkPattern); err != nil {
		return nil, fmt.Errorf("invalid link pattern: %w", err)
	}
	if cfg.TitlePattern != "" {
		if p.title, err = regexp.Compile(cfg.TitlePattern); err != nil {
			return nil, fmt.Errorf("invalid title pattern: %w", err)
		}
	}
	if cfg.TimePattern != "" {
		if p.time, err = regexp.Compile(cfg.TimePattern); err != nil {
			return nil, fmt.Errorf("invalid time pattern: %w", err)
		}
	}
	return &p, nil
}

func (a *HTMLAdapter) Run(data []byte, src *Source) ([]Item, Stats, error) {
	var stats Stats

	patterns, err := compileHTMLPatterns(src.HTML)
	if err != nil {
		return nil, stats, err
	}

	doc := string(data)
	if !strings.Contains(doc, src.HTML.Block) {
		return nil, stats, nil
	}

	base := cmp.Or(src.HTML.BaseURL, primaryEndpoint(src))
	layout := cmp.Or(src.HTML.TimeLayout, time.RFC3339)
	maxItems := cmp.Or(src.HTML.MaxItems, DefaultHTMLMaxItems)
	now := a.now()

	// Everything before the first marker is page chrome.
	blocks := strings.Split(doc, src.HTML.Block)[1:]

	seen := make(map[string]bool)
	items := make([]Item, 0, min(len(blocks), maxItems))
	for _, block := range blocks {
		if len(items) >= maxItems {
			break
		}
		stats.Seen++

		link := resolveURL(base, firstGroup(patterns.link, block))
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true

		published := now
		if patterns.time != nil {
			if t, ok := parseTime(firstGroup(patterns.time, block), layout); ok {
				published = t
			}
		}
		stats.Dated++

		var title string
		if patterns.title != nil {
			title = stripMarkup(firstGroup(patterns.title, block))
		}

		if item, ok := finalize(Candidate{Published: published, Title: title, URL: link}, src, &stats); ok {
			items = append(items, item)
		}
	}

	return items, stats, nil
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

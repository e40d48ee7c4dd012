package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed/atom"
	ext "github.com/mmcdole/gofeed/extensions"
)

const DefaultVideoURLTemplate = "https://www.youtube.com/watch?v=%s"

var atomDateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z",
}

type AtomAdapter struct{}

func NewAtomAdapter() *AtomAdapter {
	return &AtomAdapter{}
}

func (a *AtomAdapter) Run(data []byte, src *Source) ([]Item, Stats, error) {
	var stats Stats

	parser := &atom.Parser{}
	doc, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, stats, fmt.Errorf("failed to parse atom feed: %w", err)
	}

	layouts := atomDateLayouts
	if src.Fields.DateLayout != "" {
		layouts = []string{src.Fields.DateLayout}
	}

	items := make([]Item, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		if entry == nil {
			continue
		}
		stats.Seen++

		published, ok := parseTime(a.dateValue(entry, src.Fields.Date), layouts...)
		if !ok {
			continue
		}
		stats.Dated++

		candidate := Candidate{
			Published:  published,
			Title:      entry.Title,
			URL:        a.resolveLink(entry, src),
			Author:     a.extractAuthor(entry),
			Summary:    a.extractSummary(entry),
			Categories: a.extractCategories(entry),
		}

		if item, ok := finalize(candidate, src, &stats); ok {
			items = append(items, item)
		}
	}

	return items, stats, nil
}

// dateValue returns the configured date field, falling back to the other one.
func (a *AtomAdapter) dateValue(entry *atom.Entry, field string) string {
	if field == "updated" {
		return cmp.Or(strings.TrimSpace(entry.Updated), strings.TrimSpace(entry.Published))
	}
	return cmp.Or(strings.TrimSpace(entry.Published), strings.TrimSpace(entry.Updated))
}

func (a *AtomAdapter) resolveLink(entry *atom.Entry, src *Source) string {
	if src.Fields.VideoID != "" {
		if id := extensionValue(entry.Extensions, src.Fields.VideoID); id != "" {
			template := cmp.Or(src.Fields.VideoURLTemplate, DefaultVideoURLTemplate)
			return fmt.Sprintf(template, id)
		}
	}

	for _, link := range entry.Links {
		if link == nil {
			continue
		}
		if link.Rel == "" || link.Rel == "alternate" {
			return resolveURL(primaryEndpoint(src), link.Href)
		}
	}
	return ""
}

func (a *AtomAdapter) extractAuthor(entry *atom.Entry) string {
	for _, author := range entry.Authors {
		if author == nil {
			continue
		}
		if name := cmp.Or(strings.TrimSpace(author.Name), strings.TrimSpace(author.Email), strings.TrimSpace(author.URI)); name != "" {
			return name
		}
	}
	return ""
}

func (a *AtomAdapter) extractSummary(entry *atom.Entry) string {
	if entry.Summary != "" {
		return entry.Summary
	}
	if entry.Content != nil {
		return entry.Content.Value
	}
	return ""
}

func (a *AtomAdapter) extractCategories(entry *atom.Entry) []string {
	categories := make([]string, 0, len(entry.Categories))
	for _, category := range entry.Categories {
		if category == nil {
			continue
		}
		categories = append(categories, cmp.Or(category.Term, category.Label))
	}
	return categories
}

// extensionValue looks up a "prefix:name" extension element and returns its text.
func extensionValue(extensions ext.Extensions, field string) string {
	prefix, name, ok := strings.Cut(field, ":")
	if !ok {
		return ""
	}

	elements, ok := extensions[prefix]
	if !ok {
		return ""
	}
	for _, element := range elements[name] {
		if v := strings.TrimSpace(element.Value); v != "" {
			return v
		}
	}
	return ""
}

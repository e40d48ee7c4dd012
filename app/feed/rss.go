package feed

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/rss"
)

type RSSAdapter struct{}

func NewRSSAdapter() *RSSAdapter {
	return &RSSAdapter{}
}

func (a *RSSAdapter) Run(data []byte, src *Source) ([]Item, Stats, error) {
	var stats Stats

	parser := &rss.Parser{}
	doc, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, stats, fmt.Errorf("failed to parse rss feed: %w", err)
	}

	layouts := a.dateLayouts(src)

	items := make([]Item, 0, len(doc.Items))
	for _, item := range doc.Items {
		if item == nil {
			continue
		}
		stats.Seen++

		published, ok := parseTime(a.dateValue(item, src.Fields.Date), layouts...)
		if !ok {
			continue
		}
		stats.Dated++

		candidate := Candidate{
			Published:  published,
			Title:      item.Title,
			URL:        a.resolveLink(item, src),
			Author:     a.extractAuthor(item),
			Summary:    item.Description,
			Categories: a.extractCategories(item),
		}

		if normalized, ok := finalize(candidate, src, &stats); ok {
			items = append(items, normalized)
		}
	}

	return items, stats, nil
}

// dateLayouts accepts RFC 1123 dates with either a numeric zone or a zone
// name such as GMT unless the source sets its own layout.
func (a *RSSAdapter) dateLayouts(src *Source) []string {
	if src.Fields.DateLayout != "" {
		return []string{src.Fields.DateLayout}
	}
	if src.Fields.Date == "dc:date" {
		return []string{time.RFC3339}
	}
	return []string{time.RFC1123Z, time.RFC1123}
}

func (a *RSSAdapter) dateValue(item *rss.Item, field string) string {
	if field == "dc:date" {
		if item.DublinCoreExt != nil && len(item.DublinCoreExt.Date) > 0 {
			return item.DublinCoreExt.Date[0]
		}
		return ""
	}
	return item.PubDate
}

func (a *RSSAdapter) resolveLink(item *rss.Item, src *Source) string {
	link := strings.TrimSpace(item.Link)
	if link == "" && src.Fields.LinkFallbackGUID && item.GUID != nil {
		link = strings.TrimSpace(item.GUID.Value)
	}
	if link == "" {
		return ""
	}
	return resolveURL(primaryEndpoint(src), link)
}

func (a *RSSAdapter) extractAuthor(item *rss.Item) string {
	if item.DublinCoreExt != nil {
		for _, creator := range item.DublinCoreExt.Creator {
			if c := strings.TrimSpace(creator); c != "" {
				return c
			}
		}
	}
	return strings.TrimSpace(item.Author)
}

func (a *RSSAdapter) extractCategories(item *rss.Item) []string {
	categories := make([]string, 0, len(item.Categories))
	for _, category := range item.Categories {
		if category != nil {
			categories = append(categories, category.Value)
		}
	}
	return categories
}

package feed

import (
	"fmt"
	"strings"
	"time"
)

// Adapter turns one raw document into normalized items for a source.
// Entry-level problems are skipped and counted in Stats; only a document
// that cannot be parsed at all returns an error.
type Adapter interface {
	Run(data []byte, src *Source) ([]Item, Stats, error)
}

var (
	_ Adapter = (*AtomAdapter)(nil)
	_ Adapter = (*RSSAdapter)(nil)
	_ Adapter = (*HTMLAdapter)(nil)
)

func NewAdapter(format Format) (Adapter, error) {
	switch format {
	case FormatAtom:
		return NewAtomAdapter(), nil
	case FormatRSS:
		return NewRSSAdapter(), nil
	case FormatHTML:
		return NewHTMLAdapter(time.Now), nil
	default:
		return nil, fmt.Errorf("unsupported source format: %q", format)
	}
}

// finalize tags a candidate with its source and validates it.
func finalize(c Candidate, src *Source, stats *Stats) (Item, bool) {
	c.Source = src.Name
	if src.LabelAsCategory {
		c.Categories = append([]string{src.Name}, c.Categories...)
	}

	item, err := NewItem(c)
	if err != nil {
		return Item{}, false
	}
	stats.Valid++
	return item, true
}

// parseTime tries each layout in order.
func parseTime(value string, layouts ...string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func primaryEndpoint(src *Source) string {
	if len(src.Endpoints) > 0 {
		return src.Endpoints[0]
	}
	return src.URL
}

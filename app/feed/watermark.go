package feed

import (
	"slices"
	"strings"
	"time"
)

const DefaultWatermarkWindow = 24 * time.Hour

var watermarkLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseWatermark parses an ISO-8601 timestamp. An empty or invalid value falls
// back to now minus DefaultWatermarkWindow; the bool reports whether raw was used.
func ParseWatermark(raw string, now time.Time) (time.Time, bool) {
	if t, ok := parseTime(strings.TrimSpace(raw), watermarkLayouts...); ok {
		return t, true
	}
	return now.Add(-DefaultWatermarkWindow), false
}

// FilterSince returns the items published strictly after watermark, sorted
// ascending by publication time. Items with equal times keep their input order.
func FilterSince(items []Item, watermark time.Time) []Item {
	filtered := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Published.After(watermark) {
			filtered = append(filtered, item)
		}
	}

	slices.SortStableFunc(filtered, func(a, b Item) int {
		return a.Published.Compare(b.Published)
	})

	return filtered
}

package feed

import (
	"errors"
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

const (
	TitlePlaceholder = "(untitled)"
	MaxSummaryLength = 280
)

var ErrMissingURL = errors.New("item has no URL")

// NewItem validates a candidate and returns the normalized Item.
func NewItem(c Candidate) (Item, error) {
	link := strings.TrimSpace(c.URL)
	if link == "" {
		return Item{}, ErrMissingURL
	}

	return Item{
		Published:  c.Published,
		Title:      cleanTitle(c.Title),
		URL:        link,
		Author:     normalizeText(c.Author),
		Summary:    truncate(normalizeText(stripMarkup(c.Summary)), MaxSummaryLength),
		Categories: cleanCategories(c.Categories),
		Source:     c.Source,
	}, nil
}

func cleanTitle(title string) string {
	title = normalizeText(title)
	if title == "" {
		return TitlePlaceholder
	}
	return title
}

func cleanCategories(categories []string) []string {
	cleaned := make([]string, 0, len(categories))
	for _, category := range categories {
		if c := normalizeText(category); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return cleaned
}

// normalizeText applies NFC, collapses whitespace runs to one space and trims.
func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		space = false
		b.WriteRune(r)
	}

	return strings.TrimSpace(b.String())
}

// stripMarkup returns the text content of an HTML fragment with entities decoded.
func stripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

// resolveURL returns href as an absolute URL resolved against base, or "" if it cannot.
func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}

	baseURL, err := url.Parse(base)
	if err != nil || !baseURL.IsAbs() {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}

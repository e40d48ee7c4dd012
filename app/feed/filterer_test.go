package feed

import (
	"testing"
)

func TestFilterer_Run_NoFilters(t *testing.T) {
	filterer := NewFilterer()

	items := []Item{
		{Title: "Test Item 1", Summary: "Test summary"},
		{Title: "Test Item 2", Summary: "Another summary"},
	}

	result := filterer.Run(items, &Source{Name: "s"})

	if len(result) != 2 {
		t.Errorf("Expected 2 items, got %d", len(result))
	}
}

func TestFilterer_Run_TitleIncludeFilter(t *testing.T) {
	filterer := NewFilterer()

	items := []Item{
		{Title: "Breaking News: Important Update"},
		{Title: "Sports Update"},
		{Title: "Weather Report"},
	}

	src := &Source{
		Name: "s",
		Filters: []SourceFilter{
			{Field: "title", Includes: []string{"news", "update"}},
		},
	}

	result := filterer.Run(items, src)

	if len(result) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(result))
	}
	if result[1].Title != "Sports Update" {
		t.Errorf("Expected 'Sports Update' to be kept, got %s", result[1].Title)
	}
}

func TestFilterer_Run_CombinedIncludeExclude(t *testing.T) {
	filterer := NewFilterer()

	items := []Item{
		{Title: "Tech News Update"},
		{Title: "Tech Advertisement"},
		{Title: "Sports News"},
		{Title: "Weather Report"},
	}

	src := &Source{
		Name: "s",
		Filters: []SourceFilter{
			{Field: "title", Includes: []string{"tech", "news"}, Excludes: []string{"advertisement"}},
		},
	}

	result := filterer.Run(items, src)

	if len(result) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(result))
	}
	if result[0].Title != "Tech News Update" || result[1].Title != "Sports News" {
		t.Errorf("Unexpected items kept: %v", result)
	}
}

func TestFilterer_Run_CategoriesAndAuthor(t *testing.T) {
	filterer := NewFilterer()

	items := []Item{
		{Title: "Article 1", Author: "John", Categories: []string{"Technology", "News"}},
		{Title: "Article 2", Author: "Spammer", Categories: []string{"Technology"}},
		{Title: "Article 3", Author: "Jane", Categories: []string{"Sports"}},
	}

	src := &Source{
		Name: "s",
		Filters: []SourceFilter{
			{Field: "categories", Includes: []string{"technology"}},
			{Field: "author", Excludes: []string{"spam"}},
		},
	}

	result := filterer.Run(items, src)

	if len(result) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(result))
	}
	if result[0].Title != "Article 1" {
		t.Errorf("Expected 'Article 1', got %s", result[0].Title)
	}
}

func TestFilterer_getFieldValue(t *testing.T) {
	filterer := NewFilterer()
	item := Item{Title: "t", Summary: "s", Author: "a", URL: "u", Categories: []string{"c1", "c2"}}

	tests := map[string]string{
		"title":      "t",
		"summary":    "s",
		"author":     "a",
		"url":        "u",
		"categories": "c1 c2",
		"unknown":    "",
	}

	for field, want := range tests {
		if got := filterer.getFieldValue(item, field); got != want {
			t.Errorf("getFieldValue(%s) = %q, want %q", field, got, want)
		}
	}
}

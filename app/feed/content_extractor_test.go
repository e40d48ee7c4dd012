package feed

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestContentExtractor_Run_ValidHTML(t *testing.T) {
	extractor := NewContentExtractor()

	htmlContent := `
	<!DOCTYPE html>
	<html>
	<head>
		<title>Test Article</title>
	</head>
	<body>
		<header>
			<h1>Site Header</h1>
			<nav>Navigation</nav>
		</header>
		<main>
			<article>
				<h1>Main Article Title</h1>
				<p>This is the main content of the article. It contains several paragraphs of meaningful text that should be extracted by the readability algorithm.</p>
				<p>This is another paragraph with more content. The readability algorithm should identify this as the main content area and extract it properly.</p>
				<p>Here is some more substantial content to ensure we meet the character threshold. This paragraph adds more context and information that would be valuable to readers.</p>
			</article>
		</main>
		<aside>
			<div>Advertisement</div>
		</aside>
		<footer>
			<p>Copyright 2024</p>
		</footer>
	</body>
	</html>
	`

	result, err := extractor.Run([]byte(htmlContent), "https://example.com/article")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(result, "main content of the article") {
		t.Errorf("Expected summary to contain main article text, got: %s", result)
	}
	if strings.Contains(result, "Copyright 2024") {
		t.Errorf("Expected summary to exclude footer, got: %s", result)
	}
}

func TestContentExtractor_Run_MetaDescription(t *testing.T) {
	extractor := NewContentExtractor()

	htmlContent := `
	<!DOCTYPE html>
	<html>
	<head>
		<title>News Article</title>
		<meta name="description" content="Breaking news story">
	</head>
	<body>
		<article>
			<h1>Breaking News: Important Update</h1>
			<p>This is a breaking news story with important information. The article contains detailed coverage of recent events that are significant to readers everywhere.</p>
			<p>Additional details about the story are provided here, with more context and background information for the reader to understand the situation fully.</p>
		</article>
	</body>
	</html>
	`

	result, err := extractor.Run([]byte(htmlContent), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result != "Breaking news story" {
		t.Errorf("Expected summary from meta description, got: %s", result)
	}
}

func TestContentExtractor_Run_LongArticleIsCapped(t *testing.T) {
	extractor := NewContentExtractor()

	var paragraphs []string
	for i := 0; i < 10; i++ {
		paragraphs = append(paragraphs, `<p>`+strings.Repeat("Substantial article text that keeps going. ", 20)+`</p>`)
	}
	htmlContent := `<html><head><title>Long</title></head><body><article>` + strings.Join(paragraphs, "") + `</article></body></html>`

	result, err := extractor.Run([]byte(htmlContent), "")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n := utf8.RuneCountInString(result); n > MaxSummaryLength {
		t.Errorf("Expected summary of at most %d runes, got %d", MaxSummaryLength, n)
	}
	if !strings.HasSuffix(result, "…") {
		t.Errorf("Expected truncated summary to end with ellipsis, got: %s", result)
	}
}

func TestContentExtractor_Run_EmptyData(t *testing.T) {
	extractor := NewContentExtractor()

	for _, data := range [][]byte{nil, {}} {
		result, err := extractor.Run(data, "")
		if err == nil {
			t.Fatalf("Expected error for empty data")
		}
		if result != "" {
			t.Errorf("Expected empty result for empty data")
		}
		if err.Error() != "HTML data is empty" {
			t.Errorf("Expected error message 'HTML data is empty', got '%s'", err.Error())
		}
	}
}

func TestContentExtractor_Run_MinimalHTML(t *testing.T) {
	extractor := NewContentExtractor()

	result, err := extractor.Run([]byte(`<html><body><p>Short text</p></body></html>`), "")

	// Readability may reject content under its character threshold
	if err != nil {
		if result != "" {
			t.Errorf("Expected empty result when extraction fails")
		}
	} else if !strings.Contains(result, "Short text") {
		t.Errorf("Expected extracted content to contain the text, got: %s", result)
	}
}

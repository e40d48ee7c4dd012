package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRegistryLoadValidSource(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "videos.yml", `
format: atom
endpoints:
  - "https://primary.example.com/feed.xml"
  - "https://mirror.example.com/feed.xml"
section: Videos
enabled: true
insecure_tls: true
timeout: 15
translate_from: ja
fields:
  video_id: "yt:videoId"
filters:
  - field: "title"
    excludes:
      - "shorts"
`)

	registry := NewRegistry(tempDir)
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	if registry.GetSourceCount() != 1 {
		t.Errorf("Expected 1 source, got %d", registry.GetSourceCount())
	}

	src, err := registry.GetSource("videos")
	if err != nil {
		t.Fatal(err)
	}

	if src.Name != "videos" {
		t.Errorf("Expected name 'videos', got '%s'", src.Name)
	}
	if src.Format != FormatAtom {
		t.Errorf("Expected format atom, got '%s'", src.Format)
	}
	if len(src.Endpoints) != 2 || src.Endpoints[1] != "https://mirror.example.com/feed.xml" {
		t.Errorf("Expected 2 endpoints in order, got %v", src.Endpoints)
	}
	if src.Section != "Videos" {
		t.Errorf("Expected section 'Videos', got '%s'", src.Section)
	}
	if !src.Enabled || !src.InsecureTLS {
		t.Errorf("Expected enabled and insecure_tls to be set")
	}
	if src.Timeout != 15 {
		t.Errorf("Expected timeout 15, got %d", src.Timeout)
	}
	if src.TranslateFrom != "ja" {
		t.Errorf("Expected translate_from 'ja', got '%s'", src.TranslateFrom)
	}
	if src.Fields.VideoID != "yt:videoId" {
		t.Errorf("Expected video_id 'yt:videoId', got '%s'", src.Fields.VideoID)
	}
	if len(src.Filters) != 1 {
		t.Errorf("Expected 1 filter, got %d", len(src.Filters))
	}
}

func TestRegistryLoadSourceWithDefaults(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "blog.yaml", `
format: RSS
url: "https://example.com/feed.xml"
enabled: true
`)
	writeSource(t, tempDir, "listing.yml", `
format: html
url: "https://example.com/news"
html:
  block: "<article"
  link_pattern: 'href="([^"]+)"'
`)

	registry := NewRegistry(tempDir)
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	blog, err := registry.GetSource("blog")
	if err != nil {
		t.Fatal(err)
	}
	if blog.Format != FormatRSS {
		t.Errorf("Expected format to be lowercased, got '%s'", blog.Format)
	}
	if len(blog.Endpoints) != 1 || blog.Endpoints[0] != "https://example.com/feed.xml" {
		t.Errorf("Expected url shorthand as single endpoint, got %v", blog.Endpoints)
	}
	if blog.Section != DefaultSection {
		t.Errorf("Expected default section, got '%s'", blog.Section)
	}
	if blog.Timeout != DefaultTimeout {
		t.Errorf("Expected default timeout %d, got %d", DefaultTimeout, blog.Timeout)
	}

	listing, err := registry.GetSource("listing")
	if err != nil {
		t.Fatal(err)
	}
	if listing.HTML.MaxItems != DefaultHTMLMaxItems {
		t.Errorf("Expected default max items %d, got %d", DefaultHTMLMaxItems, listing.HTML.MaxItems)
	}
	if listing.Enabled {
		t.Errorf("Expected source without enabled flag to be disabled")
	}
}

func TestRegistryEnabledSources(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "b.yml", "format: rss\nurl: https://b.example.com/feed\nenabled: true\nsection: Zeta\n")
	writeSource(t, tempDir, "a.yml", "format: rss\nurl: https://a.example.com/feed\nenabled: true\nsection: Alpha\n")
	writeSource(t, tempDir, "c.yml", "format: rss\nurl: https://c.example.com/feed\nenabled: false\n")

	registry := NewRegistry(tempDir)
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	all := registry.GetSources()
	if len(all) != 3 || all[0].Name != "a" || all[2].Name != "c" {
		t.Errorf("Expected sources sorted by name, got %d", len(all))
	}

	enabled := registry.GetEnabledSources()
	if len(enabled) != 2 {
		t.Fatalf("Expected 2 enabled sources, got %d", len(enabled))
	}

	enabled = registry.GetEnabledSources("a")
	if len(enabled) != 1 || enabled[0].Name != "b" {
		t.Errorf("Expected only 'b' after disabling 'a', got %v", enabled)
	}

	sections := registry.Sections()
	if strings.Join(sections, ",") != "Alpha,News,Zeta" {
		t.Errorf("Expected sections Alpha,News,Zeta, got %v", sections)
	}
}

func TestRegistryMissingDirectory(t *testing.T) {
	registry := NewRegistry(filepath.Join(t.TempDir(), "missing"))
	if err := registry.Run(); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestRegistryEmptyDirectory(t *testing.T) {
	registry := NewRegistry(t.TempDir())
	if err := registry.Run(); err != nil {
		t.Fatalf("Expected no error for empty directory, got: %v", err)
	}
	if registry.GetSourceCount() != 0 {
		t.Errorf("Expected 0 sources, got %d", registry.GetSourceCount())
	}
}

func TestRegistryInvalidSources(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"invalid yaml", "format: [atom", "failed to parse YAML"},
		{"missing format", "url: https://example.com/feed", "format is required"},
		{"unknown format", "format: json\nurl: https://example.com/feed", "unsupported format"},
		{"missing endpoint", "format: atom", "at least one endpoint"},
		{"bad endpoint", "format: atom\nurl: ftp://example.com/feed", "invalid endpoint"},
		{"negative timeout", "format: atom\nurl: https://example.com/feed\ntimeout: -1", "timeout must be non-negative"},
		{"html without block", "format: html\nurl: https://example.com\nhtml:\n  link_pattern: 'x(y)'", "block marker is required"},
		{"html bad regex", "format: html\nurl: https://example.com\nhtml:\n  block: '<li'\n  link_pattern: 'x('", "invalid link pattern"},
		{"bad template", "format: atom\nurl: https://example.com/feed\nfields:\n  video_url_template: 'https://v/'", "exactly one %s"},
		{"bad filter field", "format: rss\nurl: https://example.com/feed\nfilters:\n  - field: body\n    includes: [x]", "invalid filter field"},
		{"empty filter", "format: rss\nurl: https://example.com/feed\nfilters:\n  - field: title", "at least one include or exclude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			writeSource(t, tempDir, "bad.yml", tt.content)

			err := NewRegistry(tempDir).Run()
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestRegistryReloadSource(t *testing.T) {
	tempDir := t.TempDir()
	writeSource(t, tempDir, "blog.yml", "format: rss\nurl: https://example.com/feed\nenabled: true\n")

	registry := NewRegistry(tempDir)
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	writeSource(t, tempDir, "blog.yml", "format: rss\nurl: https://example.com/feed\nenabled: false\n")

	src, err := registry.LoadSource("blog")
	if err != nil {
		t.Fatal(err)
	}
	if src.Enabled {
		t.Errorf("Expected reloaded source to be disabled")
	}

	cached, _ := registry.GetSource("blog")
	if cached.Enabled {
		t.Errorf("Expected cache to hold reloaded source")
	}

	if _, err := registry.GetSource("missing"); err == nil {
		t.Error("Expected error for unknown source")
	}
	if _, err := registry.LoadSource("missing"); err == nil {
		t.Error("Expected error for missing source file")
	}
}

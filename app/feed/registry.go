package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSection = "News"
	DefaultTimeout = 30
)

// Registry holds the source descriptors loaded from a directory of YAML files,
// one source per file named after the source.
type Registry struct {
	sourcesDir string
	cache      map[string]*Source
	mu         sync.RWMutex
}

func NewRegistry(sourcesDir string) *Registry {
	return &Registry{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Source),
	}
}

func (r *Registry) Run() error {
	if _, err := os.Stat(r.sourcesDir); os.IsNotExist(err) {
		return fmt.Errorf("sources directory %s does not exist", r.sourcesDir)
	}

	var files []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(r.sourcesDir, pattern))
		if err != nil {
			return fmt.Errorf("failed to find YAML files: %w", err)
		}
		files = append(files, matches...)
	}
	slices.Sort(files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))

		src, err := r.loadFile(name, file)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source loaded", "source", name, "format", src.Format, "enabled", src.Enabled, "endpoints", len(src.Endpoints))
	}

	return nil
}

func (r *Registry) LoadSource(name string) (*Source, error) {
	for _, ext := range []string{".yml", ".yaml"} {
		file := filepath.Join(r.sourcesDir, name+ext)
		if _, err := os.Stat(file); err == nil {
			return r.loadFile(name, file)
		}
	}
	return nil, fmt.Errorf("source file for '%s' not found", name)
}

func (r *Registry) loadFile(name, file string) (*Source, error) {
	src, err := r.parseSource(file)
	if err != nil {
		return nil, err
	}

	src.Name = name

	if err := r.validateSource(src); err != nil {
		return nil, fmt.Errorf("invalid source %s: %w", file, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[src.Name] = src

	return src, nil
}

func (r *Registry) GetSource(name string) (*Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.cache[name]
	if !ok {
		return nil, fmt.Errorf("source with name '%s' not found", name)
	}
	return src, nil
}

// GetSources returns all sources ordered by name.
func (r *Registry) GetSources() []*Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]*Source, 0, len(r.cache))
	for _, src := range r.cache {
		sources = append(sources, src)
	}
	slices.SortFunc(sources, func(a, b *Source) int {
		return strings.Compare(a.Name, b.Name)
	})
	return sources
}

// GetEnabledSources returns enabled sources ordered by name, minus any in disabled.
func (r *Registry) GetEnabledSources(disabled ...string) []*Source {
	var enabled []*Source
	for _, src := range r.GetSources() {
		if src.Enabled && !slices.Contains(disabled, src.Name) {
			enabled = append(enabled, src)
		}
	}
	return enabled
}

func (r *Registry) GetSourceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Sections returns the distinct sections of all sources ordered by name.
func (r *Registry) Sections() []string {
	var sections []string
	for _, src := range r.GetSources() {
		if !slices.Contains(sections, src.Section) {
			sections = append(sections, src.Section)
		}
	}
	slices.Sort(sections)
	return sections
}

func (r *Registry) parseSource(file string) (*Source, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var src Source
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(src.Endpoints) == 0 && src.URL != "" {
		src.Endpoints = []string{src.URL}
	}
	src.Format = Format(strings.ToLower(string(src.Format)))
	if src.Section == "" {
		src.Section = DefaultSection
	}
	if src.Timeout == 0 {
		src.Timeout = DefaultTimeout
	}
	if src.Format == FormatHTML && src.HTML.MaxItems == 0 {
		src.HTML.MaxItems = DefaultHTMLMaxItems
	}

	return &src, nil
}

func (r *Registry) validateSource(src *Source) error {
	if src == nil {
		return fmt.Errorf("source is nil")
	}

	switch src.Format {
	case FormatAtom, FormatRSS, FormatHTML:
	case "":
		return fmt.Errorf("format is required")
	default:
		return fmt.Errorf("unsupported format: %s", src.Format)
	}

	if len(src.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required")
	}
	for i, endpoint := range src.Endpoints {
		u, err := url.Parse(endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid endpoint at index %d: %s", i, endpoint)
		}
	}

	nonNegativeFields := map[string]int{
		"timeout":   src.Timeout,
		"max items": src.HTML.MaxItems,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if src.Format == FormatHTML {
		if src.HTML.Block == "" {
			return fmt.Errorf("html block marker is required")
		}
		if src.HTML.LinkPattern == "" {
			return fmt.Errorf("html link pattern is required")
		}
		if _, err := compileHTMLPatterns(src.HTML); err != nil {
			return err
		}
	}

	if tmpl := src.Fields.VideoURLTemplate; tmpl != "" && strings.Count(tmpl, "%s") != 1 {
		return fmt.Errorf("video URL template must contain exactly one %%s")
	}

	validFields := map[string]bool{
		"title":      true,
		"summary":    true,
		"author":     true,
		"url":        true,
		"categories": true,
	}

	for i, filter := range src.Filters {
		if !validFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

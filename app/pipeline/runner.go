package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lysyi3m/feed-digest/app/database"
	"github.com/lysyi3m/feed-digest/app/digest"
	"github.com/lysyi3m/feed-digest/app/feed"
	"github.com/lysyi3m/feed-digest/app/sink"
	"github.com/lysyi3m/feed-digest/app/tasks"
	"github.com/lysyi3m/feed-digest/app/translate"
)

var ErrRunInProgress = errors.New("run already in progress")

// RunStore records finished runs.
type RunStore interface {
	InsertRun(run database.Run, reports []database.SourceReport) (int64, error)
}

type Settings struct {
	Watermark string   // raw ISO-8601 value, empty for the default window
	Sections  []string // preferred section order
	Disable   []string // source names skipped for this run

	// Incremental makes each run start where the last successful one did.
	Incremental bool
}

type Summary struct {
	RunID            int64
	StartedAt        time.Time
	FinishedAt       time.Time
	Watermark        time.Time
	WatermarkFromEnv bool
	Sources          int
	FailedSources    int
	Items            int
	Chunks           int
	Delivered        bool
	Reports          []tasks.SourceReport
}

type Runner struct {
	registry   *feed.Registry
	pool       *tasks.Pool
	fetcher    *tasks.Fetcher
	filterer   *feed.Filterer
	extractor  *feed.ContentExtractor
	translator translate.Translator
	cacheStore translate.Store
	builder    *digest.Builder
	sink       sink.Sink
	store      RunStore
	settings   Settings
	now        func() time.Time

	running    sync.Mutex
	mu         sync.RWMutex
	last       *Summary
	resumeFrom time.Time
}

type Option func(*Runner)

func WithExtractor(extractor *feed.ContentExtractor) Option {
	return func(r *Runner) {
		r.extractor = extractor
	}
}

// WithTranslator enables title translation. Each run wraps translator in a
// fresh cache backed by store, which may be nil.
func WithTranslator(translator translate.Translator, store translate.Store) Option {
	return func(r *Runner) {
		r.translator = translator
		r.cacheStore = store
	}
}

func WithRunStore(store RunStore) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithResumeFrom seeds the start time of the last successful run, typically
// read from the run log at startup. Only used by incremental runners.
func WithResumeFrom(startedAt time.Time) Option {
	return func(r *Runner) {
		r.resumeFrom = startedAt
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

func NewRunner(registry *feed.Registry, pool *tasks.Pool, fetcher *tasks.Fetcher, builder *digest.Builder,
	out sink.Sink, settings Settings, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		pool:     pool,
		fetcher:  fetcher,
		filterer: feed.NewFilterer(),
		builder:  builder,
		sink:     out,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run performs one ingestion and delivery pass. Source failures only show up
// in the summary; a delivery failure is returned along with the summary.
// Concurrent calls fail fast with ErrRunInProgress.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if !r.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.running.Unlock()

	return r.run(ctx)
}

// Trigger starts a run in the background and returns immediately.
func (r *Runner) Trigger(ctx context.Context) error {
	if !r.running.TryLock() {
		return ErrRunInProgress
	}

	go func() {
		defer r.running.Unlock()
		if _, err := r.run(ctx); err != nil {
			slog.Error("Triggered run failed", "error", err)
		}
	}()

	return nil
}

func (r *Runner) run(ctx context.Context) (*Summary, error) {
	startedAt := r.now()
	watermark, fromEnv := r.watermark(startedAt)

	sources := r.registry.GetEnabledSources(r.settings.Disable...)
	if len(sources) == 0 {
		slog.Warn("No enabled sources")
	}

	slog.Info("Run started", "sources", len(sources), "watermark", watermark.Format(time.RFC3339), "watermark_from_env", fromEnv)

	opts := []tasks.OrchestratorOption{
		tasks.WithSince(watermark),
		tasks.WithExtractor(r.extractor),
	}
	var cache *translate.Cache
	if r.translator != nil {
		cache = translate.NewCache(r.translator, r.cacheStore)
		opts = append(opts, tasks.WithTranslator(cache))
	}

	result := tasks.NewOrchestrator(r.pool, r.fetcher, r.filterer, opts...).Run(ctx, sources)

	if cache != nil {
		hits, misses := cache.Stats()
		slog.Debug("Translation cache", "entries", cache.Len(), "hits", hits, "misses", misses)
	}

	sections := r.buildSections(sources, result.Items, watermark)
	chunks := r.builder.Build(sections)

	summary := &Summary{
		StartedAt:        startedAt,
		Watermark:        watermark,
		WatermarkFromEnv: fromEnv,
		Sources:          len(sources),
		FailedSources:    result.FailedCount(),
		Chunks:           len(chunks),
		Reports:          result.Reports,
	}
	for _, section := range sections {
		summary.Items += len(section.Items)
	}

	var deliverErr error
	if len(chunks) == 0 {
		slog.Info("Nothing new since watermark, skipping delivery")
	} else if deliverErr = r.sink.Deliver(ctx, chunks); deliverErr != nil {
		deliverErr = fmt.Errorf("failed to deliver digest: %w", deliverErr)
	} else {
		summary.Delivered = true
	}

	summary.FinishedAt = r.now()
	r.record(summary, deliverErr)

	r.mu.Lock()
	r.last = summary
	if deliverErr == nil {
		r.resumeFrom = startedAt
	}
	r.mu.Unlock()

	slog.Info("Run completed",
		"duration", summary.FinishedAt.Sub(startedAt),
		"sources", summary.Sources,
		"failed", summary.FailedSources,
		"items", summary.Items,
		"chunks", summary.Chunks,
		"delivered", summary.Delivered)

	return summary, deliverErr
}

// watermark resolves the cutoff for a run starting at startedAt. Incremental
// runners resume from the last successful run; a configured watermark later
// than that still wins.
func (r *Runner) watermark(startedAt time.Time) (time.Time, bool) {
	watermark, fromEnv := feed.ParseWatermark(r.settings.Watermark, startedAt)
	if !fromEnv && strings.TrimSpace(r.settings.Watermark) != "" {
		slog.Warn("Invalid watermark, using default window", "watermark", r.settings.Watermark, "window", feed.DefaultWatermarkWindow)
	}

	if !r.settings.Incremental {
		return watermark, fromEnv
	}

	r.mu.RLock()
	resumeFrom := r.resumeFrom
	r.mu.RUnlock()

	if resumeFrom.IsZero() || (fromEnv && !resumeFrom.After(watermark)) {
		return watermark, fromEnv
	}

	slog.Debug("Resuming from last successful run", "started_at", resumeFrom.Format(time.RFC3339))
	return resumeFrom, false
}

// LastSummary returns the most recent finished run, or nil.
func (r *Runner) LastSummary() *Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// buildSections groups filtered items by their source's section. Sections in
// Settings.Sections come first in that order, the rest follow by name.
func (r *Runner) buildSections(sources []*feed.Source, items []feed.Item, watermark time.Time) []digest.Section {
	sectionOf := make(map[string]string, len(sources))
	for _, src := range sources {
		sectionOf[src.Name] = src.Section
	}

	grouped := make(map[string][]feed.Item)
	for _, item := range items {
		section := sectionOf[item.Source]
		grouped[section] = append(grouped[section], item)
	}

	sections := make([]digest.Section, 0, len(grouped))
	for _, title := range sectionOrder(r.settings.Sections, grouped) {
		sections = append(sections, digest.Section{
			Title: title,
			Items: feed.FilterSince(grouped[title], watermark),
		})
	}
	return sections
}

func sectionOrder(preferred []string, grouped map[string][]feed.Item) []string {
	order := make([]string, 0, len(grouped))
	for _, title := range preferred {
		if _, ok := grouped[title]; ok && !slices.Contains(order, title) {
			order = append(order, title)
		}
	}

	var rest []string
	for title := range grouped {
		if !slices.Contains(order, title) {
			rest = append(rest, title)
		}
	}
	slices.Sort(rest)

	return append(order, rest...)
}

func (r *Runner) record(summary *Summary, runErr error) {
	if r.store == nil {
		return
	}

	run := database.Run{
		StartedAt:        summary.StartedAt,
		FinishedAt:       summary.FinishedAt,
		Watermark:        summary.Watermark,
		WatermarkFromEnv: summary.WatermarkFromEnv,
		Sources:          summary.Sources,
		FailedSources:    summary.FailedSources,
		Items:            summary.Items,
		Chunks:           summary.Chunks,
		Delivered:        summary.Delivered,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	reports := make([]database.SourceReport, 0, len(summary.Reports))
	for _, report := range summary.Reports {
		reports = append(reports, database.SourceReport{
			Source:   report.Source,
			Section:  report.Section,
			Endpoint: report.Endpoint,
			Seen:     report.Seen,
			Dated:    report.Dated,
			Valid:    report.Valid,
			Kept:     report.Kept,
			Duration: report.Duration,
			Error:    report.Error,
		})
	}

	runID, err := r.store.InsertRun(run, reports)
	if err != nil {
		slog.Error("Failed to record run", "error", err)
		return
	}
	summary.RunID = runID
}

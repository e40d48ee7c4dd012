package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/feed-digest/app/feed"
	"github.com/lysyi3m/feed-digest/app/translate"
)

// SourceReport describes the outcome of one source in a run.
type SourceReport struct {
	Source   string
	Section  string
	Endpoint string // endpoint that answered, empty on failure
	Seen     int
	Dated    int
	Valid    int
	Kept     int // after the source's filters
	Duration time.Duration
	Error    string
}

func (r SourceReport) Failed() bool {
	return r.Error != ""
}

type FetchSourceTask struct {
	Task
	Source     *feed.Source
	Since      time.Time // only items after this are enriched
	fetcher    *Fetcher
	filterer   *feed.Filterer
	extractor  *feed.ContentExtractor
	translator translate.Translator

	Items  []feed.Item
	Report SourceReport
}

// NewFetchSourceTask creates a task for one source. extractor and translator
// may be nil.
func NewFetchSourceTask(src *feed.Source, since time.Time, fetcher *Fetcher, filterer *feed.Filterer,
	extractor *feed.ContentExtractor, translator translate.Translator) *FetchSourceTask {
	return &FetchSourceTask{
		Task:       NewTask(TaskTypeFetchSource, src.Name),
		Source:     src,
		Since:      since,
		fetcher:    fetcher,
		filterer:   filterer,
		extractor:  extractor,
		translator: translator,
		Report: SourceReport{
			Source:  src.Name,
			Section: src.Section,
		},
	}
}

func (t *FetchSourceTask) Execute(ctx context.Context) error {
	defer func() {
		t.Report.Duration = t.GetDuration()
	}()

	if err := t.execute(ctx); err != nil {
		t.Report.Error = err.Error()
		return err
	}
	return nil
}

func (t *FetchSourceTask) execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	adapter, err := feed.NewAdapter(t.Source.Format)
	if err != nil {
		return err
	}

	// An endpoint whose body does not parse falls through to the next one.
	var items []feed.Item
	var stats feed.Stats
	result, err := t.fetcher.FetchUsable(ctx, t.Source, func(r *FetchResult) error {
		parsed, parsedStats, err := adapter.Run(r.Body, t.Source)
		if err != nil {
			return fmt.Errorf("failed to parse source: %w", err)
		}
		items, stats = parsed, parsedStats
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to fetch source: %w", err)
	}
	t.Report.Endpoint = result.Endpoint
	t.Report.Seen = stats.Seen
	t.Report.Dated = stats.Dated
	t.Report.Valid = stats.Valid

	if t.filterer != nil {
		items = t.filterer.Run(items, t.Source)
	}

	if t.Source.ExtractSummary && t.extractor != nil {
		t.extractSummaries(ctx, items)
	}

	if t.Source.TranslateFrom != "" && t.translator != nil {
		t.translateTitles(ctx, items)
	}

	t.Items = items
	t.Report.Kept = len(items)

	slog.Info("Task completed",
		"type", t.GetType(),
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"seen", stats.Seen,
		"dated", stats.Dated,
		"valid", stats.Valid,
		"kept", len(items))

	return nil
}

// extractSummaries fills empty summaries from the item pages. Failures leave
// the summary empty.
func (t *FetchSourceTask) extractSummaries(ctx context.Context, items []feed.Item) {
	successCount := 0
	errorCount := 0

	for i := range items {
		if items[i].Summary != "" || !items[i].Published.After(t.Since) {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		page, err := t.fetcher.FetchPage(ctx, t.Source, items[i].URL)
		if err != nil {
			slog.Debug("Failed to fetch item page", "source", t.SourceName, "url", items[i].URL, "error", err)
			errorCount++
			continue
		}

		summary, err := t.extractor.Run(page.Body, items[i].URL)
		if err != nil {
			slog.Debug("Failed to extract summary", "source", t.SourceName, "url", items[i].URL, "error", err)
			errorCount++
			continue
		}

		items[i].Summary = summary
		successCount++
	}

	slog.Debug("Summaries extracted", "source", t.SourceName, "success", successCount, "errors", errorCount)
}

func (t *FetchSourceTask) translateTitles(ctx context.Context, items []feed.Item) {
	for i := range items {
		if !items[i].Published.After(t.Since) {
			continue
		}
		items[i].Title = translate.Localize(ctx, t.translator, items[i].Title, t.Source.TranslateFrom)
	}
}

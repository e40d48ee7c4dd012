package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/feed-digest/app/feed"
	"github.com/lysyi3m/feed-digest/app/translate"
)

type Result struct {
	Items   []feed.Item
	Reports []SourceReport // in source order
}

func (r *Result) FailedCount() int {
	count := 0
	for _, report := range r.Reports {
		if report.Failed() {
			count++
		}
	}
	return count
}

// Orchestrator fetches every source concurrently and gathers whatever
// succeeded. Source failures are reported, never returned.
type Orchestrator struct {
	pool       *Pool
	fetcher    *Fetcher
	filterer   *feed.Filterer
	extractor  *feed.ContentExtractor
	translator translate.Translator
	since      time.Time
}

type OrchestratorOption func(*Orchestrator)

func WithExtractor(extractor *feed.ContentExtractor) OrchestratorOption {
	return func(o *Orchestrator) {
		o.extractor = extractor
	}
}

func WithTranslator(translator translate.Translator) OrchestratorOption {
	return func(o *Orchestrator) {
		o.translator = translator
	}
}

// WithSince bounds summary extraction and translation to items after since.
func WithSince(since time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.since = since
	}
}

func NewOrchestrator(pool *Pool, fetcher *Fetcher, filterer *feed.Filterer, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		pool:     pool,
		fetcher:  fetcher,
		filterer: filterer,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Run(ctx context.Context, sources []*feed.Source) *Result {
	fetchTasks := make([]*FetchSourceTask, len(sources))
	queue := make([]TaskInterface, len(sources))
	for i, src := range sources {
		fetchTasks[i] = NewFetchSourceTask(src, o.since, o.fetcher, o.filterer, o.extractor, o.translator)
		queue[i] = fetchTasks[i]
	}

	o.pool.Run(ctx, queue)

	// Merge in source order.
	result := &Result{Reports: make([]SourceReport, 0, len(fetchTasks))}
	for _, task := range fetchTasks {
		result.Items = append(result.Items, task.Items...)
		result.Reports = append(result.Reports, task.Report)
	}

	slog.Info("Sources fetched",
		"sources", len(sources),
		"failed", result.FailedCount(),
		"items", len(result.Items))

	return result
}

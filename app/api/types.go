package api

import (
	"context"

	"github.com/lysyi3m/feed-digest/app/database"
	"github.com/lysyi3m/feed-digest/app/feed"
	"github.com/lysyi3m/feed-digest/app/pipeline"
)

type RunReader interface {
	ListRuns(limit int) ([]database.Run, error)
	GetRun(id int64) (*database.Run, error)
	GetRunReports(runID int64) ([]database.SourceReport, error)
}

var _ RunReader = (*database.RunRepository)(nil)

type RunTrigger interface {
	Trigger(ctx context.Context) error
	LastSummary() *pipeline.Summary
}

var _ RunTrigger = (*pipeline.Runner)(nil)

type Handler struct {
	ctx      context.Context
	registry *feed.Registry
	runs     RunReader // nil when the run log is disabled
	runner   RunTrigger
}

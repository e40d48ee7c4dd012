package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/feed-digest/app/database"
	"github.com/lysyi3m/feed-digest/app/feed"
	"github.com/lysyi3m/feed-digest/app/pipeline"
)

// NewHandler creates the status handlers. Runs triggered over HTTP use ctx,
// so they outlive the request. runs may be nil.
func NewHandler(ctx context.Context, registry *feed.Registry, runs RunReader, runner RunTrigger) *Handler {
	return &Handler{
		ctx:      ctx,
		registry: registry,
		runs:     runs,
		runner:   runner,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp":       time.Now().In(time.Local).Format(time.RFC3339),
		"loaded_sources":  h.registry.GetSourceCount(),
		"enabled_sources": len(h.registry.GetEnabledSources()),
		"run_log_enabled": h.runs != nil,
	}

	if last := h.runner.LastSummary(); last != nil {
		health["last_run"] = summaryJSON(last)
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources := h.registry.GetSources()

	out := make([]map[string]interface{}, 0, len(sources))
	for _, src := range sources {
		out = append(out, map[string]interface{}{
			"name":            src.Name,
			"format":          src.Format,
			"section":         src.Section,
			"enabled":         src.Enabled,
			"endpoints":       src.Endpoints,
			"insecure_tls":    src.InsecureTLS,
			"timeout":         src.TimeoutDuration().String(),
			"translate_from":  src.TranslateFrom,
			"extract_summary": src.ExtractSummary,
			"filters":         len(src.Filters),
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources":  out,
		"sections": h.registry.Sections(),
		"total":    len(out),
	})
}

func (h *Handler) APIListRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run log is disabled"})
		return
	}

	limit := database.DefaultRunListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	out := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		out = append(out, runJSON(run))
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"runs":  out,
		"total": len(out),
	})
}

func (h *Handler) APIGetRun(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run log is disabled"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run id"})
		return
	}

	run, err := h.runs.GetRun(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_run", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return
	}

	reports, err := h.runs.GetRunReports(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_run_reports", "run_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	sources := make([]map[string]interface{}, 0, len(reports))
	for _, report := range reports {
		sources = append(sources, map[string]interface{}{
			"source":   report.Source,
			"section":  report.Section,
			"endpoint": report.Endpoint,
			"seen":     report.Seen,
			"dated":    report.Dated,
			"valid":    report.Valid,
			"kept":     report.Kept,
			"duration": report.Duration.String(),
			"error":    report.Error,
		})
	}

	details := runJSON(*run)
	details["sources"] = sources

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APITriggerRun(c *gin.Context) {
	err := h.runner.Trigger(h.ctx)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": "A run is already in progress"})
		return
	}
	if err != nil {
		slog.Error("Error triggering run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to trigger run",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Run started",
	})
}

func runJSON(run database.Run) map[string]interface{} {
	return map[string]interface{}{
		"id":                 run.ID,
		"started_at":         run.StartedAt.Format(time.RFC3339),
		"finished_at":        run.FinishedAt.Format(time.RFC3339),
		"watermark":          run.Watermark.Format(time.RFC3339),
		"watermark_from_env": run.WatermarkFromEnv,
		"sources":            run.Sources,
		"failed_sources":     run.FailedSources,
		"items":              run.Items,
		"chunks":             run.Chunks,
		"delivered":          run.Delivered,
		"error":              run.Error,
	}
}

func summaryJSON(s *pipeline.Summary) map[string]interface{} {
	return map[string]interface{}{
		"run_id":         s.RunID,
		"started_at":     s.StartedAt.Format(time.RFC3339),
		"finished_at":    s.FinishedAt.Format(time.RFC3339),
		"watermark":      s.Watermark.Format(time.RFC3339),
		"sources":        s.Sources,
		"failed_sources": s.FailedSources,
		"items":          s.Items,
		"chunks":         s.Chunks,
		"delivered":      s.Delivered,
	}
}

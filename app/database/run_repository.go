package database

import (
	"database/sql"
	"fmt"
	"time"
)

const DefaultRunListLimit = 20

// RunRepository stores run diagnostics. Nothing read from it feeds back
// into filtering.
type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) InsertRun(run Run, reports []SourceReport) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO runs (
			started_at, finished_at, watermark, watermark_from_env,
			sources, failed_sources, items, chunks, delivered, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(run.StartedAt), formatTime(run.FinishedAt), formatTime(run.Watermark), run.WatermarkFromEnv,
		run.Sources, run.FailedSources, run.Items, run.Chunks, run.Delivered, run.Error)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	for _, report := range reports {
		_, err := tx.Exec(`
			INSERT INTO source_reports (
				run_id, source, section, endpoint, seen, dated, valid, kept, duration_ms, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, report.Source, report.Section, report.Endpoint,
			report.Seen, report.Dated, report.Valid, report.Kept,
			report.Duration.Milliseconds(), report.Error)
		if err != nil {
			return 0, fmt.Errorf("failed to insert source report %s: %w", report.Source, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	return runID, nil
}

// ListRuns returns the most recent runs first.
func (r *RunRepository) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRunListLimit
	}

	rows, err := r.db.Query(`
		SELECT id, started_at, finished_at, watermark, watermark_from_env,
			sources, failed_sources, items, chunks, delivered, error
		FROM runs
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// GetRun returns nil when no run has the given id.
func (r *RunRepository) GetRun(id int64) (*Run, error) {
	row := r.db.QueryRow(`
		SELECT id, started_at, finished_at, watermark, watermark_from_env,
			sources, failed_sources, items, chunks, delivered, error
		FROM runs
		WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// LastSuccessfulRun returns the newest run that finished without an error, or
// nil when there is none.
func (r *RunRepository) LastSuccessfulRun() (*Run, error) {
	row := r.db.QueryRow(`
		SELECT id, started_at, finished_at, watermark, watermark_from_env,
			sources, failed_sources, items, chunks, delivered, error
		FROM runs
		WHERE error = ''
		ORDER BY id DESC
		LIMIT 1`)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (r *RunRepository) GetRunReports(runID int64) ([]SourceReport, error) {
	rows, err := r.db.Query(`
		SELECT id, run_id, source, section, endpoint, seen, dated, valid, kept, duration_ms, error
		FROM source_reports
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query source reports: %w", err)
	}
	defer rows.Close()

	reports := []SourceReport{}
	for rows.Next() {
		var report SourceReport
		var durationMs int64
		if err := rows.Scan(&report.ID, &report.RunID, &report.Source, &report.Section, &report.Endpoint,
			&report.Seen, &report.Dated, &report.Valid, &report.Kept, &durationMs, &report.Error); err != nil {
			return nil, fmt.Errorf("failed to scan source report: %w", err)
		}
		report.Duration = time.Duration(durationMs) * time.Millisecond
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate source reports: %w", err)
	}

	return reports, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var startedAt, finishedAt, watermark string

	err := s.Scan(&run.ID, &startedAt, &finishedAt, &watermark, &run.WatermarkFromEnv,
		&run.Sources, &run.FailedSources, &run.Items, &run.Chunks, &run.Delivered, &run.Error)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, err
	}
	if run.Watermark, err = parseTime(watermark); err != nil {
		return nil, err
	}

	return &run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", value, err)
	}
	return t, nil
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lysyi3m/feed-digest/app/database"
	"github.com/lysyi3m/feed-digest/app/feed"
	"github.com/lysyi3m/feed-digest/app/pipeline"
)

type stubTrigger struct {
	err   error
	calls int
	last  *pipeline.Summary
}

func (s *stubTrigger) Trigger(ctx context.Context) error {
	s.calls++
	return s.err
}

func (s *stubTrigger) LastSummary() *pipeline.Summary {
	return s.last
}

func setupRegistry(t *testing.T) *feed.Registry {
	t.Helper()

	dir := t.TempDir()
	sources := map[string]string{
		"blog":   "format: rss\nurl: https://example.com/feed.xml\nsection: News\nenabled: true\n",
		"videos": "format: atom\nurl: https://example.com/videos.xml\nsection: Videos\n",
	}
	for name, content := range sources {
		if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write source: %v", err)
		}
	}

	registry := feed.NewRegistry(dir)
	if err := registry.Run(); err != nil {
		t.Fatalf("Failed to load registry: %v", err)
	}
	return registry
}

func setupRuns(t *testing.T) *database.RunRepository {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	repo := database.NewRunRepository(db)
	at := time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC)
	_, err = repo.InsertRun(database.Run{StartedAt: at, FinishedAt: at.Add(time.Second), Watermark: at.Add(-24 * time.Hour), Sources: 2, Items: 4, Chunks: 1, Delivered: true},
		[]database.SourceReport{{Source: "blog", Section: "News", Kept: 4}, {Source: "videos", Error: "HTTP error: 500"}})
	if err != nil {
		t.Fatalf("Failed to insert run: %v", err)
	}
	return repo
}

func do(t *testing.T, handler http.Handler, method, path, key string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var body map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("Expected JSON response, got %q", w.Body.String())
		}
	}
	return w, body
}

func TestHealth(t *testing.T) {
	trigger := &stubTrigger{last: &pipeline.Summary{RunID: 7, Chunks: 2, Delivered: true}}
	server := NewServer(NewHandler(context.Background(), setupRegistry(t), nil, trigger), "secret")

	w, body := do(t, server, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if body["loaded_sources"] != float64(2) || body["enabled_sources"] != float64(1) {
		t.Errorf("Expected 2 loaded and 1 enabled source, got %v and %v", body["loaded_sources"], body["enabled_sources"])
	}
	if body["run_log_enabled"] != false {
		t.Errorf("Expected run log disabled, got %v", body["run_log_enabled"])
	}
	last, ok := body["last_run"].(map[string]interface{})
	if !ok || last["run_id"] != float64(7) {
		t.Errorf("Expected last run 7, got %v", body["last_run"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	server := NewServer(NewHandler(context.Background(), setupRegistry(t), nil, &stubTrigger{}), "secret")

	if w, _ := do(t, server, http.MethodGet, "/api/sources", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}
	if w, _ := do(t, server, http.MethodGet, "/api/sources", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sources", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with bearer token, got %d", w.Code)
	}
}

func TestListSources(t *testing.T) {
	server := NewServer(NewHandler(context.Background(), setupRegistry(t), nil, &stubTrigger{}), "")

	w, body := do(t, server, http.MethodGet, "/api/sources", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if body["total"] != float64(2) {
		t.Errorf("Expected 2 sources, got %v", body["total"])
	}

	sources := body["sources"].([]interface{})
	first := sources[0].(map[string]interface{})
	if first["name"] != "blog" || first["enabled"] != true || first["section"] != "News" {
		t.Errorf("Unexpected first source: %v", first)
	}

	sections := body["sections"].([]interface{})
	if len(sections) != 2 || sections[0] != "News" || sections[1] != "Videos" {
		t.Errorf("Expected sections [News Videos], got %v", sections)
	}
}

func TestRuns(t *testing.T) {
	server := NewServer(NewHandler(context.Background(), setupRegistry(t), setupRuns(t), &stubTrigger{}), "")

	w, body := do(t, server, http.MethodGet, "/api/runs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if body["total"] != float64(1) {
		t.Fatalf("Expected 1 run, got %v", body["total"])
	}
	run := body["runs"].([]interface{})[0].(map[string]interface{})
	if run["items"] != float64(4) || run["delivered"] != true {
		t.Errorf("Unexpected run: %v", run)
	}

	w, body = do(t, server, http.MethodGet, "/api/runs/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	sources := body["sources"].([]interface{})
	if len(sources) != 2 {
		t.Fatalf("Expected 2 source reports, got %d", len(sources))
	}
	if sources[1].(map[string]interface{})["error"] != "HTTP error: 500" {
		t.Errorf("Expected failed source report, got %v", sources[1])
	}

	if w, _ := do(t, server, http.MethodGet, "/api/runs/99", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing run, got %d", w.Code)
	}
	if w, _ := do(t, server, http.MethodGet, "/api/runs/abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid id, got %d", w.Code)
	}
	if w, _ := do(t, server, http.MethodGet, "/api/runs?limit=-1", ""); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid limit, got %d", w.Code)
	}
}

func TestRunsDisabled(t *testing.T) {
	server := NewServer(NewHandler(context.Background(), setupRegistry(t), nil, &stubTrigger{}), "")

	if w, _ := do(t, server, http.MethodGet, "/api/runs", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 when run log is disabled, got %d", w.Code)
	}
}

func TestTriggerRun(t *testing.T) {
	trigger := &stubTrigger{}
	server := NewServer(NewHandler(context.Background(), setupRegistry(t), nil, trigger), "")

	w, body := do(t, server, http.MethodPost, "/api/runs", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", w.Code)
	}
	if body["success"] != true || trigger.calls != 1 {
		t.Errorf("Expected run to be triggered once, got %v calls=%d", body, trigger.calls)
	}

	trigger.err = pipeline.ErrRunInProgress
	if w, _ := do(t, server, http.MethodPost, "/api/runs", ""); w.Code != http.StatusConflict {
		t.Errorf("Expected 409 while a run is in progress, got %d", w.Code)
	}
}

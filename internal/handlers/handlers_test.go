package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codeyoulateralligator/goodreader/internal/config"
	"github.com/codeyoulateralligator/goodreader/internal/pipeline"
	"github.com/codeyoulateralligator/goodreader/internal/results"
)

func saveRun(t *testing.T, dir string, started time.Time) *results.Run {
	t.Helper()
	r := results.New(config.Default(), results.Source{Kind: "csv", Ref: "export.csv"}, started)
	stats := pipeline.NewStats()
	stats.Total = 4
	r.Complete(pipeline.Result{Stats: stats}, started.Add(time.Minute), false)
	if err := r.Save(r.DefaultPath(dir)); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestHandleStatic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "want_to_read_map.html"), []byte("<html>map</html>"), 0644); err != nil {
		t.Fatal(err)
	}
	h := New(dir, dir, "")

	tests := []struct {
		name string
		path string
		code int
		body string
	}{
		{"index", "/", http.StatusOK, "map"},
		{"by name", "/want_to_read_map.html", http.StatusOK, "map"},
		{"missing", "/all_covers.html", http.StatusNotFound, ""},
		{"traversal", "/../secret", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL.Path = tt.path
			rec := httptest.NewRecorder()
			h.HandleStatic(rec, req)
			if rec.Code != tt.code {
				t.Errorf("Expected status %d, got %d", tt.code, rec.Code)
			}
			if tt.body != "" && !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("Expected body to contain %q, got %q", tt.body, rec.Body.String())
			}
		})
	}
}

func TestHandleRuns(t *testing.T) {
	dir := t.TempDir()
	older := saveRun(t, dir, time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC))
	newer := saveRun(t, dir, time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC))
	if err := os.WriteFile(filepath.Join(dir, "notes.yaml"), []byte("hello: world\n"), 0644); err != nil {
		t.Fatal(err)
	}
	h := New(dir, dir, "")

	rec := httptest.NewRecorder()
	h.HandleRuns(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var list []RunSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(list))
	}
	if list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Errorf("Expected newest run first, got %s then %s", list[0].ID, list[1].ID)
	}
	if list[0].Total != 4 || list[0].Source != "csv:export.csv" {
		t.Errorf("Unexpected summary %+v", list[0])
	}

	rec = httptest.NewRecorder()
	h.HandleRuns(rec, httptest.NewRequest(http.MethodPost, "/api/runs", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestHandleRunDetail(t *testing.T) {
	dir := t.TempDir()
	run := saveRun(t, dir, time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC))
	h := New(dir, dir, "")

	rec := httptest.NewRecorder()
	h.HandleRunDetail(rec, httptest.NewRequest(http.MethodGet, "/api/runs/"+run.ID[:8], nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), run.ID) {
		t.Error("Expected the run in the response")
	}

	rec = httptest.NewRecorder()
	h.HandleRunDetail(rec, httptest.NewRequest(http.MethodGet, "/api/runs/ffffffff-none", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

// Package handlers serves the pages a run produced and the saved run files.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/codeyoulateralligator/goodreader/internal/results"
)

// Handler serves files from dir and run files from runsDir
type Handler struct {
	dir     string
	runsDir string
	index   string
}

// RunSummary is the listing entry of one run file
type RunSummary struct {
	ID        string    `json:"id"`
	Started   time.Time `json:"started"`
	Source    string    `json:"source"`
	Total     int       `json:"total"`
	Available int       `json:"available"`
	Partial   bool      `json:"partial,omitempty"`
	File      string    `json:"file"`
}

// New creates a handler. index is the page served for "/".
func New(dir, runsDir, index string) *Handler {
	if index == "" {
		index = "want_to_read_map.html"
	}
	return &Handler{dir: dir, runsDir: runsDir, index: index}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

type savedRun struct {
	run  *results.Run
	file string
}

// loadRuns reads every run file in runsDir, newest first. Files that are
// not run files are skipped.
func (h *Handler) loadRuns() ([]savedRun, error) {
	paths, err := filepath.Glob(filepath.Join(h.runsDir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	var runs []savedRun
	for _, p := range paths {
		if info, err := os.Stat(p); err != nil || info.IsDir() {
			continue
		}
		run, err := results.Load(p)
		if err != nil {
			slog.Debug("Skipping file", "path", p, "err", err)
			continue
		}
		runs = append(runs, savedRun{run: run, file: filepath.Base(p)})
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].run.Started.After(runs[j].run.Started) })
	return runs, nil
}

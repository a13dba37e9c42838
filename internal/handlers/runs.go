package handlers

import (
	"net/http"
	"strings"
)

// HandleRuns lists the saved runs
func (h *Handler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		runs, err := h.loadRuns()
		if err != nil {
			h.writeError(w, "Unable to list runs: "+err.Error(), http.StatusInternalServerError)
			return
		}
		list := make([]RunSummary, 0, len(runs))
		for _, saved := range runs {
			run := saved.run
			list = append(list, RunSummary{
				ID:        run.ID,
				Started:   run.Started,
				Source:    run.Source.Kind + ":" + run.Source.Ref,
				Total:     run.Stats.Total,
				Available: run.Stats.Available,
				Partial:   run.Partial,
				File:      saved.file,
			})
		}
		h.writeJSON(w, list)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleRunDetail returns one run by id or id prefix
func (h *Handler) HandleRunDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	runID := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if runID == "" {
		h.writeError(w, "Run id required", http.StatusBadRequest)
		return
	}

	runs, err := h.loadRuns()
	if err != nil {
		h.writeError(w, "Unable to list runs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	for _, saved := range runs {
		if strings.HasPrefix(saved.run.ID, runID) {
			h.writeJSON(w, saved.run)
			return
		}
	}
	h.writeError(w, "Run not found", http.StatusNotFound)
}

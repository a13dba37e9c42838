package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
)

// HandleStatic serves the generated pages and snapshots from the output
// directory
func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/")
	if name == "" {
		name = h.index
	}

	// Prevent directory traversal attacks
	if strings.Contains(name, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	switch {
	case strings.HasSuffix(name, ".html"):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case strings.HasSuffix(name, ".yaml"):
		w.Header().Set("Content-Type", "application/yaml")
	case strings.HasSuffix(name, ".parquet"):
		w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	}

	http.ServeFile(w, r, filepath.Join(h.dir, filepath.FromSlash(name)))
}

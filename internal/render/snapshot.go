package render

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/textnorm"
)

// SnapshotDir is the directory, relative to the output root, that receives
// holdings pages with no usable copies
const SnapshotDir = "debug_empty_holdings"

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// SnapshotName is the file name of a title's snapshot
func SnapshotName(r models.InputRecord) string {
	slug := strings.Trim(nonWord.ReplaceAllString(textnorm.Fold(r.Author+" "+r.Title), "_"), "_")
	if len(slug) > 80 {
		slug = slug[:80]
	}
	if slug == "" {
		slug = "untitled"
	}
	return slug + ".html"
}

// WriteSnapshots stores every captured snapshot under root/SnapshotDir and
// returns how many were written. The directory is only created when there
// is something to write.
func WriteSnapshots(root string, titles []models.ResolvedTitle) (int, error) {
	dir := filepath.Join(root, SnapshotDir)
	n := 0
	for _, t := range titles {
		if len(t.Snapshot) == 0 {
			continue
		}
		if n == 0 {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return 0, fmt.Errorf("failed to create snapshot directory: %w", err)
			}
		}
		path := filepath.Join(dir, SnapshotName(t.Record))
		if err := os.WriteFile(path, t.Snapshot, 0644); err != nil {
			return n, fmt.Errorf("failed to write snapshot %s: %w", path, err)
		}
		n++
	}
	return n, nil
}

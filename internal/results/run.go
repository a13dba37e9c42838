// Package results persists a finished run: the YAML run file read back by
// the report command and a Parquet table of the holdings found.
package results

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/codeyoulateralligator/goodreader/internal/config"
	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/pipeline"
)

// Source describes where the reading list came from
type Source struct {
	Kind string `yaml:"kind" json:"kind"` // csv, user, file
	Ref  string `yaml:"ref" json:"ref"`
}

// Run is the content of a run file
type Run struct {
	ID       string                 `yaml:"id" json:"id"`
	Started  time.Time              `yaml:"started" json:"started"`
	Finished time.Time              `yaml:"finished" json:"finished"`
	Source   Source                 `yaml:"source" json:"source"`
	Partial  bool                   `yaml:"partial,omitempty" json:"partial,omitempty"`
	Config   *config.Config         `yaml:"config" json:"config"`
	Stats    pipeline.Stats         `yaml:"stats" json:"stats"`
	Titles   []models.ResolvedTitle `yaml:"titles" json:"titles"`
}

// New starts a run record with a fresh id
func New(cfg *config.Config, src Source, started time.Time) *Run {
	return &Run{
		ID:      uuid.NewString(),
		Started: started,
		Source:  src,
		Config:  cfg,
	}
}

// Complete attaches the pipeline outcome
func (r *Run) Complete(res pipeline.Result, finished time.Time, partial bool) {
	r.Titles = res.Titles
	r.Stats = res.Stats
	r.Finished = finished
	r.Partial = partial
}

// DefaultPath is the run file name used when none is given
func (r *Run) DefaultPath(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("run-%s-%s.yaml", r.Started.Format("2006-01-02_15-04-05"), r.ID[:8]))
}

// Save writes the run as YAML, creating the parent directory if needed
func (r *Run) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create results directory: %w", err)
		}
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}

// Load reads a run file written by Save
func Load(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}
	var r Run
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse results file %s: %w", path, err)
	}
	if r.ID == "" {
		return nil, fmt.Errorf("%s is not a run file", path)
	}
	if r.Stats.Covers == nil {
		r.Stats.Covers = make(map[models.CoverSource]int)
	}
	return &r, nil
}

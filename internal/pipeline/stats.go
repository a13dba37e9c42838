package pipeline

import (
	"time"

	"github.com/codeyoulateralligator/goodreader/internal/models"
)

// Resolution labels used in Stats.Resolutions
const (
	ResolutionResolved   = "resolved"
	ResolutionNoMatch    = "no-match"
	ResolutionAmbiguous  = "ambiguous"
	ResolutionRejected   = "rejected"
	ResolutionNoHoldings = "no-holdings"
)

// Stats summarises a run. It is built by a single reducer and is read-only
// once Run returns.
type Stats struct {
	Total       int                        `json:"total" yaml:"total"`
	Covers      map[models.CoverSource]int `json:"covers" yaml:"covers"`
	NotFound    int                        `json:"not_found" yaml:"not_found"`
	Resolutions map[string]int             `json:"resolutions" yaml:"resolutions"`
	Available   int                        `json:"available" yaml:"available"` // titles with at least one copy on the shelf
	Elapsed     time.Duration              `json:"elapsed" yaml:"elapsed"`
}

// NewStats returns empty statistics with every cover source present
func NewStats() Stats {
	s := Stats{
		Covers:      make(map[models.CoverSource]int, len(models.CoverSources)),
		Resolutions: make(map[string]int),
	}
	for _, src := range models.CoverSources {
		s.Covers[src] = 0
	}
	return s
}

// Add folds one finished title into the statistics
func (s *Stats) Add(t models.ResolvedTitle) {
	s.Total++
	s.Resolutions[Resolution(t)]++
	if t.Match != models.MatchResolved {
		return
	}
	if len(t.Available()) > 0 {
		s.Available++
	}
	if t.Cover != nil {
		s.Covers[t.Cover.Source]++
	} else {
		s.NotFound++
	}
}

// Percent is the share of accepted covers that came from src
func (s Stats) Percent(src models.CoverSource) float64 {
	found := s.CoversFound()
	if found == 0 {
		return 0
	}
	return 100 * float64(s.Covers[src]) / float64(found)
}

// CoversFound is the number of titles with an accepted cover
func (s Stats) CoversFound() int {
	n := 0
	for _, c := range s.Covers {
		n += c
	}
	return n
}

// Resolution is the terminal label of a title for statistics
func Resolution(t models.ResolvedTitle) string {
	switch t.Match {
	case models.MatchResolved:
		if !t.HasHoldings() {
			return ResolutionNoHoldings
		}
		return ResolutionResolved
	case models.MatchAmbiguous:
		return ResolutionAmbiguous
	case models.MatchRejected:
		return ResolutionRejected
	default:
		return ResolutionNoMatch
	}
}

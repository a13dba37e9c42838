// Package holdings turns a resolved catalogue record into the list of
// physical copies and their availability.
package holdings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeyoulateralligator/goodreader/internal/catalog"
	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/probe"
)

// SnapshotBytes is how much of an empty classic page is kept in debug mode
const SnapshotBytes = 1024

// Result is what Extract learned about one record
type Result struct {
	Copies   []models.HoldingCopy
	Dropped  int
	Source   string
	Snapshot []byte
	Trace    []models.TraceEntry
}

// Options configures an Extractor
type Options struct {
	EpikTimeout time.Duration
	Debug       bool
}

// Extractor reads holdings from the classic pages and falls back to EPiK
type Extractor struct {
	catalog     *catalog.Client
	epikTimeout time.Duration
	debug       bool
}

// NewExtractor creates a new holdings extractor
func NewExtractor(c *catalog.Client, opts Options) *Extractor {
	if opts.EpikTimeout <= 0 {
		opts.EpikTimeout = 10 * time.Second
	}
	return &Extractor{catalog: c, epikTimeout: opts.EpikTimeout, debug: opts.Debug}
}

// Extract returns the physical copies of hit. It never fails; problems are
// recorded in the trace and yield fewer copies.
func (e *Extractor) Extract(ctx context.Context, hit models.CatalogueHit) Result {
	var res Result
	note := func(step, outcome, detail string) {
		res.Trace = append(res.Trace, models.TraceEntry{Stage: "holdings", Step: step, Outcome: outcome, Detail: detail})
	}

	bib := hit.BibID
	if bib == "" {
		bib = catalog.BibID(hit.RecordURL)
	}
	if bib == "" {
		note("bib-id", "error", "no record id in "+hit.RecordURL)
		return res
	}

	for _, step := range []struct {
		name string
		alt  bool
	}{{"classic", false}, {"classic-available", true}} {
		url := e.catalog.HoldingsURL(bib, step.alt)
		page := e.catalog.Page(ctx, url)
		if page.Err != nil {
			note(step.name, "error", probe.Describe(page.Err))
			continue
		}
		rows, err := ParseClassic(page.Body)
		if err != nil {
			note(step.name, "error", err.Error())
			continue
		}
		slog.Debug("holdings rows", "bib", bib, "step", step.name, "rows", len(rows))
		if len(rows) == 0 {
			if e.debug && res.Snapshot == nil {
				res.Snapshot = head(page.Body, SnapshotBytes)
			}
			note(step.name, "empty", "")
			continue
		}
		res.Copies, res.Dropped = toCopies(rows, "classic")
		res.Source = "classic"
		note(step.name, "ok", summary(len(rows), res.Dropped))
		return res
	}

	rows, err := e.epik(ctx, bib)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			note("epik", "malformed", pe.Error())
		} else {
			note("epik", "error", probe.Describe(err))
		}
		return res
	}
	if len(rows) == 0 {
		note("epik", "empty", "")
		return res
	}
	res.Copies, res.Dropped = toCopies(rows, "epik")
	res.Source = "epik"
	note("epik", "ok", summary(len(rows), res.Dropped))
	return res
}

func (e *Extractor) epik(ctx context.Context, bib string) ([]Row, error) {
	resp, err := e.catalog.Probe().Fetch(ctx, probe.Request{
		Method:  http.MethodPost,
		URL:     e.catalog.EpikURL("getItemsByCodeList"),
		JSON:    []string{bib},
		Timeout: e.epikTimeout,
	})
	if err != nil {
		return nil, err
	}
	return ParseEpik(resp.Body)
}

func summary(rows, dropped int) string {
	return fmt.Sprintf("%d rows, %d dropped as noise", rows, dropped)
}

func head(b []byte, n int) []byte {
	if len(b) > n {
		b = b[:n]
	}
	return append([]byte(nil), b...)
}

// Package pipeline drives every reading-list record through matching,
// holdings extraction and the cover cascade, and gathers the results in
// input order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeyoulateralligator/goodreader/internal/covers"
	"github.com/codeyoulateralligator/goodreader/internal/holdings"
	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/probe"
)

// ErrConnectivity means the catalogue could not be reached at start-up
var ErrConnectivity = errors.New("catalogue unreachable")

// Matcher resolves a record to a catalogue hit
type Matcher interface {
	Resolve(ctx context.Context, rec models.InputRecord) models.MatchOutcome
}

// HoldingsReader lists the physical copies of a hit
type HoldingsReader interface {
	Extract(ctx context.Context, hit models.CatalogueHit) holdings.Result
}

// CoverFinder runs the cover cascade
type CoverFinder interface {
	Hunt(ctx context.Context, s covers.Subject) covers.Result
}

// Deps are the stages a Runner wires together
type Deps struct {
	Matcher  Matcher
	Holdings HoldingsReader
	Covers   CoverFinder

	// Probe and PingURL enable the start-up connectivity check
	Probe       *probe.Client
	PingURL     string
	PingTimeout time.Duration
}

// Options configures one run
type Options struct {
	MaxTitles int // 0 means all
	Workers   int
}

// Result is the ordered output of a run
type Result struct {
	Titles []models.ResolvedTitle
	Stats  Stats
}

// Runner processes reading-list records
type Runner struct {
	deps Deps
}

// NewRunner creates a new runner
func NewRunner(deps Deps) *Runner {
	if deps.PingTimeout <= 0 {
		deps.PingTimeout = 10 * time.Second
	}
	return &Runner{deps: deps}
}

type job struct {
	index  int
	record models.InputRecord
}

// Run processes records with a bounded pool of workers. Titles come back in
// input order whatever order they finish in. When ctx is cancelled the
// titles finished so far are returned together with the context error.
func (r *Runner) Run(ctx context.Context, records []models.InputRecord, opts Options) (Result, error) {
	start := time.Now()
	if opts.MaxTitles > 0 && len(records) > opts.MaxTitles {
		records = records[:opts.MaxTitles]
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(records) && len(records) > 0 {
		workers = len(records)
	}

	if r.deps.Probe != nil && r.deps.PingURL != "" {
		if err := r.deps.Probe.Ping(ctx, r.deps.PingURL, r.deps.PingTimeout); err != nil {
			return Result{Stats: NewStats()}, fmt.Errorf("%w: %s", ErrConnectivity, probe.Describe(err))
		}
	}

	slog.Info("Processing titles", "titles", len(records), "workers", workers)

	jobs := make(chan job)
	// buffered so workers never block on a reducer that left early
	done := make(chan models.ResolvedTitle, len(records))

	for w := 0; w < workers; w++ {
		go func() {
			for j := range jobs {
				if ctx.Err() != nil {
					continue
				}
				done <- r.process(ctx, j)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, rec := range records {
			select {
			case jobs <- job{index: i, record: rec}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// single reducer: only this goroutine touches slots and stats
	slots := make([]*models.ResolvedTitle, len(records))
	stats := NewStats()
	finished := 0
	for finished < len(records) {
		var t models.ResolvedTitle
		select {
		case t = <-done:
		case <-ctx.Done():
			stats.Elapsed = time.Since(start)
			return Result{Titles: collect(slots), Stats: stats}, ctx.Err()
		}
		finished++
		slots[t.Index] = &t
		stats.Add(t)
		logProgress(finished, len(records), t)
	}

	stats.Elapsed = time.Since(start)
	return Result{Titles: collect(slots), Stats: stats}, nil
}

// process runs one record end to end. Failures stay in the trace.
func (r *Runner) process(ctx context.Context, j job) models.ResolvedTitle {
	start := time.Now()
	t := models.ResolvedTitle{Index: j.index, Record: j.record}

	out := r.deps.Matcher.Resolve(ctx, j.record)
	t.Match = out.Kind
	t.Trace = append(t.Trace, out.Trace...)

	if out.Kind == models.MatchResolved && out.Hit != nil {
		t.Hit = out.Hit

		h := r.deps.Holdings.Extract(ctx, *out.Hit)
		t.Holdings = h.Copies
		t.Snapshot = h.Snapshot
		t.Trace = append(t.Trace, h.Trace...)

		c := r.deps.Covers.Hunt(ctx, covers.Subject{Record: j.record, Hit: *out.Hit})
		t.Cover = c.Cover
		t.Trace = append(t.Trace, c.Trace...)
	}

	t.Duration = time.Since(start)
	return t
}

func collect(slots []*models.ResolvedTitle) []models.ResolvedTitle {
	out := make([]models.ResolvedTitle, 0, len(slots))
	for _, t := range slots {
		if t != nil {
			out = append(out, *t)
		}
	}
	return out
}

func logProgress(n, total int, t models.ResolvedTitle) {
	cover := "none"
	if t.Cover != nil {
		cover = string(t.Cover.Source)
	}
	slog.Info("Title done",
		"progress", fmt.Sprintf("%d/%d", n, total),
		"title", t.Record.Label(),
		"match", Resolution(t),
		"copies", len(t.Holdings),
		"available", len(t.Available()),
		"cover", cover,
		"elapsed", t.Duration.Round(time.Millisecond),
	)
}

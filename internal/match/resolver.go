// Package match resolves a reading-list record to one catalogue record by
// running the probe cascade and comparing the candidates it returns.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/probe"
)

// Searcher runs one probe against the catalogue
type Searcher interface {
	Search(ctx context.Context, q models.ProbeQuery) ([]models.CatalogueHit, error)
}

// Options configures a Resolver
type Options struct {
	AcceptThreshold float64
	Margin          float64
	Strategies      []Strategy
}

// Resolver runs the probe cascade for one record at a time. It holds no
// per-record state and is safe for concurrent use.
type Resolver struct {
	searcher   Searcher
	strategies []Strategy
	threshold  float64
	margin     float64
}

// noiseTitle matches titles that name a non-book carrier outright
var noiseTitle = regexp.MustCompile(`(?i)\b(e-raamat|e-?book|e-audiobook|audiobook|dvd|blu-ray|cd-plaat|audio cd|helisalvestis|videosalvestis|võrguressurss)\b`)

type candidate struct {
	hit   models.CatalogueHit
	score float64
}

// NewResolver creates a resolver with the default cascade unless one is given
func NewResolver(s Searcher, opts Options) *Resolver {
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Resolver{
		searcher:   s,
		strategies: strategies,
		threshold:  opts.AcceptThreshold,
		margin:     opts.Margin,
	}
}

// Resolve runs the cascade for rec. It never fails: transport errors are
// recorded in the trace and the cascade moves on.
func (r *Resolver) Resolve(ctx context.Context, rec models.InputRecord) models.MatchOutcome {
	var trace []models.TraceEntry
	note := func(step, outcome, detail string) {
		trace = append(trace, models.TraceEntry{Stage: "match", Step: step, Outcome: outcome, Detail: detail})
	}

	if m := noiseTitle.FindString(rec.Title); m != "" {
		reason := fmt.Sprintf("title names a non-book carrier (%q)", m)
		note("noise-guard", "rejected", reason)
		return models.MatchOutcome{Kind: models.MatchRejected, Reason: reason, Trace: trace}
	}

	var pool []candidate
	ambiguous := false

	for _, s := range r.strategies {
		queries := s.Queries(rec)
		if len(queries) == 0 {
			note(string(s.Name()), "skipped", "not applicable")
			continue
		}
		for _, q := range queries {
			if ctx.Err() != nil {
				note(q.Label, "error", probe.Describe(ctx.Err()))
				return r.finish(ambiguous, trace)
			}

			hits, err := r.searcher.Search(ctx, q)
			if err != nil {
				slog.Debug("probe failed", "strategy", q.Label, "term", q.Term, "error", probe.Describe(err))
				note(q.Label, "error", probe.Describe(err))
				continue
			}
			slog.Debug("probe", "strategy", q.Label, "term", q.Term, "hits", len(hits))

			switch len(hits) {
			case 0:
				note(q.Label, "zero-hits", q.Term)
				continue
			case 1:
				note(q.Label, "accepted", "single hit "+hits[0].BibID)
				hit := hits[0]
				return models.MatchOutcome{Kind: models.MatchResolved, Hit: &hit, Trace: trace}
			}

			cands := merge(pool, r.score(rec, hits))
			winner, contenders, detail := r.pick(cands)
			if winner != nil {
				note(q.Label, "accepted", detail)
				return models.MatchOutcome{Kind: models.MatchResolved, Hit: winner, Trace: trace}
			}
			note(q.Label, "ambiguous", detail)
			ambiguous = true
			pool = contenders
		}
	}

	return r.finish(ambiguous, trace)
}

func (r *Resolver) finish(ambiguous bool, trace []models.TraceEntry) models.MatchOutcome {
	if ambiguous {
		return models.MatchOutcome{Kind: models.MatchAmbiguous, Reason: "no candidate cleared the acceptance margin", Trace: trace}
	}
	return models.MatchOutcome{Kind: models.MatchNone, Reason: "all strategies exhausted", Trace: trace}
}

func (r *Resolver) score(rec models.InputRecord, hits []models.CatalogueHit) []candidate {
	out := make([]candidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, candidate{hit: h, score: Score(rec, h)})
	}
	return out
}

// merge adds fresh candidates to the carried pool. A record seen twice keeps
// its higher-priority strategy.
func merge(pool, fresh []candidate) []candidate {
	out := append([]candidate(nil), pool...)
	index := make(map[string]int, len(out))
	for i, c := range out {
		index[key(c.hit)] = i
	}
	for _, c := range fresh {
		if i, ok := index[key(c.hit)]; ok {
			if c.hit.Strategy.Priority() < out[i].hit.Strategy.Priority() {
				out[i] = c
			}
			continue
		}
		index[key(c.hit)] = len(out)
		out = append(out, c)
	}
	return out
}

func key(h models.CatalogueHit) string {
	if h.BibID != "" {
		return h.BibID
	}
	return h.RecordURL
}

// pick applies the acceptance rule: the top scorer must exceed the threshold
// and beat the runner-up by the margin, whatever the runner-up scored.
// Candidates within the margin of the top are tied; ties go to the
// higher-priority strategy, then to more holdings. When no winner emerges
// the tied contenders are returned for the next strategy.
func (r *Resolver) pick(cands []candidate) (*models.CatalogueHit, []candidate, string) {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	top := cands[0]
	if top.score <= r.threshold {
		return nil, nil, fmt.Sprintf("%d candidates, best %.2f does not exceed threshold %.2f", len(cands), top.score, r.threshold)
	}

	var tied []candidate
	for _, c := range cands {
		if top.score-c.score < r.margin {
			tied = append(tied, c)
		}
	}
	if len(tied) == 1 {
		hit := top.hit
		return &hit, nil, fmt.Sprintf("%s scored %.2f of %d candidates", hit.BibID, top.score, len(cands))
	}

	sort.SliceStable(tied, func(i, j int) bool {
		pi, pj := tied[i].hit.Strategy.Priority(), tied[j].hit.Strategy.Priority()
		if pi != pj {
			return pi < pj
		}
		return tied[i].hit.HoldingsListed > tied[j].hit.HoldingsListed
	})
	first, second := tied[0].hit, tied[1].hit
	separated := first.Strategy.Priority() < second.Strategy.Priority() || first.HoldingsListed > second.HoldingsListed
	// a tie-break never promotes a candidate that is below the threshold itself
	if separated && tied[0].score > r.threshold {
		hit := first
		return &hit, nil, fmt.Sprintf("%s won tie-break among %d (%.2f)", hit.BibID, len(tied), tied[0].score)
	}
	return nil, tied, fmt.Sprintf("%d candidates tied at %.2f", len(tied), top.score)
}

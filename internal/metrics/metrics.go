// Package metrics counts what a run did and writes it out in the
// Prometheus textfile format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/pipeline"
	"github.com/codeyoulateralligator/goodreader/internal/probe"
)

// Registry holds the collectors of one run
type Registry struct {
	reg *prometheus.Registry

	Requests      *prometheus.CounterVec
	Titles        *prometheus.CounterVec
	Covers        *prometheus.CounterVec
	Copies        *prometheus.CounterVec
	TitleDuration prometheus.Histogram
	RunDuration   prometheus.Gauge
}

// New creates a registry with every collector registered
func New() *Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Registry{
		reg: reg,
		Requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goodreader_requests_total",
				Help: "Outbound HTTP requests by host and failure kind",
			},
			[]string{"host", "kind"},
		),
		Titles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goodreader_titles_total",
				Help: "Processed titles by resolution",
			},
			[]string{"resolution"},
		),
		Covers: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goodreader_covers_total",
				Help: "Accepted covers by source",
			},
			[]string{"source"},
		),
		Copies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "goodreader_copies_total",
				Help: "Physical copies found by status",
			},
			[]string{"status"},
		),
		TitleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "goodreader_title_duration_seconds",
			Help:    "Time spent on one title",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
		RunDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "goodreader_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
	}
}

// ObserveProbe implements probe.Observer
func (r *Registry) ObserveProbe(host string, kind probe.Kind) {
	k := string(kind)
	if k == "" {
		k = "ok"
	}
	r.Requests.WithLabelValues(host, k).Inc()
}

// ObserveTitle records one finished title
func (r *Registry) ObserveTitle(t models.ResolvedTitle) {
	r.Titles.WithLabelValues(pipeline.Resolution(t)).Inc()
	if t.Cover != nil {
		r.Covers.WithLabelValues(string(t.Cover.Source)).Inc()
	}
	for _, c := range t.Holdings {
		r.Copies.WithLabelValues(string(c.Status.Kind)).Inc()
	}
	r.TitleDuration.Observe(t.Duration.Seconds())
}

// ObserveRun records every title of a run and its wall time
func (r *Registry) ObserveRun(res pipeline.Result) {
	for _, t := range res.Titles {
		r.ObserveTitle(t)
	}
	r.RunDuration.Set(res.Stats.Elapsed.Seconds())
}

// Gatherer exposes the underlying registry
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// WriteTextfile writes every metric to path for a node exporter textfile
// collector
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

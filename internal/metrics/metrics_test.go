package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/pipeline"
	"github.com/codeyoulateralligator/goodreader/internal/probe"
)

func TestObserveProbe(t *testing.T) {
	r := New()
	r.ObserveProbe("www.ester.ee", "")
	r.ObserveProbe("www.ester.ee", "")
	r.ObserveProbe("www.ester.ee", probe.KindTimeout)

	if got := testutil.ToFloat64(r.Requests.WithLabelValues("www.ester.ee", "ok")); got != 2 {
		t.Errorf("Expected 2 successful requests, got %v", got)
	}
	if got := testutil.ToFloat64(r.Requests.WithLabelValues("www.ester.ee", "TIMEOUT")); got != 1 {
		t.Errorf("Expected 1 timeout, got %v", got)
	}
}

func TestObserveRun(t *testing.T) {
	titles := []models.ResolvedTitle{
		{
			Match: models.MatchResolved,
			Holdings: []models.HoldingCopy{
				{Status: models.HoldingStatus{Kind: models.StatusAvailable}},
				{Status: models.HoldingStatus{Kind: models.StatusDue}},
			},
			Cover:    &models.CoverCandidate{Source: models.CoverGoogleBooks},
			Duration: time.Second,
		},
		{Match: models.MatchAmbiguous, Duration: 2 * time.Second},
		{Match: models.MatchResolved},
	}
	r := New()
	r.ObserveRun(pipeline.Result{Titles: titles, Stats: pipeline.Stats{Elapsed: 4 * time.Second}})

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"resolved", testutil.ToFloat64(r.Titles.WithLabelValues(pipeline.ResolutionResolved)), 1},
		{"no-holdings", testutil.ToFloat64(r.Titles.WithLabelValues(pipeline.ResolutionNoHoldings)), 1},
		{"ambiguous", testutil.ToFloat64(r.Titles.WithLabelValues(pipeline.ResolutionAmbiguous)), 1},
		{"google-books covers", testutil.ToFloat64(r.Covers.WithLabelValues("google-books")), 1},
		{"available copies", testutil.ToFloat64(r.Copies.WithLabelValues("AVAILABLE")), 1},
		{"due copies", testutil.ToFloat64(r.Copies.WithLabelValues("DUE")), 1},
		{"run duration", testutil.ToFloat64(r.RunDuration), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, tt.got)
			}
		})
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.ObserveProbe("covers.openlibrary.org", probe.KindHTTPStatus)

	path := filepath.Join(t.TempDir(), "goodreader.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `goodreader_requests_total{host="covers.openlibrary.org",kind="HTTP_STATUS"} 1`) {
		t.Errorf("Unexpected textfile content:\n%s", data)
	}
}

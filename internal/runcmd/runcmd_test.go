package runcmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codeyoulateralligator/goodreader/internal/catalog/estertest"
	"github.com/codeyoulateralligator/goodreader/internal/config"
	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/pipeline"
	"github.com/codeyoulateralligator/goodreader/internal/results"
)

func TestRunOptionsSource(t *testing.T) {
	tests := []struct {
		name    string
		opts    RunOptions
		want    string
		wantErr bool
	}{
		{"csv", RunOptions{GoodreadsCSV: "a.csv"}, "csv", false},
		{"user", RunOptions{GoodreadsUser: "42"}, "user", false},
		{"file", RunOptions{InputPath: "list.parquet"}, "file", false},
		{"none", RunOptions{}, "", true},
		{"two", RunOptions{GoodreadsCSV: "a.csv", GoodreadsUser: "42"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := tt.opts.source()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if src.Kind != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, src.Kind)
			}
		})
	}
}

func TestLoadConfigRejectsZeroThreads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("workers: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(RunOptions{ConfigPath: path}); err == nil {
		t.Error("Expected validation error for 0 workers")
	}
	cfg, err := loadConfig(RunOptions{ConfigPath: path, Threads: 3, MaxTitles: 5})
	if err != nil {
		t.Fatalf("Expected flags to override the file, got %v", err)
	}
	if cfg.Workers != 3 || cfg.MaxTitles != 5 {
		t.Errorf("Unexpected config %+v", cfg)
	}
}

func savedRun(t *testing.T) (*results.Run, string) {
	t.Helper()
	r := results.New(config.Default(), results.Source{Kind: "csv", Ref: "export.csv"}, time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC))
	titles := []models.ResolvedTitle{
		{
			Index:    0,
			Record:   models.InputRecord{Title: "Ubik", Author: "Philip K. Dick"},
			Match:    models.MatchResolved,
			Hit:      &models.CatalogueHit{RecordURL: "https://www.ester.ee/record=b1784914~S1*est", Strategy: models.StrategyTitleIndex},
			Holdings: []models.HoldingCopy{{Branch: "TlnRK Kadrioru", Status: models.HoldingStatus{Kind: models.StatusAvailable}}},
			Cover:    &models.CoverCandidate{Source: models.CoverOpenLibrary, URL: "https://covers.openlibrary.org/b/id/1-M.jpg", ByteSize: 9000},
		},
		{
			Index:  1,
			Record: models.InputRecord{Title: "Solaris", Author: "Stanisław Lem"},
			Match:  models.MatchResolved,
			Hit:    &models.CatalogueHit{RecordURL: "https://www.ester.ee/record=b2~S1*est"},
			Holdings: []models.HoldingCopy{
				{Branch: "RaRa üldkogu", Status: models.HoldingStatus{Kind: models.StatusDue, Due: time.Date(2025, 11, 12, 0, 0, 0, 0, time.UTC)}},
			},
		},
		{
			Index:  2,
			Record: models.InputRecord{Title: "Nonexistent", Author: "Nobody"},
			Match:  models.MatchNone,
			Trace:  []models.TraceEntry{{Stage: "match", Step: "keyword", Outcome: "no-hits"}},
		},
	}
	stats := pipeline.NewStats()
	for _, tt := range titles {
		stats.Add(tt)
	}
	r.Complete(pipeline.Result{Titles: titles, Stats: stats}, r.Started.Add(time.Minute), false)

	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := r.Save(path); err != nil {
		t.Fatal(err)
	}
	return r, path
}

func TestWriteSummary(t *testing.T) {
	run, _ := savedRun(t)
	var buf bytes.Buffer
	if err := WriteSummary(&buf, run, false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"TITLES NOT FOUND ON ESTER",
		"Nobody – Nonexistent (no-match)",
		"Total not-found: 1",
		"NO AVAILABLE COPIES",
		"Stanisław Lem – Solaris",
		"Covers found: 1/3",
		"openlibrary",
		"100.0 %",
		"Titles with available copies: 1/3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected summary to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("Expected no colour codes when colour is off")
	}
}

func TestExecuteReport(t *testing.T) {
	run, path := savedRun(t)

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := ExecuteReport(&buf, path, "text"); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{run.ID, "[1] Philip K. Dick – Ubik", "AVAILABLE TKR Kadriorg", "until 2025-11-12", "match/keyword: no-hits"} {
			if !strings.Contains(out, want) {
				t.Errorf("Expected text report to contain %q", want)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := ExecuteReport(&buf, path, "json"); err != nil {
			t.Fatal(err)
		}
		var decoded struct {
			ID     string `json:"id"`
			Titles []models.ResolvedTitle
		}
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("Expected valid JSON: %v", err)
		}
		if decoded.ID != run.ID || len(decoded.Titles) != 3 {
			t.Errorf("Unexpected JSON report %+v", decoded)
		}
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := ExecuteReport(&buf, path, "csv"); err != nil {
			t.Fatal(err)
		}
		rows, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 4 {
			t.Fatalf("Expected header and 3 rows, got %d", len(rows))
		}
		if rows[1][4] != "resolved" || rows[1][8] != "openlibrary" {
			t.Errorf("Unexpected first row %v", rows[1])
		}
		if rows[2][4] != "resolved" || rows[2][7] != "0" {
			t.Errorf("Unexpected second row %v", rows[2])
		}
		if rows[3][4] != "no-match" {
			t.Errorf("Unexpected third row %v", rows[3])
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if err := ExecuteReport(&bytes.Buffer{}, path, "xml"); err == nil {
			t.Error("Expected an error for an unknown format")
		}
	})
}

// runFixture serves one available title from a fake catalogue and a fake
// geocoder and returns run options writing into a temp dir
func runFixture(t *testing.T) (RunOptions, string) {
	t.Helper()
	srv := estertest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddBook(&estertest.Book{
		Bib: "b1784914", Title: "Ubik / Philip K. Dick", Author: "Dick, Philip K.",
		Copies: []estertest.Copy{{Location: "TlnRK Kadrioru", CallNumber: "821.111", Status: "KOHAL"}},
	})
	srv.AddSearch("t", "Ubik", "b1784914")

	nominatim := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"lat":"59.4384","lon":"24.7921"}]`)
	}))
	t.Cleanup(nominatim.Close)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgYAML := fmt.Sprintf(`requests_per_sec: 0
catalogue:
  base_url: %[1]s
  epik_url: %[2]s
covers:
  google_books_url: %[1]s/img/gbcontent
  google_books_api: %[1]s/books/v1/
  openlibrary_covers_url: %[1]s/ol
  openlibrary_search_url: %[1]s/ol/search.json
  google_images_url: %[1]s/gimages
nominatim_url: %[3]s
geocode_cache: %[4]s
`, srv.URL, srv.EpikURL(), nominatim.URL, filepath.Join(dir, "geo.json"))
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0644); err != nil {
		t.Fatal(err)
	}
	csvPath := filepath.Join(dir, "export.csv")
	csvBody := "Title,Author,ISBN,ISBN13,Exclusive Shelf\nUbik,\"Dick, Philip K.\",,,to-read\nRead already,Someone,,,read\n"
	if err := os.WriteFile(csvPath, []byte(csvBody), 0644); err != nil {
		t.Fatal(err)
	}

	return RunOptions{
		ConfigPath:   cfgPath,
		GoodreadsCSV: csvPath,
		Threads:      2,
		Output:       filepath.Join(dir, "map.html"),
		Gallery:      filepath.Join(dir, "covers.html"),
		ResultsPath:  filepath.Join(dir, "run.yaml"),
		ParquetPath:  filepath.Join(dir, "holdings.parquet"),
		MetricsFile:  filepath.Join(dir, "goodreader.prom"),
	}, dir
}

func TestExecuteRun(t *testing.T) {
	opts, dir := runFixture(t)
	var stdout bytes.Buffer
	if err := ExecuteRun(context.Background(), opts, &stdout); err != nil {
		t.Fatalf("ExecuteRun failed: %v", err)
	}

	if !strings.Contains(stdout.String(), "Titles with available copies: 1/1") {
		t.Errorf("Unexpected summary:\n%s", stdout.String())
	}

	run, err := results.Load(opts.ResultsPath)
	if err != nil {
		t.Fatalf("Expected a loadable run file: %v", err)
	}
	if len(run.Titles) != 1 || run.Titles[0].Match != models.MatchResolved {
		t.Errorf("Expected one resolved title, got %+v", run.Titles)
	}

	page, err := os.ReadFile(opts.Output)
	if err != nil {
		t.Fatalf("Expected map page: %v", err)
	}
	if !strings.Contains(string(page), "TKR Kadriorg") {
		t.Error("Expected Kadriorg marker on the map")
	}

	for _, path := range []string{opts.Gallery, opts.ParquetPath, filepath.Join(dir, "geo.json")} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected %s to exist: %v", filepath.Base(path), err)
		}
	}

	prom, err := os.ReadFile(opts.MetricsFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(prom), `goodreader_titles_total{resolution="resolved"} 1`) {
		t.Errorf("Unexpected metrics:\n%s", prom)
	}
}

func TestExecuteRunWritesMetricsWhenMapFails(t *testing.T) {
	opts, dir := runFixture(t)
	if err := os.WriteFile(filepath.Join(dir, "geo.json"), []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := ExecuteRun(context.Background(), opts, &bytes.Buffer{}); err == nil {
		t.Fatal("Expected an error from a corrupt geocode cache")
	}
	if _, err := results.Load(opts.ResultsPath); err != nil {
		t.Errorf("Expected the run file to be saved: %v", err)
	}
	prom, err := os.ReadFile(opts.MetricsFile)
	if err != nil {
		t.Fatalf("Expected metrics textfile: %v", err)
	}
	if !strings.Contains(string(prom), `goodreader_titles_total{resolution="resolved"} 1`) {
		t.Errorf("Unexpected metrics:\n%s", prom)
	}
}

func TestExecuteRunUnreachableCatalogue(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("catalogue:\n  base_url: "+base+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	csvPath := filepath.Join(dir, "export.csv")
	if err := os.WriteFile(csvPath, []byte("Title,Author\nUbik,Philip K. Dick\n"), 0644); err != nil {
		t.Fatal(err)
	}

	err := ExecuteRun(context.Background(), RunOptions{ConfigPath: cfgPath, GoodreadsCSV: csvPath, ResultsPath: filepath.Join(dir, "run.yaml")}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), pipeline.ErrConnectivity.Error()) {
		t.Errorf("Expected connectivity error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "run.yaml")); !os.IsNotExist(statErr) {
		t.Error("Expected no run file after a connectivity failure")
	}
}

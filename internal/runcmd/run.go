// Package runcmd implements the run and report commands on top of the
// pipeline packages.
package runcmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/codeyoulateralligator/goodreader/internal/catalog"
	"github.com/codeyoulateralligator/goodreader/internal/config"
	"github.com/codeyoulateralligator/goodreader/internal/covers"
	"github.com/codeyoulateralligator/goodreader/internal/geocode"
	"github.com/codeyoulateralligator/goodreader/internal/holdings"
	"github.com/codeyoulateralligator/goodreader/internal/match"
	"github.com/codeyoulateralligator/goodreader/internal/metrics"
	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/pipeline"
	"github.com/codeyoulateralligator/goodreader/internal/probe"
	"github.com/codeyoulateralligator/goodreader/internal/render"
	"github.com/codeyoulateralligator/goodreader/internal/results"
	"github.com/codeyoulateralligator/goodreader/internal/shelf"
	"github.com/codeyoulateralligator/goodreader/internal/storage"
)

// RunOptions are the flags of the run command
type RunOptions struct {
	ConfigPath    string
	GoodreadsCSV  string
	GoodreadsUser string
	InputPath     string

	MaxTitles int
	Threads   int
	Debug     bool
	Geocode   bool // refresh cached coordinates

	Output      string
	Gallery     string
	ResultsPath string
	ParquetPath string
	MetricsFile string
}

// source picks the one reading-list source that was given
func (o RunOptions) source() (results.Source, error) {
	var srcs []results.Source
	if o.GoodreadsCSV != "" {
		srcs = append(srcs, results.Source{Kind: "csv", Ref: o.GoodreadsCSV})
	}
	if o.GoodreadsUser != "" {
		srcs = append(srcs, results.Source{Kind: "user", Ref: o.GoodreadsUser})
	}
	if o.InputPath != "" {
		srcs = append(srcs, results.Source{Kind: "file", Ref: o.InputPath})
	}
	if len(srcs) != 1 {
		return results.Source{}, fmt.Errorf("exactly one of --goodreads-csv, --goodreads-user or --input is required")
	}
	return srcs[0], nil
}

func loadConfig(opts RunOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Threads > 0 {
		cfg.Workers = opts.Threads
	}
	if opts.MaxTitles > 0 {
		cfg.MaxTitles = opts.MaxTitles
	}
	cfg.Debug = cfg.Debug || opts.Debug
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func loadRecords(ctx context.Context, p *probe.Client, cfg *config.Config, src results.Source) ([]models.InputRecord, error) {
	switch src.Kind {
	case "csv":
		return shelf.LoadCSV(src.Ref, cfg.MaxTitles)
	case "user":
		return shelf.NewScraper(p, "", cfg.Timeouts.Catalogue).Load(ctx, src.Ref, cfg.MaxTitles)
	default:
		return shelf.LoadFile(src.Ref, cfg.MaxTitles)
	}
}

// ExecuteRun loads the reading list, runs the pipeline and writes every
// artefact the options ask for. A cancelled run still saves what finished,
// together with its metrics.
func ExecuteRun(ctx context.Context, opts RunOptions, stdout io.Writer) (err error) {
	src, err := opts.source()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	setupLogging(cfg.Debug)

	reg := metrics.New()
	p := probe.NewClient(probe.Options{
		UserAgent:      cfg.UserAgent,
		RequestsPerSec: cfg.RequestsPerSec,
		HostRates:      cfg.HostRates,
		Debug:          cfg.Debug,
		Observer:       reg,
	})

	started := time.Now()
	records, err := loadRecords(ctx, p, cfg, src)
	if err != nil {
		return fmt.Errorf("failed to load reading list: %w", err)
	}
	slog.Info("Reading list loaded", "source", src.Kind, "titles", len(records))

	pages := storage.New()
	cat := catalog.NewClient(p, pages, catalog.Options{
		BaseURL:    cfg.Catalogue.BaseURL,
		SearchPath: cfg.Catalogue.SearchPath,
		EpikURL:    cfg.Catalogue.EpikURL,
		MaxHits:    cfg.Catalogue.MaxHits,
		MaxPages:   cfg.Catalogue.MaxPages,
		Timeout:    cfg.Timeouts.Catalogue,
	})
	runner := pipeline.NewRunner(pipeline.Deps{
		Matcher: match.NewResolver(cat, match.Options{
			AcceptThreshold: cfg.Match.AcceptThreshold,
			Margin:          cfg.Match.Margin,
		}),
		Holdings: holdings.NewExtractor(cat, holdings.Options{
			EpikTimeout: cfg.Timeouts.Epik,
			Debug:       cfg.Debug,
		}),
		Covers: covers.NewHunter(cat, covers.Options{
			MinBytes:             cfg.Covers.MinBytes,
			GoogleBooksMinBytes:  cfg.Covers.GoogleBooksMinBytes,
			Timeout:              cfg.Timeouts.Cover,
			ImagesTimeout:        cfg.Timeouts.Images,
			EpikTimeout:          cfg.Timeouts.Epik,
			GoogleBooksURL:       cfg.Covers.GoogleBooksURL,
			GoogleBooksAPI:       cfg.Covers.GoogleBooksAPI,
			OpenLibraryCoversURL: cfg.Covers.OpenLibraryCoversURL,
			OpenLibrarySearchURL: cfg.Covers.OpenLibrarySearchURL,
			GoogleImagesURL:      cfg.Covers.GoogleImagesURL,
		}),
		Probe:       p,
		PingURL:     cfg.Catalogue.BaseURL,
		PingTimeout: cfg.Timeouts.Catalogue,
	})

	run := results.New(cfg, src, started)
	res, runErr := runner.Run(ctx, records, pipeline.Options{MaxTitles: cfg.MaxTitles, Workers: cfg.Workers})
	if errors.Is(runErr, pipeline.ErrConnectivity) {
		return runErr
	}
	run.Complete(res, time.Now(), runErr != nil)
	reg.ObserveRun(res)
	slog.Debug("Page cache", "pages", pages.Len())

	if opts.MetricsFile != "" {
		defer func() {
			if werr := reg.WriteTextfile(opts.MetricsFile); werr != nil {
				slog.Error("Failed to write metrics", "path", opts.MetricsFile, "error", werr)
				if err == nil {
					err = werr
				}
			}
		}()
	}

	if err := WriteSummary(stdout, run, shouldColorize(stdout)); err != nil {
		return err
	}

	if err := save(run, cfg, opts); err != nil {
		return err
	}
	if runErr != nil {
		slog.Warn("Run interrupted, partial results saved", "finished", len(res.Titles), "total", len(records))
		return runErr
	}

	if err := drawMap(ctx, p, cfg, opts, res.Titles); err != nil {
		return err
	}
	if opts.Gallery != "" {
		if err := render.WriteGalleryFile(opts.Gallery, res.Titles); err != nil {
			return err
		}
		slog.Info("Gallery written", "path", opts.Gallery)
	}
	return nil
}

// save writes the run file, the optional Parquet export and, in debug
// mode, the snapshots of empty holdings pages
func save(run *results.Run, cfg *config.Config, opts RunOptions) error {
	path := opts.ResultsPath
	if path == "" {
		path = run.DefaultPath("runs")
	}
	if err := run.Save(path); err != nil {
		return err
	}
	abs, _ := filepath.Abs(path)
	slog.Info("Run saved", "path", abs, "id", run.ID)

	if opts.ParquetPath != "" {
		if err := run.WriteParquet(opts.ParquetPath); err != nil {
			return err
		}
	}

	if cfg.Debug {
		root := "."
		if opts.Output != "" {
			root = filepath.Dir(opts.Output)
		}
		n, err := render.WriteSnapshots(root, run.Titles)
		if err != nil {
			return err
		}
		if n > 0 {
			slog.Debug("Empty holdings snapshots written", "count", n, "dir", filepath.Join(root, render.SnapshotDir))
		}
	}
	return nil
}

func drawMap(ctx context.Context, p *probe.Client, cfg *config.Config, opts RunOptions, titles []models.ResolvedTitle) error {
	if opts.Output == "" {
		return nil
	}
	groups := render.GroupAvailable(titles)
	if len(groups) == 0 {
		slog.Warn("Nothing available (KOHAL) on ESTER, no map written")
		return nil
	}

	cache, err := geocode.OpenCache(cfg.GeocodeCache)
	if err != nil {
		return err
	}
	g := geocode.New(p, cache, geocode.Options{
		URL:     cfg.NominatimURL,
		Timeout: cfg.Timeouts.Geocode,
		Refresh: opts.Geocode,
	})
	coords, err := g.Locate(ctx, render.Places(groups))
	if err != nil {
		return fmt.Errorf("geocoding failed: %w", err)
	}

	err = render.WriteMapFile(opts.Output, groups, coords)
	if errors.Is(err, render.ErrNothingToMap) {
		slog.Warn("No branch could be geocoded, no map written")
		return nil
	}
	if err != nil {
		return err
	}
	slog.Info("Map written", "path", opts.Output, "branches", len(coords))
	return nil
}

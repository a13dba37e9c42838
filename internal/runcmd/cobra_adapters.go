package runcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	var opts RunOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Look up a Goodreads to-read shelf in ESTER and map the available copies",
		Long: `Reads a Goodreads "to-read" shelf, finds every title in the ESTER union
catalogue, lists the physical copies per library branch, finds a cover
image and writes a branch map and a cover gallery.

Exactly one reading-list source is required.`,
		Example: `  # From a Goodreads CSV export, four workers
  goodreader run --goodreads-csv goodreads_library_export.csv --threads 4

  # From a public shelf, first 20 titles, refreshing the geocode cache
  goodreader run --goodreads-user 12345678 --max-titles 20 --geocode

  # From a JSONL or Parquet list, with a holdings table and metrics
  goodreader run --input list.parquet --parquet holdings.parquet --metrics-file goodreader.prom`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.GoodreadsCSV != "" {
				if _, err := os.Stat(opts.GoodreadsCSV); os.IsNotExist(err) {
					return fmt.Errorf("CSV file not found: %s", opts.GoodreadsCSV)
				}
			}
			return ExecuteRun(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.GoodreadsCSV, "goodreads-csv", "", "Goodreads library export CSV")
	cmd.Flags().StringVar(&opts.GoodreadsUser, "goodreads-user", "", "Goodreads user id with a public shelf")
	cmd.Flags().StringVar(&opts.InputPath, "input", "", "Reading list as .csv, .jsonl or .parquet")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "YAML configuration file")
	cmd.Flags().IntVar(&opts.MaxTitles, "max-titles", 0, "Process at most this many titles (0 for all)")
	cmd.Flags().IntVar(&opts.Threads, "threads", 1, "Number of titles processed in parallel")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "Verbose logging and empty holdings snapshots")
	cmd.Flags().BoolVar(&opts.Geocode, "geocode", false, "Look up every branch address again instead of using the cache")
	cmd.Flags().StringVar(&opts.Output, "output", "want_to_read_map.html", "Branch map page")
	cmd.Flags().StringVar(&opts.Gallery, "gallery", "all_covers.html", "Cover gallery page")
	cmd.Flags().StringVar(&opts.ResultsPath, "results", "", "Run file (default runs/run-<time>-<id>.yaml)")
	cmd.Flags().StringVar(&opts.ParquetPath, "parquet", "", "Write the holdings table as Parquet")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus textfile metrics")

	cmd.MarkFlagsMutuallyExclusive("goodreads-csv", "goodreads-user", "input")
	cmd.MarkFlagsOneRequired("goodreads-csv", "goodreads-user", "input")

	return cmd
}

// NewReportCmd creates the report command
func NewReportCmd() *cobra.Command {
	var resultsPath string
	var format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a saved run file",
		Example: `  goodreader report --results runs/run-2025-11-01_10-00-00-1a2b3c4d.yaml
  goodreader report --results run.yaml --format csv > titles.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ExecuteReport(cmd.OutOrStdout(), resultsPath, format)
		},
	}

	cmd.Flags().StringVar(&resultsPath, "results", "", "Run file written by run (required)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or csv")
	_ = cmd.MarkFlagRequired("results")

	return cmd
}

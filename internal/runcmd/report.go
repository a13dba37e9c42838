package runcmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/codeyoulateralligator/goodreader/internal/branches"
	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/pipeline"
	"github.com/codeyoulateralligator/goodreader/internal/results"
)

// ExecuteReport renders a saved run file in format (text, json or csv)
func ExecuteReport(w io.Writer, path, format string) error {
	run, err := results.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load results: %w", err)
	}

	switch format {
	case "text":
		return printTextReport(w, run)
	case "json":
		return printJSONReport(w, run)
	case "csv":
		return printCSVReport(w, run)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printTextReport(w io.Writer, run *results.Run) error {
	var b strings.Builder
	fmt.Fprintln(&b, "========================================")
	fmt.Fprintln(&b, "Goodreads → ESTER run report")
	fmt.Fprintln(&b, "========================================")
	fmt.Fprintf(&b, "Run:      %s\n", run.ID)
	fmt.Fprintf(&b, "Started:  %s\n", run.Started.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Source:   %s %s\n", run.Source.Kind, run.Source.Ref)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Detailed Results:")
	fmt.Fprintln(&b, "========================================")
	for _, t := range run.Titles {
		fmt.Fprintf(&b, "\n[%d] %s\n", t.Index+1, t.Record.Label())
		fmt.Fprintf(&b, "  Resolution: %s\n", pipeline.Resolution(t))
		if t.Hit != nil {
			fmt.Fprintf(&b, "  Record:     %s (%s)\n", t.Hit.RecordURL, t.Hit.Strategy)
		}
		for _, c := range t.Holdings {
			line := fmt.Sprintf("    %-9s %s", c.Status.Kind, branches.Resolve(c.Branch).Name)
			if !c.Status.Due.IsZero() {
				line += " until " + c.Status.Due.Format("2006-01-02")
			}
			if c.CallNumber != "" {
				line += " [" + c.CallNumber + "]"
			}
			fmt.Fprintln(&b, line)
		}
		if t.Cover != nil {
			fmt.Fprintf(&b, "  Cover:      %s (%d bytes)\n", t.Cover.Source, t.Cover.ByteSize)
		}
		if t.Match != models.MatchResolved {
			for _, e := range t.Trace {
				fmt.Fprintf(&b, "    %s/%s: %s %s\n", e.Stage, e.Step, e.Outcome, e.Detail)
			}
		}
	}
	fmt.Fprintln(&b)
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	return WriteSummary(w, run, false)
}

func printJSONReport(w io.Writer, run *results.Run) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(run)
}

func printCSVReport(w io.Writer, run *results.Run) error {
	writer := csv.NewWriter(w)

	header := []string{"Index", "Author", "Title", "ISBN", "Resolution", "Record", "Copies", "Available", "Cover Source", "Cover URL"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, t := range run.Titles {
		row := []string{
			strconv.Itoa(t.Index + 1),
			t.Record.Author,
			t.Record.Title,
			t.Record.ISBN,
			pipeline.Resolution(t),
			"",
			strconv.Itoa(len(t.Holdings)),
			strconv.Itoa(len(t.Available())),
			"",
			"",
		}
		if t.Hit != nil {
			row[5] = t.Hit.RecordURL
		}
		if t.Cover != nil {
			row[8] = string(t.Cover.Source)
			row[9] = t.Cover.URL
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

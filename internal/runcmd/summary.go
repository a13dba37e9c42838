package runcmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/codeyoulateralligator/goodreader/internal/models"
	"github.com/codeyoulateralligator/goodreader/internal/pipeline"
	"github.com/codeyoulateralligator/goodreader/internal/results"
)

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type painter bool

func (p painter) paint(s string, colors ...text.Color) string {
	if !p {
		return s
	}
	return text.Colors(colors).Sprint(s)
}

// NotFound lists the titles that did not resolve to a catalogue record
func NotFound(titles []models.ResolvedTitle) []models.ResolvedTitle {
	var out []models.ResolvedTitle
	for _, t := range titles {
		if t.Match != models.MatchResolved {
			out = append(out, t)
		}
	}
	return out
}

// NoneAvailable lists resolved titles with no copy on the shelf
func NoneAvailable(titles []models.ResolvedTitle) []models.ResolvedTitle {
	var out []models.ResolvedTitle
	for _, t := range titles {
		if t.Match == models.MatchResolved && len(t.Available()) == 0 {
			out = append(out, t)
		}
	}
	return out
}

// WriteSummary prints the end-of-run report: the titles that were not
// found, the ones found without available copies and the cover statistics
func WriteSummary(w io.Writer, run *results.Run, colour bool) error {
	p := painter(colour)
	var b strings.Builder

	if missing := NotFound(run.Titles); len(missing) > 0 {
		fmt.Fprintln(&b, p.paint("=== TITLES NOT FOUND ON ESTER ===", text.FgRed, text.Bold))
		for _, t := range missing {
			fmt.Fprintf(&b, "%s %s (%s)\n", p.paint("✗", text.FgRed), t.Record.Label(), pipeline.Resolution(t))
		}
		fmt.Fprintln(&b, p.paint(fmt.Sprintf("Total not-found: %d", len(missing)), text.FgRed))
		fmt.Fprintln(&b)
	}

	if none := NoneAvailable(run.Titles); len(none) > 0 {
		fmt.Fprintln(&b, p.paint("=== TITLES FOUND, BUT WITH NO AVAILABLE COPIES ===", text.FgYellow, text.Bold))
		for _, t := range none {
			fmt.Fprintf(&b, "%s %s\n", p.paint("•", text.FgYellow), t.Record.Label())
		}
		fmt.Fprintln(&b, p.paint(fmt.Sprintf("Total without available copies: %d", len(none)), text.FgYellow))
		fmt.Fprintln(&b)
	}

	stats := run.Stats
	if found := stats.CoversFound(); found > 0 {
		fmt.Fprintln(&b, p.paint(fmt.Sprintf("Covers found: %d/%d", found, stats.Total), text.FgCyan))
		b.WriteString(coverTable(stats))
		b.WriteString("\n")
	} else {
		fmt.Fprintln(&b, p.paint("No covers were extracted", text.FgYellow))
	}

	fmt.Fprintf(&b, "Titles with available copies: %d/%d\n", stats.Available, stats.Total)
	fmt.Fprintln(&b, p.paint(fmt.Sprintf("Total time spent: %.2fs", stats.Elapsed.Seconds()), text.FgYellow))
	if run.Partial {
		fmt.Fprintln(&b, p.paint("Run was interrupted; results are partial", text.FgRed))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func coverTable(stats pipeline.Stats) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Source", "Covers", "Share"})
	for _, src := range models.CoverSources {
		n := stats.Covers[src]
		if n == 0 {
			continue
		}
		tw.AppendRow(table.Row{string(src), n, fmt.Sprintf("%.1f %%", stats.Percent(src))})
	}
	tw.AppendFooter(table.Row{"not found", stats.NotFound, ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	return tw.Render()
}

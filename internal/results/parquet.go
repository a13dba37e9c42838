package results

import (
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/codeyoulateralligator/goodreader/internal/branches"
)

// HoldingRow is one copy of one title, flattened for tabular export
type HoldingRow struct {
	RunID       string `parquet:"run_id"`
	Index       int64  `parquet:"index"`
	Title       string `parquet:"title"`
	Author      string `parquet:"author"`
	ISBN        string `parquet:"isbn,optional"`
	RecordURL   string `parquet:"record_url"`
	Location    string `parquet:"location"`
	Library     string `parquet:"library"`
	Address     string `parquet:"address,optional"`
	CallNumber  string `parquet:"call_number,optional"`
	Status      string `parquet:"status"`
	Due         string `parquet:"due,optional"`
	MediaKind   string `parquet:"media_kind"`
	Source      string `parquet:"source"`
	CoverSource string `parquet:"cover_source,optional"`
	CoverURL    string `parquet:"cover_url,optional"`
}

// Rows flattens the holdings of every resolved title
func (r *Run) Rows() []HoldingRow {
	var rows []HoldingRow
	for _, t := range r.Titles {
		for _, c := range t.Holdings {
			place := branches.Resolve(c.Branch)
			row := HoldingRow{
				RunID:      r.ID,
				Index:      int64(t.Index),
				Title:      t.Record.Title,
				Author:     t.Record.Author,
				ISBN:       t.Record.ISBN,
				Location:   c.Branch,
				Library:    place.Name,
				Address:    place.Address,
				CallNumber: c.CallNumber,
				Status:     string(c.Status.Kind),
				MediaKind:  string(c.MediaKind),
				Source:     c.Source,
			}
			if t.Hit != nil {
				row.RecordURL = t.Hit.RecordURL
			}
			if !c.Status.Due.IsZero() {
				row.Due = c.Status.Due.Format("2006-01-02")
			}
			if t.Cover != nil {
				row.CoverSource = string(t.Cover.Source)
				row.CoverURL = t.Cover.URL
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// WriteParquet exports Rows to path
func (r *Run) WriteParquet(path string) error {
	if err := parquet.WriteFile(path, r.Rows()); err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}
	return nil
}

// ReadParquet loads rows written by WriteParquet
func ReadParquet(path string) ([]HoldingRow, error) {
	rows, err := parquet.ReadFile[HoldingRow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet file: %w", err)
	}
	return rows, nil
}

// Package shelf reads the reading list: a Goodreads CSV export, a public
// Goodreads shelf, or a JSONL/Parquet file of records.
package shelf

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/codeyoulateralligator/goodreader/internal/models"
)

// ToRead is the Goodreads shelf the tool reconciles
const ToRead = "to-read"

// LoadFile reads records from path, picking the format from its extension.
// limit > 0 keeps only the first limit records.
func LoadFile(path string, limit int) ([]models.InputRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path, limit)
	case ".jsonl", ".json":
		return loadJSONL(path, limit)
	case ".parquet":
		return loadParquet(path, limit)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .csv, .jsonl, .parquet)", filepath.Ext(path))
	}
}

// LoadCSV reads a Goodreads library export and keeps the to-read shelf
func LoadCSV(path string, limit int) ([]models.InputRecord, error) {
	slog.Info("Loading Goodreads CSV", "path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer file.Close()

	return ReadCSV(file, limit)
}

// ReadCSV is LoadCSV over an open reader
func ReadCSV(r io.Reader, limit int) ([]models.InputRecord, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "﻿"))] = i
	}
	for _, need := range []string{"Title", "Author"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("csv has no %q column", need)
		}
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []models.InputRecord
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv at line %d: %w", line, err)
		}
		if _, ok := col["Exclusive Shelf"]; ok && !strings.EqualFold(field(row, "Exclusive Shelf"), ToRead) {
			continue
		}

		isbn := field(row, "ISBN13")
		if unquoteISBN(isbn) == "" {
			isbn = field(row, "ISBN")
		}
		out = append(out, models.InputRecord{
			Title:  field(row, "Title"),
			Author: field(row, "Author"),
			ISBN:   unquoteISBN(isbn),
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	slog.Debug("Finished reading csv", "records", len(out), "lines", line)
	return out, nil
}

// unquoteISBN undoes the ="…" wrapping spreadsheets put around ISBN cells
func unquoteISBN(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

func loadJSONL(path string, limit int) ([]models.InputRecord, error) {
	slog.Debug("Opening JSONL file", "path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open records file: %w", err)
	}
	defer file.Close()

	var records []models.InputRecord
	scanner := bufio.NewScanner(file)
	const maxCapacity = 1024 * 1024
	scanner.Buffer(make([]byte, maxCapacity), maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var rec models.InputRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		records = append(records, rec)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading records: %w", err)
	}
	return records, nil
}

func loadParquet(path string, limit int) ([]models.InputRecord, error) {
	slog.Debug("Opening Parquet file", "path", path)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[models.InputRecord](pf)
	defer reader.Close()

	var records []models.InputRecord
	rows := make([]models.InputRecord, 128)
	for {
		n, err := reader.Read(rows)
		records = append(records, rows[:n]...)
		if limit > 0 && len(records) >= limit {
			return records[:limit], nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	slog.Debug("Finished reading Parquet file", "records", len(records))
	return records, nil
}

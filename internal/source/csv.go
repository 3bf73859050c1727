// Package source provides pipeline source steps that read raw extracts from
// disk into tables.
package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"infomap/internal/logging"
	"infomap/internal/pipeline"
	"infomap/internal/table"
)

// headerCandidates are tokens that identify the real header row inside
// extracts that carry title/preamble rows above it.
var headerCandidates = []string{"姓名", "身份证"}

// nameColumn is the column whose empty rows are dropped: rows without a
// person are padding, totals or decoration.
const nameColumn = "姓名"

// CSVReader reads every CSV extract under a directory, one table per file.
// Files are decoded as UTF-8 when valid, GB18030 otherwise.
type CSVReader struct {
	sourceDir string
	specific  []string
}

func NewCSVReader(sourceDir string) *CSVReader {
	return &CSVReader{sourceDir: sourceDir}
}

func (r *CSVReader) SetSpecificFiles(files []string) { r.specific = files }

func (r *CSVReader) Verify(pre pipeline.StepResult) bool { return true }

func (r *CSVReader) Run(ctx context.Context, pre []pipeline.StepResult, emit func(pipeline.StepResult)) error {
	files, err := pipeline.MatchFiles(r.specific, r.sourceDir, "*.csv")
	if err != nil {
		return err
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		tbl, err := r.readFile(f)
		if err != nil {
			return fmt.Errorf("reading %s: %w", f, err)
		}
		if tbl == nil {
			logging.Pipeline("skipping %s: no header row found", f)
			continue
		}
		if tbl.NumRows() == 0 {
			logging.Pipeline("skipping %s: no data rows", f)
			continue
		}
		emit(pipeline.StepResult{Name: tbl.Name, Table: tbl, Path: f})
	}
	return nil
}

func (r *CSVReader) readFile(path string) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode as GB18030: %w", err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	headerRow := findHeaderRow(records)
	if headerRow == -1 {
		return nil, nil
	}

	columns := records[headerRow]
	rows := make([][]string, 0, len(records)-headerRow-1)
	nameIdx := columnIndexContaining(columns, nameColumn)
	for _, rec := range records[headerRow+1:] {
		row := padRow(rec, len(columns))
		if nameIdx >= 0 && strings.TrimSpace(row[nameIdx]) == "" {
			continue
		}
		rows = append(rows, row)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return table.New(name, columns, rows)
}

// findHeaderRow returns the first row containing a header candidate token,
// or -1.
func findHeaderRow(records [][]string) int {
	for i, rec := range records {
		for _, cell := range rec {
			for _, candidate := range headerCandidates {
				if strings.Contains(cell, candidate) {
					return i
				}
			}
		}
	}
	return -1
}

func columnIndexContaining(columns []string, token string) int {
	for i, c := range columns {
		if strings.Contains(c, token) {
			return i
		}
	}
	return -1
}

// padRow right-pads or truncates a record to the header width.
func padRow(rec []string, width int) []string {
	row := make([]string, width)
	copy(row, rec)
	return row
}

// Package destination provides pipeline steps that persist mapped results.
package destination

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"infomap/internal/logging"
	"infomap/internal/pipeline"
	"infomap/internal/table"
)

// JSONExporter writes each mapped table as a records-oriented JSON file:
// one object per row, keyed by column name.
type JSONExporter struct {
	outputDir string
}

func NewJSONExporter(outputDir string) *JSONExporter {
	return &JSONExporter{outputDir: outputDir}
}

func (e *JSONExporter) Verify(pre pipeline.StepResult) bool {
	return pre.Table != nil
}

func (e *JSONExporter) Run(ctx context.Context, pre []pipeline.StepResult, emit func(pipeline.StepResult)) error {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	for _, in := range pre {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(e.outputDir, in.Name+".json")
		if err := writeRecords(path, in.Table); err != nil {
			return fmt.Errorf("exporting %s: %w", in.Name, err)
		}
		logging.Pipeline("exported %s (%d rows)", path, in.Table.NumRows())
		emit(pipeline.StepResult{Name: in.Name, Path: path})
	}
	return nil
}

func writeRecords(path string, t *table.Table) error {
	records := make([]map[string]string, t.NumRows())
	for i, row := range t.Rows {
		rec := make(map[string]string, len(t.Columns))
		for j, col := range t.Columns {
			if j < len(row) {
				rec[col] = row[j]
			} else {
				rec[col] = ""
			}
		}
		records[i] = rec
	}

	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return err
	}

	// Write via temp file so a crash never leaves a half-written export.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

var _ pipeline.Step = (*JSONExporter)(nil)

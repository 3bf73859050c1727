package destination

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infomap/internal/pipeline"
	"infomap/internal/table"
)

func TestExportRecords(t *testing.T) {
	dir := t.TempDir()
	exporter := NewJSONExporter(dir)

	tbl, err := table.New("九月名单", []string{"姓名", "证件号码", "作业"}, [][]string{
		{"张三", "610101199001014239", "入职"},
		{"李四", "320102198811223344", "离职"},
	})
	require.NoError(t, err)

	var results []pipeline.StepResult
	pre := []pipeline.StepResult{{Name: "九月名单", Table: tbl}}
	require.NoError(t, exporter.Run(context.Background(), pre, func(r pipeline.StepResult) {
		results = append(results, r)
	}))

	require.Len(t, results, 1)
	assert.Equal(t, filepath.Join(dir, "九月名单.json"), results[0].Path)

	data, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)

	var records []map[string]string
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Equal(t, "张三", records[0]["姓名"])
	assert.Equal(t, "离职", records[1]["作业"])
}

func TestExportEmptyTable(t *testing.T) {
	dir := t.TempDir()
	exporter := NewJSONExporter(dir)

	tbl, err := table.New("空表", []string{"姓名"}, nil)
	require.NoError(t, err)

	pre := []pipeline.StepResult{{Name: "空表", Table: tbl}}
	require.NoError(t, exporter.Run(context.Background(), pre, func(pipeline.StepResult) {}))

	data, err := os.ReadFile(filepath.Join(dir, "空表.json"))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestVerifySkipsFileOnlyResults(t *testing.T) {
	exporter := NewJSONExporter(t.TempDir())
	assert.False(t, exporter.Verify(pipeline.StepResult{Name: "x"}))
}

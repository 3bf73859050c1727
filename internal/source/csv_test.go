package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"infomap/internal/pipeline"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func runReader(t *testing.T, r *CSVReader) []pipeline.StepResult {
	t.Helper()
	var results []pipeline.StepResult
	require.NoError(t, r.Run(context.Background(), nil, func(res pipeline.StepResult) {
		results = append(results, res)
	}))
	return results
}

func TestReadUTF8(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "九月名单.csv", "姓名,身份证号码,入职日期\n张三,610101199001014239,2025/10/9\n李四,320102198811223344,2025/1/2\n")

	results := runReader(t, NewCSVReader(dir))
	require.Len(t, results, 1)

	tbl := results[0].Table
	assert.Equal(t, "九月名单", tbl.Name)
	assert.Equal(t, []string{"姓名", "身份证号码", "入职日期"}, tbl.Columns)
	assert.Equal(t, 2, tbl.NumRows())
}

func TestReadGB18030(t *testing.T) {
	dir := t.TempDir()
	content := "姓名,身份证号码\n张三,610101199001014239\n"
	encoded, _, err := transform.String(simplifiedchinese.GB18030.NewEncoder(), content)
	require.NoError(t, err)
	writeFile(t, dir, "gbk.csv", encoded)

	results := runReader(t, NewCSVReader(dir))
	require.Len(t, results, 1)
	assert.Equal(t, []string{"姓名", "身份证号码"}, results[0].Table.Columns)
	assert.Equal(t, "张三", results[0].Table.Rows[0][0])
}

func TestHeaderRowBelowPreamble(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "report.csv", "某公司2025年9月人员报表\n制表人:王五\n姓名,身份证号码\n张三,610101199001014239\n")

	results := runReader(t, NewCSVReader(dir))
	require.Len(t, results, 1)
	assert.Equal(t, []string{"姓名", "身份证号码"}, results[0].Table.Columns)
	assert.Equal(t, 1, results[0].Table.NumRows())
}

func TestEmptyNameRowsDropped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "totals.csv", "姓名,金额\n张三,100\n,300\n合计行照样有姓名才算\n")

	results := runReader(t, NewCSVReader(dir))
	require.Len(t, results, 1)
	// The totals row with an empty 姓名 cell is dropped; short rows are
	// padded to header width.
	require.Equal(t, 2, results[0].Table.NumRows())
	assert.Equal(t, []string{"张三", "100"}, results[0].Table.Rows[0])
	assert.Equal(t, []string{"合计行照样有姓名才算", ""}, results[0].Table.Rows[1])
}

func TestNoHeaderRowSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "noise.csv", "a,b\nc,d\n")

	results := runReader(t, NewCSVReader(dir))
	assert.Empty(t, results)
}

func TestSpecificFiles(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "one.csv", "姓名\n张三\n")
	writeFile(t, dir, "two.csv", "姓名\n李四\n")

	r := NewCSVReader(dir)
	r.SetSpecificFiles([]string{first})

	results := runReader(t, r)
	require.Len(t, results, 1)
	assert.Equal(t, "one", results[0].Name)
}

func TestBOMStripped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bom.csv", "\ufeff姓名,金额\n张三,1\n")

	results := runReader(t, NewCSVReader(dir))
	require.Len(t, results, 1)
	assert.Equal(t, "姓名", results[0].Table.Columns[0])
}

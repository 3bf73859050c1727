package table

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesRowWidths(t *testing.T) {
	_, err := New("s", []string{"a", "b"}, [][]string{{"1", "2"}, {"3"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")
}

func TestColumnIndex(t *testing.T) {
	tbl, err := New("s", []string{"姓名", "证件号码"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, tbl.ColumnIndex("证件号码"))
	assert.Equal(t, -1, tbl.ColumnIndex("不存在"))
}

func TestRenameColumns(t *testing.T) {
	tbl, err := New("s", []string{"姓 名", "身份证号码①"}, [][]string{{"张三", "x"}})
	require.NoError(t, err)

	require.NoError(t, tbl.RenameColumns([]string{"姓名", "身份证号码"}))

	want := &Table{
		Name:    "s",
		Columns: []string{"姓名", "身份证号码"},
		Rows:    [][]string{{"张三", "x"}},
	}
	if diff := cmp.Diff(want, tbl); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}

	assert.Error(t, tbl.RenameColumns([]string{"只有一列"}))
}

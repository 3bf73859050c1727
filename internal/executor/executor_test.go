package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infomap/internal/table"
)

func testTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New("9月增员", []string{"姓名", "身份证号码", "入职日期"}, [][]string{
		{"张三", "610101199001014239", "2025/10/9"},
		{"李四", "320102198811223344", "2025年1月2日"},
	})
	require.NoError(t, err)
	return tbl
}

func TestExecuteMapping(t *testing.T) {
	engine := New("df")
	out, err := engine.Execute(context.Background(), `
		SELECT "姓名" AS "姓名",
		       "身份证号码" AS "证件号码",
		       "入职日期" AS "入职日期",
		       '入职' AS "作业"
		FROM "df"
	`, testTable(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"姓名", "证件号码", "入职日期", "作业"}, out.Columns)
	require.Equal(t, 2, out.NumRows())
	assert.Equal(t, []string{"张三", "610101199001014239", "2025-10-09", "入职"}, out.Rows[0])
	assert.Equal(t, []string{"李四", "320102198811223344", "2025-01-02", "入职"}, out.Rows[1])
}

func TestExecuteStripsFence(t *testing.T) {
	engine := New("df")
	out, err := engine.Execute(context.Background(),
		"```sql\nSELECT \"姓名\" AS \"姓名\" FROM \"df\"\n```", testTable(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"姓名"}, out.Columns)
	assert.Equal(t, 2, out.NumRows())
}

func TestExecuteSyntaxError(t *testing.T) {
	engine := New("df")
	_, err := engine.Execute(context.Background(), "SELEKT * FROM df", testTable(t))
	require.Error(t, err)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "SELEKT * FROM df", execErr.SQL, "error carries the raw transformation text")
	assert.NotNil(t, execErr.Unwrap())
}

func TestExecuteUnknownColumn(t *testing.T) {
	engine := New("df")
	_, err := engine.Execute(context.Background(), `SELECT "不存在的列" FROM "df"`, testTable(t))

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
}

func TestExecuteEmptyTable(t *testing.T) {
	engine := New("df")
	tbl, err := table.New("空表", []string{"姓名"}, nil)
	require.NoError(t, err)

	out, err := engine.Execute(context.Background(), `SELECT "姓名" FROM "df"`, tbl)
	require.NoError(t, err)
	assert.Equal(t, 0, out.NumRows())
}

func TestDateParsePassThrough(t *testing.T) {
	engine := New("df")
	tbl, err := table.New("s", []string{"离职日期"}, [][]string{
		{"待定"}, {"2025.10.09"}, {""}, {"45000"},
	})
	require.NoError(t, err)

	out, err := engine.Execute(context.Background(), `SELECT "离职日期" FROM "df"`, tbl)
	require.NoError(t, err)

	assert.Equal(t, "待定", out.Rows[0][0], "unparseable values pass through unchanged")
	assert.Equal(t, "2025-10-09", out.Rows[1][0])
	assert.Equal(t, "", out.Rows[2][0])
	assert.Equal(t, "2023-03-15", out.Rows[3][0], "Excel serial dates resolve")
}

func TestMonthColumn(t *testing.T) {
	engine := New("df")
	tbl, err := table.New("s", []string{"结算月份"}, [][]string{
		{"2025.9"}, {"2025/10/09"}, {"2025年9月"}, {"不详"},
	})
	require.NoError(t, err)

	out, err := engine.Execute(context.Background(), `SELECT "结算月份" FROM "df"`, tbl)
	require.NoError(t, err)

	assert.Equal(t, "2025-09", out.Rows[0][0])
	assert.Equal(t, "2025-10", out.Rows[1][0], "full dates collapse to their month")
	assert.Equal(t, "2025-09", out.Rows[2][0])
	assert.Equal(t, "不详", out.Rows[3][0])
}

func TestStripFence(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", "SELECT 1", "SELECT 1"},
		{"sql fence", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"plain fence", "```\nSELECT 1\n```", "SELECT 1"},
		{"leading whitespace", "  \n```sql\nSELECT 1\n```  ", "SELECT 1"},
		{"multiline", "```sql\nSELECT a,\n       b\nFROM df\n```", "SELECT a,\n       b\nFROM df"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripFence(tc.in))
		})
	}
}

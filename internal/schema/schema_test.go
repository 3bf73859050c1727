package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSchema(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "info_items.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeSchema(t, `
info_items:
  - name: 姓名
    type: TEXT
    describe: 员工姓名
    sample: 张三
  - name: 证件号码
    type: TEXT
    describe: 同义词，例如："身份证号"、"身份证号码"等
    sample: "110101199001011234"
  - name: 入职日期
    type: TEXT
    describe: 员工入职的日期
`)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"姓名", "证件号码", "入职日期"}, s.Names())

	item := s.Item("证件号码")
	require.NotNil(t, item)
	assert.Equal(t, "TEXT", item.Type)
	assert.Nil(t, s.Item("不存在"))
}

func TestLoadRejectsDuplicates(t *testing.T) {
	path := writeSchema(t, `
info_items:
  - name: 姓名
  - name: 姓名
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsEmpty(t *testing.T) {
	path := writeSchema(t, "info_items: []\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestSynonyms(t *testing.T) {
	tests := []struct {
		name     string
		describe string
		want     []string
	}{
		{
			name:     "ascii quotes",
			describe: `同义词，例如："身份证号"、"身份证号码"等`,
			want:     []string{"身份证号", "身份证号码"},
		},
		{
			name:     "fullwidth quotes",
			describe: "同义词，例如：“工号”等",
			want:     []string{"工号"},
		},
		{
			name:     "no marker means no synonyms",
			describe: `描述里引用了"某词"而已`,
			want:     nil,
		},
		{
			name:     "empty description",
			describe: "",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := InfoItem{Name: "x", Description: tt.describe}
			assert.Equal(t, tt.want, item.Synonyms())
		})
	}
}

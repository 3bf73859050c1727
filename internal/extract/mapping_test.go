package extract

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"infomap/internal/ace"
	"infomap/internal/executor"
	"infomap/internal/generator"
	"infomap/internal/llm"
	"infomap/internal/normalizer"
	"infomap/internal/pipeline"
	"infomap/internal/schema"
	"infomap/internal/store"
	"infomap/internal/table"
)

// axisEngine maps known texts onto unit axes so matching is exact.
type axisEngine struct {
	vectors map[string][]float32
	err     error
}

func (e *axisEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *axisEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0, 0, 0}
		}
	}
	return out, nil
}

func (e *axisEngine) Dimensions() int { return 4 }
func (e *axisEngine) Name() string    { return "axis" }

// recordingClient returns scripted SQL for Complete and canned agent
// behavior for the feedback loop.
type recordingClient struct {
	sql            string
	completeCalls  int
	structuredUser string
	chatCalls      int
}

func (c *recordingClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.completeCalls++
	return c.sql, nil
}

func (c *recordingClient) CompleteStructured(ctx context.Context, systemPrompt, userPrompt string, _ *llm.JSONSchema) (string, error) {
	c.structuredUser = userPrompt
	return `{"reasoning":"r","playbook_evaluation":[]}`, nil
}

func (c *recordingClient) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.ToolResponse, error) {
	c.chatCalls++
	if c.chatCalls == 1 {
		return &llm.ToolResponse{StopReason: "tool_use", ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "overview_playbooks", Input: map[string]interface{}{}},
		}}, nil
	}
	return &llm.ToolResponse{StopReason: "end_turn"}, nil
}

const goodSQL = `SELECT "姓名" AS "姓名", "身份证号码" AS "证件号码", "入职日期" AS "入职日期", '入职' AS "作业" FROM "df"`

func hrSchema() *schema.TargetSchema {
	return &schema.TargetSchema{Items: []schema.InfoItem{
		{Name: "姓名", Type: "string"},
		{Name: "证件号码", Type: "string", Description: `同义词，例如："身份证号码"`},
		{Name: "入职日期", Type: "date"},
		{Name: "作业", Type: "string"},
	}}
}

func hrEngine() *axisEngine {
	return &axisEngine{vectors: map[string][]float32{
		"姓名":    {1, 0, 0, 0},
		"证件号码":  {0, 1, 0, 0},
		"身份证号码": {0, 1, 0, 0},
		"入职日期":  {0, 0, 1, 0},
		"作业":    {0, 0, 0, 1},
	}}
}

type fixture struct {
	extractor *MappingExtractor
	cache     *store.MappingCache
	playbook  *store.Playbook
	client    *recordingClient
}

func newFixture(t *testing.T, client *recordingClient, opts Options) *fixture {
	t.Helper()
	sch := hrSchema()

	cache, err := store.NewMappingCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	pb, err := store.NewPlaybook(t.TempDir(), "spreadsheet")
	require.NoError(t, err)

	if opts.MinConfidence == 0 {
		opts.MinConfidence = 0.4
	}
	extractor := NewMappingExtractor(
		normalizer.NewMatcher(sch, hrEngine()),
		generator.New(client, sch, "df"),
		executor.New("df"),
		cache, pb,
		ace.NewLoop(client, pb),
		opts,
	)
	return &fixture{extractor: extractor, cache: cache, playbook: pb, client: client}
}

func inputTable(t *testing.T) *table.Table {
	t.Helper()
	// The second header carries noise the cleaner strips.
	tbl, err := table.New("9月增员名单", []string{"姓名", "身份证号码①", "入职日期"}, [][]string{
		{"张三", "610101199001014239", "2025/10/9"},
	})
	require.NoError(t, err)
	return tbl
}

func runOne(t *testing.T, f *fixture, tbl *table.Table) []pipeline.StepResult {
	t.Helper()
	var results []pipeline.StepResult
	pre := []pipeline.StepResult{{Name: tbl.Name, Table: tbl}}
	require.NoError(t, f.extractor.Run(context.Background(), pre, func(r pipeline.StepResult) {
		results = append(results, r)
	}))
	return results
}

func TestFreshSynthesis(t *testing.T) {
	client := &recordingClient{sql: goodSQL}
	f := newFixture(t, client, Options{})

	results := runOne(t, f, inputTable(t))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	out := results[0].Table
	assert.Equal(t, []string{"姓名", "证件号码", "入职日期", "作业"}, out.Columns)
	assert.Equal(t, []string{"张三", "610101199001014239", "2025-10-09", "入职"}, out.Rows[0])
	assert.Equal(t, 1, client.completeCalls)

	// The validated transformation is cached under the cleaned-header
	// fingerprint.
	fp := store.Fingerprint([]string{"姓名", "身份证号码", "入职日期"})
	cached, ok, err := f.cache.Lookup(fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, goodSQL, cached)
}

func TestCacheHitSkipsSynthesis(t *testing.T) {
	client := &recordingClient{sql: "SELEKT"}
	f := newFixture(t, client, Options{})

	fp := store.Fingerprint([]string{"姓名", "身份证号码", "入职日期"})
	require.NoError(t, f.cache.Store(fp, goodSQL))

	results := runOne(t, f, inputTable(t))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "入职", results[0].Table.Rows[0][3])
	assert.Zero(t, client.completeCalls, "cache hit must not invoke the generator")
}

func TestCachedFailureTriggersReflection(t *testing.T) {
	client := &recordingClient{sql: goodSQL}
	f := newFixture(t, client, Options{})

	fp := store.Fingerprint([]string{"姓名", "身份证号码", "入职日期"})
	require.NoError(t, f.cache.Store(fp, `SELECT "不存在" FROM "df"`))

	results := runOne(t, f, inputTable(t))
	require.Len(t, results, 1)

	var execErr *executor.ExecutionError
	require.True(t, errors.As(results[0].Err, &execErr))
	assert.NotZero(t, client.chatCalls, "curator must run before the sheet is reported failed")
	assert.Zero(t, client.completeCalls, "the failed sheet is not retried this run")

	// The broken entry stays; the store is append-only.
	n, err := f.cache.Count(fp)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPolicyAllFallsBackToOlderEntry(t *testing.T) {
	client := &recordingClient{sql: "unused"}
	f := newFixture(t, client, Options{CachePolicy: PolicyAll})

	fp := store.Fingerprint([]string{"姓名", "身份证号码", "入职日期"})
	require.NoError(t, f.cache.Store(fp, goodSQL))
	require.NoError(t, f.cache.Store(fp, `SELECT "不存在" FROM "df"`)) // newest, broken

	results := runOne(t, f, inputTable(t))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Zero(t, client.completeCalls)
}

func TestSynthesisFailureReflectsAndSkipsStore(t *testing.T) {
	client := &recordingClient{sql: `SELECT "没有这列" FROM "df"`}
	f := newFixture(t, client, Options{})

	results := runOne(t, f, inputTable(t))
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)

	// The reflector saw the failed conversation.
	assert.Contains(t, client.structuredUser, "没有这列")

	fp := store.Fingerprint([]string{"姓名", "身份证号码", "入职日期"})
	n, err := f.cache.Count(fp)
	require.NoError(t, err)
	assert.Zero(t, n, "failed transformations are never cached")
}

func TestEmbeddingFailureAbortsRun(t *testing.T) {
	client := &recordingClient{sql: goodSQL}
	f := newFixture(t, client, Options{})

	broken := &axisEngine{err: errors.New("embedding service down")}
	f.extractor.matcher = normalizer.NewMatcher(hrSchema(), broken)

	pre := []pipeline.StepResult{{Name: "s", Table: inputTable(t)}}
	err := f.extractor.Run(context.Background(), pre, func(pipeline.StepResult) {})
	require.Error(t, err)

	var normErr *normalizer.NormalizeError
	assert.True(t, errors.As(err, &normErr))
}

func TestVerifyRequiresTable(t *testing.T) {
	f := newFixture(t, &recordingClient{}, Options{})
	assert.True(t, f.extractor.Verify(pipeline.StepResult{Table: inputTable(t)}))
	assert.False(t, f.extractor.Verify(pipeline.StepResult{Name: "file-only"}))
}

// Package generator synthesizes the SQL transformation that maps one
// spreadsheet extract onto the target schema.
package generator

import (
	"context"
	"fmt"
	"strings"

	"infomap/internal/llm"
	"infomap/internal/logging"
	"infomap/internal/normalizer"
	"infomap/internal/schema"
)

// Generator builds a single mapping query per sheet via the LLM, guided by
// the normalizer's assignment and the current playbook.
type Generator struct {
	client   llm.Client
	schema   *schema.TargetSchema
	relation string
}

// New creates a generator. relation is the name the input table is exposed
// under inside the query (conventionally "df").
func New(client llm.Client, sch *schema.TargetSchema, relation string) *Generator {
	if relation == "" {
		relation = "df"
	}
	return &Generator{client: client, schema: sch, relation: relation}
}

// Synthesis is one completed generation: the transformation text plus the
// full conversation that produced it, kept for the reflection loop.
type Synthesis struct {
	SQL   string
	Trace []llm.Message
}

const systemPrompt = `你是一个数据分析师，你需要根据提供的表结构，生成取数的SQL脚本。SQL遵守SQLite的SQL方言。
注意：
- 结果仅包含SQL脚本
- 只要完成列与信息项的映射。
- 输出列必须与信息项完全一致：同名、同序、一个不多一个不少。
- 没有对应输入列的信息项输出空字符串 ''。`

// Synthesize builds the prompt and requests one transformation.
func (g *Generator) Synthesize(ctx context.Context, sheetName string, inputHeaders []string, match *normalizer.Result, playbookText string) (*Synthesis, error) {
	timer := logging.StartTimer(logging.CategoryGenerator, "Synthesize")
	defer timer.Stop()

	userPrompt := g.buildPrompt(sheetName, inputHeaders, match, playbookText)

	sql, err := g.client.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("transformation synthesis failed: %w", err)
	}

	logging.GeneratorDebug("sheet %q: synthesized %d bytes of SQL", sheetName, len(sql))
	return &Synthesis{
		SQL: sql,
		Trace: []llm.Message{
			llm.SystemMessage(systemPrompt),
			llm.UserMessage(userPrompt),
			llm.AssistantMessage(sql),
		},
	}, nil
}

// buildPrompt assembles the enumerated schema, the playbook, the example
// output shape, the normalizer's suggestions and the mandated work-type
// expression into a single request.
func (g *Generator) buildPrompt(sheetName string, inputHeaders []string, match *normalizer.Result, playbookText string) string {
	var b strings.Builder

	b.WriteString("信息项定义（name : type # describe）：\n")
	for _, item := range g.schema.Items {
		fmt.Fprintf(&b, "- %s : %s # %s\n", item.Name, item.Type, strings.TrimSpace(item.Description))
	}

	if playbookText != "" {
		b.WriteString("\n历史经验：\n")
		b.WriteString(playbookText)
		b.WriteString("\n")
	}

	b.WriteString("\n输出形式示例（一条SQL，列名与信息项一致）：\n")
	b.WriteString(g.exampleQuery())
	b.WriteString("\n")

	if match != nil {
		b.WriteString("\n列匹配建议（目标 <- 输入，置信度）：\n")
		for _, c := range match.Candidates {
			if c.Input == "" {
				continue
			}
			fmt.Fprintf(&b, "- %s <- %s (%.3f)\n", c.Target, c.Input, c.Confidence)
		}
	}

	if g.schema.Item(ColumnWorkType) != nil {
		fmt.Fprintf(&b, "\n%s 列必须使用如下表达式，不得改动：\n%s\n",
			ColumnWorkType, WorkTypeExpression(sheetName, match))
	}

	fmt.Fprintf(&b, "\nsheet名称：%s\n", sheetName)
	fmt.Fprintf(&b, "%s 的列名：%s\n", g.relation, strings.Join(inputHeaders, ", "))
	fmt.Fprintf(&b, "生成查询 **%s** 获取信息项的SQL。\n", g.relation)

	return b.String()
}

// exampleQuery shows the expected shape: every target column, in order,
// aliased to its schema name.
func (g *Generator) exampleQuery() string {
	parts := make([]string, len(g.schema.Items))
	for i, item := range g.schema.Items {
		parts[i] = fmt.Sprintf("<expr> AS %s", quoteIdent(item.Name))
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(parts, ", "), g.relation)
}

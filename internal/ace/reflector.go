package ace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"infomap/internal/llm"
	"infomap/internal/logging"
	"infomap/internal/store"
)

const reflectorInstructions = `你是资深的SQL智能体，负责分析取数脚本的执行轨迹，诊断其成功或失败的原因，并提炼出可复用的策略和教训。
考虑更新 信息项和df字段的映射关系（同义词）。
**分析要求：**
1.  **逐步复盘**：仔细检查执行轨迹中的每一步，思考其意图和实际效果。
2.  **定位关键点**：识别出直接导致成功或失败的关键决策、工具调用或逻辑判断。
3.  **归因分析**：判断问题是源于对API的误解、策略选择不当、逻辑错误，还是忽略了Playbook中的某条重要建议。
4.  **提炼新知**：从本次经历中总结出新的、有价值的策略、常见陷阱或优化技巧。
5.  **策略条目评估**: 影响评估仅列出与本轮执行相关的策略条目，评估其对智能体成功或失败的影响，分类为"helpful"、"harmful"或"neutral"。`

// Reflector replays a failed synthesis conversation to a diagnostic agent
// and extracts a structured Reflection.
type Reflector struct {
	client   llm.Client
	playbook *store.Playbook
}

func NewReflector(client llm.Client, playbook *store.Playbook) *Reflector {
	return &Reflector{client: client, playbook: playbook}
}

// Reflect diagnoses one failure. trace is the synthesis conversation (may be
// empty on the cache path, where no conversation happened); execErr is the
// execution failure that triggered the loop.
func (r *Reflector) Reflect(ctx context.Context, trace []llm.Message, execErr error) (*Reflection, error) {
	timer := logging.StartTimer(logging.CategoryReflect, "Reflect")
	defer timer.Stop()

	entries, err := r.playbook.Overview()
	if err != nil {
		return nil, fmt.Errorf("failed to read playbook overview: %w", err)
	}

	var b strings.Builder
	b.WriteString("策略条目Playbooks：\n")
	if len(entries) == 0 {
		b.WriteString("（空）\n")
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s\n", e.ID, strings.TrimSpace(e.Content))
	}

	if len(trace) > 0 {
		b.WriteString("\n执行轨迹：\n")
		for _, msg := range trace {
			fmt.Fprintf(&b, "--- %s ---\n%s\n", msg.Role, msg.Content)
		}
	}

	if execErr != nil {
		fmt.Fprintf(&b, "\n异常信息：%v\n", execErr)
	}

	raw, err := r.client.CompleteStructured(ctx, reflectorInstructions, b.String(), reflectionSchema)
	if err != nil {
		return nil, fmt.Errorf("reflection failed: %w", err)
	}

	var reflection Reflection
	if err := json.Unmarshal([]byte(raw), &reflection); err != nil {
		return nil, fmt.Errorf("failed to parse reflection: %w", err)
	}

	logging.Reflect("reflection produced, %d playbook entries evaluated", len(reflection.PlaybookEvaluation))
	return &reflection, nil
}

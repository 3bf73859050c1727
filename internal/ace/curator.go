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

const curatorInstructions = `你是一名严谨的知识库整编专家（Curator）。你的任务是根据反思器的分析，对策略剧本进行精准的增量更新以优化df映射取数的执行效果。
1.  **分析反思器输出**：仔细阅读反思器的分析结果，识别出需要更新的策略条目、新增的策略或修正的策略。
2.  **新增或更新策略剧本**：根据分析结果，对策略剧本进行增量更新。确保更新后的剧本与反思器的分析一致，且符合策略剧本的格式规范。
    可以使用overview_playbooks读取策略剧本，使用create_playbook创建新策略条目，使用modify_playbook和delete_playbook修改或删除策略条目。`

// maxCuratorIterations bounds the tool loop; the agent decides which
// operations to invoke but not how long it gets to invoke them.
const maxCuratorIterations = 8

// Curator hands a Reflection to an agent empowered with the four playbook
// operations and executes whatever it decides, validated.
type Curator struct {
	client   llm.Client
	playbook *store.Playbook
}

func NewCurator(client llm.Client, playbook *store.Playbook) *Curator {
	return &Curator{client: client, playbook: playbook}
}

func curatorTools() []llm.ToolDefinition {
	content := map[string]interface{}{
		"type": "string", "description": "策略条目内容",
	}
	id := map[string]interface{}{
		"type": "string", "description": "策略条目的文件序号",
	}
	return []llm.ToolDefinition{
		{
			Name:        "overview_playbooks",
			Description: "读取全部策略条目（序号和内容）",
			InputSchema: map[string]interface{}{
				"type": "object", "properties": map[string]interface{}{},
			},
		},
		{
			Name:        "create_playbook",
			Description: "创建新策略条目",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"content": content},
				"required":   []string{"content"},
			},
		},
		{
			Name:        "modify_playbook",
			Description: "修改已有策略条目",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"id": id, "content": content},
				"required":   []string{"id", "content"},
			},
		},
		{
			Name:        "delete_playbook",
			Description: "删除策略条目",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{"id": id},
				"required":   []string{"id"},
			},
		},
	}
}

// Curate runs the tool loop until the agent stops or the iteration bound is
// hit. Tool failures (e.g. modify on a nonexistent id) are echoed back to
// the agent rather than aborting the loop.
func (c *Curator) Curate(ctx context.Context, reflection *Reflection) error {
	timer := logging.StartTimer(logging.CategoryReflect, "Curate")
	defer timer.Stop()

	reflectionJSON, err := json.Marshal(reflection)
	if err != nil {
		return fmt.Errorf("failed to encode reflection: %w", err)
	}

	messages := []llm.Message{
		llm.SystemMessage(curatorInstructions),
		llm.UserMessage(fmt.Sprintf("反思结果：%s", reflectionJSON)),
	}
	tools := curatorTools()

	for i := 0; i < maxCuratorIterations; i++ {
		resp, err := c.client.Chat(ctx, messages, tools)
		if err != nil {
			return fmt.Errorf("curation failed: %w", err)
		}
		if resp.StopReason != "tool_use" || len(resp.ToolCalls) == 0 {
			logging.Reflect("curation completed after %d rounds", i)
			return nil
		}

		messages = append(messages, llm.AssistantToolCalls(resp.Text, resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			result := c.execute(call)
			messages = append(messages, llm.ToolResultMessage(call.ID, result))
		}
	}

	logging.Reflect("curation stopped at iteration bound")
	return nil
}

// execute validates and runs one tool call, returning the result text fed
// back to the agent.
func (c *Curator) execute(call llm.ToolCall) string {
	logging.ReflectDebug("curator tool call: %s", call.Name)

	switch call.Name {
	case "overview_playbooks":
		entries, err := c.playbook.Overview()
		if err != nil {
			return fmt.Sprintf("读取失败：%v", err)
		}
		if len(entries) == 0 {
			return "（空）"
		}
		var b strings.Builder
		for _, e := range entries {
			fmt.Fprintf(&b, "[%s] %s\n", e.ID, strings.TrimSpace(e.Content))
		}
		return b.String()

	case "create_playbook":
		content, ok := call.Input["content"].(string)
		if !ok || strings.TrimSpace(content) == "" {
			return "创建失败：content 不能为空"
		}
		id, err := c.playbook.Create(content)
		if err != nil {
			return fmt.Sprintf("创建失败：%v", err)
		}
		return fmt.Sprintf("已创建 %s", id)

	case "modify_playbook":
		id, _ := call.Input["id"].(string)
		content, ok := call.Input["content"].(string)
		if !ok || strings.TrimSpace(content) == "" {
			return "修改失败：content 不能为空"
		}
		if err := c.playbook.Modify(id, content); err != nil {
			return fmt.Sprintf("修改失败：%v", err)
		}
		return fmt.Sprintf("已修改 %s", id)

	case "delete_playbook":
		id, _ := call.Input["id"].(string)
		if err := c.playbook.Delete(id); err != nil {
			return fmt.Sprintf("删除失败：%v", err)
		}
		return fmt.Sprintf("已删除 %s", id)

	default:
		return fmt.Sprintf("未知工具：%s", call.Name)
	}
}

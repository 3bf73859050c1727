// Package llm provides the generative text collaborator: an
// OpenAI-compatible chat client with plain, structured (JSON schema) and
// tool-calling completion modes.
package llm

import (
	"context"
	"encoding/json"
	"time"
)

// Client is the interface the generator, reflector and curator roles use.
type Client interface {
	// Complete sends a prompt with a system message and returns free text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// CompleteStructured constrains the response to a JSON schema and
	// returns the raw JSON text.
	CompleteStructured(ctx context.Context, systemPrompt, userPrompt string, schema *JSONSchema) (string, error)

	// Chat sends a full message history with tool definitions and returns
	// text plus any tool invocations the model chose to make.
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*ToolResponse, error)
}

// Config holds client configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Message is one turn of an OpenAI-style conversation.
type Message struct {
	Role       string         `json:"role"` // system, user, assistant, tool
	Content    string         `json:"content,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"` // for role=tool
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`   // for role=assistant echoes
}

// ToolDefinition describes a callable operation exposed to the model.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]interface{} // JSON Schema for parameters
}

// ToolCall is a tool invocation requested by the model. The model's choice
// of tool and arguments is external input and must be validated before
// execution.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]interface{}
}

// ToolResponse contains both text and tool calls from one chat turn.
type ToolResponse struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string // "end_turn" or "tool_use"
}

// JSONSchema names a structured-output schema.
type JSONSchema struct {
	Name   string
	Schema map[string]interface{}
}

// SystemMessage builds a system turn.
func SystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage builds a user turn.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// AssistantMessage builds a plain assistant turn.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// AssistantToolCalls echoes an assistant turn that requested tool calls, so
// the follow-up request carries the full exchange.
func AssistantToolCalls(text string, calls []ToolCall) Message {
	wire := make([]wireToolCall, len(calls))
	for i, c := range calls {
		args, err := json.Marshal(c.Input)
		if err != nil {
			args = []byte("{}")
		}
		wire[i] = wireToolCall{
			ID:   c.ID,
			Type: "function",
			Function: wireFunctionCall{
				Name:      c.Name,
				Arguments: string(args),
			},
		}
	}
	return Message{Role: "assistant", Content: text, ToolCalls: wire}
}

// ToolResultMessage builds the tool-role turn answering one tool call.
func ToolResultMessage(callID, content string) Message {
	return Message{Role: "tool", ToolCallID: callID, Content: content}
}

// Package api defines the wire types shared between the streaming
// transport, the conversation log, and the tool registry: messages,
// tool invocations, and tool schemas as the chat-completions endpoint
// expects them.
package api

import "encoding/json"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in the conversation log.
//
// A tool-result message (role "tool") carries ToolCallID and Name linking
// it to the assistant message that requested the call. An assistant
// message with non-empty ToolCalls has empty Content.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a fully parsed tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Definition is the schema for one callable tool, in the shape the
// completion endpoint expects: {type:"function", function:{...}}.
type Definition struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function describes a tool's name, description, and parameter schema.
type Function struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewDefinition builds a function-type Definition.
func NewDefinition(name, description string, parameters map[string]any) Definition {
	return Definition{
		Type: "function",
		Function: Function{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// ChatRequest is the JSON body POSTed to the completion endpoint.
type ChatRequest struct {
	Model       string       `json:"model"`
	Messages    []Message    `json:"messages"`
	Tools       []Definition `json:"tools,omitempty"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature,omitempty"`
	TopP        float64      `json:"top_p,omitempty"`
	Stream      bool         `json:"stream,omitempty"`
}

// StreamChunk is one SSE data payload from a streaming response.
type StreamChunk struct {
	Choices []StreamChoice `json:"choices"`
}

type StreamChoice struct {
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Delta carries either incremental content text or tool-call fragments.
type Delta struct {
	Content   string             `json:"content,omitempty"`
	ToolCalls []ToolCallFragment `json:"tool_calls,omitempty"`
}

// ToolCallFragment is one streamed piece of a tool invocation, keyed by
// Index so that multiple calls can be built concurrently.
type ToolCallFragment struct {
	Index    int              `json:"index"`
	ID       string           `json:"id,omitempty"`
	Function FunctionFragment `json:"function"`
}

// FunctionFragment holds incremental name and argument text. Arguments is
// raw JSON text accumulated by concatenation and only parsed once the
// stream has finished.
type FunctionFragment struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Completion is a non-streaming chat response, used by consolidation.
type Completion struct {
	Choices []CompletionChoice `json:"choices"`
}

type CompletionChoice struct {
	Message Message `json:"message"`
}

// CanonicalArgs returns a deterministic encoding of an argument mapping,
// used to build tool-call signatures for repeat detection. Marshalling a
// map[string]any through encoding/json yields keys in sorted order.
func CanonicalArgs(args map[string]any) string {
	raw, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return string(raw)
}

// Package conversation holds the in-memory message log sent to the
// completion endpoint, and the consolidation policy that bounds its
// growth. State lives in process memory for a single session.
package conversation

import (
	"github.com/klubi/golem/pkg/api"
)

// Log is the ordered conversation history. Messages are appended as the
// turn progresses and never mutated after append, except en masse during
// consolidation which replaces the whole log.
type Log struct {
	messages     []api.Message
	systemPrompt string
	turnsSince   int // user turns since the last consolidation
}

// NewLog creates a Log seeded with the system prompt.
func NewLog(systemPrompt string) *Log {
	return &Log{
		messages:     []api.Message{{Role: api.RoleSystem, Content: systemPrompt}},
		systemPrompt: systemPrompt,
	}
}

// AddUser appends a user message and counts the turn.
func (l *Log) AddUser(content string) {
	l.messages = append(l.messages, api.Message{Role: api.RoleUser, Content: content})
	l.turnsSince++
}

// AddAssistant appends an assistant text message.
func (l *Log) AddAssistant(content string) {
	l.messages = append(l.messages, api.Message{Role: api.RoleAssistant, Content: content})
}

// AddAssistantToolCalls appends the assistant message that carries the
// pending invocations. Content stays empty: an assistant message with
// tool calls has no text.
func (l *Log) AddAssistantToolCalls(calls []api.ToolCall) {
	l.messages = append(l.messages, api.Message{
		Role:      api.RoleAssistant,
		ToolCalls: calls,
	})
}

// AddToolResult appends a tool-result message linked to its invocation.
func (l *Log) AddToolResult(callID, name, result string) {
	l.messages = append(l.messages, api.Message{
		Role:       api.RoleTool,
		ToolCallID: callID,
		Name:       name,
		Content:    result,
	})
}

// Messages returns the log contents for an outbound request.
func (l *Log) Messages() []api.Message {
	return l.messages
}

// Len returns the number of messages.
func (l *Log) Len() int {
	return len(l.messages)
}

// CharVolume is the total character count across all message contents,
// the estimate used by the consolidation trigger.
func (l *Log) CharVolume() int {
	total := 0
	for _, m := range l.messages {
		total += len(m.Content)
	}
	return total
}

// TurnsSinceConsolidation returns the user-turn count since the log was
// last consolidated.
func (l *Log) TurnsSinceConsolidation() int {
	return l.turnsSince
}

// SystemPrompt returns the original system prompt.
func (l *Log) SystemPrompt() string {
	return l.systemPrompt
}

// LastUserMessage returns the most recent user message and whether one
// exists.
func (l *Log) LastUserMessage() (api.Message, bool) {
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].Role == api.RoleUser {
			return l.messages[i], true
		}
	}
	return api.Message{}, false
}

// ReplaceAll swaps the entire log for the given messages and resets the
// turn counter. Only consolidation uses this.
func (l *Log) ReplaceAll(messages []api.Message) {
	l.messages = messages
	l.turnsSince = 0
}

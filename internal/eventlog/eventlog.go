// Package eventlog appends one JSON object per line to a session log
// file, recording every request, response, tool call, and intervention
// for offline analysis.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types written to the log.
const (
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
	EventUserInput    = "user_input"
	EventRequest      = "request"
	EventResponse     = "response"
	EventToolCall     = "tool_call"
	EventToolResult   = "tool_result"
	EventIntervention = "intervention"
	EventAPIError     = "api_error"
)

// Entry is one line of the JSONL log.
type Entry struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Step      int            `json:"step,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Writer appends entries to a log file. A failed write is reported once
// through the logger and never interrupts the conversation.
type Writer struct {
	mu        sync.Mutex
	file      *os.File
	sessionID string
	logger    *zap.Logger
	warned    bool
}

// NewWriter opens (or creates) the log file for appending and writes
// the session_start entry.
func NewWriter(path string, model string, logger *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	w := &Writer{
		file:      file,
		sessionID: uuid.NewString(),
		logger:    logger,
	}
	w.Write(EventSessionStart, 0, map[string]any{"model": model})
	return w, nil
}

// SessionID returns the identifier shared by all entries of this run.
func (w *Writer) SessionID() string {
	return w.sessionID
}

// Write appends one entry. Errors are swallowed after a single warning;
// logging must never take the session down.
func (w *Writer) Write(eventType string, step int, data map[string]any) {
	entry := Entry{
		ID:        uuid.NewString(),
		SessionID: w.sessionID,
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Step:      step,
		Data:      data,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		w.warn("failed to encode event", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return
	}
	if _, err := w.file.Write(append(line, '\n')); err != nil {
		w.warn("failed to write event", err)
	}
}

// Request records an outgoing model request.
func (w *Writer) Request(step, messages, toolCount int) {
	w.Write(EventRequest, step, map[string]any{
		"messages": messages,
		"tools":    toolCount,
	})
}

// Response records what came back: plain text length or the tool calls.
func (w *Writer) Response(step int, textLen int, toolNames []string) {
	data := map[string]any{"text_chars": textLen}
	if len(toolNames) > 0 {
		data["tool_calls"] = toolNames
	}
	w.Write(EventResponse, step, data)
}

// ToolCall records one tool invocation with its raw arguments.
func (w *Writer) ToolCall(step int, name string, args map[string]any) {
	w.Write(EventToolCall, step, map[string]any{
		"tool": name,
		"args": args,
	})
}

// ToolResult records the outcome of a tool invocation.
func (w *Writer) ToolResult(step int, name string, resultChars int, exit bool) {
	w.Write(EventToolResult, step, map[string]any{
		"tool":         name,
		"result_chars": resultChars,
		"exit":         exit,
	})
}

// Intervention records a loop-safety action (repeat short-circuit,
// pseudo-call correction, consolidation, safety stop, ...).
func (w *Writer) Intervention(step int, kind, detail string) {
	w.Write(EventIntervention, step, map[string]any{
		"kind":   kind,
		"detail": detail,
	})
}

// APIError records a failed model request. blocked marks content-policy
// style statuses that get a corrective turn instead of a retry.
func (w *Writer) APIError(step, statusCode int, blocked bool, message string) {
	w.Write(EventAPIError, step, map[string]any{
		"status":  statusCode,
		"blocked": blocked,
		"message": message,
	})
}

// Close writes the session_end entry and closes the file.
func (w *Writer) Close() error {
	w.Write(EventSessionEnd, 0, nil)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *Writer) warn(msg string, err error) {
	if w.warned {
		return
	}
	w.warned = true
	w.logger.Warn(msg, zap.Error(err))
}

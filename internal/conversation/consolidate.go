package conversation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/klubi/golem/pkg/api"
)

// Completer issues the secondary, non-streaming summary request.
// *stream.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req api.ChatRequest) (api.Message, error)
}

// Thresholds are the three independent consolidation triggers. Crossing
// any one of them triggers consolidation.
type Thresholds struct {
	Turns           int
	Messages        int
	Chars           int
	RecentExchanges int // how many trailing exchanges feed the summary
	PerMessageCap   int // per-message character cap in the projection
}

// Consolidator destructively compresses the conversation log: it asks
// the model for a condensed summary of a compact projection of the log,
// then replaces the whole log with exactly two entries — the original
// system prompt with the summary appended, and the most recent user
// message. History is lost by design; the point is an unconditional
// bound on context growth.
type Consolidator struct {
	client     Completer
	model      string
	thresholds Thresholds
	logger     *zap.Logger
}

// NewConsolidator creates a Consolidator.
func NewConsolidator(client Completer, model string, t Thresholds, logger *zap.Logger) *Consolidator {
	return &Consolidator{client: client, model: model, thresholds: t, logger: logger}
}

// ShouldConsolidate reports whether any threshold has been crossed.
func (c *Consolidator) ShouldConsolidate(log *Log) bool {
	if c.thresholds.Turns > 0 && log.TurnsSinceConsolidation() >= c.thresholds.Turns {
		return true
	}
	if c.thresholds.Messages > 0 && log.Len() >= c.thresholds.Messages {
		return true
	}
	if c.thresholds.Chars > 0 && log.CharVolume() >= c.thresholds.Chars {
		return true
	}
	return false
}

// Consolidate performs the destructive replacement. The resulting log
// always has exactly two messages; when no user message exists a
// synthetic continuation prompt takes its place.
func (c *Consolidator) Consolidate(ctx context.Context, log *Log) error {
	summary, err := c.summarize(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to generate summary: %w", err)
	}

	systemMsg := api.Message{
		Role: api.RoleSystem,
		Content: log.SystemPrompt() +
			"\n\nCONVERSATION SUMMARY (earlier history has been consolidated):\n" + summary,
	}

	userMsg, ok := log.LastUserMessage()
	if !ok {
		userMsg = api.Message{
			Role:    api.RoleUser,
			Content: "Continue where we left off.",
		}
	}

	c.logger.Info("conversation consolidated",
		zap.Int("previousMessages", log.Len()),
		zap.Int("summaryChars", len(summary)),
	)

	log.ReplaceAll([]api.Message{systemMsg, userMsg})
	return nil
}

// summarize runs the secondary summary request over a compact projection
// of the log.
func (c *Consolidator) summarize(ctx context.Context, log *Log) (string, error) {
	projection := c.project(log)

	req := api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role: api.RoleSystem,
				Content: "Condense the following conversation into a brief summary. " +
					"Keep task goals, decisions made, files touched, and unresolved issues. " +
					"Write plain prose, no more than a few paragraphs.",
			},
			{Role: api.RoleUser, Content: projection},
		},
		MaxTokens:   1024,
		Temperature: 0.3,
	}

	msg, err := c.client.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("summary request returned empty content")
	}
	return msg.Content, nil
}

// project builds the compact text view of the log that feeds the summary
// request: user/assistant text truncated to a per-message cap, tool
// results elided to one-line markers, capped to the most recent N
// exchanges.
func (c *Consolidator) project(log *Log) string {
	msgs := log.Messages()

	limit := c.thresholds.RecentExchanges * 2
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case api.RoleSystem:
			continue
		case api.RoleTool:
			fmt.Fprintf(&b, "[tool %s returned %d chars]\n", m.Name, len(m.Content))
		case api.RoleAssistant:
			if len(m.ToolCalls) > 0 {
				names := make([]string, 0, len(m.ToolCalls))
				for _, tc := range m.ToolCalls {
					names = append(names, tc.Name)
				}
				fmt.Fprintf(&b, "assistant: [called %s]\n", strings.Join(names, ", "))
				continue
			}
			fmt.Fprintf(&b, "assistant: %s\n", capText(m.Content, c.thresholds.PerMessageCap))
		default:
			fmt.Fprintf(&b, "%s: %s\n", m.Role, capText(m.Content, c.thresholds.PerMessageCap))
		}
	}
	return b.String()
}

func capText(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

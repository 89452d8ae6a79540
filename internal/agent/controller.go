// Package agent drives the turn loop: it sends the conversation to the
// model, reassembles the streamed response, executes requested tools,
// and applies the loop-safety policy that keeps a misbehaving model
// from spinning forever.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/klubi/golem/internal/config"
	"github.com/klubi/golem/internal/conversation"
	"github.com/klubi/golem/internal/eventlog"
	"github.com/klubi/golem/internal/plan"
	"github.com/klubi/golem/internal/stream"
	"github.com/klubi/golem/internal/tools"
	"github.com/klubi/golem/internal/tools/builtin"
	"github.com/klubi/golem/pkg/api"
)

// UI is how the controller talks to the terminal. The CLI implements
// it; tests use a recording fake.
type UI interface {
	// TextDelta prints one streamed chunk of assistant text.
	TextDelta(s string)
	// TextDone marks the end of a streamed text response.
	TextDone()
	// ToolCall announces a tool invocation before it runs.
	ToolCall(name string, args map[string]any)
	// Notice shows an out-of-band status line (interventions, errors).
	Notice(s string)
	// ConfirmContinue asks the operator whether a long turn should keep
	// going. Returning false aborts the turn.
	ConfirmContinue(steps int) bool
}

// Controller owns one session's turn loop.
type Controller struct {
	cfg          *config.Config
	client       *stream.Client
	registry     *tools.Registry
	plan         *plan.State
	log          *conversation.Log
	consolidator *conversation.Consolidator
	events       *eventlog.Writer
	ui           UI
	logger       *zap.Logger
	heuristics   []Heuristic

	totalSteps  int // lifetime step count, for the safety ceiling
	safetyLimit int // current ceiling; operator approval extends it
}

// New creates a Controller. All collaborators are required.
func New(
	cfg *config.Config,
	client *stream.Client,
	registry *tools.Registry,
	planState *plan.State,
	log *conversation.Log,
	consolidator *conversation.Consolidator,
	events *eventlog.Writer,
	ui UI,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		cfg:          cfg,
		client:       client,
		registry:     registry,
		plan:         planState,
		log:          log,
		consolidator: consolidator,
		events:       events,
		ui:           ui,
		logger:       logger,
		heuristics:   defaultHeuristics(),
		safetyLimit:  cfg.Loop.SafetyCeiling,
	}
}

// turnState is the per-turn counter block for the safety policy. It is
// recreated for every user input; nothing leaks across turns.
type turnState struct {
	step           int
	blocked        int
	parseFailures  int
	pseudoCalls    int
	emptyResponses int
	continuations  int
	failureStreak  int

	lastSignature string
	repeatCount   int

	consecutiveUpdates int
}

// Run processes one user input to completion. It returns exit=true when
// the model ended the session through end_chat.
func (c *Controller) Run(ctx context.Context, input string) (exit bool, err error) {
	c.plan.Reset()

	if c.consolidator.ShouldConsolidate(c.log) {
		c.ui.Notice("(consolidating conversation history...)")
		if err := c.consolidator.Consolidate(ctx, c.log); err != nil {
			c.logger.Warn("consolidation failed, continuing with full history", zap.Error(err))
		} else {
			c.events.Intervention(0, "consolidation", "history summarized")
		}
	}

	c.log.AddUser(input)
	c.events.Write(eventlog.EventUserInput, 0, map[string]any{"chars": len(input)})

	turn := &turnState{}
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		turn.step++
		c.totalSteps++

		if c.cfg.Loop.SafetyCeiling > 0 && c.totalSteps > c.safetyLimit {
			c.events.Intervention(turn.step, "safety_ceiling", fmt.Sprintf("%d total steps", c.totalSteps))
			if !c.ui.ConfirmContinue(c.totalSteps) {
				c.events.Intervention(turn.step, "operator_stop", "declined past safety ceiling")
				c.ui.Notice(fmt.Sprintf("Stopping at %d total steps.", c.totalSteps))
				return false, nil
			}
			// Approval extends the budget by one check interval, so the
			// next ask comes periodically rather than every step.
			extend := c.cfg.Loop.SafetyCheckInterval
			if extend <= 0 {
				extend = 1
			}
			c.safetyLimit = c.totalSteps + extend - 1
		}
		if interval := c.cfg.Loop.SafetyCheckInterval; interval > 0 && turn.step > 1 && (turn.step-1)%interval == 0 {
			if !c.ui.ConfirmContinue(turn.step - 1) {
				c.events.Intervention(turn.step, "operator_stop", "declined to continue")
				return false, nil
			}
		}

		result, err := c.request(ctx, turn)
		if errors.Is(err, errTurnAbandoned) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if result == nil {
			// Blocked request with the corrective message appended;
			// go around for another attempt.
			continue
		}

		switch result.Kind {
		case stream.KindText:
			done, exit := c.handleText(turn, result.Text)
			if done {
				return exit, nil
			}
		case stream.KindToolCalls:
			done, exit := c.handleToolCalls(ctx, turn, result)
			if done {
				return exit, nil
			}
		}
	}
}

// request sends the conversation and streams the response. A nil Result
// with nil error means the request was blocked and a corrective message
// was appended; the caller should loop.
func (c *Controller) request(ctx context.Context, turn *turnState) (*stream.Result, error) {
	req := api.ChatRequest{
		Model:       c.cfg.API.Model,
		Messages:    c.messagesWithPlan(),
		Tools:       c.registry.Definitions(),
		MaxTokens:   c.cfg.Generation.MaxTokens,
		Temperature: c.cfg.Generation.Temperature,
		TopP:        c.cfg.Generation.TopP,
		Stream:      true,
	}
	c.events.Request(turn.step, len(req.Messages), len(req.Tools))

	echo := turn.step == 1 || !c.cfg.Loop.StreamFirstStepOnly
	asm := stream.NewAssembler()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.Loop.TransportRetryCeiling; attempt++ {
		asm.Reset()
		streamed := false
		err := c.client.Stream(ctx, req, func(line string) bool {
			delta, done := asm.ProcessLine(line)
			if delta != "" && echo {
				streamed = true
				c.ui.TextDelta(delta)
			}
			return done
		})
		if err == nil {
			if streamed {
				c.ui.TextDone()
			}
			res := asm.Finalize()
			if discarded := asm.DiscardedText(); discarded != "" {
				c.logger.Debug("text mixed into tool-call response discarded",
					zap.Int("chars", len(discarded)))
				c.events.Intervention(turn.step, "mixed_content", fmt.Sprintf("%d chars discarded", len(discarded)))
			}
			return &res, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var statusErr *stream.StatusError
		if errors.As(err, &statusErr) && statusErr.Blocked() {
			c.events.APIError(turn.step, statusErr.Code, true, statusErr.Body)
			turn.blocked++
			if turn.blocked >= c.cfg.Loop.BlockedCeiling {
				c.ui.Notice("The provider keeps rejecting this request. Giving up on this turn.")
				c.log.AddAssistant("(The provider rejected this request repeatedly; I could not complete it.)")
				return nil, errTurnAbandoned
			}
			c.ui.Notice(fmt.Sprintf("(request blocked by provider, status %d; rephrasing)", statusErr.Code))
			c.log.AddUser(fmt.Sprintf(
				"[system note] Your previous message was rejected by the provider (status %d). "+
					"Rephrase your response and avoid whatever content triggered the rejection.", statusErr.Code))
			return nil, nil
		}

		lastErr = err
		code := 0
		if errors.As(err, &statusErr) {
			code = statusErr.Code
		}
		c.events.APIError(turn.step, code, false, err.Error())
		c.logger.Warn("request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.cfg.Loop.TransportRetryCeiling, lastErr)
}

// errTurnAbandoned is returned internally by request when the blocked
// ceiling was exceeded; Run translates it into a clean turn end.
var errTurnAbandoned = errors.New("turn abandoned")

// messagesWithPlan returns the log with the plan status block appended
// to the system message for this request only.
func (c *Controller) messagesWithPlan() []api.Message {
	base := c.log.Messages()
	block := c.plan.StatusBlock()
	if block == "" {
		return base
	}
	out := make([]api.Message, len(base))
	copy(out, base)
	for i := range out {
		if out[i].Role == api.RoleSystem {
			out[i].Content += block
			break
		}
	}
	return out
}

// handleText processes a plain-text response. done=true ends the turn.
func (c *Controller) handleText(turn *turnState, text string) (done, exit bool) {
	trimmed := strings.TrimSpace(text)

	if trimmed == "" {
		// Retry as-is. The step budget and the periodic operator check
		// bound this path; the log stays clean.
		turn.emptyResponses++
		c.events.Response(turn.step, 0, nil)
		c.logger.Debug("empty response, retrying", zap.Int("occurrence", turn.emptyResponses))
		return false, false
	}
	turn.emptyResponses = 0
	c.events.Response(turn.step, len(trimmed), nil)

	known := make(map[string]bool)
	for _, name := range c.registry.Names() {
		known[name] = true
	}
	for _, h := range c.heuristics {
		det, hit := h(trimmed, known)
		if !hit {
			continue
		}
		turn.pseudoCalls++
		c.events.Intervention(turn.step, det.Kind, trimmed[:min(len(trimmed), 120)])
		if turn.pseudoCalls >= c.cfg.Loop.PseudoCallCeiling {
			c.ui.Notice("(the model keeps writing calls as text; showing the response as-is)")
			c.log.AddAssistant(trimmed)
			return true, false
		}
		c.log.AddAssistant(trimmed)
		c.log.AddUser("[system note] " + det.Guidance)
		return false, false
	}

	if c.plan.Status() == plan.StatusExecuting && c.plan.Remaining() > 0 {
		turn.continuations++
		if turn.continuations <= 3 {
			c.log.AddAssistant(trimmed)
			c.log.AddUser(fmt.Sprintf(
				"[system note] The plan still has %d unfinished steps. Continue with the current step, "+
					"or mark it complete if it is done.", c.plan.Remaining()))
			c.events.Intervention(turn.step, "plan_continuation", "plain text with plan pending")
			return false, false
		}
	}

	if hasContinuationCue(trimmed) && turn.continuations < 3 {
		turn.continuations++
		c.log.AddAssistant(trimmed)
		c.log.AddUser("[system note] Continue.")
		c.events.Intervention(turn.step, "continuation_cue", "text announced further work")
		return false, false
	}

	c.log.AddAssistant(trimmed)
	return true, false
}

// handleToolCalls executes a tool-call response. done=true ends the
// turn; exit=true ends the session.
func (c *Controller) handleToolCalls(ctx context.Context, turn *turnState, result *stream.Result) (done, exit bool) {
	for _, dropped := range result.Dropped {
		c.events.Intervention(turn.step, "parse_failure",
			fmt.Sprintf("%s: %s", dropped.Name, dropped.Diagnosis))
	}

	if len(result.Calls) == 0 {
		turn.parseFailures++
		diag := "the tool-call arguments were not valid JSON"
		if len(result.Dropped) > 0 {
			diag = result.Dropped[0].Diagnosis
		}
		if turn.parseFailures >= c.cfg.Loop.ParseFailureEscalation {
			c.ui.Notice("(repeated malformed tool calls; asking for plain text)")
			c.log.AddUser(fmt.Sprintf(
				"[system note] Your tool calls keep failing to parse (%s). Stop calling tools for now "+
					"and respond in plain text describing what you are trying to do.", diag))
		} else {
			c.log.AddUser(fmt.Sprintf(
				"[system note] Your tool call could not be parsed: %s. Send the call again with valid JSON arguments.", diag))
		}
		return false, false
	}
	turn.parseFailures = 0

	names := make([]string, len(result.Calls))
	for i, call := range result.Calls {
		names[i] = call.Name
	}
	c.events.Response(turn.step, 0, names)

	calls := make([]api.ToolCall, len(result.Calls))
	copy(calls, result.Calls)
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + uuid.NewString()
		}
	}
	c.log.AddAssistantToolCalls(calls)

	for _, call := range calls {
		c.ui.ToolCall(call.Name, call.Arguments)
		c.events.ToolCall(turn.step, call.Name, call.Arguments)

		if guard := c.repeatGuard(turn, call); guard != "" {
			c.log.AddToolResult(call.ID, call.Name, guard)
			c.events.Intervention(turn.step, "repeat_call", call.Name)
			continue
		}
		if guard := c.updateToolGuard(turn, call); guard != "" {
			c.log.AddToolResult(call.ID, call.Name, guard)
			c.events.Intervention(turn.step, "update_without_test", call.Name)
			continue
		}

		out, toolExit := c.registry.Execute(ctx, call.Name, call.Arguments)
		out = truncateResult(out, c.cfg.Loop.ResultBudget)
		c.events.ToolResult(turn.step, call.Name, len(out), toolExit)

		if call.Name == builtin.TaskCompleteName {
			c.log.AddToolResult(call.ID, call.Name, out)
			c.ui.Notice(out)
			return true, false
		}

		c.log.AddToolResult(call.ID, call.Name, out)

		if toolExit {
			c.ui.Notice(out)
			return true, true
		}

		if isFailureResult(out) {
			turn.failureStreak++
			if turn.failureStreak >= c.cfg.Loop.FailureStreakCeiling {
				c.log.AddUser(fmt.Sprintf(
					"[system note] The last %d tool calls all failed. Stop retrying variations: "+
						"re-read the errors, rethink the approach, and explain your new plan before acting.",
					turn.failureStreak))
				c.events.Intervention(turn.step, "failure_streak", fmt.Sprintf("%d consecutive failures", turn.failureStreak))
				turn.failureStreak = 0
			}
		} else {
			turn.failureStreak = 0
		}
	}
	return false, false
}

// repeatGuard short-circuits a call whose name and canonicalized
// arguments match the previous call. Identical input gives identical
// output; re-running it only burns steps.
func (c *Controller) repeatGuard(turn *turnState, call api.ToolCall) string {
	sig := call.Name + "\x00" + api.CanonicalArgs(call.Arguments)
	if sig == turn.lastSignature {
		turn.repeatCount++
	} else {
		turn.lastSignature = sig
		turn.repeatCount = 1
	}
	if turn.repeatCount > c.cfg.Loop.RepeatCallLimit {
		// The corrective counts as yielding; the window starts over so a
		// later identical call is not guarded forever.
		turn.lastSignature = ""
		turn.repeatCount = 0
		return fmt.Sprintf(
			"You already called %s with these exact arguments and the result will not change. "+
				"Do something different: change the arguments, pick another tool, or explain what you are stuck on.",
			call.Name)
	}
	return ""
}

// updateToolGuard blocks back-to-back update_tool calls. Whatever the
// target, an update must be tested before the next rewrite.
func (c *Controller) updateToolGuard(turn *turnState, call api.ToolCall) string {
	if call.Name != "update_tool" {
		turn.consecutiveUpdates = 0
		return ""
	}
	turn.consecutiveUpdates++
	if turn.consecutiveUpdates > 1 {
		target, _ := call.Arguments["name"].(string)
		if target == "" {
			target = "a tool"
		}
		return fmt.Sprintf(
			"You just updated a tool and have not run anything since. Test the tool first; "+
				"update %s again only if the test shows what is wrong.", target)
	}
	return ""
}

// truncateResult bounds a tool result, keeping the head and tail with an
// elision marker so the model sees how the output started and ended.
func truncateResult(s string, budget int) string {
	if budget <= 0 || len(s) <= budget {
		return s
	}
	head := 3000
	tail := 800
	if head+tail >= budget {
		head = budget * 3 / 4
		tail = budget - head
	}
	omitted := len(s) - head - tail
	return fmt.Sprintf("%s\n... [%d characters omitted] ...\n%s", s[:head], omitted, s[len(s)-tail:])
}

// isFailureResult classifies a tool result as a failure for the streak
// counter.
func isFailureResult(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "error") ||
		strings.Contains(lower, "error:") ||
		strings.HasPrefix(lower, "timeout:")
}

var continuationCues = []string{
	"let me ", "i'll now", "i will now", "next, i", "now i'll",
	"now i will", "proceeding to", "moving on to",
}

// hasContinuationCue reports whether the tail of a text response
// announces further work instead of concluding.
func hasContinuationCue(text string) bool {
	tail := strings.ToLower(text)
	if len(tail) > 300 {
		tail = tail[len(tail)-300:]
	}
	for _, cue := range continuationCues {
		if strings.Contains(tail, cue) {
			return true
		}
	}
	return false
}

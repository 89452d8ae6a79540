package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/klubi/golem/internal/tools"
	"github.com/klubi/golem/pkg/api"
)

// TaskCompleteName is matched by the turn controller to terminate the
// current request without another model round trip.
const TaskCompleteName = "task_complete"

// TaskComplete returns the task_complete tool. The controller treats a
// call to it as terminal for the current user request: the result is
// appended to the log (so the tool call is never left unanswered) and
// the summary is shown directly, with no further model round trip.
func TaskComplete() tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			TaskCompleteName,
			"Signal that the current task is fully complete. Call this exactly once, "+
				"when everything the user asked for is done, with a summary of what was accomplished.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"summary": map[string]any{
						"type":        "string",
						"description": "A concise summary of what was accomplished",
					},
				},
				"required": []any{"summary"},
			},
		),
		Fn: func(_ context.Context, args map[string]any) (string, bool, error) {
			summary := strings.TrimSpace(stringArg(args, "summary"))
			if summary == "" {
				summary = "Task completed."
			}
			return fmt.Sprintf("Task complete: %s", summary), false, nil
		},
	}
}

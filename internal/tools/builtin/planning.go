package builtin

import (
	"context"
	"fmt"

	"github.com/klubi/golem/internal/plan"
	"github.com/klubi/golem/internal/tools"
	"github.com/klubi/golem/pkg/api"
)

// CreatePlan returns the create_plan tool, which replaces any existing
// plan and starts executing from the first step.
func CreatePlan(state *plan.State) tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"create_plan",
			"Create a step-by-step plan for a multi-step task. Replaces any existing plan. "+
				"Each step should be a single concrete action.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"steps": map[string]any{
						"type":        "array",
						"description": "Ordered list of plan steps",
						"items":       map[string]any{"type": "string"},
					},
				},
				"required": []any{"steps"},
			},
		),
		Fn: func(_ context.Context, args map[string]any) (string, bool, error) {
			steps := stringSliceArg(args, "steps")
			if err := state.Replace(steps); err != nil {
				return fmt.Sprintf("Error: %v", err), false, nil
			}
			return fmt.Sprintf("Plan created with %d steps:\n%s\n\nNow execute step 1.",
				len(steps), state.Render()), false, nil
		},
	}
}

// UpdatePlan returns the update_plan tool, which rewrites the remaining
// steps while keeping already-finished work marked done.
func UpdatePlan(state *plan.State) tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"update_plan",
			"Revise the current plan when circumstances change. Provide the full new step list "+
				"and the index of the step to resume from. Do not call this repeatedly without "+
				"executing steps in between.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"steps": map[string]any{
						"type":        "array",
						"description": "The complete revised list of plan steps",
						"items":       map[string]any{"type": "string"},
					},
					"resume_from": map[string]any{
						"type":        "integer",
						"description": "Zero-based index of the step to resume execution from",
					},
				},
				"required": []any{"steps"},
			},
		),
		Fn: func(_ context.Context, args map[string]any) (string, bool, error) {
			steps := stringSliceArg(args, "steps")
			resume := intArg(args, "resume_from", 0)
			if err := state.ReplaceWithResume(steps, resume); err != nil {
				return fmt.Sprintf("Error: %v", err), false, nil
			}
			return fmt.Sprintf("Plan updated:\n%s\n\nContinue with step %d.",
				state.Render(), state.CurrentStep()+1), false, nil
		},
	}
}

// MarkStepComplete returns the mark_step_complete tool, which advances
// the plan cursor.
func MarkStepComplete(state *plan.State) tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"mark_step_complete",
			"Mark the current plan step as complete and move to the next one. "+
				"Call this after finishing the work for a step, not before.",
			map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		),
		Fn: func(_ context.Context, args map[string]any) (string, bool, error) {
			completed, next, err := state.Advance()
			if err != nil {
				return fmt.Sprintf("Error: %v", err), false, nil
			}
			if next == "" {
				return fmt.Sprintf("Completed step: %s\n\nAll plan steps are done. "+
					"Verify the results and call task_complete with a summary.", completed), false, nil
			}
			return fmt.Sprintf("Completed step: %s\n\nNext step: %s", completed, next), false, nil
		},
	}
}

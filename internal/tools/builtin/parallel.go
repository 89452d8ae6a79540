package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/klubi/golem/internal/tools"
	"github.com/klubi/golem/pkg/api"
)

const (
	maxParallelTasks   = 20
	maxParallelWorkers = 8
	parallelTaskWait   = 60 * time.Second
)

// Runner executes a named tool; the registry satisfies it. Declared
// here so parallel_tasks can dispatch without importing the registry.
type Runner interface {
	Execute(ctx context.Context, name string, args map[string]any) (string, bool)
}

// parallelDenied lists tools that mutate shared state or the tool set
// itself and therefore may not run concurrently.
var parallelDenied = map[string]bool{
	"write_file":         true,
	"run_command":        true,
	"stop_background":    true,
	"install_package":    true,
	"create_tool":        true,
	"update_tool":        true,
	"remove_tool":        true,
	"create_plan":        true,
	"update_plan":        true,
	"mark_step_complete": true,
	TaskCompleteName:     true,
	"end_chat":           true,
	"parallel_tasks":     true,
}

// ParallelTasks returns the parallel_tasks tool, which fans a batch of
// read-only tool calls out over a bounded worker pool and reassembles
// the results in input order.
func ParallelTasks(runner Runner) tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"parallel_tasks",
			"Run several independent read-only tool calls concurrently (e.g. reading multiple "+
				"files, several web searches). Tools that modify files, run commands, or change "+
				"plans cannot be batched.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"tasks": map[string]any{
						"type":        "array",
						"description": "The tool calls to run concurrently",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"tool": map[string]any{
									"type":        "string",
									"description": "Name of the tool to call",
								},
								"args": map[string]any{
									"type":        "object",
									"description": "Arguments for the tool call",
								},
							},
							"required": []any{"tool"},
						},
					},
				},
				"required": []any{"tasks"},
			},
		),
		Fn: func(ctx context.Context, args map[string]any) (string, bool, error) {
			return runParallel(ctx, runner, args)
		},
	}
}

type parallelTask struct {
	tool string
	args map[string]any
}

func runParallel(ctx context.Context, runner Runner, args map[string]any) (string, bool, error) {
	rawTasks, ok := args["tasks"].([]any)
	if !ok || len(rawTasks) == 0 {
		return "Error: tasks must be a non-empty array", false, nil
	}
	if len(rawTasks) > maxParallelTasks {
		return fmt.Sprintf("Error: too many tasks (%d, max %d)", len(rawTasks), maxParallelTasks), false, nil
	}

	tasks := make([]parallelTask, 0, len(rawTasks))
	for i, raw := range rawTasks {
		m, ok := raw.(map[string]any)
		if !ok {
			return fmt.Sprintf("Error: task %d is not an object", i+1), false, nil
		}
		name, _ := m["tool"].(string)
		if name == "" {
			return fmt.Sprintf("Error: task %d is missing the tool name", i+1), false, nil
		}
		if parallelDenied[name] {
			return fmt.Sprintf("Error: tool '%s' modifies state and cannot run in a parallel batch", name), false, nil
		}
		taskArgs, _ := m["args"].(map[string]any)
		if taskArgs == nil {
			taskArgs = map[string]any{}
		}
		tasks = append(tasks, parallelTask{tool: name, args: taskArgs})
	}

	workers := maxParallelWorkers
	if len(tasks) < workers {
		workers = len(tasks)
	}

	results := make([]string, len(tasks))
	p := pool.New().WithMaxGoroutines(workers)
	for i, task := range tasks {
		i, task := i, task
		p.Go(func() {
			taskCtx, cancel := context.WithTimeout(ctx, parallelTaskWait)
			defer cancel()
			out, _ := runner.Execute(taskCtx, task.tool, task.args)
			results[i] = out
		})
	}
	p.Wait()

	var b strings.Builder
	fmt.Fprintf(&b, "Parallel batch: %d tasks\n", len(tasks))
	for i, task := range tasks {
		fmt.Fprintf(&b, "\n=== Task %d: %s ===\n%s\n", i+1, task.tool, results[i])
	}
	return b.String(), false, nil
}

package builtin

import (
	"github.com/klubi/golem/internal/plan"
	"github.com/klubi/golem/internal/tools"
	"github.com/klubi/golem/internal/tools/dynamic"
)

// Deps carries the shared state the built-in tools close over.
type Deps struct {
	Plan           *plan.State
	Store          *dynamic.Store
	Processes      *ProcessTable
	Runner         Runner
	InstallCommand string
	IsBuiltIn      func(name string) bool
}

// All returns every built-in tool, wired to the given dependencies.
func All(deps Deps) []tools.Tool {
	return []tools.Tool{
		ReadFile(),
		WriteFile(),
		RunCommand(deps.Processes),
		StopBackground(deps.Processes),
		ListBackground(deps.Processes),
		InstallPackage(deps.InstallCommand),
		WebSearch(),
		Browser(),
		Clock(),
		CreatePlan(deps.Plan),
		UpdatePlan(deps.Plan),
		MarkStepComplete(deps.Plan),
		ParallelTasks(deps.Runner),
		CreateTool(deps.Store, deps.IsBuiltIn),
		UpdateTool(deps.Store),
		RemoveTool(deps.Store),
		TaskComplete(),
		EndChat(),
	}
}

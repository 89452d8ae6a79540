package builtin

import (
	"context"
	"errors"
	"fmt"

	"github.com/klubi/golem/internal/tools"
	"github.com/klubi/golem/internal/tools/dynamic"
	"github.com/klubi/golem/pkg/api"
)

// toolSpecProperties is the parameter shape shared by create_tool and
// update_tool.
func toolSpecProperties() map[string]any {
	return map[string]any{
		"name": map[string]any{
			"type":        "string",
			"description": "Tool name in lowercase snake_case (2-50 characters)",
		},
		"description": map[string]any{
			"type":        "string",
			"description": "What the tool does and when to use it (10-500 characters)",
		},
		"parameters": map[string]any{
			"type":        "object",
			"description": "JSON Schema object describing the tool's parameters. Every property needs a type and a description.",
		},
		"implementation": map[string]any{
			"type": "string",
			"description": "Shell script body. Parameters arrive as TOOL_PARAM_<name> environment " +
				"variables and as JSON on stdin. Print results to stdout.",
		},
		"safety_notes": map[string]any{
			"type":        "string",
			"description": "Notes about side effects or risks of running this tool",
		},
	}
}

// CreateTool returns the create_tool tool, which synthesizes a new
// dynamic tool and makes it callable on the next step. isBuiltIn guards
// the fixed tier's names; nil means no guard.
func CreateTool(store *dynamic.Store, isBuiltIn func(string) bool) tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"create_tool",
			"Create a new reusable tool from a shell script implementation. The tool is "+
				"validated, persisted, and immediately callable. If a tool with a similar "+
				"purpose exists, fix it with update_tool instead of creating a variant.",
			map[string]any{
				"type":       "object",
				"properties": toolSpecProperties(),
				"required":   []any{"name", "description", "parameters", "implementation"},
			},
		),
		Fn: func(_ context.Context, args map[string]any) (string, bool, error) {
			spec := specFromArgs(args)
			if isBuiltIn != nil && isBuiltIn(spec.Name) {
				return fmt.Sprintf("Error: '%s' is a built-in tool and cannot be replaced", spec.Name), false, nil
			}
			if err := store.Create(spec); err != nil {
				return fmt.Sprintf("Error creating tool '%s': %v", spec.Name, err), false, nil
			}
			return fmt.Sprintf("Tool '%s' created successfully. It is now available for use.", spec.Name), false, nil
		},
	}
}

// UpdateTool returns the update_tool tool. Omitted fields keep their
// stored values, so the model can patch just the implementation.
func UpdateTool(store *dynamic.Store) tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"update_tool",
			"Update an existing dynamic tool in place. Only the fields you provide change; "+
				"omitted fields keep their current values. Test the updated tool before "+
				"updating it again.",
			map[string]any{
				"type":       "object",
				"properties": toolSpecProperties(),
				"required":   []any{"name"},
			},
		),
		Fn: func(_ context.Context, args map[string]any) (string, bool, error) {
			name := stringArg(args, "name")
			current, err := store.Describe(name)
			if err != nil {
				if errors.Is(err, dynamic.ErrNotFound) {
					return fmt.Sprintf("Error: tool '%s' does not exist (use create_tool for new tools)", name), false, nil
				}
				return fmt.Sprintf("Error reading tool '%s': %v", name, err), false, nil
			}

			spec := specFromArgs(args)
			if spec.Description == "" {
				spec.Description = current.Description
			}
			if spec.Parameters == nil {
				spec.Parameters = current.Parameters
			}
			if spec.Implementation == "" {
				spec.Implementation = current.Implementation
			}
			if spec.SafetyNotes == "" {
				spec.SafetyNotes = current.SafetyNotes
			}

			if err := store.Update(spec); err != nil {
				return fmt.Sprintf("Error updating tool '%s': %v", name, err), false, nil
			}
			return fmt.Sprintf("Tool '%s' updated successfully. Test it now before making further changes.", name), false, nil
		},
	}
}

// RemoveTool returns the remove_tool tool. Built-in tools are shielded
// by the registry, which never routes their names here.
func RemoveTool(store *dynamic.Store) tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"remove_tool",
			"Permanently delete a dynamic tool that is broken or no longer needed.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{
						"type":        "string",
						"description": "Name of the dynamic tool to remove",
					},
				},
				"required": []any{"name"},
			},
		),
		Fn: func(_ context.Context, args map[string]any) (string, bool, error) {
			name := stringArg(args, "name")
			if err := store.Remove(name); err != nil {
				return fmt.Sprintf("Error removing tool '%s': %v", name, err), false, nil
			}
			return fmt.Sprintf("Tool '%s' removed.", name), false, nil
		},
	}
}

func specFromArgs(args map[string]any) dynamic.Spec {
	return dynamic.Spec{
		Name:           stringArg(args, "name"),
		Description:    stringArg(args, "description"),
		Parameters:     mapArg(args, "parameters"),
		Implementation: stringArg(args, "implementation"),
		SafetyNotes:    stringArg(args, "safety_notes"),
	}
}

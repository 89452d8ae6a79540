package builtin

import (
	"context"

	"github.com/klubi/golem/internal/tools"
	"github.com/klubi/golem/pkg/api"
)

// EndChat returns the end_chat tool. It is the only tool that signals
// session exit through the result's exit flag.
func EndChat() tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"end_chat",
			"End the conversation and exit. Only call this when the user explicitly asks to leave.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"farewell": map[string]any{
						"type":        "string",
						"description": "A short goodbye message for the user",
					},
				},
			},
		),
		Fn: func(_ context.Context, args map[string]any) (string, bool, error) {
			farewell := stringArg(args, "farewell")
			if farewell == "" {
				farewell = "Goodbye!"
			}
			return farewell, true, nil
		},
	}
}

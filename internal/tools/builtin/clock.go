package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/klubi/golem/internal/tools"
	"github.com/klubi/golem/pkg/api"
)

// Clock returns the get_current_time tool.
func Clock() tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"get_current_time",
			"Get the current date and time, optionally in a specific timezone.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"timezone": map[string]any{
						"type":        "string",
						"description": "IANA timezone name, e.g. 'Europe/Berlin'. Defaults to local time.",
					},
				},
			},
		),
		Fn: func(_ context.Context, args map[string]any) (string, bool, error) {
			loc := time.Local
			if tz := stringArg(args, "timezone"); tz != "" {
				l, err := time.LoadLocation(tz)
				if err != nil {
					return fmt.Sprintf("Error: unknown timezone '%s'", tz), false, nil
				}
				loc = l
			}
			now := time.Now().In(loc)
			return fmt.Sprintf("Current time: %s", now.Format("Monday, 2 January 2006 15:04:05 MST")), false, nil
		},
	}
}

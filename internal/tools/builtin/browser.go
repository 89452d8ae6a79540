package builtin

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/klubi/golem/internal/tools"
	"github.com/klubi/golem/pkg/api"
)

// Browser returns the open_browser tool.
func Browser() tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"open_browser",
			"Open a URL in the user's default web browser.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "The URL to open",
					},
				},
				"required": []any{"url"},
			},
		),
		Fn: func(_ context.Context, args map[string]any) (string, bool, error) {
			url := strings.TrimSpace(stringArg(args, "url"))
			if url == "" {
				return "Error: url is required", false, nil
			}
			if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
				url = "https://" + url
			}

			var cmd *exec.Cmd
			switch runtime.GOOS {
			case "darwin":
				cmd = exec.Command("open", url)
			case "windows":
				cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
			default:
				cmd = exec.Command("xdg-open", url)
			}
			if err := cmd.Start(); err != nil {
				return fmt.Sprintf("Error opening browser: %v", err), false, nil
			}
			return fmt.Sprintf("Opened %s in the default browser", url), false, nil
		},
	}
}

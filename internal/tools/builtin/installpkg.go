package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/klubi/golem/internal/tools"
	"github.com/klubi/golem/pkg/api"
)

// packageNameRE keeps package arguments to plain names with optional
// version pins, so the install command cannot be turned into an
// arbitrary shell pipeline.
var packageNameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(\[[A-Za-z0-9,._-]+\])?([=<>!~]=?[A-Za-z0-9._*-]+)?$`)

// InstallPackage returns the install_package tool. The install command
// itself comes from configuration; only package names are accepted as
// arguments.
func InstallPackage(installCommand string) tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"install_package",
			"Install a package using the configured package manager. "+
				"Accepts plain package names with optional version pins.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"package": map[string]any{
						"type":        "string",
						"description": "Package name, optionally with a version pin (e.g. 'requests' or 'requests==2.31.0')",
					},
				},
				"required": []any{"package"},
			},
		),
		Fn: func(ctx context.Context, args map[string]any) (string, bool, error) {
			pkg := strings.TrimSpace(stringArg(args, "package"))
			if pkg == "" {
				return "Error: package is required", false, nil
			}
			if !packageNameRE.MatchString(pkg) {
				return fmt.Sprintf("Error: '%s' is not a valid package name", pkg), false, nil
			}

			parts := strings.Fields(installCommand)
			if len(parts) == 0 {
				return "Error: no install command configured", false, nil
			}
			parts = append(parts, pkg)

			execCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()

			cmd := exec.CommandContext(execCtx, parts[0], parts[1:]...)
			var out bytes.Buffer
			cmd.Stdout = &out
			cmd.Stderr = &out

			err := cmd.Run()
			if execCtx.Err() == context.DeadlineExceeded {
				return fmt.Sprintf("Error: installing '%s' timed out after 120s", pkg), false, nil
			}
			if err != nil {
				return fmt.Sprintf("Error installing '%s': %v\n%s", pkg, err, capOutput(out.String(), 2000)), false, nil
			}
			return fmt.Sprintf("Successfully installed '%s'\n%s", pkg, capOutput(out.String(), 2000)), false, nil
		},
	}
}

package builtin

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/klubi/golem/internal/tools"
	"github.com/klubi/golem/pkg/api"
)

const maxReadSize = 1024 * 1024 // 1MB

// ReadFile returns the read_file tool: full or line-windowed contents of
// a text file.
func ReadFile() tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"read_file",
			"Read and retrieve the full contents of a text file. Maximum file size is 1MB. "+
				"Works with any text-based file. Returns the exact file contents which you can "+
				"analyze and use in subsequent tool calls.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"file_path": map[string]any{
						"type":        "string",
						"description": "The path to the file to read (relative or absolute)",
					},
					"start_line": map[string]any{
						"type":        "integer",
						"description": "Optional: start reading from this line number (1-indexed)",
					},
					"end_line": map[string]any{
						"type":        "integer",
						"description": "Optional: stop reading at this line number (inclusive, 1-indexed)",
					},
				},
				"required": []any{"file_path"},
			},
		),
		Fn: readFile,
	}
}

func readFile(_ context.Context, args map[string]any) (string, bool, error) {
	path := stringArg(args, "file_path")
	if path == "" {
		return "Error: file_path is required", false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: File '%s' does not exist", path), false, nil
		}
		return "", false, err
	}
	if info.IsDir() {
		return fmt.Sprintf("Error: '%s' is not a file", path), false, nil
	}
	if info.Size() > maxReadSize {
		return fmt.Sprintf("Error: File '%s' is too large (%d bytes). Max 1MB.", path, info.Size()), false, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	if !utf8.Valid(raw) {
		return fmt.Sprintf("Error: File '%s' is not a text file", path), false, nil
	}
	content := string(raw)

	start := intArg(args, "start_line", 1)
	if start < 1 {
		start = 1
	}
	lines := strings.Split(content, "\n")
	end := intArg(args, "end_line", len(lines))
	if end > len(lines) {
		end = len(lines)
	}

	if start == 1 && end == len(lines) {
		return fmt.Sprintf("File content of '%s':\n%s", path, content), false, nil
	}
	if start > end {
		return fmt.Sprintf("Error: start_line %d is past end_line %d", start, end), false, nil
	}
	window := strings.Join(lines[start-1:end], "\n")
	return fmt.Sprintf("File content of '%s' (lines %d-%d):\n%s", path, start, end, window), false, nil
}

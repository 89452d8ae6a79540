package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klubi/golem/internal/tools"
	"github.com/klubi/golem/pkg/api"
)

// systemDirs are roots the write_file tool refuses to touch.
var systemDirs = []string{"/etc", "/sys", "/proc", "/boot"}

// variantPrefixes/variantSuffixes flag file names that look like a
// "fixed" copy of another file. Writing such a file gets a warning
// nudging the model to repair the original in place instead.
var variantPrefixes = []string{
	"fixed_", "fix_", "new_", "improved_", "better_", "working_", "correct_", "updated_",
}
var variantSuffixes = []string{
	"_fixed", "_fix", "_new", "_improved", "_better", "_working",
	"_correct", "_updated", "_v2", "_v3", "_v4", "_final", "_2", "_3",
}

// WriteFile returns the write_file tool with its five modes.
func WriteFile() tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"write_file",
			"Write, append, or modify a file. Supports: write (overwrite), append (end), "+
				"prepend (start), insert_after_line (after line N), replace_lines (replace N lines). "+
				"Creates the file and parent directories automatically. Cannot write to system directories.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"file_path": map[string]any{
						"type":        "string",
						"description": "The path where the file should be written",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "The content to write, append, prepend, insert, or use for replacement",
					},
					"mode": map[string]any{
						"type":        "string",
						"enum":        []any{"write", "append", "prepend", "insert_after_line", "replace_lines"},
						"description": "Mode of operation",
					},
					"line_number": map[string]any{
						"type":        "integer",
						"description": "For insert_after_line: line after which to insert. For replace_lines: starting line number.",
					},
					"num_lines": map[string]any{
						"type":        "integer",
						"description": "For replace_lines: how many lines to replace, starting from line_number",
					},
				},
				"required": []any{"file_path", "content", "mode"},
			},
		),
		Fn: writeFile,
	}
}

func writeFile(_ context.Context, args map[string]any) (string, bool, error) {
	path := stringArg(args, "file_path")
	content := stringArg(args, "content")
	mode := stringArg(args, "mode")
	lineNumber := intArg(args, "line_number", 1)
	numLines := intArg(args, "num_lines", 1)

	if path == "" {
		return "Error: file_path is required", false, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false, err
	}
	for _, dir := range systemDirs {
		if abs == dir || strings.HasPrefix(abs, dir+string(os.PathSeparator)) {
			return fmt.Sprintf("Error: Cannot write to system directory '%s'", path), false, nil
		}
	}

	warning := variantWarning(path, mode)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create parent directories: %w", err)
	}

	switch mode {
	case "write":
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("Successfully wrote %d characters to '%s'%s", len(content), path, warning), false, nil

	case "append":
		current := readExisting(abs)
		if current != "" && !strings.HasSuffix(current, "\n") {
			current += "\n"
		}
		if err := os.WriteFile(abs, []byte(current+content), 0o644); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("Successfully appended %d characters to '%s'%s", len(content), path, warning), false, nil

	case "prepend":
		current := readExisting(abs)
		prefix := content
		if prefix != "" && !strings.HasSuffix(prefix, "\n") {
			prefix += "\n"
		}
		if err := os.WriteFile(abs, []byte(prefix+current), 0o644); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("Successfully prepended %d characters to '%s'%s", len(content), path, warning), false, nil

	case "insert_after_line":
		lines, errText := readLines(abs, path)
		if errText != "" {
			return errText, false, nil
		}
		if lineNumber < 0 || lineNumber > len(lines) {
			return fmt.Sprintf("Error: Line number %d out of range (file has %d lines)", lineNumber, len(lines)), false, nil
		}
		contentLines := strings.Split(content, "\n")
		merged := append(append(append([]string{}, lines[:lineNumber]...), contentLines...), lines[lineNumber:]...)
		if err := os.WriteFile(abs, []byte(strings.Join(merged, "\n")), 0o644); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("Successfully inserted %d line(s) after line %d in '%s'%s",
			len(contentLines), lineNumber, path, warning), false, nil

	case "replace_lines":
		lines, errText := readLines(abs, path)
		if errText != "" {
			return errText, false, nil
		}
		if lineNumber < 1 || lineNumber > len(lines) {
			return fmt.Sprintf("Error: Start line %d out of range (file has %d lines)", lineNumber, len(lines)), false, nil
		}
		endLine := lineNumber + numLines - 1
		if endLine > len(lines) {
			endLine = len(lines)
		}
		contentLines := strings.Split(content, "\n")
		merged := append(append(append([]string{}, lines[:lineNumber-1]...), contentLines...), lines[endLine:]...)
		if err := os.WriteFile(abs, []byte(strings.Join(merged, "\n")), 0o644); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("Successfully replaced %d line(s) starting at line %d in '%s'%s",
			numLines, lineNumber, path, warning), false, nil
	}

	return fmt.Sprintf("Error: Unknown write mode '%s'", mode), false, nil
}

func readExisting(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(raw)
}

func readLines(abs, display string) ([]string, string) {
	raw, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Sprintf("Error: File '%s' does not exist for this mode", display)
		}
		return nil, fmt.Sprintf("Error reading file: %v", err)
	}
	return strings.Split(string(raw), "\n"), ""
}

// variantWarning flags "fixed copy" file names on full overwrites.
func variantWarning(path, mode string) string {
	if mode != "write" {
		return ""
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.ToLower(strings.TrimSuffix(base, ext))

	original := ""
	for _, p := range variantPrefixes {
		if rest, ok := strings.CutPrefix(stem, p); ok {
			original = rest
			break
		}
	}
	if original == "" {
		for _, s := range variantSuffixes {
			if rest, ok := strings.CutSuffix(stem, s); ok {
				original = rest
				break
			}
		}
	}
	if original == "" {
		return ""
	}
	originalPath := filepath.Join(filepath.Dir(path), original+ext)
	return fmt.Sprintf(
		"\nWARNING: Filename '%s' looks like a 'fixed' version of '%s%s'. "+
			"If '%s' has errors, fix it directly instead of creating variants.",
		base, original, ext, originalPath)
}

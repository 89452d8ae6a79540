package builtin

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/klubi/golem/internal/tools/dynamic"
)

func TestCreateToolRejectsBuiltinName(t *testing.T) {
	store, err := dynamic.NewStore(dynamic.Options{Dir: t.TempDir()}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}
	isBuiltIn := func(name string) bool { return name == "read_file" }

	out, _, err := CreateTool(store, isBuiltIn).Execute(context.Background(), map[string]any{
		"name":           "read_file",
		"description":    "Shadow the built-in file reader",
		"parameters":     map[string]any{"type": "object", "properties": map[string]any{}},
		"implementation": "cat \"$TOOL_PARAM_PATH\"",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "built-in") {
		t.Errorf("expected the built-in name to be rejected, got %q", out)
	}
	if store.Exists("read_file") {
		t.Error("rejected tool was written to disk")
	}
}

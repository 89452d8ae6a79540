package builtin

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestRunCommandHardTimeout(t *testing.T) {
	tool := RunCommand(NewProcessTable())

	// The sleep is a child of the shell; killing only the shell would
	// leave it holding the stdout pipe for its full runtime.
	start := time.Now()
	out, _, err := tool.Execute(context.Background(), map[string]any{
		"command": "sleep 20; echo done",
		"timeout": 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "TIMEOUT") {
		t.Errorf("expected a timeout result, got %q", out)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout was not hard: took %s", elapsed)
	}
}

func TestRunCommandCapturesOutput(t *testing.T) {
	tool := RunCommand(NewProcessTable())
	out, _, err := tool.Execute(context.Background(), map[string]any{
		"command": "echo hello; echo oops >&2; exit 3",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Exit code: 3", "hello", "oops"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestBackgroundStartListStop(t *testing.T) {
	table := NewProcessTable()
	run := RunCommand(table)

	out, _, err := run.Execute(context.Background(), map[string]any{
		"command":    "sleep 30",
		"background": true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var pid int
	if _, err := fmt.Sscanf(out, "Background process started (PID: %d)", &pid); err != nil {
		t.Fatalf("no PID in the start message: %q", out)
	}

	list, _, err := ListBackground(table).Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(list, fmt.Sprintf("PID %d", pid)) {
		t.Errorf("started process missing from the listing: %q", list)
	}

	stopped, _, err := StopBackground(table).Execute(context.Background(), map[string]any{"pid": pid})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stopped, "terminated") && !strings.Contains(stopped, "killed") {
		t.Errorf("unexpected stop message: %q", stopped)
	}

	list, _, _ = ListBackground(table).Execute(context.Background(), nil)
	if !strings.Contains(list, "No background processes") {
		t.Errorf("stopped process still listed: %q", list)
	}
}

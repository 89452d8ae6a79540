// Package dynamic implements the model-authored tool tier: tool modules
// persisted as individually named files (a JSON definition plus a script
// body) under a fixed directory, validated at synthesis time, executed
// through an interpreter subprocess with a hard timeout.
package dynamic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/klubi/golem/pkg/api"
)

// exitMarker is the trailing stdout line a script emits to set the
// should-exit flag.
const exitMarker = "GOLEM_EXIT: true"

// ScriptTool is a dynamic tool backed by a script file on disk.
// Arguments are passed both as TOOL_PARAM_* environment variables and as
// a JSON object on stdin; stdout becomes the result text.
type ScriptTool struct {
	name        string
	description string
	params      map[string]any
	scriptPath  string
	interpreter string
	timeout     time.Duration
}

func (t *ScriptTool) Name() string { return t.name }

func (t *ScriptTool) Definition() api.Definition {
	return api.NewDefinition(t.name, t.description, t.params)
}

// Execute runs the script. The timeout is hard: the process is killed on
// expiry, not merely allowed to run.
func (t *ScriptTool) Execute(ctx context.Context, args map[string]any) (string, bool, error) {
	timeout := t.timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, t.interpreter, t.scriptPath)
	// Kill the whole process group on expiry so children the script
	// spawned cannot hold the stdout pipe (and Run) open past the
	// deadline.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second

	env := os.Environ()
	for key, val := range args {
		env = append(env, "TOOL_PARAM_"+strings.ToUpper(key)+"="+fmt.Sprintf("%v", val))
	}
	if raw, err := json.Marshal(args); err == nil {
		env = append(env, "TOOL_PARAMS_JSON="+string(raw))
		cmd.Stdin = bytes.NewReader(raw)
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if execCtx.Err() == context.DeadlineExceeded {
		return "", false, fmt.Errorf("tool execution timed out (>%s)", timeout)
	}

	output := strings.TrimRight(stdout.String(), "\n")
	output, shouldExit := splitExitMarker(output)

	if stderr.Len() > 0 {
		output += "\n[stderr]\n" + strings.TrimRight(stderr.String(), "\n")
	}
	if err != nil {
		return "", false, fmt.Errorf("script failed: %v\n%s", err, output)
	}
	return output, shouldExit, nil
}

// splitExitMarker strips a trailing exit-marker line and reports whether
// it was present.
func splitExitMarker(output string) (string, bool) {
	lines := strings.Split(output, "\n")
	last := len(lines) - 1
	if last >= 0 && strings.TrimSpace(lines[last]) == exitMarker {
		return strings.TrimRight(strings.Join(lines[:last], "\n"), "\n"), true
	}
	return output, false
}

package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/klubi/golem/internal/tools"
	"github.com/klubi/golem/pkg/api"
)

const (
	defaultCommandTimeout = 30 * time.Second
	maxCommandTimeout     = 300 * time.Second
)

// serverIndicators mark commands that are probably long-running servers
// and would block the loop if run in the foreground.
var serverIndicators = []string{
	"flask run", "python -m http.server", "npm start", "npm run dev",
	"node server", "uvicorn", "gunicorn", "runserver",
	"nodemon", "live-server", "http-server",
}

// bgProc is one detached process with its reaper state.
type bgProc struct {
	cmd      *exec.Cmd
	done     chan struct{}
	exitCode int
}

// ProcessTable tracks detached background processes started by
// run_command so they can be stopped later by PID. The controller never
// blocks on these.
type ProcessTable struct {
	mu    sync.Mutex
	procs map[int]*bgProc
}

// NewProcessTable creates an empty table.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{procs: make(map[int]*bgProc)}
}

// add registers the process and starts a reaper goroutine.
func (p *ProcessTable) add(pid int, cmd *exec.Cmd) *bgProc {
	proc := &bgProc{cmd: cmd, done: make(chan struct{})}
	go func() {
		cmd.Wait()
		if cmd.ProcessState != nil {
			proc.exitCode = cmd.ProcessState.ExitCode()
		}
		close(proc.done)
	}()
	p.mu.Lock()
	p.procs[pid] = proc
	p.mu.Unlock()
	return proc
}

// Stop terminates a tracked process, escalating from SIGTERM to SIGKILL.
func (p *ProcessTable) Stop(pid int) (string, bool) {
	p.mu.Lock()
	proc, ok := p.procs[pid]
	if ok {
		delete(p.procs, pid)
	}
	p.mu.Unlock()
	if !ok {
		return fmt.Sprintf("Process %d not found in tracked processes", pid), false
	}

	select {
	case <-proc.done:
		return fmt.Sprintf("Process %d had already exited (code %d)", pid, proc.exitCode), true
	default:
	}

	proc.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-proc.done:
		return fmt.Sprintf("Process %d terminated", pid), true
	case <-time.After(5 * time.Second):
	}
	proc.cmd.Process.Kill()
	<-proc.done
	return fmt.Sprintf("Process %d killed (force)", pid), true
}

// List describes all tracked processes.
func (p *ProcessTable) List() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.procs) == 0 {
		return "No background processes running"
	}
	var b strings.Builder
	b.WriteString("Background processes:")
	for pid, proc := range p.procs {
		status := "running"
		select {
		case <-proc.done:
			status = fmt.Sprintf("exited (%d)", proc.exitCode)
		default:
		}
		fmt.Fprintf(&b, "\n  PID %d: %s", pid, status)
	}
	return b.String()
}

// RunCommand returns the run_command tool. Foreground commands run with
// a hard timeout (the process is killed on expiry); background commands
// start detached and return a PID immediately.
func RunCommand(table *ProcessTable) tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"run_command",
			"Execute a shell command with timeout protection. For long-running servers, "+
				"use background=true to start the process detached and get back its PID. "+
				"If a command times out, break it into smaller parts or use a different approach.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{
						"type":        "string",
						"description": "The shell command to execute",
					},
					"timeout": map[string]any{
						"type":        "integer",
						"description": "Timeout in seconds (default 30, max 300)",
					},
					"cwd": map[string]any{
						"type":        "string",
						"description": "Working directory for the command",
					},
					"background": map[string]any{
						"type":        "boolean",
						"description": "Run as a detached background process (for servers). Returns immediately with a PID.",
					},
				},
				"required": []any{"command"},
			},
		),
		Fn: func(ctx context.Context, args map[string]any) (string, bool, error) {
			return runCommand(ctx, table, args)
		},
	}
}

// ListBackground returns the list_background tool.
func ListBackground(table *ProcessTable) tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"list_background",
			"List background processes started by run_command with background=true, with their PIDs and status.",
			map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		),
		Fn: func(_ context.Context, _ map[string]any) (string, bool, error) {
			return table.List(), false, nil
		},
	}
}

// StopBackground returns the stop_background tool.
func StopBackground(table *ProcessTable) tools.Tool {
	return tools.Func{
		Def: api.NewDefinition(
			"stop_background",
			"Stop a background process previously started by run_command with background=true.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"pid": map[string]any{
						"type":        "integer",
						"description": "The PID returned when the process was started",
					},
				},
				"required": []any{"pid"},
			},
		),
		Fn: func(_ context.Context, args map[string]any) (string, bool, error) {
			pid := intArg(args, "pid", 0)
			if pid == 0 {
				return "Error: pid is required", false, nil
			}
			msg, _ := table.Stop(pid)
			return msg, false, nil
		},
	}
}

func runCommand(ctx context.Context, table *ProcessTable, args map[string]any) (string, bool, error) {
	command := strings.TrimSpace(stringArg(args, "command"))
	if command == "" {
		return "Error: command is required", false, nil
	}

	timeout := time.Duration(intArg(args, "timeout", int(defaultCommandTimeout.Seconds()))) * time.Second
	if timeout > maxCommandTimeout {
		timeout = maxCommandTimeout
	}
	cwd := stringArg(args, "cwd")
	if cwd == "" {
		cwd = "."
	}
	if info, err := os.Stat(cwd); err != nil || !info.IsDir() {
		return fmt.Sprintf("Error: Working directory '%s' does not exist", cwd), false, nil
	}
	background := boolArg(args, "background")

	if !background && looksLikeServer(command) {
		return fmt.Sprintf(
			"POTENTIAL SERVER DETECTED: '%s' looks like a long-running server and would block the agent.\n"+
				"Options:\n"+
				"1. Run with background=true to start it detached\n"+
				"2. If you just want a quick check, add a short timeout\n"+
				"3. Consider whether you really need to start a server", command), false, nil
	}

	if background {
		return startBackground(table, command, cwd)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "/bin/sh", "-c", command)
	cmd.Dir = cwd
	// Children spawned by the shell inherit its stdout pipe; killing only
	// the shell would leave Run blocked until they exit. Put the command
	// in its own process group and kill the whole group on expiry.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if execCtx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf(
			"TIMEOUT: Command exceeded %s and was terminated.\nCommand: %s\n\n"+
				"SUGGESTIONS:\n"+
				"1. Break this task into smaller parts\n"+
				"2. If this is a server, use background=true\n"+
				"3. Increase the timeout if the task genuinely needs more time", timeout, command), false, nil
	}

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return fmt.Sprintf("Error executing command: %v", err), false, nil
		}
	}

	parts := []string{
		fmt.Sprintf("Command: %s", command),
		fmt.Sprintf("Exit code: %d", exitCode),
	}
	if stdout.Len() > 0 {
		parts = append(parts, "\n--- STDOUT ---\n"+capOutput(stdout.String(), 5000))
	}
	if stderr.Len() > 0 {
		parts = append(parts, "\n--- STDERR ---\n"+capOutput(stderr.String(), 2000))
	}
	return strings.Join(parts, "\n"), false, nil
}

func startBackground(table *ProcessTable, command, cwd string) (string, bool, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = cwd
	// Detach into its own session so it survives the turn loop.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Sprintf("Error starting background process: %v", err), false, nil
	}
	pid := cmd.Process.Pid
	proc := table.add(pid, cmd)

	// Catch immediate failures before reporting success.
	select {
	case <-proc.done:
		return fmt.Sprintf("Background process exited immediately (code %d)", proc.exitCode), false, nil
	case <-time.After(500 * time.Millisecond):
	}

	return fmt.Sprintf(
		"Background process started (PID: %d)\nCommand: %s\nUse stop_background(pid=%d) to stop it later.",
		pid, command, pid), false, nil
}

func looksLikeServer(command string) bool {
	lower := strings.ToLower(command)
	for _, ind := range serverIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}

func capOutput(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (truncated)"
}

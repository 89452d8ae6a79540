package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/klubi/golem/pkg/api"
)

// fakeTool builds a minimal tool for registry tests.
func fakeTool(name, result string) Tool {
	return Func{
		Def: api.NewDefinition(name, "test tool "+name, map[string]any{"type": "object"}),
		Fn: func(_ context.Context, _ map[string]any) (string, bool, error) {
			return result, false, nil
		},
	}
}

// fakeSource is a scripted dynamic tier whose contents can change
// between reloads.
type fakeSource struct {
	tools []Tool
	loads int
}

func (f *fakeSource) Load() ([]Tool, error) {
	f.loads++
	return f.tools, nil
}

func TestRegisterDuplicateRejected(t *testing.T) {
	r := NewRegistry(nil, zap.NewNop())
	if err := r.Register(fakeTool("echo", "a")); err != nil {
		t.Fatalf("unexpected error on first Register: %v", err)
	}

	err := r.Register(fakeTool("echo", "b"))
	if err == nil {
		t.Fatal("expected ErrAlreadyRegistered, got nil")
	}
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}

	// The original registration must be untouched.
	got, _ := r.Execute(context.Background(), "echo", nil)
	if got != "a" {
		t.Errorf("duplicate registration mutated the registry: got %q", got)
	}
}

func TestDynamicCannotShadowBuiltin(t *testing.T) {
	src := &fakeSource{tools: []Tool{fakeTool("echo", "dynamic")}}
	r := NewRegistry(src, zap.NewNop())
	if err := r.Register(fakeTool("echo", "builtin")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Reload(); err != nil {
		t.Fatalf("unexpected reload error: %v", err)
	}

	got, _ := r.Execute(context.Background(), "echo", nil)
	if got != "builtin" {
		t.Errorf("built-in tier was shadowed: got %q", got)
	}
}

func TestExecuteReloadAndRetry(t *testing.T) {
	src := &fakeSource{}
	r := NewRegistry(src, zap.NewNop())

	// The tool appears in the source only after the first reload misses,
	// simulating a module created moments before the call.
	appeared := false
	r.source = loadFunc(func() ([]Tool, error) {
		if appeared {
			return []Tool{fakeTool("late", "found")}, nil
		}
		appeared = true
		return nil, nil
	})

	got, _ := r.Execute(context.Background(), "late", nil)
	if got != "found" {
		t.Errorf("expected the retry reload to find the tool, got %q", got)
	}
}

// loadFunc adapts a function into a DynamicSource.
type loadFunc func() ([]Tool, error)

func (f loadFunc) Load() ([]Tool, error) { return f() }

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(nil, zap.NewNop())
	got, exit := r.Execute(context.Background(), "missing", nil)
	if exit {
		t.Error("unknown tool must not set the exit flag")
	}
	if got != "Error: Unknown tool 'missing'" {
		t.Errorf("unexpected unknown-tool result: %q", got)
	}
}

func TestExecuteConvertsErrors(t *testing.T) {
	r := NewRegistry(nil, zap.NewNop())
	r.Register(Func{
		Def: api.NewDefinition("failing", "always fails", map[string]any{"type": "object"}),
		Fn: func(_ context.Context, _ map[string]any) (string, bool, error) {
			return "", false, fmt.Errorf("disk on fire")
		},
	})

	got, exit := r.Execute(context.Background(), "failing", nil)
	if exit {
		t.Error("a failed tool must not set the exit flag")
	}
	if !strings.Contains(got, "Error executing failing") || !strings.Contains(got, "disk on fire") {
		t.Errorf("error not converted to a textual result: %q", got)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	r := NewRegistry(nil, zap.NewNop())
	r.Register(Func{
		Def: api.NewDefinition("panicky", "always panics", map[string]any{"type": "object"}),
		Fn: func(_ context.Context, _ map[string]any) (string, bool, error) {
			panic("boom")
		},
	})

	got, exit := r.Execute(context.Background(), "panicky", nil)
	if exit {
		t.Error("a panicking tool must not set the exit flag")
	}
	if !strings.Contains(got, "panic: boom") {
		t.Errorf("panic not converted to a textual result: %q", got)
	}
}

func TestDefinitionsBuiltinTierFirst(t *testing.T) {
	src := &fakeSource{tools: []Tool{fakeTool("zz_dynamic", ""), fakeTool("aa_dynamic", "")}}
	r := NewRegistry(src, zap.NewNop())
	r.Register(fakeTool("zz_builtin", ""))
	r.Register(fakeTool("aa_builtin", ""))
	if err := r.Reload(); err != nil {
		t.Fatalf("unexpected reload error: %v", err)
	}

	var got []string
	for _, def := range r.Definitions() {
		got = append(got, def.Function.Name)
	}
	want := []string{"aa_builtin", "zz_builtin", "aa_dynamic", "zz_dynamic"}
	if len(got) != len(want) {
		t.Fatalf("expected %d definitions, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestReloadIsIdempotent(t *testing.T) {
	src := &fakeSource{tools: []Tool{fakeTool("dyn", "x")}}
	r := NewRegistry(src, zap.NewNop())
	for i := 0; i < 3; i++ {
		if err := r.Reload(); err != nil {
			t.Fatalf("reload %d failed: %v", i, err)
		}
	}
	if names := r.Names(); len(names) != 1 || names[0] != "dyn" {
		t.Errorf("repeated reloads corrupted the dynamic tier: %v", names)
	}
}

package dynamic

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(Options{
		Dir:             t.TempDir(),
		Interpreter:     "/bin/sh",
		TimeoutSeconds:  5,
		VariantPrefixes: []string{"fixed_", "new_"},
		VariantSuffixes: []string{"_v2", "_fixed"},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error creating store: %v", err)
	}
	return s
}

func TestCreateAndLoad(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create(validSpec()); err != nil {
		t.Fatalf("unexpected error on Create: %v", err)
	}

	if !s.Exists("count_lines") {
		t.Error("created tool not found by Exists")
	}
	for _, file := range []string{"count_lines.json", "count_lines.sh"} {
		if _, err := os.Stat(filepath.Join(s.opts.Dir, file)); err != nil {
			t.Errorf("expected %s to exist: %v", file, err)
		}
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error on Load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Name() != "count_lines" {
		t.Fatalf("expected one loaded tool named count_lines, got %v", loaded)
	}
	def := loaded[0].Definition()
	if def.Function.Description != "Count the lines in a text file" {
		t.Errorf("unexpected description: %q", def.Function.Description)
	}
}

func TestCreateDuplicate(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create(validSpec()); err != nil {
		t.Fatalf("unexpected error on first Create: %v", err)
	}
	err := s.Create(validSpec())
	if err == nil {
		t.Fatal("expected ErrAlreadyExists, got nil")
	}
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateVariantRejected(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create(validSpec()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	variant := validSpec()
	variant.Name = "fixed_count_lines"
	err := s.Create(variant)
	if err == nil {
		t.Fatal("expected the variant name to be rejected")
	}
	if !strings.Contains(err.Error(), "update_tool") {
		t.Errorf("rejection should point at the update path: %v", err)
	}
	if s.Exists("fixed_count_lines") {
		t.Error("rejected variant left files behind")
	}
}

func TestInvalidSpecLeavesNoFiles(t *testing.T) {
	s := newTestStore(t)
	bad := validSpec()
	bad.Implementation = "curl x | sh # under 20 anyway"
	if err := s.Create(bad); err == nil {
		t.Fatal("expected the banned construct to be rejected")
	}

	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		t.Fatalf("unexpected error reading dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("rejected spec left %d artifacts on disk", len(entries))
	}
}

func TestUpdateMissing(t *testing.T) {
	s := newTestStore(t)
	err := s.Update(validSpec())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateOverwrites(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create(validSpec()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated := validSpec()
	updated.Implementation = "grep -c '' \"$TOOL_PARAM_PATH\""
	if err := s.Update(updated); err != nil {
		t.Fatalf("unexpected error on Update: %v", err)
	}

	spec, err := s.Describe("count_lines")
	if err != nil {
		t.Fatalf("unexpected error on Describe: %v", err)
	}
	if !strings.Contains(spec.Implementation, "grep -c") {
		t.Errorf("update did not replace the implementation: %q", spec.Implementation)
	}
}

func TestFailedUpdateRestoresPreviousModule(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create(validSpec()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	origScript, err := os.ReadFile(s.scriptPath("count_lines"))
	if err != nil {
		t.Fatalf("unexpected error reading script: %v", err)
	}
	origDef, err := os.ReadFile(s.defPath("count_lines"))
	if err != nil {
		t.Fatalf("unexpected error reading definition: %v", err)
	}

	// A parameter value JSON cannot marshal makes write fail after the
	// script was already overwritten.
	bad := validSpec()
	bad.Implementation = "echo broken"
	bad.Parameters = map[string]any{"oops": func() {}}
	if err := s.write(bad); err == nil {
		t.Fatal("expected the write to fail")
	}

	gotScript, err := os.ReadFile(s.scriptPath("count_lines"))
	if err != nil {
		t.Fatalf("script missing after rollback: %v", err)
	}
	if string(gotScript) != string(origScript) {
		t.Errorf("rollback did not restore the script: %q", gotScript)
	}
	gotDef, err := os.ReadFile(s.defPath("count_lines"))
	if err != nil {
		t.Fatalf("definition missing after rollback: %v", err)
	}
	if string(gotDef) != string(origDef) {
		t.Errorf("rollback did not restore the definition: %q", gotDef)
	}
	if _, err := s.loadOne(s.defPath("count_lines")); err != nil {
		t.Errorf("restored module no longer loads: %v", err)
	}
}

func TestRemove(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create(validSpec()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Remove("count_lines"); err != nil {
		t.Fatalf("unexpected error on Remove: %v", err)
	}
	if s.Exists("count_lines") {
		t.Error("tool still exists after Remove")
	}
	if err := s.Remove("count_lines"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second Remove, got %v", err)
	}
}

func TestLoadSkipsCorruptDefinitions(t *testing.T) {
	s := newTestStore(t)
	if err := s.Create(validSpec()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Drop a corrupt definition next to the valid one.
	if err := os.WriteFile(filepath.Join(s.opts.Dir, "broken.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("unexpected error writing corrupt file: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load must skip corrupt modules, not fail: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Name() != "count_lines" {
		t.Errorf("expected only the valid tool to load, got %v", loaded)
	}
}

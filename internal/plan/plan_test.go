package plan

import (
	"strings"
	"testing"
)

func TestNewStateIsIdle(t *testing.T) {
	s := NewState()
	if s.Status() != StatusIdle {
		t.Errorf("expected idle, got %s", s.Status())
	}
	if s.StatusBlock() != "" {
		t.Error("idle plan must render no status block")
	}
}

func TestReplaceStartsExecuting(t *testing.T) {
	s := NewState()
	if err := s.Replace([]string{"a", "b", "c"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status() != StatusExecuting {
		t.Errorf("expected executing, got %s", s.Status())
	}
	if s.CurrentStep() != 0 || s.Remaining() != 3 {
		t.Errorf("expected cursor 0 with 3 remaining, got %d/%d", s.CurrentStep(), s.Remaining())
	}
}

func TestReplaceEmptyRejected(t *testing.T) {
	s := NewState()
	if err := s.Replace(nil); err == nil {
		t.Fatal("expected an error for an empty plan")
	}
	if s.Status() != StatusIdle {
		t.Errorf("failed Replace must not change status, got %s", s.Status())
	}
}

func TestAdvanceThroughCompletion(t *testing.T) {
	s := NewState()
	s.Replace([]string{"first", "second"})

	completed, next, err := s.Advance()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completed != "first" || next != "second" {
		t.Errorf("expected (first, second), got (%s, %s)", completed, next)
	}
	if s.Status() != StatusExecuting {
		t.Errorf("plan finished early: %s", s.Status())
	}

	completed, next, err = s.Advance()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completed != "second" || next != "" {
		t.Errorf("expected (second, \"\"), got (%s, %s)", completed, next)
	}
	if !s.Completed() {
		t.Error("plan should be completed after the last step")
	}

	if _, _, err := s.Advance(); err == nil {
		t.Error("advancing a completed plan must fail")
	}
}

func TestAdvanceWithoutPlan(t *testing.T) {
	s := NewState()
	if _, _, err := s.Advance(); err == nil {
		t.Fatal("expected an error when no plan exists")
	}
}

// A mid-task replan keeps finished work done and resumes at the chosen
// step: plan A is partially executed, plan B takes over at its second
// step, and only B's remaining steps are outstanding.
func TestReplanResumesAtChosenStep(t *testing.T) {
	s := NewState()
	s.Replace([]string{"a1", "a2", "a3"})
	if _, _, err := s.Advance(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.ReplaceWithResume([]string{"a1", "b2", "b3", "b4"}, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.CurrentStep() != 1 || s.Remaining() != 3 {
		t.Errorf("expected cursor 1 with 3 remaining, got %d/%d", s.CurrentStep(), s.Remaining())
	}

	render := s.Render()
	if !strings.Contains(render, "[done] a1") {
		t.Errorf("step before the resume point should render done:\n%s", render)
	}
	if !strings.Contains(render, "[current] b2") {
		t.Errorf("resume step should render current:\n%s", render)
	}
}

func TestReplaceWithResumeOutOfRange(t *testing.T) {
	s := NewState()
	if err := s.ReplaceWithResume([]string{"only"}, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.CurrentStep() != 0 {
		t.Errorf("out-of-range resume index must fall back to 0, got %d", s.CurrentStep())
	}
}

func TestReset(t *testing.T) {
	s := NewState()
	s.Replace([]string{"a"})
	s.Reset()
	if s.Status() != StatusIdle || len(s.Steps()) != 0 {
		t.Errorf("reset did not clear the plan: %s, %d steps", s.Status(), len(s.Steps()))
	}
}

func TestStatusBlock(t *testing.T) {
	s := NewState()
	s.Replace([]string{"read the file", "summarize it"})
	block := s.StatusBlock()
	if !strings.Contains(block, "step 1 of 2") {
		t.Errorf("status block missing progress: %q", block)
	}
	if !strings.Contains(block, "mark_step_complete") {
		t.Errorf("status block missing the advance instruction: %q", block)
	}
}

// Package plan tracks the ordered list of steps the model committed to
// for the current turn, with a cursor and a small status machine
// (idle -> executing -> completed).
package plan

import (
	"fmt"
	"strings"
	"sync"
)

// Status of the plan state machine.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
)

// State is the plan for one user turn. CurrentStep is always in
// [0, len(Steps)]; the plan is completed exactly when CurrentStep equals
// len(Steps) with a non-empty step list, or when forced.
type State struct {
	mu      sync.Mutex
	steps   []string
	current int
	status  Status
}

// NewState creates an empty, idle plan.
func NewState() *State {
	return &State{status: StatusIdle}
}

// Replace overwrites the plan with new steps and restarts from step 0.
func (s *State) Replace(steps []string) error {
	if len(steps) == 0 {
		return fmt.Errorf("plan must have at least one step")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append([]string(nil), steps...)
	s.current = 0
	s.status = StatusExecuting
	return nil
}

// ReplaceWithResume overwrites the plan and resumes from the given step
// index. An out-of-range index falls back to 0.
func (s *State) ReplaceWithResume(steps []string, resumeIndex int) error {
	if len(steps) == 0 {
		return fmt.Errorf("plan must have at least one step")
	}
	if resumeIndex < 0 || resumeIndex >= len(steps) {
		resumeIndex = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append([]string(nil), steps...)
	s.current = resumeIndex
	s.status = StatusExecuting
	return nil
}

// Advance marks the current step complete and moves the cursor forward.
// It returns the completed step, the next step ("" when the plan just
// finished), and an error when no plan exists or all steps are done.
func (s *State) Advance() (completed, next string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.steps) == 0 {
		return "", "", fmt.Errorf("no plan exists")
	}
	if s.current >= len(s.steps) {
		return "", "", fmt.Errorf("all steps already completed")
	}
	completed = s.steps[s.current]
	s.current++
	if s.current >= len(s.steps) {
		s.status = StatusCompleted
		return completed, "", nil
	}
	return completed, s.steps[s.current], nil
}

// Reset returns the plan to empty/idle. Called at the start of each new
// user turn.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = nil
	s.current = 0
	s.status = StatusIdle
}

// Status returns the current state machine status.
func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Steps returns a copy of the step list.
func (s *State) Steps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.steps...)
}

// CurrentStep returns the cursor index.
func (s *State) CurrentStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Remaining reports how many steps are left.
func (s *State) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current >= len(s.steps) {
		return 0
	}
	return len(s.steps) - s.current
}

// Completed reports whether the plan has finished.
func (s *State) Completed() bool {
	return s.Status() == StatusCompleted
}

// Render formats the plan with progress markers, the display shared by
// the planning tools.
func (s *State) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	for i, step := range s.steps {
		switch {
		case i < s.current:
			fmt.Fprintf(&b, "  %d. [done] %s\n", i+1, step)
		case i == s.current:
			fmt.Fprintf(&b, "  %d. [current] %s\n", i+1, step)
		default:
			fmt.Fprintf(&b, "  %d. [pending] %s\n", i+1, step)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// StatusBlock renders the ephemeral plan-status text appended to the
// system message while a plan is executing. It is injected per request
// and never persisted into the conversation log.
func (s *State) StatusBlock() string {
	s.mu.Lock()
	status := s.status
	steps := len(s.steps)
	current := s.current
	s.mu.Unlock()

	if status == StatusIdle || steps == 0 {
		return ""
	}
	return fmt.Sprintf(
		"\n\nCURRENT PLAN STATUS (%s, step %d of %d):\n%s\n"+
			"Work on the current step. Call mark_step_complete when it is done.",
		status, min(current+1, steps), steps, s.Render(),
	)
}

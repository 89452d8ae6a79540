// Package tools provides the registry that maps tool names to callable
// implementations and their declared schemas. Two tiers exist: built-in
// tools fixed at process start, and dynamic tools reloaded from files on
// disk so that modules created mid-session become visible without a
// restart.
package tools

import (
	"context"
	"errors"

	"github.com/klubi/golem/pkg/api"
)

// ErrAlreadyRegistered is returned when a tool name collides with an
// existing registration in either tier.
var ErrAlreadyRegistered = errors.New("tool name already registered")

// Tool is the contract every callable implements: given an arguments
// mapping, return result text and an exit flag. Errors are converted to
// textual error results at the registry boundary; they never propagate
// to the turn controller.
type Tool interface {
	Name() string
	Definition() api.Definition
	Execute(ctx context.Context, args map[string]any) (string, bool, error)
}

// Func adapts a plain function into a Tool.
type Func struct {
	Def api.Definition
	Fn  func(ctx context.Context, args map[string]any) (string, bool, error)
}

func (f Func) Name() string               { return f.Def.Function.Name }
func (f Func) Definition() api.Definition { return f.Def }
func (f Func) Execute(ctx context.Context, args map[string]any) (string, bool, error) {
	return f.Fn(ctx, args)
}

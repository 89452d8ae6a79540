package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/klubi/golem/pkg/api"
)

// DynamicSource supplies the dynamic tool tier, typically by rescanning
// a directory of tool module files. *dynamic.Store satisfies it.
type DynamicSource interface {
	Load() ([]Tool, error)
}

// Registry maintains the built-in and dynamic tool tiers behind a
// uniform lookup/execute contract.
type Registry struct {
	mu      sync.RWMutex
	builtin map[string]Tool
	dynamic map[string]Tool
	source  DynamicSource
	logger  *zap.Logger
}

// NewRegistry creates a Registry. source may be nil when no dynamic tier
// exists (tests).
func NewRegistry(source DynamicSource, logger *zap.Logger) *Registry {
	return &Registry{
		builtin: make(map[string]Tool),
		dynamic: make(map[string]Tool),
		source:  source,
		logger:  logger,
	}
}

// Register adds a built-in tool. Registering a name that already exists
// in either tier is rejected, not overwritten; callers must go through
// the update path instead. This stops the agent from silently shadowing
// tools with duplicate definitions.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.builtin[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	if _, exists := r.dynamic[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.builtin[name] = t
	return nil
}

// Reload rescans the dynamic source and swaps in the fresh tier. The
// in-memory view is always reconcilable from storage, so a crash or
// external edit recovers on the next reload.
func (r *Registry) Reload() error {
	if r.source == nil {
		return nil
	}
	loaded, err := r.source.Load()
	if err != nil {
		return fmt.Errorf("failed to reload dynamic tools: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fresh := make(map[string]Tool, len(loaded))
	for _, t := range loaded {
		if _, shadowed := r.builtin[t.Name()]; shadowed {
			r.logger.Warn("dynamic tool shadows a built-in and was skipped",
				zap.String("tool", t.Name()))
			continue
		}
		fresh[t.Name()] = t
	}
	r.dynamic = fresh
	return nil
}

// Has reports whether a name is known in either tier without reloading.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.builtin[name]; ok {
		return true
	}
	_, ok := r.dynamic[name]
	return ok
}

// IsBuiltIn reports whether the name belongs to the fixed tier.
func (r *Registry) IsBuiltIn(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builtin[name]
	return ok
}

// Names returns every known tool name, built-in tier first, each tier
// sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builtin)+len(r.dynamic))
	for n := range r.builtin {
		names = append(names, n)
	}
	sort.Strings(names)
	dyn := make([]string, 0, len(r.dynamic))
	for n := range r.dynamic {
		dyn = append(dyn, n)
	}
	sort.Strings(dyn)
	return append(names, dyn...)
}

// Definitions returns the full schema list for an outbound request,
// built-in tier first, each tier in name order.
func (r *Registry) Definitions() []api.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]api.Definition, 0, len(r.builtin)+len(r.dynamic))
	for _, name := range sortedKeys(r.builtin) {
		defs = append(defs, r.builtin[name].Definition())
	}
	for _, name := range sortedKeys(r.dynamic) {
		defs = append(defs, r.dynamic[name].Definition())
	}
	return defs
}

// Execute looks up a tool and runs it. The dynamic tier is refreshed
// before the lookup so modules edited mid-session are visible; a miss
// triggers one more reload-and-retry before the unknown-tool result.
// Panics and errors inside the callable are converted into textual error
// results with exit=false — tool failures never crash the loop.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result string, exit bool) {
	if err := r.Reload(); err != nil {
		r.logger.Warn("dynamic tool reload failed", zap.Error(err))
	}

	t := r.lookup(name)
	if t == nil {
		// One reload-and-retry in case the module just appeared.
		if err := r.Reload(); err == nil {
			t = r.lookup(name)
		}
	}
	if t == nil {
		return fmt.Sprintf("Error: Unknown tool '%s'", name), false
	}

	return r.run(ctx, t, args)
}

func (r *Registry) lookup(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.builtin[name]; ok {
		return t
	}
	return r.dynamic[name]
}

// run executes the callable with panic recovery.
func (r *Registry) run(ctx context.Context, t Tool, args map[string]any) (result string, exit bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked",
				zap.String("tool", t.Name()),
				zap.Any("panic", rec),
			)
			result = fmt.Sprintf("Error executing %s: panic: %v", t.Name(), rec)
			exit = false
		}
	}()

	text, shouldExit, err := t.Execute(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error executing %s: %v", t.Name(), err), false
	}
	return text, shouldExit
}

func sortedKeys(m map[string]Tool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

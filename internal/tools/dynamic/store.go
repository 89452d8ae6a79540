package dynamic

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/klubi/golem/internal/tools"
)

// Common sentinel errors.
var (
	ErrNotFound      = errors.New("tool not found")
	ErrAlreadyExists = errors.New("tool already exists")
)

// definitionFile is the JSON structure of a per-tool definition file.
type definitionFile struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Parameters     map[string]any `json:"parameters"`
	Interpreter    string         `json:"interpreter"`
	ScriptFile     string         `json:"script_file"`
	TimeoutSeconds int            `json:"timeout_seconds"`
	SafetyNotes    string         `json:"safety_notes,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Options configure a Store.
type Options struct {
	Dir             string
	Interpreter     string
	TimeoutSeconds  int
	VariantPrefixes []string
	VariantSuffixes []string
}

// Store persists dynamic tool modules: each tool is a <name>.json
// definition and a <name>.sh script in one directory. The in-memory view
// is always reconcilable by rescanning that directory.
type Store struct {
	opts   Options
	logger *zap.Logger
}

// NewStore creates a Store rooted at opts.Dir, creating the directory if
// needed.
func NewStore(opts Options, logger *zap.Logger) (*Store, error) {
	if opts.Interpreter == "" {
		opts.Interpreter = "/bin/sh"
	}
	if opts.TimeoutSeconds <= 0 {
		opts.TimeoutSeconds = 10
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tools directory %s: %w", opts.Dir, err)
	}
	return &Store{opts: opts, logger: logger}, nil
}

// Load rescans the directory and returns every loadable tool. Corrupt
// modules are skipped with a warning, never a crash. Load satisfies
// tools.DynamicSource.
func (s *Store) Load() ([]tools.Tool, error) {
	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", s.opts.Dir, err)
	}

	var loaded []tools.Tool
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		tool, err := s.loadOne(filepath.Join(s.opts.Dir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unloadable tool module",
				zap.String("file", entry.Name()),
				zap.Error(err),
			)
			continue
		}
		loaded = append(loaded, tool)
	}
	return loaded, nil
}

func (s *Store) loadOne(defPath string) (*ScriptTool, error) {
	raw, err := os.ReadFile(defPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}
	var def definitionFile
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("failed to parse definition: %w", err)
	}

	expected := strings.TrimSuffix(filepath.Base(defPath), ".json")
	if def.Name != expected {
		return nil, fmt.Errorf("declared name %q does not match file name %q", def.Name, expected)
	}

	scriptPath := filepath.Join(s.opts.Dir, def.ScriptFile)
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, fmt.Errorf("script file missing: %w", err)
	}

	return &ScriptTool{
		name:        def.Name,
		description: def.Description,
		params:      def.Parameters,
		scriptPath:  scriptPath,
		interpreter: def.Interpreter,
		timeout:     time.Duration(def.TimeoutSeconds) * time.Second,
	}, nil
}

// Names returns the names of every stored tool module.
func (s *Store) Names() []string {
	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
		}
	}
	return names
}

// Exists reports whether a tool module with the given name is stored.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.defPath(name))
	return err == nil
}

// Create validates the spec, persists the module, and verifies it loads.
// Any failure rolls back partially written files so no artifact is left
// behind.
func (s *Store) Create(spec Spec) error {
	if err := ValidateSpec(spec); err != nil {
		return err
	}
	if s.Exists(spec.Name) {
		return fmt.Errorf("%w: %s (use update_tool to modify it)", ErrAlreadyExists, spec.Name)
	}
	if base, isVariant := VariantOf(spec.Name, s.Names(), s.opts.VariantPrefixes, s.opts.VariantSuffixes); isVariant {
		return fmt.Errorf("name %q looks like a variant of existing tool %q; fix %q in place with update_tool instead of forking it", spec.Name, base, base)
	}
	return s.write(spec)
}

// Update is synthesis with overwrite permission on an existing name.
func (s *Store) Update(spec Spec) error {
	if err := ValidateSpec(spec); err != nil {
		return err
	}
	if !s.Exists(spec.Name) {
		return fmt.Errorf("%w: %s (use create_tool for new tools)", ErrNotFound, spec.Name)
	}
	return s.write(spec)
}

// Remove deletes the module's files.
func (s *Store) Remove(name string) error {
	if !s.Exists(name) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := os.Remove(s.defPath(name)); err != nil {
		return fmt.Errorf("failed to remove definition: %w", err)
	}
	if err := os.Remove(s.scriptPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove script: %w", err)
	}
	s.logger.Info("dynamic tool removed", zap.String("tool", name))
	return nil
}

// Describe returns the stored definition for a tool, used by the update
// path to merge partial specs.
func (s *Store) Describe(name string) (Spec, error) {
	raw, err := os.ReadFile(s.defPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return Spec{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Spec{}, fmt.Errorf("failed to read definition: %w", err)
	}
	var def definitionFile
	if err := json.Unmarshal(raw, &def); err != nil {
		return Spec{}, fmt.Errorf("failed to parse definition: %w", err)
	}
	script, err := os.ReadFile(filepath.Join(s.opts.Dir, def.ScriptFile))
	if err != nil {
		return Spec{}, fmt.Errorf("failed to read script: %w", err)
	}
	return Spec{
		Name:           def.Name,
		Description:    def.Description,
		Parameters:     def.Parameters,
		Implementation: string(script),
		SafetyNotes:    def.SafetyNotes,
	}, nil
}

// write persists both files and verifies the module loads. On any
// failure the previous module is restored (updates) or the partial
// artifacts removed (creates).
func (s *Store) write(spec Spec) error {
	defPath := s.defPath(spec.Name)
	scriptPath := s.scriptPath(spec.Name)

	prevDef, hadDef := snapshot(defPath)
	prevScript, hadScript := snapshot(scriptPath)
	rollback := func() {
		restore(defPath, prevDef, hadDef, 0o600)
		restore(scriptPath, prevScript, hadScript, 0o700)
	}

	script := spec.Implementation
	if !strings.HasSuffix(script, "\n") {
		script += "\n"
	}
	if err := os.WriteFile(scriptPath, []byte(script), 0o700); err != nil {
		rollback()
		return fmt.Errorf("failed to write script: %w", err)
	}

	def := definitionFile{
		Name:           spec.Name,
		Description:    spec.Description,
		Parameters:     spec.Parameters,
		Interpreter:    s.opts.Interpreter,
		ScriptFile:     spec.Name + ".sh",
		TimeoutSeconds: s.opts.TimeoutSeconds,
		SafetyNotes:    spec.SafetyNotes,
		CreatedAt:      time.Now(),
	}
	raw, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		rollback()
		return fmt.Errorf("failed to marshal definition: %w", err)
	}
	if err := os.WriteFile(defPath, raw, 0o600); err != nil {
		rollback()
		return fmt.Errorf("failed to write definition: %w", err)
	}

	// Load verification: if what we just wrote does not load, remove it.
	if _, err := s.loadOne(defPath); err != nil {
		rollback()
		return fmt.Errorf("generated module failed to load: %w", err)
	}

	s.logger.Info("dynamic tool written",
		zap.String("tool", spec.Name),
		zap.String("path", defPath),
	)
	return nil
}

// snapshot reads a file's current content, reporting whether it existed.
func snapshot(path string) ([]byte, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// restore puts a snapshotted file back, or removes the path if the file
// did not exist before the write.
func restore(path string, raw []byte, existed bool, mode os.FileMode) {
	if existed {
		os.WriteFile(path, raw, mode)
		return
	}
	os.Remove(path)
}

func (s *Store) defPath(name string) string {
	return filepath.Join(s.opts.Dir, name+".json")
}

func (s *Store) scriptPath(name string) string {
	return filepath.Join(s.opts.Dir, name+".sh")
}

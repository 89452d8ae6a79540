package dynamic

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Spec is a tool specification submitted by the model: name, description,
// parameter JSON-schema, and the script body for the callable.
type Spec struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Parameters     map[string]any `json:"parameters"`
	Implementation string         `json:"implementation"`
	SafetyNotes    string         `json:"safety_notes,omitempty"`
}

var nameRE = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// bannedConstructs is the coarse static denylist applied to submitted
// implementations. This is a filter, not a sandbox: full process
// isolation is explicitly out of scope, an open security gap inherited
// from the design.
var bannedConstructs = []string{
	"eval ",
	"eval\t",
	"exec ",
	"source ",
	"read ", // interactive input would hang the subprocess
	"mkfifo",
	"sudo ",
	"| sh",
	"| bash",
	"$(curl",
	"$(wget",
}

// ValidateSpec checks a tool spec against all synthesis rules and returns
// a specific reason on failure.
func ValidateSpec(spec Spec) error {
	if !nameRE.MatchString(spec.Name) {
		return fmt.Errorf("tool name %q must be lowercase snake_case", spec.Name)
	}
	if len(spec.Name) < 2 || len(spec.Name) > 50 {
		return fmt.Errorf("tool name must be 2-50 characters, got %d", len(spec.Name))
	}

	if len(spec.Description) < 10 || len(spec.Description) > 500 {
		return fmt.Errorf("description must be 10-500 characters, got %d", len(spec.Description))
	}

	if err := validateParameters(spec.Parameters); err != nil {
		return err
	}

	impl := strings.TrimSpace(spec.Implementation)
	if len(impl) < 20 {
		return fmt.Errorf("implementation must be at least 20 characters")
	}
	for _, pattern := range bannedConstructs {
		if strings.Contains(impl, pattern) {
			return fmt.Errorf("implementation contains banned construct: %q", strings.TrimSpace(pattern))
		}
	}
	return nil
}

// validateParameters checks that the parameter schema is a well-formed
// object-type JSON-schema whose properties each carry a type and a
// description, and that the schema actually compiles.
func validateParameters(params map[string]any) error {
	if params == nil {
		return fmt.Errorf("parameters schema is required")
	}
	if t, _ := params["type"].(string); t != "object" {
		return fmt.Errorf("parameters type must be \"object\"")
	}

	props, ok := params["properties"].(map[string]any)
	if !ok {
		return fmt.Errorf("parameters.properties must be an object")
	}
	for pname, pdef := range props {
		def, ok := pdef.(map[string]any)
		if !ok {
			return fmt.Errorf("parameter %q definition must be an object", pname)
		}
		if _, ok := def["type"].(string); !ok {
			return fmt.Errorf("parameter %q is missing a type", pname)
		}
		if desc, _ := def["description"].(string); desc == "" {
			return fmt.Errorf("parameter %q is missing a description", pname)
		}
	}

	// Compile through the schema library to catch structural problems the
	// shallow checks above miss (bad enum shapes, invalid types, etc.).
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("parameters schema is not serializable: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource("params.json", strings.NewReader(string(raw))); err != nil {
		return fmt.Errorf("invalid parameters schema: %w", err)
	}
	if _, err := compiler.Compile("params.json"); err != nil {
		return fmt.Errorf("invalid parameters schema: %w", err)
	}
	return nil
}

// VariantOf reports whether name looks like an ad-hoc variant of an
// existing tool name ("fixed_foo", "foo_v2") given the configured
// prefix/suffix lists. It returns the base name the variant shadows.
// The guard forces in-place repair through the update path instead of a
// proliferation of near-duplicate tools.
func VariantOf(name string, existing []string, prefixes, suffixes []string) (string, bool) {
	known := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		known[n] = struct{}{}
	}

	for _, p := range prefixes {
		if base, ok := strings.CutPrefix(name, p); ok {
			if _, exists := known[base]; exists {
				return base, true
			}
		}
	}
	for _, s := range suffixes {
		if base, ok := strings.CutSuffix(name, s); ok {
			if _, exists := known[base]; exists {
				return base, true
			}
		}
	}
	return "", false
}

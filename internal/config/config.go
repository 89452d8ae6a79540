// Package config loads golem configuration from defaults, an optional
// YAML file, and GOLEM_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API           APIConfig           `yaml:"api"`
	Generation    GenerationConfig    `yaml:"generation"`
	Loop          LoopConfig          `yaml:"loop"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
	Tools         ToolsConfig         `yaml:"tools"`
	Log           LogConfig           `yaml:"log"`
	DataDir       string              `yaml:"dataDir"` // default "~/.golem"
}

type APIConfig struct {
	Key   string `yaml:"key"`   // bearer token, required
	URL   string `yaml:"url"`   // chat-completions endpoint, required
	Model string `yaml:"model"` // model identifier, required
}

type GenerationConfig struct {
	MaxTokens   int     `yaml:"maxTokens"`   // default 2048
	Temperature float64 `yaml:"temperature"` // default 0.7
	TopP        float64 `yaml:"topP"`        // default 1.0
}

// LoopConfig holds the turn-controller policy ceilings. These are policy
// values, not structural requirements; the defaults match the documented
// behaviour.
type LoopConfig struct {
	TransportRetryCeiling  int  `yaml:"transportRetryCeiling"`  // default 5
	BlockedCeiling         int  `yaml:"blockedCeiling"`         // default 3
	ParseFailureEscalation int  `yaml:"parseFailureEscalation"` // default 3
	RepeatCallLimit        int  `yaml:"repeatCallLimit"`        // default 2
	FailureStreakCeiling   int  `yaml:"failureStreakCeiling"`   // default 3
	PseudoCallCeiling      int  `yaml:"pseudoCallCeiling"`      // default 3
	ResultBudget           int  `yaml:"resultBudget"`           // default 4000 chars
	SafetyCeiling          int  `yaml:"safetyCeiling"`          // 0 disables (default)
	SafetyCheckInterval    int  `yaml:"safetyCheckInterval"`    // default 10
	StreamFirstStepOnly    bool `yaml:"streamFirstStepOnly"`    // default true
}

type ConsolidationConfig struct {
	TurnThreshold    int `yaml:"turnThreshold"`    // default 12
	MessageThreshold int `yaml:"messageThreshold"` // default 60
	CharThreshold    int `yaml:"charThreshold"`    // default 120000
	RecentExchanges  int `yaml:"recentExchanges"`  // default 10
	PerMessageCap    int `yaml:"perMessageCap"`    // default 300
}

type ToolsConfig struct {
	Dir             string   `yaml:"dir"`             // default DataDir + "/tools"
	TimeoutSeconds  int      `yaml:"timeoutSeconds"`  // default 10, dynamic tools
	Interpreter     string   `yaml:"interpreter"`     // default "/bin/sh"
	InstallCommand  string   `yaml:"installCommand"`  // default "pip install"
	VariantPrefixes []string `yaml:"variantPrefixes"` // naming-pattern guard
	VariantSuffixes []string `yaml:"variantSuffixes"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // default "info"
	Format string `yaml:"format"` // default "console"
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Generation: GenerationConfig{
			MaxTokens:   2048,
			Temperature: 0.7,
			TopP:        1.0,
		},
		Loop: LoopConfig{
			TransportRetryCeiling:  5,
			BlockedCeiling:         3,
			ParseFailureEscalation: 3,
			RepeatCallLimit:        2,
			FailureStreakCeiling:   3,
			PseudoCallCeiling:      3,
			ResultBudget:           4000,
			SafetyCeiling:          0,
			SafetyCheckInterval:    10,
			StreamFirstStepOnly:    true,
		},
		Consolidation: ConsolidationConfig{
			TurnThreshold:    12,
			MessageThreshold: 60,
			CharThreshold:    120000,
			RecentExchanges:  10,
			PerMessageCap:    300,
		},
		Tools: ToolsConfig{
			Dir:            filepath.Join(dataDir, "tools"),
			TimeoutSeconds: 10,
			Interpreter:    "/bin/sh",
			InstallCommand: "pip install",
			VariantPrefixes: []string{
				"fixed_", "fix_", "new_", "improved_", "better_",
				"working_", "correct_", "updated_",
			},
			VariantSuffixes: []string{
				"_fixed", "_fix", "_new", "_improved", "_better", "_working",
				"_correct", "_updated", "_v2", "_v3", "_v4", "_final", "_2", "_3",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		DataDir: dataDir,
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// the file does not exist), and environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.yaml")
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides config fields from GOLEM_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("GOLEM_API_KEY"); v != "" {
		cfg.API.Key = v
	}
	if v := os.Getenv("GOLEM_API_URL"); v != "" {
		cfg.API.URL = v
	}
	if v := os.Getenv("GOLEM_MODEL"); v != "" {
		cfg.API.Model = v
	}
	if v := os.Getenv("GOLEM_DATA_DIR"); v != "" {
		cfg.DataDir = v
		cfg.Tools.Dir = filepath.Join(v, "tools")
	}
	if v := os.Getenv("GOLEM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GOLEM_SAFETY_CEILING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Loop.SafetyCeiling = n
		}
	}
}

// Validate checks the startup-fatal requirements: API key, URL and model
// must all be present.
func (c *Config) Validate() error {
	var missing []string
	if c.API.Key == "" {
		missing = append(missing, "api.key (GOLEM_API_KEY)")
	}
	if c.API.URL == "" {
		missing = append(missing, "api.url (GOLEM_API_URL)")
	}
	if c.API.Model == "" {
		missing = append(missing, "api.model (GOLEM_MODEL)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}
	return nil
}

// EventLogPath returns the full path to the JSONL event log.
func (c *Config) EventLogPath() string {
	return filepath.Join(c.DataDir, "events.jsonl")
}

// defaultDataDir resolves the default data directory. It uses
// os.UserHomeDir() + "/.golem", falling back to "/tmp/golem" if the home
// directory cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "golem")
	}
	return filepath.Join(home, ".golem")
}

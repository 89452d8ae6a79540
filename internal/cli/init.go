package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/klubi/golem/internal/config"
)

const configTemplate = `api:
  key: ""        # or set GOLEM_API_KEY
  url: "https://api.openai.com/v1/chat/completions"
  model: "gpt-4o"

generation:
  maxTokens: 2048
  temperature: 0.7
  topP: 1.0

log:
  level: info
  format: console
`

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the data directory and a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()

			path := configPath
			if path == "" {
				path = filepath.Join(cfg.DataDir, "config.yaml")
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := os.MkdirAll(cfg.Tools.Dir, 0o755); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			green := color.New(color.FgGreen)
			green.Printf("Created %s\n", path)
			fmt.Println("\nNext steps:")
			fmt.Println("  1. Set your API key in the config file or export GOLEM_API_KEY")
			fmt.Println("  2. Run: golem chat")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

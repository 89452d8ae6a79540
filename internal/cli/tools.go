package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/klubi/golem/internal/config"
	"github.com/klubi/golem/internal/tools/dynamic"
	"go.uber.org/zap"
)

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and manage dynamic tools",
	}
	cmd.AddCommand(newToolsListCmd(), newToolsShowCmd(), newToolsRemoveCmd())
	return cmd
}

// openStore builds a dynamic store without requiring API credentials,
// so tool management works offline.
func openStore() (*dynamic.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return dynamic.NewStore(dynamic.Options{
		Dir:             cfg.Tools.Dir,
		Interpreter:     cfg.Tools.Interpreter,
		TimeoutSeconds:  cfg.Tools.TimeoutSeconds,
		VariantPrefixes: cfg.Tools.VariantPrefixes,
		VariantSuffixes: cfg.Tools.VariantSuffixes,
	}, zap.NewNop())
}

func newToolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all dynamic tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			names := store.Names()
			if len(names) == 0 {
				fmt.Println("No dynamic tools installed.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			for _, name := range names {
				spec, err := store.Describe(name)
				if err != nil {
					fmt.Fprintf(w, "%s\t(unreadable: %v)\n", name, err)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\n", name, spec.Description)
			}
			return w.Flush()
		},
	}
}

func newToolsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Show a dynamic tool's definition and implementation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			spec, err := store.Describe(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Name:        %s\n", spec.Name)
			fmt.Printf("Description: %s\n", spec.Description)
			if spec.SafetyNotes != "" {
				fmt.Printf("Safety:      %s\n", spec.SafetyNotes)
			}
			fmt.Printf("\nImplementation:\n%s\n", spec.Implementation)
			return nil
		},
	}
}

func newToolsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove [name]",
		Aliases: []string{"rm"},
		Short:   "Delete a dynamic tool",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.Remove(args[0]); err != nil {
				return err
			}
			fmt.Printf("Tool %q removed\n", args[0])
			return nil
		},
	}
}

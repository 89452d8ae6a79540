package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/klubi/golem/internal/agent"
	"github.com/klubi/golem/internal/config"
	"github.com/klubi/golem/internal/conversation"
	"github.com/klubi/golem/internal/eventlog"
	"github.com/klubi/golem/internal/plan"
	"github.com/klubi/golem/internal/stream"
	"github.com/klubi/golem/internal/tools"
	"github.com/klubi/golem/internal/tools/builtin"
	"github.com/klubi/golem/internal/tools/dynamic"
)

const systemPrompt = `You are Golem, a capable assistant running in the user's terminal with real tools.

Working style:
- For multi-step work, call create_plan first, execute one step at a time, and call mark_step_complete after each step.
- When the task is fully done, call task_complete with a summary.
- If an existing tool is broken, fix it with update_tool. Never create a renamed variant of an existing tool.
- Independent read-only lookups can be batched with parallel_tasks.
- Only call end_chat when the user explicitly wants to leave.

Be direct. Prefer doing over describing.`

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Long:  "Start the interactive chat loop. Type 'exit' or 'quit' to leave.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runChat(cfg, logger)
		},
	}
	return cmd
}

func runChat(cfg *config.Config, logger *zap.Logger) error {
	events, err := eventlog.NewWriter(cfg.EventLogPath(), cfg.API.Model, logger)
	if err != nil {
		return err
	}
	defer events.Close()

	store, err := dynamic.NewStore(dynamic.Options{
		Dir:             cfg.Tools.Dir,
		Interpreter:     cfg.Tools.Interpreter,
		TimeoutSeconds:  cfg.Tools.TimeoutSeconds,
		VariantPrefixes: cfg.Tools.VariantPrefixes,
		VariantSuffixes: cfg.Tools.VariantSuffixes,
	}, logger)
	if err != nil {
		return err
	}

	registry := tools.NewRegistry(store, logger)
	planState := plan.NewState()
	processes := builtin.NewProcessTable()

	for _, t := range builtin.All(builtin.Deps{
		Plan:           planState,
		Store:          store,
		Processes:      processes,
		Runner:         registry,
		InstallCommand: cfg.Tools.InstallCommand,
		IsBuiltIn:      registry.IsBuiltIn,
	}) {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("failed to register built-in tools: %w", err)
		}
	}
	if err := registry.Reload(); err != nil {
		logger.Warn("failed to load dynamic tools", zap.Error(err))
	}

	client := stream.NewClient(cfg.API.URL, cfg.API.Key, logger)
	log := conversation.NewLog(systemPrompt)
	consolidator := conversation.NewConsolidator(client, cfg.API.Model, conversation.Thresholds{
		Turns:           cfg.Consolidation.TurnThreshold,
		Messages:        cfg.Consolidation.MessageThreshold,
		Chars:           cfg.Consolidation.CharThreshold,
		RecentExchanges: cfg.Consolidation.RecentExchanges,
		PerMessageCap:   cfg.Consolidation.PerMessageCap,
	}, logger)

	ui := newTermUI()
	ctrl := agent.New(cfg, client, registry, planState, log, consolidator, events, ui, logger)
	logger.Info("session started",
		zap.String("session", events.SessionID()),
		zap.String("model", cfg.API.Model))

	fmt.Printf("golem ready (model: %s, %d tools). Type 'exit' to leave.\n\n",
		cfg.API.Model, len(registry.Names()))

	for {
		line, ok := ui.ReadLine()
		if !ok {
			fmt.Println()
			return nil
		}
		if line == "" {
			continue
		}
		if isExitCommand(line) {
			fmt.Println("Goodbye!")
			return nil
		}

		// Ctrl-C aborts the in-flight turn, not the session.
		turnCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		exit, err := ctrl.Run(turnCtx, line)
		stop()
		if err != nil {
			if turnCtx.Err() != nil {
				errorColor.Println("\n(turn interrupted)")
				continue
			}
			errorColor.Printf("Error: %v\n", err)
			continue
		}
		if exit {
			return nil
		}
		fmt.Println()
	}
}

func isExitCommand(line string) bool {
	switch strings.ToLower(line) {
	case "exit", "quit":
		return true
	}
	return false
}

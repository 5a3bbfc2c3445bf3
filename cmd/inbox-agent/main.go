package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/config"
	"github.com/mikey/inbox-agent/internal/core"
	"github.com/mikey/inbox-agent/internal/di"
	"github.com/mikey/inbox-agent/internal/orchestrator"
	"github.com/mikey/inbox-agent/internal/store"
)

// errTurnFailed marks a turn that failed outright or hit a systemic failure;
// the answer was already printed
var errTurnFailed = errors.New("turn failed")

var flags = &di.CLIFlags{}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "inbox-agent",
		Short:         "Conversational assistant over your inbox",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.ConfigFile, "config", "", "config file (default: config.yaml in ., ./configs, $HOME/.inbox-agent or /etc/inbox-agent)")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&flags.JSONLog, "json-log", false, "output logs in JSON format")
	pf.StringVar(&flags.Provider, "provider", "", "LLM provider (openai, gemini, bedrock)")
	pf.StringVar(&flags.Strategy, "strategy", "", "decision strategy (rules, llm)")
	pf.StringVar(&flags.Synthesizer, "synthesizer", "", "answer synthesizer (template, llm)")
	pf.StringVar(&flags.Source, "source", "", "mail source (gmail, maildir)")
	pf.StringVar(&flags.Maildir, "maildir", "", "read mail from this directory instead of Gmail")
	pf.StringVar(&flags.Store, "store", "", "record store (memory, sqlite, mysql)")

	root.AddCommand(chatCmd())
	root.AddCommand(askCmd())
	root.AddCommand(scanCmd())
	root.AddCommand(configCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, errTurnFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// withAgent builds the container and hands the agent to fn, closing the
// record store afterwards
func withAgent(fn func(agent *orchestrator.Agent, logger *zap.Logger) error) error {
	cfg, err := di.LoadConfig(flags)
	if err != nil {
		return err
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", problems[0])
	}

	container, err := di.BuildContainer(cfg)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	var runErr error
	err = container.Invoke(func(agent *orchestrator.Agent, s *store.Store, logger *zap.Logger) {
		defer logger.Sync()
		defer func() {
			if cerr := s.Close(); cerr != nil {
				logger.Error("Failed to close record store", zap.Error(cerr))
			}
		}()
		runErr = fn(agent, logger)
	})
	if err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}
	return runErr
}

// printResult writes the answer and maps a failed turn onto a non-zero exit
func printResult(cmd *cobra.Command, res *orchestrator.TurnResult) error {
	fmt.Fprintln(cmd.OutOrStdout(), res.Answer)
	if turnFailed(res) {
		return errTurnFailed
	}
	return nil
}

// turnFailed reports a failed state machine, a failed outcome or a step
// that hit an auth or rate limit failure
func turnFailed(res *orchestrator.TurnResult) bool {
	if res.State == orchestrator.StateFailed {
		return true
	}
	if res.Outcome == nil {
		return false
	}
	if res.Outcome.Status == core.StatusFailed {
		return true
	}
	for _, a := range res.Outcome.Annotations {
		if a.Kind == core.KindAuth || a.Kind == core.KindRateLimit {
			return true
		}
	}
	return false
}

func loadConfig() (*config.Config, error) {
	return di.LoadConfig(flags)
}

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/inbox-agent/internal/orchestrator"
)

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAgent(func(agent *orchestrator.Agent, logger *zap.Logger) error {
				ctx := cmd.Context()
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Ask about your inbox. Type \"exit\" to quit.")

				scanner := bufio.NewScanner(cmd.InOrStdin())
				for {
					fmt.Fprint(out, "> ")
					if !scanner.Scan() {
						fmt.Fprintln(out)
						return scanner.Err()
					}
					line := strings.TrimSpace(scanner.Text())
					switch strings.ToLower(line) {
					case "":
						continue
					case "exit", "quit", "bye":
						return nil
					}

					res := agent.HandleTurn(ctx, line)
					fmt.Fprintln(out, res.Answer)
					logger.Debug("Turn finished", zap.String("turn_id", res.ID), zap.String("state", string(res.State)))

					if ctx.Err() != nil {
						return ctx.Err()
					}
				}
			})
		},
	}
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <utterance>",
		Short: "Answer a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(func(agent *orchestrator.Agent, _ *zap.Logger) error {
				return printResult(cmd, agent.HandleTurn(cmd.Context(), strings.Join(args, " ")))
			})
		},
	}
}

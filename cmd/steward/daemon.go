package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/cmd/steward/runtime"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background event loop",
	Long:  `Starts the system monitor and relevance engine, announcing events that clear the relevance threshold until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeWithRuntime(cmd, func(ctx context.Context, c *runtime.Components) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := c.Monitor.Start(); err != nil {
				return err
			}

			slog.Info("Steward daemon running", "modules", len(c.Health()))
			for {
				select {
				case scored := <-c.Announcements:
					fmt.Printf("[%s] %s/%s: %s (priority %d)\n",
						scored.Tier,
						scored.Event.Source,
						scored.Event.Type,
						scored.Reasoning,
						scored.Priority,
					)
				case <-ctx.Done():
					slog.Info("Shutting down daemon", "reason", ctx.Err())
					return nil
				}
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

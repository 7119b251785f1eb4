package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/cmd/steward/runtime"
	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/errors"
)

// executeWithRuntime builds the component graph, runs fn, and tears the
// runtime down afterwards.
func executeWithRuntime(cmd *cobra.Command, fn func(ctx context.Context, c *runtime.Components) error) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	components, err := runtime.Build(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to initialize runtime")
	}
	defer func() {
		timeout, err := config.DurationOrDefault(cfg.Daemon.ShutdownTimeout, config.DefaultDaemonShutdownTimeout)
		if err != nil {
			timeout, _ = config.DurationOrDefault("", config.DefaultDaemonShutdownTimeout)
		}
		stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		components.Stop(stopCtx)
	}()

	return fn(ctx, components)
}

func resolveUser(cmd *cobra.Command) string {
	if user, err := cmd.Flags().GetString("user"); err == nil && user != "" {
		return user
	}
	return cfg.Executor.DefaultUser
}

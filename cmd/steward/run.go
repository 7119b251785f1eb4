package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/cmd/steward/runtime"
)

var runCmd = &cobra.Command{
	Use:   "run [utterance]",
	Short: "Handle a single request and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeWithRuntime(cmd, func(ctx context.Context, c *runtime.Components) error {
			turn := c.Dispatcher.Handle(ctx, resolveUser(cmd), strings.Join(args, " "))
			fmt.Println(turn.Response)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("user", "u", "", "user identity for this request")
}

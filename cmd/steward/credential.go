package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/internal/vault"
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage tool credentials",
}

var credentialSetCmd = &cobra.Command{
	Use:   "set key=value [key=value ...]",
	Short: "Store credentials for a tool",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		toolID, _ := cmd.Flags().GetString("tool")
		user := resolveUser(cmd)

		payload := make(map[string]string, len(args))
		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok || key == "" {
				return fmt.Errorf("expected key=value, got %q", arg)
			}
			payload[key] = value
		}

		v, err := vault.Open(cfg.Vault)
		if err != nil {
			return err
		}
		if err := v.StoreCredentials(toolID, payload, user); err != nil {
			return err
		}
		fmt.Printf("Stored %d credential field(s) for %s\n", len(payload), toolID)
		return nil
	},
}

var credentialDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete stored credentials for a tool",
	RunE: func(cmd *cobra.Command, args []string) error {
		toolID, _ := cmd.Flags().GetString("tool")
		user := resolveUser(cmd)

		v, err := vault.Open(cfg.Vault)
		if err != nil {
			return err
		}
		if err := v.DeleteCredentials(toolID, user); err != nil {
			return err
		}
		fmt.Printf("Deleted credentials for %s\n", toolID)
		return nil
	},
}

var credentialListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tools with stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		user := resolveUser(cmd)

		v, err := vault.Open(cfg.Vault)
		if err != nil {
			return err
		}

		tools := v.ListCredentialTools(user)
		if len(tools) == 0 {
			fmt.Printf("No credentials stored for %s\n", user)
			return nil
		}
		for _, id := range tools {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{credentialSetCmd, credentialDeleteCmd, credentialListCmd} {
		cmd.Flags().StringP("user", "u", "", "user identity")
		credentialCmd.AddCommand(cmd)
	}
	credentialSetCmd.Flags().String("tool", "", "tool ID")
	_ = credentialSetCmd.MarkFlagRequired("tool")
	credentialDeleteCmd.Flags().String("tool", "", "tool ID")
	_ = credentialDeleteCmd.MarkFlagRequired("tool")

	rootCmd.AddCommand(credentialCmd)
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/internal/vault"
)

var consentCmd = &cobra.Command{
	Use:   "consent",
	Short: "Manage consent grants",
}

var consentGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant consent for a tool capability",
	RunE: func(cmd *cobra.Command, args []string) error {
		toolID, _ := cmd.Flags().GetString("tool")
		capName, _ := cmd.Flags().GetString("capability")
		ttlStr, _ := cmd.Flags().GetString("ttl")
		user := resolveUser(cmd)

		var ttl *time.Duration
		if ttlStr != "" {
			d, err := time.ParseDuration(ttlStr)
			if err != nil {
				return fmt.Errorf("parse ttl: %w", err)
			}
			ttl = &d
		}

		v, err := vault.Open(cfg.Vault)
		if err != nil {
			return err
		}
		if err := v.GrantConsent(toolID, capName, user, ttl); err != nil {
			return err
		}

		if ttl != nil {
			fmt.Printf("Granted %s.%s to %s for %s\n", toolID, capName, user, ttl)
		} else {
			fmt.Printf("Granted %s.%s to %s permanently\n", toolID, capName, user)
		}
		return nil
	},
}

var consentRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke a consent grant",
	RunE: func(cmd *cobra.Command, args []string) error {
		toolID, _ := cmd.Flags().GetString("tool")
		capName, _ := cmd.Flags().GetString("capability")
		user := resolveUser(cmd)

		v, err := vault.Open(cfg.Vault)
		if err != nil {
			return err
		}
		if err := v.RevokeConsent(toolID, capName, user); err != nil {
			return err
		}
		fmt.Printf("Revoked %s.%s from %s\n", toolID, capName, user)
		return nil
	},
}

var consentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active consent grants",
	RunE: func(cmd *cobra.Command, args []string) error {
		user := resolveUser(cmd)

		v, err := vault.Open(cfg.Vault)
		if err != nil {
			return err
		}

		grants := v.ListConsents(user)
		if len(grants) == 0 {
			fmt.Printf("No active grants for %s\n", user)
			return nil
		}
		for _, g := range grants {
			expiry := "permanent"
			if g.ExpiresAt != nil {
				expiry = "expires " + g.ExpiresAt.Format(time.RFC3339)
			}
			fmt.Printf("%s.%s (%s)\n", g.ToolID, g.Capability, expiry)
		}
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{consentGrantCmd, consentRevokeCmd, consentListCmd} {
		cmd.Flags().StringP("user", "u", "", "user identity")
		consentCmd.AddCommand(cmd)
	}
	consentGrantCmd.Flags().String("tool", "", "tool ID")
	consentGrantCmd.Flags().String("capability", "", "capability name")
	consentGrantCmd.Flags().String("ttl", "", "grant lifetime, e.g. 1h (omit for permanent)")
	_ = consentGrantCmd.MarkFlagRequired("tool")
	_ = consentGrantCmd.MarkFlagRequired("capability")
	consentRevokeCmd.Flags().String("tool", "", "tool ID")
	consentRevokeCmd.Flags().String("capability", "", "capability name")
	_ = consentRevokeCmd.MarkFlagRequired("tool")
	_ = consentRevokeCmd.MarkFlagRequired("capability")

	rootCmd.AddCommand(consentCmd)
}

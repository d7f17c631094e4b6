package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendant/guided-content/pkg/guidedcontent/api"
	"github.com/tendant/guided-content/pkg/guidedcontent/config"
)

func newHashKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "hash-key <admin-key>",
		Short:       "Print the ADMIN_KEY_SHA256 value for an admin key",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), api.HashAdminKey(args[0]))
			return nil
		},
	}
}

func newIssueTokenCommand() *cobra.Command {
	var (
		secret  string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:         "issue-token",
		Short:       "Issue an HS256 admin bearer token",
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret is required")
			}
			now := time.Now()
			claims := map[string]interface{}{
				"sub": subject,
				"iat": now.Unix(),
			}
			if ttl > 0 {
				claims["exp"] = now.Add(ttl).Unix()
			}
			token, err := api.IssueToken(secret, claims)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "JWT_SECRET of the server")
	cmd.Flags().StringVar(&subject, "subject", "admin", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime (0 for no expiry)")
	return cmd
}

func newEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "env",
		Short:       "Describe the environment variables read by the server",
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), config.EnvUsage())
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/guided-content/pkg/guidedcontent/config"
)

const skipConfigLoad = "skipConfigLoad"

type commandContext struct {
	envFile    string
	jsonOutput bool

	app *config.App
}

// ensureApp builds the service from the environment on first use.
func (c *commandContext) ensureApp(ctx context.Context) (*config.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", c.envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	app, err := cfg.Build(ctx, cfg.NewLogger(os.Stderr))
	if err != nil {
		return nil, err
	}
	c.app = app
	return app, nil
}

func (c *commandContext) close() {
	if c.app == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.app.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "close backends: %v\n", err)
	}
	c.app = nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigLoad] == "true" {
			return true
		}
	}
	return false
}

func newRootCommand(cctx *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "guidedctl",
		Short:         "Guided content admin CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := cctx.ensureApp(cmd.Context())
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cctx.envFile, "env-file", "", "Load environment variables from this file (default .env if present)")
	rootCmd.PersistentFlags().BoolVar(&cctx.jsonOutput, "json", false, "Output as JSON")

	rootCmd.AddCommand(newKindsCommand(cctx))
	rootCmd.AddCommand(newCategoriesCommand(cctx))
	rootCmd.AddCommand(newContentCommand(cctx))
	rootCmd.AddCommand(newStatsCommand(cctx))
	rootCmd.AddCommand(newHashKeyCommand())
	rootCmd.AddCommand(newIssueTokenCommand())
	rootCmd.AddCommand(newEnvCommand())

	return rootCmd
}

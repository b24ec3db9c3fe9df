// Package cmd implements the salesctl commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"salescycle/internal/app"
	"salescycle/internal/config"
	appctx "salescycle/internal/core/context"
	"salescycle/pkg/logger"
)

var version = "dev"

var (
	configPath string
	actor      string

	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "salesctl",
	Short: "Operate the sales cycle from the command line",
	Long: `salesctl runs sales-cycle operations directly against the database,
with the same rules and activity logging as the API server.

Configuration is read like the server does: config.yaml, then SALES_*
environment variables.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.IsDevelopment()})
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger.SetDefault(log)

		application, err = app.New(cmd.Context(), cfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if application != nil {
			application.Close()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "user recorded in the activity log (default system)")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// operationContext attaches the acting user and a fresh request id to ctx.
func operationContext(ctx context.Context) context.Context {
	ctx = appctx.WithTrace(ctx, appctx.TraceFromSpan(ctx, "", ""))
	if actor == "" {
		return ctx
	}
	return appctx.WithUser(ctx, &appctx.UserContext{UserID: actor})
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

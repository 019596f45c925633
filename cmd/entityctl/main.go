package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"shopify-entity-sync/internal/bootstrap"
	"shopify-entity-sync/internal/config"

	"github.com/spf13/cobra"
)

// app carries what every subcommand needs
type app struct {
	out  io.Writer
	open func(ctx context.Context) (*bootstrap.Components, error)
}

var logLevelFlag string

func main() {
	a := &app{
		out: os.Stdout,
		open: func(ctx context.Context) (*bootstrap.Components, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			level := cfg.LogLevel
			if logLevelFlag != "" {
				level = logLevelFlag
			}
			return bootstrap.Build(ctx, cfg, bootstrap.NewLogger(level))
		},
	}

	rootCmd := newRootCmd(a)
	rootCmd.PersistentFlags().StringVarP(&logLevelFlag, "log-level", "l", "", "Override ENTITY_SYNC_LOG_LEVEL")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "entityctl",
		Short:         "Operator tool for entity usage counters and the Dialogflow sync outbox",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		newRebuildCmd(a),
		newDrainOutboxCmd(a),
		newMigrateProductsCmd(a),
		newShowCmd(a),
	)
	return rootCmd
}

// withComponents opens the service graph for the duration of fn
func (a *app) withComponents(cmd *cobra.Command, fn func(ctx context.Context, c *bootstrap.Components) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

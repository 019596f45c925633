package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shopify-entity-sync/internal/bootstrap"
	"shopify-entity-sync/internal/domain"

	"github.com/spf13/cobra"
)

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRebuildCmd(a *app) *cobra.Command {
	var drain bool
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute every entity usage counter from the stored products",
		Long: `Recompute every entity usage counter from the stored products.

Webhooks handled by a running server are not paused by this command. Stop the
server first, or trigger the rebuild through the server's admin API instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withComponents(cmd, func(ctx context.Context, c *bootstrap.Components) error {
				report, err := c.Reconciler.RebuildCounters(ctx)
				if err != nil {
					return err
				}
				if drain && c.Worker != nil {
					if _, err := c.Worker.Drain(ctx); err != nil {
						return fmt.Errorf("failed to drain outbox: %w", err)
					}
				}
				return a.printJSON(report)
			})
		},
	}
	cmd.Flags().BoolVar(&drain, "drain", true, "Apply the queued Dialogflow changes before exiting")
	return cmd
}

func newDrainOutboxCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drain-outbox",
		Short: "Apply every due Dialogflow sync job once",
		Long: `Apply every due Dialogflow sync job once.

Fails while another process, such as a running server, holds the outbox lease.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withComponents(cmd, func(ctx context.Context, c *bootstrap.Components) error {
				if c.Worker == nil {
					return errors.New("sync mode is inline, there is no outbox to drain")
				}
				done, err := c.Worker.Drain(ctx)
				if err != nil {
					return err
				}
				dead, err := c.Jobs.CountByStatus(ctx, domain.SyncJobDead)
				if err != nil {
					return err
				}
				pending, err := c.Jobs.CountByStatus(ctx, domain.SyncJobPending)
				if err != nil {
					return err
				}
				return a.printJSON(map[string]interface{}{"applied": done, "pending": pending, "dead": dead})
			})
		},
	}
}

func newMigrateProductsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-products",
		Short: "Backfill productType from the legacy product_type field",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withComponents(cmd, func(ctx context.Context, c *bootstrap.Components) error {
				migrator, ok := c.Migrator()
				if !ok {
					return fmt.Errorf("store backend %q has no legacy product fields", c.Config.StoreBackend)
				}
				n, err := migrator.MigrateLegacyFields(ctx)
				if err != nil {
					return err
				}
				return a.printJSON(map[string]int64{"migrated": n})
			})
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ENTITY_TYPE [VALUE]",
		Short: "Print the usage records of an entity type, or one record",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseEntityKind(args[0])
			if err != nil {
				return err
			}
			return a.withComponents(cmd, func(ctx context.Context, c *bootstrap.Components) error {
				if len(args) == 1 {
					records, err := c.UsageService.ListByType(ctx, kind)
					if err != nil {
						return err
					}
					if records == nil {
						records = []*domain.EntityUsage{}
					}
					return a.printJSON(records)
				}

				record, err := c.UsageService.Get(ctx, kind, args[1])
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("%w: %s", domain.ErrNotFound, domain.UsageKey(kind, args[1]))
				}
				return a.printJSON(record)
			})
		},
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jep-dashboard/internal/config"
	"github.com/sells-group/jep-dashboard/internal/db"
	"github.com/sells-group/jep-dashboard/internal/filter"
	"github.com/sells-group/jep-dashboard/internal/resilience"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upsert the (optionally filtered) table into Postgres keyed by JEP number",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		sel := selectionFromFlags(cmd)

		pool, err := db.Connect(ctx, cfg.SyncDatabaseURL())
		if err != nil {
			return err
		}
		defer pool.Close()

		res, err := runSync(ctx, cfg, pool, sel)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d JEPs upserted into %s", res.Upserted, cfg.Sync.Table)
		if res.Skipped > 0 {
			fmt.Fprintf(os.Stdout, " (%d without number skipped)", res.Skipped)
		}
		fmt.Fprintln(os.Stdout)
		return nil
	},
}

func runSync(ctx context.Context, c *config.Config, pool db.Pool, sel filter.Selection) (db.SyncResult, error) {
	_, filtered, err := loadFiltered(ctx, c, sel)
	if err != nil {
		return db.SyncResult{}, err
	}

	if err := db.EnsureJEPTable(ctx, pool, c.Sync.Table); err != nil {
		return db.SyncResult{}, err
	}

	retry := resilience.DefaultRetryConfig()
	retry.ShouldRetry = db.IsRetryable
	retry.OnRetry = resilience.RetryLogger("sync")

	res, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (db.SyncResult, error) {
		return db.SyncJEPs(ctx, pool, c.Sync.Table, filtered)
	})
	if err != nil {
		return res, err
	}

	zap.L().Info("sync complete",
		zap.String("table", c.Sync.Table),
		zap.Int64("upserted", res.Upserted),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func init() {
	addSelectionFlags(syncCmd)
	rootCmd.AddCommand(syncCmd)
}

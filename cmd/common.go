package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sells-group/jep-dashboard/internal/config"
	"github.com/sells-group/jep-dashboard/internal/filter"
	"github.com/sells-group/jep-dashboard/internal/loader"
	"github.com/sells-group/jep-dashboard/internal/model"
	"github.com/sells-group/jep-dashboard/internal/store"
)

// loaderOptions maps the source section onto loader options.
func loaderOptions(c *config.Config) (loader.Options, error) {
	delim, err := c.Delimiter()
	if err != nil {
		return loader.Options{}, err
	}
	return loader.Options{Delimiter: delim, Encoding: c.Source.Encoding, Sheet: c.Source.Sheet}, nil
}

// loadFiltered loads the source once and applies sel.
func loadFiltered(ctx context.Context, c *config.Config, sel filter.Selection) (full, filtered *model.Table, err error) {
	opts, err := loaderOptions(c)
	if err != nil {
		return nil, nil, err
	}
	full, err = loader.Load(ctx, c.Source.Path, opts)
	if err != nil {
		return nil, nil, err
	}
	return full, filter.Apply(full, sel), nil
}

// addSelectionFlags registers --status, --year and --owner.
func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("status", model.MatchAll, "status to keep")
	cmd.Flags().String("year", model.MatchAll, "creation year to keep")
	cmd.Flags().String("owner", model.MatchAll, "owner to keep")
}

func selectionFromFlags(cmd *cobra.Command) filter.Selection {
	status, _ := cmd.Flags().GetString("status")
	year, _ := cmd.Flags().GetString("year")
	owner, _ := cmd.Flags().GetString("owner")
	return filter.Selection{Status: status, Year: year, Owner: owner}.Normalize()
}

func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
}

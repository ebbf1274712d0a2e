package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/jep-dashboard/internal/model"
	"github.com/sells-group/jep-dashboard/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect load and export history",
	Long:  "Commands for listing dataset loads and exports recorded by the dashboard, and pruning old entries.",
}

// -- history loads --

var historyLoadsCmd = &cobra.Command{
	Use:   "loads",
	Short: "List load attempts for the configured source",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		all, _ := cmd.Flags().GetBool("all")

		filter := store.ListFilter{Limit: limit}
		if !all {
			filter.Source = cfg.Source.Path
		}
		loads, err := st.ListLoads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "history: list loads")
		}
		if len(loads) == 0 {
			fmt.Println("No loads recorded.")
			return nil
		}
		formatLoads(os.Stdout, loads)
		return nil
	},
}

// -- history exports --

var historyExportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "List exported files",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		exports, err := st.ListExports(ctx, store.ListFilter{Limit: limit})
		if err != nil {
			return eris.Wrap(err, "history: list exports")
		}
		if len(exports) == 0 {
			fmt.Println("No exports recorded.")
			return nil
		}
		formatExports(os.Stdout, exports)
		return nil
	},
}

// -- history prune --

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete history entries older than a duration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		olderThan, _ := cmd.Flags().GetDuration("older-than")
		if olderThan <= 0 {
			return eris.New("history: --older-than must be positive")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.PruneBefore(ctx, time.Now().Add(-olderThan))
		if err != nil {
			return eris.Wrap(err, "history: prune")
		}
		fmt.Printf("Pruned %d entries.\n", n)
		return nil
	},
}

func formatLoads(out io.Writer, loads []model.LoadEvent) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tROWS\tSIGNATURE\tCREATED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t------\t----\t---------\t-------\t-----")

	for _, ev := range loads {
		errMsg := ev.Error
		if len(errMsg) > 40 {
			errMsg = errMsg[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			truncateID(ev.ID),
			ev.Status,
			ev.Rows,
			truncateID(ev.Signature),
			ev.CreatedAt.Format("2006-01-02 15:04"),
			errMsg,
		)
	}
	_ = w.Flush()
}

func formatExports(out io.Writer, exports []model.ExportEvent) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tFORMAT\tROWS\tSTATUS\tYEAR\tOWNER\tCREATED")
	_, _ = fmt.Fprintln(w, "----\t------\t----\t------\t----\t-----\t-------")

	for _, ev := range exports {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			ev.FileName,
			ev.Format,
			ev.Rows,
			ev.Status,
			ev.Year,
			ev.Owner,
			ev.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	historyLoadsCmd.Flags().Int("limit", 20, "maximum number of loads to show")
	historyLoadsCmd.Flags().Bool("all", false, "include every source, not just the configured one")
	historyExportsCmd.Flags().Int("limit", 20, "maximum number of exports to show")
	historyPruneCmd.Flags().Duration("older-than", 30*24*time.Hour, "age beyond which entries are deleted")

	historyCmd.AddCommand(historyLoadsCmd, historyExportsCmd, historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jep-dashboard/internal/config"
	"github.com/sells-group/jep-dashboard/internal/export"
	"github.com/sells-group/jep-dashboard/internal/filter"
	"github.com/sells-group/jep-dashboard/internal/model"
	"github.com/sells-group/jep-dashboard/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the filtered records to jeps_filtrados_<timestamp>.<ext>",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		sel := selectionFromFlags(cmd)

		format := cfg.Export.Format
		if f, _ := cmd.Flags().GetString("format"); f != "" {
			format = f
		}
		dir := cfg.Export.Dir
		if d, _ := cmd.Flags().GetString("dir"); d != "" {
			dir = d
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		path, rows, err := runExport(ctx, cfg, st, sel, format, dir, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s (%d JEPs)\n", path, rows)
		return nil
	},
}

// runExport writes the filtered view into dir and records the event.
func runExport(ctx context.Context, c *config.Config, st store.Store, sel filter.Selection, format, dir string, now time.Time) (string, int, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return "", 0, err
	}
	opts, err := loaderOptions(c)
	if err != nil {
		return "", 0, err
	}
	_, filtered, err := loadFiltered(ctx, c, sel)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, eris.Wrapf(err, "export: create %s", dir)
	}
	name := export.FileName(now, f)
	path := filepath.Join(dir, name)

	if err := writeExportFile(path, filtered, f, opts.Delimiter); err != nil {
		return "", 0, err
	}

	ev := model.ExportEvent{
		FileName:  name,
		Format:    string(f),
		Status:    sel.Status,
		Year:      sel.Year,
		Owner:     sel.Owner,
		Rows:      filtered.Len(),
		CreatedAt: now.UTC(),
	}
	if err := st.RecordExport(ctx, ev); err != nil {
		zap.L().Warn("export: record history", zap.Error(err))
	}

	zap.L().Info("export written", zap.String("path", path), zap.Int("rows", filtered.Len()))
	return path, filtered.Len(), nil
}

// writeExportFile writes tbl to path, leaving no partial file behind on error.
func writeExportFile(path string, tbl *model.Table, f export.Format, delim rune) error {
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := export.Write(out, tbl, f, delim); err != nil {
		out.Close()     //nolint:errcheck
		os.Remove(path) //nolint:errcheck
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(path) //nolint:errcheck
		return eris.Wrapf(err, "export: close %s", path)
	}
	return nil
}

func init() {
	addSelectionFlags(exportCmd)
	exportCmd.Flags().String("format", "", "csv or xlsx (default from config)")
	exportCmd.Flags().String("dir", "", "output directory (default from config)")
	rootCmd.AddCommand(exportCmd)
}

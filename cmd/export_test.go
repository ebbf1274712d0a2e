//go:build !integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jep-dashboard/internal/export"
	"github.com/sells-group/jep-dashboard/internal/filter"
	"github.com/sells-group/jep-dashboard/internal/loader"
	"github.com/sells-group/jep-dashboard/internal/store"
)

func TestRunExport_CSV(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	st, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	outDir := filepath.Join(t.TempDir(), "out")
	sel := filter.Selection{Status: "Closed"}.Normalize()

	path, rows, err := runExport(ctx, c, st, sel, "csv", outDir, now)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
	assert.Equal(t, filepath.Join(outDir, "jeps_filtrados_20240506_070809.csv"), path)

	tbl, err := loader.Load(ctx, path, loader.Options{Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	for _, rec := range tbl.Records {
		assert.Equal(t, "Closed", rec.Status)
	}

	exports, err := st.ListExports(ctx, store.ListFilter{})
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, "jeps_filtrados_20240506_070809.csv", exports[0].FileName)
	assert.Equal(t, "Closed", exports[0].Status)
	assert.Equal(t, 2, exports[0].Rows)
}

func TestRunExport_XLSX(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	path, rows, err := runExport(ctx, c, store.Discard{}, filter.All, "xlsx", t.TempDir(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	assert.Equal(t, ".xlsx", filepath.Ext(path))

	tbl, err := loader.Load(ctx, path, loader.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())
}

func TestRunExport_BadFormat(t *testing.T) {
	c := testConfig(t)
	_, _, err := runExport(context.Background(), c, store.Discard{}, filter.All, "pdf", t.TempDir(), time.Now())
	require.Error(t, err)
}

func TestWriteExportFile_RemovesPartialFile(t *testing.T) {
	c := testConfig(t)
	tbl, err := loader.Load(context.Background(), c.Source.Path, loader.Options{Delimiter: ';'})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "jeps_filtrados_20240506_070809.csv")
	err = writeExportFile(path, tbl, export.FormatCSV, '"')
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

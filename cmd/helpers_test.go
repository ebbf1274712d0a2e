//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/jep-dashboard/internal/config"
)

const sampleCSV = "Number;Title;Owner;Status;Release;Created;Updated\n" +
	"400;UTF-8 by Default;Naoto Sato;Closed;18;2020-08-17 22:37:06;2022-03-23 15:19:12\n" +
	"401;Deprecate Finalization;REVISAR;Closed;;2021-03-04 10:00:00;2021-03-14 10:00:00\n" +
	"402;Primitive Classes;Ana;Draft;TBD;2021-01-01;2021-02-01\n"

// testConfig writes sampleCSV into a temp dir and returns a config pointing at it.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "datos_jeps.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))
	return &config.Config{
		Source: config.SourceConfig{Path: path, Delimiter: ";", Encoding: "utf-8"},
		Server: config.ServerConfig{Port: 8501},
		Store:  config.StoreConfig{Driver: "none"},
		Fetch:  config.FetchConfig{TimeoutSecs: 5, MaxRetries: 1, UserAgent: "jepdash-test"},
		Export: config.ExportConfig{Dir: dir, Format: "csv"},
		Sync:   config.SyncConfig{Table: "jeps"},
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "datos_jeps.csv", cfg.Source.Path)
	assert.Equal(t, ";", cfg.Source.Delimiter)
	assert.Equal(t, "utf-8", cfg.Source.Encoding)
	assert.True(t, cfg.Source.Watch)
	assert.Equal(t, 8501, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "jepdash.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.InDelta(t, 5.0, cfg.Fetch.RatePerSec, 0.001)
	assert.Equal(t, "csv", cfg.Export.Format)
	assert.Equal(t, "jeps", cfg.Sync.Table)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
source:
  path: /data/jeps.tsv
  delimiter: tab
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/jeps.tsv", cfg.Source.Path)
	assert.Equal(t, "tab", cfg.Source.Delimiter)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, "utf-8", cfg.Source.Encoding)

	d, err := cfg.Delimiter()
	require.NoError(t, err)
	assert.Equal(t, '\t', d)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("JEPDASH_STORE_DRIVER", "postgres")
	t.Setenv("JEPDASH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("JEPDASH_SOURCE_DELIMITER", ",")
	t.Setenv("JEPDASH_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, ",", cfg.Source.Delimiter)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("source: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{";", ';', false},
		{",", ',', false},
		{"|", '|', false},
		{"\t", '\t', false},
		{`\t`, '\t', false},
		{"tab", '\t', false},
		{"", 0, true},
		{";;", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDelimiter(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.Source.Path = "datos_jeps.csv"
	cfg.Source.Delimiter = ";"
	cfg.Server.Port = 8501
	cfg.Store.Driver = "sqlite"
	cfg.Export.Format = "csv"
	cfg.Sync.Table = "jeps"
	return cfg
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))

	cfg.Server.Port = 0
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidate_BadDelimiter(t *testing.T) {
	cfg := validDefaults()
	cfg.Source.Delimiter = "#"
	err := cfg.Validate("summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported delimiter")
}

func TestValidateFetch_RequiresURL(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("fetch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch.url is required")

	cfg.Fetch.URL = "https://example.com/datos_jeps.csv"
	assert.NoError(t, cfg.Validate("fetch"))
}

func TestValidateSync_FallsBackToStoreURL(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")

	cfg.Store.DatabaseURL = "postgres://localhost/jeps"
	require.Error(t, cfg.Validate("sync"))

	cfg.Store.Driver = "postgres"
	assert.NoError(t, cfg.Validate("sync"))
	assert.Equal(t, "postgres://localhost/jeps", cfg.SyncDatabaseURL())

	cfg.Sync.DatabaseURL = "postgres://localhost/mirror"
	assert.Equal(t, "postgres://localhost/mirror", cfg.SyncDatabaseURL())
}

func TestValidateExport_Format(t *testing.T) {
	cfg := validDefaults()
	cfg.Export.Format = "parquet"
	err := cfg.Validate("export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export.format")
}

func TestValidate_StoreDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestInitLoggerConsole(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}

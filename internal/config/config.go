package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Source SourceConfig `yaml:"source" mapstructure:"source"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Export ExportConfig `yaml:"export" mapstructure:"export"`
	Sync   SyncConfig   `yaml:"sync" mapstructure:"sync"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// SourceConfig describes the JEP dataset file.
type SourceConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
	// Delimiter is one of ";", ",", "|", "\t" or "tab".
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
	// Encoding is any WHATWG label, e.g. "utf-8" or "windows-1252".
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
	Sheet    string `yaml:"sheet" mapstructure:"sheet"`
	Watch    bool   `yaml:"watch" mapstructure:"watch"`
}

// ServerConfig configures the dashboard HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// StoreConfig configures the load/export history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FetchConfig configures downloading the dataset.
type FetchConfig struct {
	URL         string  `yaml:"url" mapstructure:"url"`
	Member      string  `yaml:"member" mapstructure:"member"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ExportConfig configures filtered-view exports.
type ExportConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SyncConfig configures mirroring the table into Postgres.
type SyncConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("JEPDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("source.path", "datos_jeps.csv")
	v.SetDefault("source.delimiter", ";")
	v.SetDefault("source.encoding", "utf-8")
	v.SetDefault("source.watch", true)
	v.SetDefault("server.port", 8501)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "jepdash.db")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "jepdash/1.0")
	v.SetDefault("fetch.rate_per_sec", 5)
	v.SetDefault("export.dir", ".")
	v.SetDefault("export.format", "csv")
	v.SetDefault("sync.table", "jeps")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Delimiter resolves the configured source delimiter to a rune.
func (c *Config) Delimiter() (rune, error) {
	return ParseDelimiter(c.Source.Delimiter)
}

// ParseDelimiter accepts ";", ",", "|", a literal tab, "\t" or "tab".
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case ";":
		return ';', nil
	case ",":
		return ',', nil
	case "|":
		return '|', nil
	case "\t", `\t`, "tab", "TAB":
		return '\t', nil
	default:
		return 0, eris.Errorf("config: unsupported delimiter %q (use ';', ',', '|' or tab)", s)
	}
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var problems []string

	if _, err := c.Delimiter(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Source.Path == "" {
		problems = append(problems, "source.path is required")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	case "fetch":
		if c.Fetch.URL == "" {
			problems = append(problems, "fetch.url is required")
		}
	case "sync":
		if c.SyncDatabaseURL() == "" {
			problems = append(problems, "sync.database_url (or store.database_url with store.driver postgres) is required")
		}
		if c.Sync.Table == "" {
			problems = append(problems, "sync.table is required")
		}
	case "export":
		if c.Export.Format != "csv" && c.Export.Format != "xlsx" {
			problems = append(problems, "export.format must be csv or xlsx")
		}
	}

	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		problems = append(problems, "store.driver must be sqlite, postgres or none")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SyncDatabaseURL returns the sync target, falling back to the store URL
// when the history store is Postgres.
func (c *Config) SyncDatabaseURL() string {
	if c.Sync.DatabaseURL != "" {
		return c.Sync.DatabaseURL
	}
	if c.Store.Driver == "postgres" {
		return c.Store.DatabaseURL
	}
	return ""
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Package config loads cfem settings from config.yaml and CFEM_* environment
// variables.
package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/silvarenam40-hue/Cfemrenam2/internal/dataset"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/fetcher"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/metrics"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/processes"
	"github.com/silvarenam40-hue/Cfemrenam2/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Log          LogConfig              `yaml:"log" mapstructure:"log"`
	Load         LoadConfig             `yaml:"load" mapstructure:"load"`
	Cache        CacheConfig            `yaml:"cache" mapstructure:"cache"`
	Quality      metrics.QualityWeights `yaml:"quality" mapstructure:"quality"`
	Processes    ProcessesConfig        `yaml:"processes" mapstructure:"processes"`
	Distribution metrics.Distribution   `yaml:"distribution" mapstructure:"distribution"`
	Store        StoreConfig            `yaml:"store" mapstructure:"store"`
	Server       ServerConfig           `yaml:"server" mapstructure:"server"`
	Report       ReportConfig           `yaml:"report" mapstructure:"report"`
	Download     DownloadConfig         `yaml:"download" mapstructure:"download"`
}

// LoadConfig configures primary dataset ingestion.
type LoadConfig struct {
	Encodings []string `yaml:"encodings" mapstructure:"encodings"`
	Separator string   `yaml:"separator" mapstructure:"separator"`
	// Sheet picks the worksheet of XLSX sources: blank, an index or a name.
	Sheet   string         `yaml:"sheet" mapstructure:"sheet"`
	Columns dataset.Schema `yaml:"columns" mapstructure:"columns"`
}

// Loader converts c into dataset loader settings.
func (c LoadConfig) Loader() dataset.LoaderConfig {
	return dataset.LoaderConfig{
		Schema:    c.Columns,
		Encodings: encodings(c.Encodings),
		Delimiter: separator(c.Separator, ';'),
		Sheet:     fetcher.ParseSheet(c.Sheet),
	}
}

// CacheConfig sizes the in-memory load caches.
type CacheConfig struct {
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
}

// TTL returns the entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// ProcessesConfig configures the processes export.
type ProcessesConfig struct {
	Encodings []string `yaml:"encodings" mapstructure:"encodings"`
	Separator string   `yaml:"separator" mapstructure:"separator"`
	ScanRows  int      `yaml:"scan_rows" mapstructure:"scan_rows"`
	Sheet     string   `yaml:"sheet" mapstructure:"sheet"`
	Phase     string   `yaml:"phase" mapstructure:"phase"`
	// Columns override auto-detected column names when set.
	Columns processes.Columns `yaml:"columns" mapstructure:"columns"`
}

// ParseOptions converts c into processes parse options.
func (c ProcessesConfig) ParseOptions() processes.ParseOptions {
	return processes.ParseOptions{
		Encodings: encodings(c.Encodings),
		Delimiter: separator(c.Separator, ','),
		ScanRows:  c.ScanRows,
		Sheet:     fetcher.ParseSheet(c.Sheet),
	}
}

// StoreConfig configures the upload slot backend.
type StoreConfig struct {
	Driver       string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL  string           `yaml:"database_url" mapstructure:"database_url"`
	SlotTTLHours int              `yaml:"slot_ttl_hours" mapstructure:"slot_ttl_hours"`
	Pool         store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// SlotTTL returns how long uploads are kept. Zero keeps them forever.
func (c StoreConfig) SlotTTL() time.Duration {
	return time.Duration(c.SlotTTLHours) * time.Hour
}

// DownloadConfig configures fetching sources given as http(s) URLs.
type DownloadConfig struct {
	TimeoutSeconds    int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxMB             int     `yaml:"max_mb" mapstructure:"max_mb"`
}

// HTTPOptions converts c into fetcher options.
func (c DownloadConfig) HTTPOptions() fetcher.HTTPOptions {
	return fetcher.HTTPOptions{
		Timeout:           time.Duration(c.TimeoutSeconds) * time.Second,
		MaxRetries:        c.MaxRetries,
		RequestsPerSecond: c.RequestsPerSecond,
		MaxBytes:          int64(c.MaxMB) << 20,
	}
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins   []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	UploadsPerMinute int      `yaml:"uploads_per_minute" mapstructure:"uploads_per_minute"`
	MaxUploadMB      int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// ReportConfig configures diagnosis output.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
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
	v.SetEnvPrefix("CFEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("load.encodings", encodingNames(fetcher.DefaultEncodings))
	v.SetDefault("load.separator", ";")
	v.SetDefault("load.sheet", "")
	schema := dataset.DefaultSchema()
	v.SetDefault("load.columns.year", schema.Year)
	v.SetDefault("load.columns.month", schema.Month)
	v.SetDefault("load.columns.state", schema.State)
	v.SetDefault("load.columns.municipality", schema.Municipality)
	v.SetDefault("load.columns.substance", schema.Substance)
	v.SetDefault("load.columns.payer_type", schema.PayerType)
	v.SetDefault("load.columns.amount", schema.Amount)
	v.SetDefault("load.columns.quantity", schema.Quantity)

	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("cache.max_entries", 16)

	w := metrics.DefaultQualityWeights()
	for name, p := range map[string]metrics.Penalty{
		"missing":    w.Missing,
		"duplicates": w.Duplicates,
		"coverage":   w.Coverage,
		"suspicious": w.Suspicious,
	} {
		v.SetDefault("quality."+name+".factor", p.Factor)
		v.SetDefault("quality."+name+".cap", p.Cap)
	}
	v.SetDefault("quality.sigma", w.Sigma)

	v.SetDefault("processes.encodings", encodingNames(fetcher.DefaultEncodings))
	v.SetDefault("processes.separator", ",")
	v.SetDefault("processes.scan_rows", processes.DefaultScanRows)
	v.SetDefault("processes.sheet", "")
	v.SetDefault("processes.phase", processes.DefaultPhase)
	for _, k := range []string{"municipality", "holder", "substance", "process", "phase"} {
		v.SetDefault("processes.columns."+k, "")
	}

	d := metrics.DefaultDistribution()
	v.SetDefault("distribution.municipality", d.Municipality)
	v.SetDefault("distribution.state", d.State)
	v.SetDefault("distribution.union", d.Union)
	v.SetDefault("distribution.affected", d.Affected)
	v.SetDefault("distribution.recoverable", d.Recoverable)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "cfem.db")
	v.SetDefault("store.slot_ttl_hours", 24*30)
	v.SetDefault("store.pool.max_conns", 4)
	v.SetDefault("store.pool.min_conns", 1)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.uploads_per_minute", 10)
	v.SetDefault("server.max_upload_mb", 200)

	v.SetDefault("report.output_dir", "diagnostico")

	v.SetDefault("download.timeout_seconds", 120)
	v.SetDefault("download.max_retries", 3)
	v.SetDefault("download.requests_per_second", 2)
	v.SetDefault("download.max_mb", 512)
}

// Validate checks the settings a command mode needs. mode is "cli" or
// "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Load.Columns.Year == "" || c.Load.Columns.Amount == "" || c.Load.Columns.Quantity == "" {
		errs = append(errs, "load.columns year, amount and quantity are required")
	}
	if c.Quality.Sigma <= 0 {
		errs = append(errs, "quality.sigma must be > 0")
	}
	for _, p := range []metrics.Penalty{c.Quality.Missing, c.Quality.Duplicates, c.Quality.Coverage, c.Quality.Suspicious} {
		if p.Factor < 0 || p.Cap < 0 {
			errs = append(errs, "quality penalties must be >= 0")
			break
		}
	}
	if c.Cache.MaxEntries < 0 || c.Cache.TTLMinutes < 0 {
		errs = append(errs, "cache.max_entries and cache.ttl_minutes must be >= 0")
	}
	if c.Download.MaxRetries < 1 || c.Download.MaxMB < 1 {
		errs = append(errs, "download.max_retries and download.max_mb must be >= 1")
	}

	switch mode {
	case "cli":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.UploadsPerMinute <= 0 {
			errs = append(errs, "server.uploads_per_minute must be > 0")
		}
		if c.Server.MaxUploadMB <= 0 {
			errs = append(errs, "server.max_upload_mb must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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

func encodings(names []string) []fetcher.Encoding {
	if len(names) == 0 {
		return fetcher.DefaultEncodings
	}
	out := make([]fetcher.Encoding, len(names))
	for i, n := range names {
		out[i] = fetcher.Encoding(strings.ToLower(strings.TrimSpace(n)))
	}
	return out
}

func encodingNames(encs []fetcher.Encoding) []string {
	out := make([]string, len(encs))
	for i, e := range encs {
		out[i] = string(e)
	}
	return out
}

// separator returns the first rune of s; "tab" and `\t` name a tab.
func separator(s string, fallback rune) rune {
	switch s {
	case "":
		return fallback
	case "tab", `\t`:
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

// Package config loads pipec settings.
//
// Values are layered, later sources winning: built-in defaults, an
// optional YAML config file, PIPEC_* environment variables, then explicit
// overrides from command-line flags. Nested keys map to environment
// variables with dots replaced by underscores, so fetch.rate_limit is
// PIPEC_FETCH_RATE_LIMIT.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/roach88/pipec/internal/fetch"
	"github.com/roach88/pipec/internal/include"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PIPEC"

// Config is the complete configuration.
type Config struct {
	Log    LogConfig      `mapstructure:"log"`
	Limits LimitsConfig   `mapstructure:"limits"`
	Fetch  FetchConfig    `mapstructure:"fetch"`
	S3     fetch.S3Config `mapstructure:"s3"`
	Server ServerConfig   `mapstructure:"server"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LimitsConfig bounds include resolution.
type LimitsConfig struct {
	MaxIncludeDepth int `mapstructure:"max_include_depth"`
	MaxIncludes     int `mapstructure:"max_includes"`
}

// FetchConfig configures the include fetchers.
type FetchConfig struct {
	// ProjectsRoot holds checkouts for project includes, laid out as
	// <project>/<ref>/<file>. Empty disables project includes.
	ProjectsRoot string `mapstructure:"projects_root"`

	// CatalogRoot holds templates and CI/CD components. Empty disables
	// template and component includes.
	CatalogRoot string `mapstructure:"catalog_root"`

	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	MaxSize   int64         `mapstructure:"max_size"`
	UserAgent string        `mapstructure:"user_agent"`

	// CachePath is the SQLite fetch cache. Empty disables caching.
	CachePath string        `mapstructure:"cache_path"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// ServerConfig configures the lint API.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CompileTimeout  time.Duration `mapstructure:"compile_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SetDefaults registers every default on v. Every key Load decodes must
// have a default so that environment variables can override it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("limits.max_include_depth", include.DefaultMaxDepth)
	v.SetDefault("limits.max_includes", include.DefaultMaxIncludes)

	v.SetDefault("fetch.projects_root", "")
	v.SetDefault("fetch.catalog_root", "")
	v.SetDefault("fetch.timeout", "10s")
	v.SetDefault("fetch.rate_limit", fetch.DefaultRateLimit)
	v.SetDefault("fetch.max_size", fetch.DefaultMaxSize)
	v.SetDefault("fetch.user_agent", "pipec")
	v.SetDefault("fetch.cache_path", "")
	v.SetDefault("fetch.cache_ttl", "1h")

	v.SetDefault("s3.region", "")
	v.SetDefault("s3.profile", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.force_path_style", false)
	v.SetDefault("s3.max_size", fetch.DefaultMaxSize)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.compile_timeout", "20s")
	v.SetDefault("server.max_body_size", 4<<20)
}

// Load reads the configuration. path names a YAML file and may be empty.
// overrides are applied last, keyed by dotted name.
func Load(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error
	if c.Limits.MaxIncludeDepth <= 0 {
		errs = append(errs, fmt.Errorf("limits.max_include_depth must be positive, got %d", c.Limits.MaxIncludeDepth))
	}
	if c.Limits.MaxIncludes <= 0 {
		errs = append(errs, fmt.Errorf("limits.max_includes must be positive, got %d", c.Limits.MaxIncludes))
	}
	if c.Fetch.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("fetch.max_size must be positive, got %d", c.Fetch.MaxSize))
	}
	if c.Fetch.Timeout < 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout must not be negative, got %s", c.Fetch.Timeout))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// HTTP returns the HTTP fetcher settings.
func (c *Config) HTTP() fetch.HTTPConfig {
	return fetch.HTTPConfig{
		Timeout:   c.Fetch.Timeout,
		RateLimit: c.Fetch.RateLimit,
		MaxSize:   c.Fetch.MaxSize,
		UserAgent: c.Fetch.UserAgent,
	}
}

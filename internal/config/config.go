// Package config loads zone-router configuration from config.yaml and
// ZONEROUTER_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/zone-router/internal/cluster"
	"github.com/sells-group/zone-router/internal/geoerr"
	"github.com/sells-group/zone-router/internal/heatmap"
	"github.com/sells-group/zone-router/internal/resilience"
)

// Config is the top-level configuration.
type Config struct {
	Log     LogConfig      `yaml:"log" mapstructure:"log"`
	Server  ServerConfig   `yaml:"server" mapstructure:"server"`
	Cache   CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Engine  EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Heatmap heatmap.Params `yaml:"heatmap" mapstructure:"heatmap"`
	Cluster ClusterConfig  `yaml:"cluster" mapstructure:"cluster"`
	Sources SourcesConfig  `yaml:"sources" mapstructure:"sources"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port                  int      `yaml:"port" mapstructure:"port"`
	ReadHeaderTimeoutSecs int      `yaml:"read_header_timeout_secs" mapstructure:"read_header_timeout_secs"`
	ShutdownTimeoutSecs   int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
	CORSOrigins           []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// CacheConfig selects and tunes the result cache.
type CacheConfig struct {
	Backend       string `yaml:"backend" mapstructure:"backend"` // memory | redis
	TTLSecs       int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
	MaxEntries    int    `yaml:"max_entries" mapstructure:"max_entries"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// TTL returns the cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSecs) * time.Second
}

// EngineConfig tunes zone building and route scoring.
type EngineConfig struct {
	// BBoxPadding grows the anchor bounding box by this fraction per side.
	BBoxPadding         float64 `yaml:"bbox_padding" mapstructure:"bbox_padding"`
	DurationCeilingSecs int     `yaml:"duration_ceiling_secs" mapstructure:"duration_ceiling_secs"`
	TopK                int     `yaml:"top_k" mapstructure:"top_k"`
	Parallelism         int     `yaml:"parallelism" mapstructure:"parallelism"`
	ProfilesPath        string  `yaml:"profiles_path" mapstructure:"profiles_path"`
	DefaultProfile      string  `yaml:"default_profile" mapstructure:"default_profile"`
}

// ClusterConfig tunes clustering. A zero seed draws a fresh seed per run.
type ClusterConfig struct {
	cluster.Params `yaml:",inline" mapstructure:",squash"`
	Seed           uint64 `yaml:"seed" mapstructure:"seed"`
}

// SourcesConfig configures the upstream collaborators.
type SourcesConfig struct {
	Sensors SensorSourceConfig  `yaml:"sensors" mapstructure:"sensors"`
	Routing RoutingSourceConfig `yaml:"routing" mapstructure:"routing"`
}

// SensorSourceConfig selects where sensor records come from.
type SensorSourceConfig struct {
	Driver      string         `yaml:"driver" mapstructure:"driver"` // http | postgres
	BaseURL     string         `yaml:"base_url" mapstructure:"base_url"`
	DatabaseURL string         `yaml:"database_url" mapstructure:"database_url"`
	Table       string         `yaml:"table" mapstructure:"table"`
	Upstream    UpstreamConfig `yaml:",inline" mapstructure:",squash"`
}

// RoutingSourceConfig points at an OSRM-compatible routing engine.
type RoutingSourceConfig struct {
	BaseURL  string         `yaml:"base_url" mapstructure:"base_url"`
	Profile  string         `yaml:"profile" mapstructure:"profile"`
	Upstream UpstreamConfig `yaml:",inline" mapstructure:",squash"`
}

// UpstreamConfig holds the guards applied to calls to one upstream.
type UpstreamConfig struct {
	TimeoutSecs         int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec          float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst               int     `yaml:"burst" mapstructure:"burst"`
	RetryAttempts       int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs      int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	BreakerThreshold    int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// Policy converts the upstream settings into a resilience policy config.
func (u UpstreamConfig) Policy() resilience.PolicyConfig {
	return resilience.PolicyConfig{
		Timeout:          time.Duration(u.TimeoutSecs) * time.Second,
		RatePerSecond:    u.RatePerSec,
		Burst:            u.Burst,
		MaxAttempts:      u.RetryAttempts,
		InitialBackoff:   time.Duration(u.RetryBackoffMs) * time.Millisecond,
		FailureThreshold: u.BreakerThreshold,
		Cooldown:         time.Duration(u.BreakerCooldownSecs) * time.Second,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_header_timeout_secs", 10)
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl_secs", 300)
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.key_prefix", "zonerouter:")

	v.SetDefault("engine.bbox_padding", 0.1)
	v.SetDefault("engine.duration_ceiling_secs", 7200)
	v.SetDefault("engine.top_k", 3)
	v.SetDefault("engine.parallelism", 4)
	v.SetDefault("engine.default_profile", "healthiest")

	v.SetDefault("heatmap.spacing_meters", heatmap.DefaultSpacingMeters)
	v.SetDefault("heatmap.power", heatmap.DefaultPower)
	v.SetDefault("heatmap.radius_meters", heatmap.DefaultRadiusMeters)
	v.SetDefault("heatmap.max_grid_points", heatmap.DefaultMaxGridPoints)

	v.SetDefault("cluster.k", 0)
	v.SetDefault("cluster.min_members", cluster.DefaultMinMembers)
	v.SetDefault("cluster.seed", 0)

	v.SetDefault("sources.sensors.driver", "http")
	v.SetDefault("sources.sensors.base_url", "http://localhost:1026/v2")
	v.SetDefault("sources.sensors.table", "sensors.latest_readings")
	v.SetDefault("sources.sensors.timeout_secs", 10)
	v.SetDefault("sources.sensors.rate_per_sec", 10)
	v.SetDefault("sources.sensors.burst", 10)
	v.SetDefault("sources.sensors.retry_attempts", 3)
	v.SetDefault("sources.sensors.retry_backoff_ms", 200)
	v.SetDefault("sources.sensors.breaker_threshold", 5)
	v.SetDefault("sources.sensors.breaker_cooldown_secs", 30)

	v.SetDefault("sources.routing.base_url", "http://localhost:5000")
	v.SetDefault("sources.routing.profile", "driving")
	v.SetDefault("sources.routing.timeout_secs", 15)
	v.SetDefault("sources.routing.rate_per_sec", 5)
	v.SetDefault("sources.routing.burst", 5)
	v.SetDefault("sources.routing.retry_attempts", 2)
	v.SetDefault("sources.routing.retry_backoff_ms", 300)
	v.SetDefault("sources.routing.breaker_threshold", 5)
	v.SetDefault("sources.routing.breaker_cooldown_secs", 30)
}

// Load reads configuration from ./config.yaml (if present) and environment.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration from path and environment. An empty path
// falls back to an optional ./config.yaml; an explicit path must exist.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("ZONEROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate range-checks the configuration for the given mode ("serve" or
// "cli"). Every problem is reported at once as a ValidationError.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
	case "cli":
	default:
		return geoerr.Validationf("unknown mode %q", mode)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, "log.format must be json or console")
	}

	switch c.Cache.Backend {
	case "memory":
		if c.Cache.MaxEntries <= 0 {
			errs = append(errs, "cache.max_entries must be > 0")
		}
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, "cache.redis_addr is required for the redis backend")
		}
	default:
		errs = append(errs, "cache.backend must be memory or redis")
	}
	if c.Cache.TTLSecs <= 0 {
		errs = append(errs, "cache.ttl_secs must be > 0")
	}

	if c.Engine.BBoxPadding < 0 || c.Engine.BBoxPadding > 1 {
		errs = append(errs, "engine.bbox_padding must be between 0 and 1")
	}
	if c.Engine.DurationCeilingSecs <= 0 {
		errs = append(errs, "engine.duration_ceiling_secs must be > 0")
	}
	if c.Engine.TopK < 1 {
		errs = append(errs, "engine.top_k must be >= 1")
	}
	if c.Engine.Parallelism < 1 || c.Engine.Parallelism > 64 {
		errs = append(errs, "engine.parallelism must be between 1 and 64")
	}
	if c.Engine.DefaultProfile == "" {
		errs = append(errs, "engine.default_profile is required")
	}

	errs = appendProblems(errs, "heatmap", c.Heatmap.Validate())
	errs = appendProblems(errs, "cluster", c.Cluster.Params.Validate())

	s := c.Sources.Sensors
	switch s.Driver {
	case "http":
		if s.BaseURL == "" {
			errs = append(errs, "sources.sensors.base_url is required for the http driver")
		}
	case "postgres":
		if s.DatabaseURL == "" {
			errs = append(errs, "sources.sensors.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, "sources.sensors.driver must be http or postgres")
	}
	errs = appendUpstream(errs, "sources.sensors", s.Upstream)
	errs = appendUpstream(errs, "sources.routing", c.Sources.Routing.Upstream)

	if len(errs) > 0 {
		return geoerr.NewValidationError(errs...)
	}
	return nil
}

func appendProblems(errs []string, section string, err error) []string {
	if err == nil {
		return errs
	}
	var ve *geoerr.ValidationError
	if eris.As(err, &ve) {
		for _, p := range ve.Problems {
			errs = append(errs, section+": "+p)
		}
		return errs
	}
	return append(errs, fmt.Sprintf("%s: %v", section, err))
}

func appendUpstream(errs []string, prefix string, u UpstreamConfig) []string {
	if u.TimeoutSecs < 0 {
		errs = append(errs, prefix+".timeout_secs must be >= 0")
	}
	if u.RatePerSec < 0 {
		errs = append(errs, prefix+".rate_per_sec must be >= 0")
	}
	if u.RetryAttempts < 0 || u.RetryAttempts > 10 {
		errs = append(errs, prefix+".retry_attempts must be between 0 and 10")
	}
	return errs
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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/zone-router/internal/geoerr"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL())
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, 7200, cfg.Engine.DurationCeilingSecs)
	assert.Equal(t, 3, cfg.Engine.TopK)
	assert.Equal(t, "healthiest", cfg.Engine.DefaultProfile)
	assert.InDelta(t, 0.1, cfg.Engine.BBoxPadding, 1e-9)
	assert.InDelta(t, 100, cfg.Heatmap.SpacingMeters, 1e-9)
	assert.InDelta(t, 2, cfg.Heatmap.Power, 1e-9)
	assert.InDelta(t, 500, cfg.Heatmap.RadiusMeters, 1e-9)
	assert.Equal(t, 0, cfg.Cluster.K)
	assert.Equal(t, 2, cfg.Cluster.MinMembers)
	assert.Zero(t, cfg.Cluster.Seed)
	assert.Equal(t, "http", cfg.Sources.Sensors.Driver)
	assert.Equal(t, 3, cfg.Sources.Sensors.Upstream.RetryAttempts)
	assert.Equal(t, "driving", cfg.Sources.Routing.Profile)

	assert.NoError(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("cli"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
server:
  port: 9090
cache:
  backend: redis
  redis_addr: cache:6379
heatmap:
  spacing_meters: 250
cluster:
  k: 6
  seed: 42
sources:
  sensors:
    driver: postgres
    database_url: postgres://localhost/sensors
    retry_attempts: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "cache:6379", cfg.Cache.RedisAddr)
	assert.InDelta(t, 250, cfg.Heatmap.SpacingMeters, 1e-9)
	assert.Equal(t, 6, cfg.Cluster.K)
	assert.Equal(t, uint64(42), cfg.Cluster.Seed)
	assert.Equal(t, "postgres", cfg.Sources.Sensors.Driver)
	assert.Equal(t, 5, cfg.Sources.Sensors.Upstream.RetryAttempts)
	// Defaults still apply for unset values
	assert.InDelta(t, 2, cfg.Heatmap.Power, 1e-9)
	assert.Equal(t, 10, cfg.Sources.Sensors.Upstream.TimeoutSecs)

	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
engine:
  top_k: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("ZONEROUTER_LOG_LEVEL", "warn")
	t.Setenv("ZONEROUTER_ENGINE_TOP_K", "2")
	t.Setenv("ZONEROUTER_SOURCES_ROUTING_BASE_URL", "http://osrm:5000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 2, cfg.Engine.TopK)
	assert.Equal(t, "http://osrm:5000", cfg.Sources.Routing.BaseURL)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0o644))

	_, err := Load()
	assert.ErrorContains(t, err, "config: read file")
}

func TestLoadFromExplicitPath(t *testing.T) {
	dir := chdirTemp(t)
	// an explicit file wins over ./config.yaml
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 7000\n"), 0o644))
	path := filepath.Join(t.TempDir(), "zones.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9191\nengine:\n  top_k: 4\n"), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Engine.TopK)
	assert.Equal(t, "info", cfg.Log.Level)

	_, err = LoadFrom(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "config: read file")
}

func validDefaults(t *testing.T) *Config {
	t.Helper()
	chdirTemp(t)
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestValidate_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port must be between 1 and 65535"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format must be json or console"},
		{"cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend must be memory or redis"},
		{"redis addr", func(c *Config) { c.Cache.Backend = "redis"; c.Cache.RedisAddr = "" }, "cache.redis_addr is required"},
		{"ttl", func(c *Config) { c.Cache.TTLSecs = 0 }, "cache.ttl_secs must be > 0"},
		{"max entries", func(c *Config) { c.Cache.MaxEntries = 0 }, "cache.max_entries must be > 0"},
		{"padding", func(c *Config) { c.Engine.BBoxPadding = 2 }, "engine.bbox_padding"},
		{"ceiling", func(c *Config) { c.Engine.DurationCeilingSecs = 0 }, "engine.duration_ceiling_secs"},
		{"top k", func(c *Config) { c.Engine.TopK = 0 }, "engine.top_k must be >= 1"},
		{"parallelism", func(c *Config) { c.Engine.Parallelism = 0 }, "engine.parallelism"},
		{"profile", func(c *Config) { c.Engine.DefaultProfile = "" }, "engine.default_profile is required"},
		{"spacing", func(c *Config) { c.Heatmap.SpacingMeters = 10 }, "heatmap: grid spacing must be between 50 and 500"},
		{"power", func(c *Config) { c.Heatmap.Power = 6 }, "heatmap: power must be between 1 and 5"},
		{"radius", func(c *Config) { c.Heatmap.RadiusMeters = 5000 }, "heatmap: radius must be between 100 and 2000"},
		{"k", func(c *Config) { c.Cluster.K = 3 }, "cluster: k must be between 5 and 8"},
		{"min members", func(c *Config) { c.Cluster.MinMembers = 0 }, "cluster: min members must be >= 1"},
		{"driver", func(c *Config) { c.Sources.Sensors.Driver = "mqtt" }, "sources.sensors.driver must be http or postgres"},
		{"database url", func(c *Config) { c.Sources.Sensors.Driver = "postgres" }, "sources.sensors.database_url is required"},
		{"base url", func(c *Config) { c.Sources.Sensors.BaseURL = "" }, "sources.sensors.base_url is required"},
		{"retries", func(c *Config) { c.Sources.Routing.Upstream.RetryAttempts = 50 }, "sources.routing.retry_attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults(t)
			tt.mutate(cfg)
			err := cfg.Validate("serve")
			require.Error(t, err)
			assert.True(t, geoerr.IsValidation(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Engine.TopK = 0
	cfg.Heatmap.Power = 0

	err := cfg.Validate("cli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.top_k")
	assert.Contains(t, err.Error(), "heatmap: power")
}

func TestValidate_CLIIgnoresPort(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Server.Port = 0
	assert.NoError(t, cfg.Validate("cli"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults(t)
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestUpstreamPolicy(t *testing.T) {
	u := UpstreamConfig{TimeoutSecs: 3, RatePerSec: 2.5, Burst: 4, RetryAttempts: 2, RetryBackoffMs: 150, BreakerThreshold: 7, BreakerCooldownSecs: 9}
	p := u.Policy()
	assert.Equal(t, 3*time.Second, p.Timeout)
	assert.InDelta(t, 2.5, p.RatePerSecond, 1e-9)
	assert.Equal(t, 4, p.Burst)
	assert.Equal(t, 2, p.MaxAttempts)
	assert.Equal(t, 150*time.Millisecond, p.InitialBackoff)
	assert.Equal(t, 7, p.FailureThreshold)
	assert.Equal(t, 9*time.Second, p.Cooldown)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}

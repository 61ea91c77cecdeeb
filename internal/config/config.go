// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds the resolved runtime configuration of the daemon.
type AppConfig struct {
	// Listen is the bind address of the public/admin HTTP server.
	Listen string `yaml:"listen"`
	// MetricsListen is the bind address of the metrics/health server.
	// Empty disables the separate listener; /metrics stays on Listen.
	MetricsListen string `yaml:"metricsListen"`
	// MetricsEnabled turns the separate metrics listener off entirely
	// without clearing its address.
	MetricsEnabled bool `yaml:"metricsEnabled"`

	// DBPath is the SQLite database file path.
	DBPath string `yaml:"dbPath"`

	// AdminToken protects the /api/* admin routes. Empty disables them.
	AdminToken string `yaml:"adminToken"`

	// RedisAddr enables the Redis-backed test lock when non-empty.
	// Without it the lock is process-local.
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	// ProbeTimeout bounds a single channel connectivity check.
	ProbeTimeout time.Duration `yaml:"probeTimeout"`
	// TestWorkers is the batch test concurrency.
	TestWorkers int `yaml:"testWorkers"`

	// PlaylistRateLimit caps requests per minute per client IP on the
	// public playlist endpoints. Zero disables the limiter.
	PlaylistRateLimit int `yaml:"playlistRateLimit"`

	// LogLevel is a zerolog level string (debug, info, warn, error).
	LogLevel string `yaml:"logLevel"`

	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Listen:            ":8080",
		MetricsListen:     ":9090",
		MetricsEnabled:    true,
		DBPath:            "chandir.db",
		ProbeTimeout:      10 * time.Second,
		TestWorkers:       8,
		PlaylistRateLimit: 120,
		LogLevel:          "info",
		ShutdownTimeout:   15 * time.Second,
	}
}

// Load resolves the configuration. Precedence: environment variables
// override the YAML file at path (CHANDIR_CONFIG if path is empty),
// which overrides the defaults. A missing file is not an error unless
// it was explicitly requested.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("CHANDIR_CONFIG")
		explicit = path != ""
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			if explicit || !os.IsNotExist(err) {
				return AppConfig{}, err
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied path
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	cfg.Listen = ParseString("CHANDIR_LISTEN", cfg.Listen)
	cfg.MetricsListen = ParseString("CHANDIR_METRICS_LISTEN", cfg.MetricsListen)
	cfg.MetricsEnabled = ParseBool("CHANDIR_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.DBPath = ParseString("CHANDIR_DB_PATH", cfg.DBPath)
	cfg.AdminToken = ParseString("CHANDIR_ADMIN_TOKEN", cfg.AdminToken)
	cfg.RedisAddr = ParseString("CHANDIR_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = ParseString("CHANDIR_REDIS_PASSWORD", cfg.RedisPassword)
	cfg.ProbeTimeout = ParseDuration("CHANDIR_PROBE_TIMEOUT", cfg.ProbeTimeout)
	cfg.TestWorkers = ParseInt("CHANDIR_TEST_WORKERS", cfg.TestWorkers)
	cfg.PlaylistRateLimit = ParseInt("CHANDIR_PLAYLIST_RATE_LIMIT", cfg.PlaylistRateLimit)
	cfg.LogLevel = ParseString("CHANDIR_LOG_LEVEL", cfg.LogLevel)
	cfg.ShutdownTimeout = ParseDuration("CHANDIR_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
}

// Validate rejects configurations the daemon cannot run with.
func (c AppConfig) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: listen address must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("config: db path must not be empty")
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("config: probe timeout must be positive, got %s", c.ProbeTimeout)
	}
	if c.TestWorkers < 1 {
		return fmt.Errorf("config: test workers must be >= 1, got %d", c.TestWorkers)
	}
	if c.PlaylistRateLimit < 0 {
		return fmt.Errorf("config: playlist rate limit must be >= 0, got %d", c.PlaylistRateLimit)
	}
	return nil
}

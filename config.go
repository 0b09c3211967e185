package inproc

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable LoadConfig reads.
const EnvPrefix = "INPROC_"

// Config is the file and environment form of the router options.
type Config struct {
	Scheme           string          `yaml:"scheme" env:"SCHEME"`
	StreamWindow     int             `yaml:"stream_window" env:"STREAM_WINDOW"`
	Heartbeat        time.Duration   `yaml:"heartbeat" env:"HEARTBEAT"`
	LogLevel         string          `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat        string          `yaml:"log_format" env:"LOG_FORMAT"`
	RateLimit        RateLimitValues `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	MetricsNamespace string          `yaml:"metrics_namespace" env:"METRICS_NAMESPACE"`
}

// RateLimitValues is the default per-route token bucket. A zero Rate turns
// rate limiting off.
type RateLimitValues struct {
	Rate  float64 `yaml:"rate" env:"RATE"`
	Burst int     `yaml:"burst" env:"BURST"`
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		Scheme:           DefaultScheme,
		StreamWindow:     DefaultStreamWindow,
		Heartbeat:        15 * time.Second,
		LogLevel:         "info",
		LogFormat:        "text",
		MetricsNamespace: DefaultMetricsNamespace,
	}
}

// LoadConfig builds a Config from, in increasing precedence: defaults, the
// YAML file at path (skipped when path is empty), variables from the .env
// files (".env" when none are given, missing files ignored), and INPROC_*
// environment variables. The result is validated.
func LoadConfig(path string, envFiles ...string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field as a *ConfigError.
func (c Config) Validate() error {
	invalid := func(detail string) error {
		return &ConfigError{Op: "config", Detail: detail}
	}
	switch {
	case !validScheme(c.Scheme) || c.Scheme == "http" || c.Scheme == "https":
		return invalid(fmt.Sprintf("invalid scheme %q", c.Scheme))
	case c.StreamWindow < 1:
		return invalid(fmt.Sprintf("stream_window must be at least 1, got %d", c.StreamWindow))
	case c.Heartbeat < 0:
		return invalid("heartbeat must not be negative")
	case c.LogFormat != "text" && c.LogFormat != "json":
		return invalid(fmt.Sprintf("log_format must be text or json, got %q", c.LogFormat))
	case c.RateLimit.Rate < 0 || c.RateLimit.Burst < 0:
		return invalid("rate_limit values must not be negative")
	}
	if _, err := c.level(); err != nil {
		return invalid(err.Error())
	}
	return nil
}

func (c Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// Options turns the config into router options. Metrics are registered with
// reg when it is non-nil.
func (c Config) Options(reg prometheus.Registerer) []RouterOption {
	opts := []RouterOption{
		WithStreamWindow(c.StreamWindow),
		WithHeartbeat(c.Heartbeat),
	}
	if c.RateLimit.Rate > 0 {
		opts = append(opts, WithDefaultRateLimit(RateLimitConfig{
			Rate:  c.RateLimit.Rate,
			Burst: c.RateLimit.Burst,
		}))
	}
	if reg != nil {
		opts = append(opts, WithMetrics(reg, c.MetricsNamespace))
	}
	return opts
}

// NewLogger returns a slog logger writing to w in the configured format and
// level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewRouter validates c and returns a router with the configured scheme
// registered. extra options are applied after the configured ones.
func (c Config) NewRouter(logger *slog.Logger, reg prometheus.Registerer, extra ...RouterOption) (*Router, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	opts := append(c.Options(reg), WithLogger(logger))
	r := New(append(opts, extra...)...)
	if err := r.RegisterScheme(c.Scheme); err != nil {
		//nolint:errcheck // first Close never fails
		r.Close()
		return nil, err
	}
	return r, nil
}

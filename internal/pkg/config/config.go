package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. Nested keys are separated
// by a double underscore: RUM_SESSION__MAX_DURATION -> session.max_duration.
const EnvPrefix = "RUM_"

type Config struct {
	Application ApplicationConfig `koanf:"application"`
	Sampling    SamplingConfig    `koanf:"sampling"`
	Session     SessionConfig     `koanf:"session"`
	Actions     ActionsConfig     `koanf:"actions"`
	Tracking    TrackingConfig    `koanf:"tracking"`
	Views       ViewsConfig       `koanf:"views"`
	Metrics     MetricsConfig     `koanf:"metrics"`
	Queue       QueueConfig       `koanf:"queue"`
	Pipeline    PipelineConfig    `koanf:"pipeline"`
	Storage     StorageConfig     `koanf:"storage"`
	Server      ServerConfig      `koanf:"server"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

type ApplicationConfig struct {
	ID      string `koanf:"id"`
	Service string `koanf:"service"`
	Version string `koanf:"version"`
	Source  string `koanf:"source"`
}

type SamplingConfig struct {
	SessionSampleRate float64 `koanf:"session_sample_rate"` // 0-100
	Deterministic     bool    `koanf:"deterministic"`       // hash the session id instead of drawing randomly
}

type SessionConfig struct {
	MaxDuration       time.Duration `koanf:"max_duration"`
	InactivityTimeout time.Duration `koanf:"inactivity_timeout"`
}

type ActionsConfig struct {
	DiscreteTimeout       time.Duration `koanf:"discrete_timeout"`
	ContinuousMaxDuration time.Duration `koanf:"continuous_max_duration"`
}

type TrackingConfig struct {
	BackgroundEvents bool `koanf:"background_events"`
	Frustrations     bool `koanf:"frustrations"`
}

type ViewsConfig struct {
	// MinRateDuration is the minimum time spent for slow frame and freeze
	// rates to be reported on the final view update.
	MinRateDuration time.Duration `koanf:"min_rate_duration"`
}

type MetricsConfig struct {
	TNSInitialResourceThreshold time.Duration `koanf:"tns_initial_resource_threshold"`
	INVMaxDuration              time.Duration `koanf:"inv_max_duration"`
}

type QueueConfig struct {
	Size int `koanf:"size"`
}

// PipelineConfig configures the built-in event mapper stages.
type PipelineConfig struct {
	DropEventTypes   []string `koanf:"drop_event_types"`
	RedactAttributes []string `koanf:"redact_attributes"`
	Async            bool     `koanf:"async"`       // publish through a bounded queue
	AsyncBuffer      int      `koanf:"async_buffer"` // queue size of the async publisher
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	MaxBodyBytes   int64         `koanf:"max_body_bytes"`
	// ClientTokens restricts the intake to callers presenting one of these
	// tokens. Empty disables the check.
	ClientTokens []string `koanf:"client_tokens"`
}

type TelemetryConfig struct {
	// TraceOutput is where spans are exported: "" disables tracing, "stdout"
	// writes to standard output, anything else is a file path.
	TraceOutput string `koanf:"trace_output"`
	LogLevel    string `koanf:"log_level"`
}

var defaults = map[string]any{
	"application.source":                     "ios",
	"sampling.session_sample_rate":           100.0,
	"session.max_duration":                   "4h",
	"session.inactivity_timeout":             "15m",
	"actions.discrete_timeout":               "100ms",
	"actions.continuous_max_duration":        "10s",
	"tracking.frustrations":                  true,
	"views.min_rate_duration":                "1s",
	"metrics.tns_initial_resource_threshold": "100ms",
	"metrics.inv_max_duration":               "3s",
	"queue.size":                             1024,
	"pipeline.async_buffer":                  256,
	"storage.type":                           "memory",
	"storage.sqlite.path":                    "./data/rum.db",
	"server.port":                            8126,
	"server.request_timeout":                 "30s",
	"server.max_body_bytes":                  1 << 20,
	"telemetry.log_level":                    "info",
}

// Load reads configuration from the YAML file at path (optional, skipped when
// empty or missing), then applies RUM_ environment overrides and defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Sampling.SessionSampleRate < 0 || c.Sampling.SessionSampleRate > 100 {
		return fmt.Errorf("sampling.session_sample_rate must be within [0, 100], got %v", c.Sampling.SessionSampleRate)
	}
	if c.Session.MaxDuration <= 0 || c.Session.InactivityTimeout <= 0 {
		return fmt.Errorf("session durations must be positive")
	}
	if c.Actions.DiscreteTimeout <= 0 || c.Actions.ContinuousMaxDuration <= 0 {
		return fmt.Errorf("action durations must be positive")
	}
	switch c.Storage.Type {
	case "sqlite", "memory", "none":
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	return nil
}

package config

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/objlink/objlink/errors"
)

// Config is the host-side configuration: how to launch the worker, how
// patient calls are, and where observability goes.
type Config struct {
	Worker  WorkerConfig  `yaml:"worker"`
	Call    CallConfig    `yaml:"call"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// WorkerConfig describes the worker process.
type WorkerConfig struct {
	Command       []string      `yaml:"command"`
	Dir           string        `yaml:"dir"`
	Env           []string      `yaml:"env"`
	ShutdownGrace time.Duration `yaml:"shutdownGrace"`
}

// CallConfig bounds the command/reply exchange.
type CallConfig struct {
	// Timeout is the per-call reply deadline. Zero waits forever.
	Timeout time.Duration `yaml:"timeout"`

	// DrainWindow bounds how long a failing session collects the worker's
	// final diagnostic output.
	DrainWindow time.Duration `yaml:"drainWindow"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Worker: WorkerConfig{
			ShutdownGrace: 3 * time.Second,
		},
		Call: CallConfig{
			DrainWindow: 200 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Listen: ":9480",
		},
	}
}

// Load reads a YAML file, merges it over the defaults, applies environment
// overrides, and validates the result. An empty path skips the file and
// yields defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.New(errors.PhaseLaunch, errors.KindInvalidData).
				Detail("read config %s", path).
				Cause(err).
				Build()
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, errors.New(errors.PhaseLaunch, errors.KindInvalidData).
				Detail("parse config %s", path).
				Cause(err).
				Build()
		}
		merge(&cfg, parsed)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func merge(dst *Config, src Config) {
	if src.Worker.Command != nil {
		dst.Worker.Command = src.Worker.Command
	}
	if src.Worker.Dir != "" {
		dst.Worker.Dir = src.Worker.Dir
	}
	if src.Worker.Env != nil {
		dst.Worker.Env = src.Worker.Env
	}
	if src.Worker.ShutdownGrace != 0 {
		dst.Worker.ShutdownGrace = src.Worker.ShutdownGrace
	}
	if src.Call.Timeout != 0 {
		dst.Call.Timeout = src.Call.Timeout
	}
	if src.Call.DrainWindow != 0 {
		dst.Call.DrainWindow = src.Call.DrainWindow
	}
	if src.Log.Level != "" {
		dst.Log.Level = src.Log.Level
	}
	if src.Metrics.Enabled {
		dst.Metrics.Enabled = true
	}
	if src.Metrics.Listen != "" {
		dst.Metrics.Listen = src.Metrics.Listen
	}
}

func applyEnvOverrides(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv("OBJLINK_WORKER_COMMAND")); raw != "" {
		cfg.Worker.Command = strings.Fields(raw)
	}
	if raw := strings.TrimSpace(os.Getenv("OBJLINK_CALL_TIMEOUT")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.Call.Timeout = d
		}
	}
	if raw := strings.TrimSpace(os.Getenv("OBJLINK_LOG_LEVEL")); raw != "" {
		cfg.Log.Level = raw
	}
	if raw := strings.TrimSpace(os.Getenv("OBJLINK_METRICS_LISTEN")); raw != "" {
		cfg.Metrics.Listen = raw
		cfg.Metrics.Enabled = true
	}
}

// Validate rejects configurations that cannot work.
func (c Config) Validate() error {
	if len(c.Worker.Command) == 0 {
		return errors.New(errors.PhaseLaunch, errors.KindInvalidData).
			Detail("worker.command is required").
			Build()
	}
	if c.Call.Timeout < 0 {
		return errors.New(errors.PhaseLaunch, errors.KindInvalidData).
			Detail("call.timeout must not be negative").
			Build()
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return errors.New(errors.PhaseLaunch, errors.KindInvalidData).
			Detail("log.level %q is not a level", c.Log.Level).
			Cause(err).
			Build()
	}
	return nil
}

// BuildLogger constructs a zap logger at the configured level.
func (c Config) BuildLogger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	return zc.Build()
}

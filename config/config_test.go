package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "objlink.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
worker:
  command: ["php", "server.php"]
call:
  timeout: 5s
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Worker.Command) != 2 || cfg.Worker.Command[0] != "php" {
		t.Errorf("command = %v", cfg.Worker.Command)
	}
	if cfg.Call.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Call.Timeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("level = %q", cfg.Log.Level)
	}
	// Untouched fields keep their defaults.
	if cfg.Worker.ShutdownGrace != 3*time.Second {
		t.Errorf("shutdownGrace = %v", cfg.Worker.ShutdownGrace)
	}
	if cfg.Call.DrainWindow != 200*time.Millisecond {
		t.Errorf("drainWindow = %v", cfg.Call.DrainWindow)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
worker:
  command: ["php", "server.php"]
`)
	t.Setenv("OBJLINK_WORKER_COMMAND", "python3 worker.py")
	t.Setenv("OBJLINK_CALL_TIMEOUT", "750ms")
	t.Setenv("OBJLINK_LOG_LEVEL", "warn")
	t.Setenv("OBJLINK_METRICS_LISTEN", ":9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Worker.Command) != 2 || cfg.Worker.Command[0] != "python3" {
		t.Errorf("command = %v", cfg.Worker.Command)
	}
	if cfg.Call.Timeout != 750*time.Millisecond {
		t.Errorf("timeout = %v", cfg.Call.Timeout)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("level = %q", cfg.Log.Level)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != ":9999" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
}

func TestLoad_RequiresWorkerCommand(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	if _, err := Load(path); err == nil {
		t.Fatal("config without a worker command must be rejected")
	}
}

func TestLoad_RejectsBadLevel(t *testing.T) {
	path := writeConfig(t, `
worker:
  command: ["php"]
log:
  level: shouting
`)
	if _, err := Load(path); err == nil {
		t.Fatal("unknown log level must be rejected")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing file must be reported")
	}
}

func TestBuildLogger(t *testing.T) {
	cfg := Default()
	cfg.Worker.Command = []string{"php"}
	cfg.Log.Level = "error"

	logger, err := cfg.BuildLogger()
	if err != nil {
		t.Fatal(err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info must be disabled at error level")
	}
}

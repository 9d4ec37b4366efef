// Package config parses the worker's process-level operational
// configuration: logging, metrics, the optional version handshake string,
// and the sampler poll intervals. None of this is part of the wire
// protocol (SPEC_FULL.md §6) -- it only shapes how the worker observes
// itself.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds the worker's operational knobs, grounded on the teacher's
// appConfig/parseFlags/validate/applyEnvOverrides idiom, trimmed to what a
// preparation worker actually needs.
type Config struct {
	SocketPath      string
	LogFormat       string
	LogLevel        string
	MetricsAddr     string
	ExpectedVersion string
	CPUPollInterval time.Duration
	MemPollInterval time.Duration
}

// Parse reads flags (and the socket path positional argument) from args,
// applies PREPARE_WORKER_* environment overrides for anything not
// explicitly set on the command line, and validates the result.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("prepare-worker", flag.ContinueOnError)
	logFormat := fs.String("log-format", "text", "Log format: text|json")
	logLevel := fs.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := fs.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	expectedVersion := fs.String("expected-version", "", "Version string to exchange with the host at connection start; empty skips the handshake")
	cpuPoll := fs.Duration("cpu-poll-interval", 100*time.Millisecond, "CPU budget polling interval")
	memPoll := fs.Duration("mem-poll-interval", 100*time.Millisecond, "Memory sampler polling interval")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	setFlags := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg := &Config{
		LogFormat:       *logFormat,
		LogLevel:        *logLevel,
		MetricsAddr:     *metricsAddr,
		ExpectedVersion: *expectedVersion,
		CPUPollInterval: *cpuPoll,
		MemPollInterval: *memPoll,
	}

	if rest := fs.Args(); len(rest) > 0 {
		cfg.SocketPath = rest[0]
	}

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate performs semantic validation only; it never touches the
// filesystem or network.
func (c *Config) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if c.SocketPath == "" {
		return errors.New("missing socket path argument")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.LogFormat)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.LogLevel)
	}
	if c.CPUPollInterval <= 0 {
		return fmt.Errorf("cpu-poll-interval must be > 0")
	}
	if c.MemPollInterval <= 0 {
		return fmt.Errorf("mem-poll-interval must be > 0")
	}
	return nil
}

// SlogLevel converts LogLevel to a log/slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// applyEnvOverrides maps PREPARE_WORKER_* environment variables onto cfg,
// unless the corresponding flag was explicitly set on the command line
// (flag wins over env, same precedence as the teacher's
// applyEnvOverrides).
func applyEnvOverrides(c *Config, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["log-format"]; !ok {
		if v, ok := get("PREPARE_WORKER_LOG_FORMAT"); ok && v != "" {
			c.LogFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("PREPARE_WORKER_LOG_LEVEL"); ok && v != "" {
			c.LogLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("PREPARE_WORKER_METRICS_ADDR"); ok {
			c.MetricsAddr = v
		}
	}
	if _, ok := set["expected-version"]; !ok {
		if v, ok := get("PREPARE_WORKER_EXPECTED_VERSION"); ok {
			c.ExpectedVersion = v
		}
	}
	if _, ok := set["cpu-poll-interval"]; !ok {
		if v, ok := get("PREPARE_WORKER_CPU_POLL_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.CPUPollInterval = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid PREPARE_WORKER_CPU_POLL_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["mem-poll-interval"]; !ok {
		if v, ok := get("PREPARE_WORKER_MEM_POLL_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.MemPollInterval = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid PREPARE_WORKER_MEM_POLL_INTERVAL: %w", err)
			}
		}
	}
	return firstErr
}

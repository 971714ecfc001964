// Package config loads the bridge configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/fentz26/scenebridge/internal/task"
)

// Config holds the bridge's tunables. File names are resolved relative to
// BridgeDir unless absolute.
type Config struct {
	// BridgeDir is the directory holding the request/response mailbox.
	BridgeDir string `yaml:"bridge_dir" env:"SCENEBRIDGE_DIR"`
	// RequestFile is the inbound command file.
	RequestFile string `yaml:"request_file" env:"SCENEBRIDGE_REQUEST_FILE"`
	// ResponseFile is the outbound result file.
	ResponseFile string `yaml:"response_file" env:"SCENEBRIDGE_RESPONSE_FILE"`
	// DBPath is the durable task/audit store.
	DBPath string `yaml:"db_path" env:"SCENEBRIDGE_DB"`

	// TickMillis is the loop interval in milliseconds.
	TickMillis int `yaml:"tick_millis" env:"SCENEBRIDGE_TICK_MILLIS"`

	// CaptureWaitSec is the default in-play wait before a capture.
	CaptureWaitSec float64 `yaml:"capture_wait_sec" env:"SCENEBRIDGE_CAPTURE_WAIT_SEC"`
	// CaptureMarginSec is added to the wait to form the capture's hard bound.
	CaptureMarginSec float64 `yaml:"capture_margin_sec" env:"SCENEBRIDGE_CAPTURE_MARGIN_SEC"`
	// CaptureStalenessSec ages out capture records left by a crash.
	CaptureStalenessSec float64 `yaml:"capture_staleness_sec" env:"SCENEBRIDGE_CAPTURE_STALENESS_SEC"`

	// RebuildTimeoutSec bounds an in-process rebuild wait.
	RebuildTimeoutSec float64 `yaml:"rebuild_timeout_sec" env:"SCENEBRIDGE_REBUILD_TIMEOUT_SEC"`
	// RebuildStalenessSec ages out rebuild records left by a crash.
	RebuildStalenessSec float64 `yaml:"rebuild_staleness_sec" env:"SCENEBRIDGE_REBUILD_STALENESS_SEC"`
}

// DefaultConfig returns the stock configuration rooted at ~/.scenebridge.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".scenebridge")
	return &Config{
		BridgeDir:           base,
		RequestFile:         "request.json",
		ResponseFile:        "response.txt",
		DBPath:              filepath.Join(base, "scenebridge.db"),
		TickMillis:          250,
		CaptureWaitSec:      1,
		CaptureMarginSec:    30,
		CaptureStalenessSec: 300,
		RebuildTimeoutSec:   120,
		RebuildStalenessSec: 600,
	}
}

// Load reads configuration from a YAML file, then applies environment
// variable overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromHome loads configuration from ~/.scenebridge/config.yaml.
func LoadFromHome() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}
	return Load(filepath.Join(home, ".scenebridge", "config.yaml"))
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.BridgeDir == "" {
		return fmt.Errorf("bridge_dir must be set")
	}
	if c.RequestFile == "" || c.ResponseFile == "" {
		return fmt.Errorf("request_file and response_file must be set")
	}
	if c.TickMillis < 1 {
		return fmt.Errorf("tick_millis must be at least 1")
	}
	if c.CaptureWaitSec <= 0 || c.CaptureMarginSec <= 0 {
		return fmt.Errorf("capture_wait_sec and capture_margin_sec must be positive")
	}
	if c.CaptureStalenessSec <= 0 || c.RebuildStalenessSec <= 0 {
		return fmt.Errorf("staleness bounds must be positive")
	}
	if c.RebuildTimeoutSec <= 0 {
		return fmt.Errorf("rebuild_timeout_sec must be positive")
	}
	return nil
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.BridgeDir, name)
}

// RequestPath returns the absolute request file path.
func (c *Config) RequestPath() string { return c.resolve(c.RequestFile) }

// ResponsePath returns the absolute response file path.
func (c *Config) ResponsePath() string { return c.resolve(c.ResponseFile) }

// Tick returns the loop interval.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickMillis) * time.Millisecond
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// CaptureConfig returns the capture task timing.
func (c *Config) CaptureConfig() task.CaptureConfig {
	return task.CaptureConfig{
		DefaultWait:  seconds(c.CaptureWaitSec),
		SafetyMargin: seconds(c.CaptureMarginSec),
		Staleness:    seconds(c.CaptureStalenessSec),
	}
}

// RebuildConfig returns the rebuild task timing.
func (c *Config) RebuildConfig() task.RebuildConfig {
	return task.RebuildConfig{
		Timeout:   seconds(c.RebuildTimeoutSec),
		Staleness: seconds(c.RebuildStalenessSec),
	}
}

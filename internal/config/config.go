package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/memoview/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "memoview.json"

	// DefaultPort is the default server port.
	DefaultPort = 3000

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultTimerInterval is the period of the counter timer.
	DefaultTimerInterval = "1s"

	// DefaultQueueSize is the capacity of the UI loop's dispatch queue.
	DefaultQueueSize = 256

	// DefaultMetricsPath is where Prometheus metrics are served.
	DefaultMetricsPath = "/metrics"
)

// Config represents the complete memoview.json configuration.
type Config struct {
	// Server contains HTTP listener settings.
	Server ServerConfig `json:"server"`

	// Timer contains the periodic counter timer settings.
	Timer TimerConfig `json:"timer"`

	// Loop contains UI loop settings.
	Loop LoopConfig `json:"loop"`

	// Log contains logging settings.
	Log LogConfig `json:"log"`

	// Metrics contains Prometheus exposition settings.
	Metrics MetricsConfig `json:"metrics"`

	// Tracing contains OpenTelemetry settings.
	Tracing TracingConfig `json:"tracing"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

// TimerConfig contains timer settings.
type TimerConfig struct {
	// Interval is a Go duration string (e.g., "1s", "250ms").
	Interval string `json:"interval,omitempty"`
}

// LoopConfig contains UI loop settings.
type LoopConfig struct {
	// QueueSize is the number of callbacks that may wait for the loop before
	// Dispatch starts dropping them.
	QueueSize int `json:"queue_size,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled bool `json:"enabled"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Timer: TimerConfig{
			Interval: DefaultTimerInterval,
		},
		Loop: LoopConfig{
			QueueSize: DefaultQueueSize,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}

// Load reads memoview.json from the specified directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadOptional is Load, except that a missing memoview.json yields the
// defaults instead of an error.
func LoadOptional(dir string) (*Config, error) {
	cfg, err := Load(dir)
	if errors.HasCode(err, "E101") {
		return New(), nil
	}
	return cfg, err
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E101").
				WithDetail("No " + filepath.Base(path) + " found in " + filepath.Dir(path)).
				WithSuggestion("Create the file or drop the --config flag to run with defaults").
				Wrap(err)
		}
		return nil, errors.New("E102").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E102").
			WithDetail("Failed to parse " + path + ": " + err.Error()).
			WithSuggestion("Check that the file is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E102").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E102").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from, or "" for
// defaults.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Timer.Interval == "" {
		c.Timer.Interval = DefaultTimerInterval
	}
	if c.Loop.QueueSize == 0 {
		c.Loop.QueueSize = DefaultQueueSize
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("E103").
			WithDetailf("Port %d is out of range; it must be between 1 and 65535", c.Server.Port)
	}
	if _, err := c.TimerInterval(); err != nil {
		return err
	}
	if c.Loop.QueueSize < 1 {
		return errors.New("E106").
			WithDetailf("loop.queue_size is %d; it must be at least 1", c.Loop.QueueSize)
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New("E105").
			WithDetailf("Unknown log level %q", c.Log.Level).
			WithSuggestion("Use one of debug, info, warn, error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.New("E105").
			WithDetailf("Unknown log format %q", c.Log.Format).
			WithSuggestion("Use text or json")
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.Newf(errors.CategoryConfig, "metrics.path %q must start with /", c.Metrics.Path)
	}
	return nil
}

// TimerInterval parses Timer.Interval.
func (c *Config) TimerInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timer.Interval)
	if err != nil {
		return 0, errors.New("E104").
			WithDetailf("Cannot parse timer.interval %q", c.Timer.Interval).
			Wrap(err)
	}
	if d <= 0 {
		return 0, errors.New("E104").
			WithDetailf("timer.interval %q is not positive", c.Timer.Interval)
	}
	return d, nil
}

// Address returns the host:port listen address.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// URL returns the browser URL of the server.
func (c *Config) URL() string {
	return "http://" + c.Address()
}

// LogLevel returns the slog level for Log.Level, defaulting to Info.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/queryguard/internal/errors"
	"github.com/vango-dev/queryguard/pkg/navigation"
	"github.com/vango-dev/queryguard/pkg/validate"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "queryguard.json"

	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"

	// DefaultURL is the default initial location.
	DefaultURL = "/"

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "queryguard"

	// DefaultShutdownTimeout is the default graceful shutdown window.
	DefaultShutdownTimeout = "10s"
)

// Config represents queryguard.json.
type Config struct {
	// Addr is the server listen address.
	Addr string `json:"addr,omitempty"`

	// URL is the initial location of the shared history.
	URL string `json:"url,omitempty"`

	// Schema is a descriptor path or s3://bucket/key URI. Empty means
	// untyped mode.
	Schema string `json:"schema,omitempty"`

	// Mode is the validation strategy: "pick" or "strict".
	Mode string `json:"mode,omitempty"`

	// HistoryMode is how writes are recorded: "push" or "replace".
	HistoryMode string `json:"historyMode,omitempty"`

	// ShutdownTimeout is a Go duration string.
	ShutdownTimeout string `json:"shutdownTimeout,omitempty"`

	// Log configures the process logger.
	Log LogConfig `json:"log,omitempty"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Trace configures OpenTelemetry tracing.
	Trace TraceConfig `json:"trace,omitempty"`

	// S3 configures schema downloads from object storage.
	S3 S3Config `json:"s3,omitempty"`

	// configPath is the path to the config file (not serialized).
	configPath string
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty"`
}

// MetricsConfig configures metrics.
type MetricsConfig struct {
	Namespace string `json:"namespace,omitempty"`
}

// TraceConfig configures tracing.
type TraceConfig struct {
	// Stdout exports spans as JSON to standard output.
	Stdout bool `json:"stdout,omitempty"`

	// TracerName names the tracer.
	TracerName string `json:"tracerName,omitempty"`
}

// S3Config configures the S3 schema source.
type S3Config struct {
	Region string `json:"region,omitempty"`

	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string `json:"endpoint,omitempty"`

	// UsePathStyle addresses buckets by path instead of subdomain.
	UsePathStyle bool `json:"usePathStyle,omitempty"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Addr:            DefaultAddr,
		URL:             DefaultURL,
		Mode:            validate.Pick.String(),
		HistoryMode:     navigation.ModePush.String(),
		ShutdownTimeout: DefaultShutdownTimeout,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
		},
		Trace: TraceConfig{
			TracerName: "queryguard",
		},
	}
}

// Load reads queryguard.json from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("Q101").
				WithDetail("No config file at " + path).
				Wrap(err)
		}
		return nil, errors.New("Q101").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		qe := errors.New("Q102").WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
		if se, ok := err.(*json.SyntaxError); ok {
			qe.WithLocation(path, lineOf(data, se.Offset))
		}
		return nil, qe.Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("Q102").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Newf(errors.CategoryConfig, "write %s", path).Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	defaults := New()

	if c.Addr == "" {
		c.Addr = defaults.Addr
	}
	if c.URL == "" {
		c.URL = defaults.URL
	}
	if c.Mode == "" {
		c.Mode = defaults.Mode
	}
	if c.HistoryMode == "" {
		c.HistoryMode = defaults.HistoryMode
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = defaults.Metrics.Namespace
	}
	if c.Trace.TracerName == "" {
		c.Trace.TracerName = defaults.Trace.TracerName
	}
}

// Validate checks that every enumerated field holds a known value.
func (c *Config) Validate() error {
	if _, err := validate.ParseMode(c.Mode); err != nil {
		return errors.New("Q103").
			WithDetailf("mode %q is not pick or strict", c.Mode)
	}
	if _, err := navigation.ParseHistoryMode(c.HistoryMode); err != nil {
		return errors.New("Q103").
			WithDetailf("historyMode %q is not push or replace", c.HistoryMode)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return errors.New("Q103").
			WithDetailf("log.level %q is not debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return errors.New("Q103").
			WithDetailf("log.format %q is not text or json", c.Log.Format)
	}
	if c.ShutdownTimeout != "" {
		if d, err := time.ParseDuration(c.ShutdownTimeout); err != nil || d < 0 {
			return errors.New("Q103").
				WithDetailf("shutdownTimeout %q is not a positive duration", c.ShutdownTimeout)
		}
	}
	return nil
}

// ValidationMode returns the parsed validation mode. Invalid values fall
// back to pick; call Validate first to reject them.
func (c *Config) ValidationMode() validate.Mode {
	m, _ := validate.ParseMode(c.Mode)
	return m
}

// NavigationMode returns the parsed history mode.
func (c *Config) NavigationMode() navigation.HistoryMode {
	m, _ := navigation.ParseHistoryMode(c.HistoryMode)
	return m
}

// ShutdownDuration returns the parsed shutdown timeout.
func (c *Config) ShutdownDuration() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		d, _ = time.ParseDuration(DefaultShutdownTimeout)
	}
	return d
}

// SchemaSource returns the schema location, resolving relative paths
// against the config file directory. URIs are returned unchanged.
func (c *Config) SchemaSource() string {
	src := c.Schema
	if src == "" || strings.Contains(src, "://") || filepath.IsAbs(src) || c.Dir() == "" {
		return src
	}
	return filepath.Join(c.Dir(), src)
}

// NewLogger builds the process logger described by Log.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	err := level.UnmarshalText([]byte(s))
	return level, err
}

func lineOf(data []byte, offset int64) int {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return strings.Count(string(data[:offset]), "\n") + 1
}

package config

import (
	"bytes"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/queryguard/internal/errors"
	"github.com/vango-dev/queryguard/pkg/navigation"
	"github.com/vango-dev/queryguard/pkg/validate"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Addr != DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Addr, DefaultAddr)
	}
	if cfg.URL != "/" {
		t.Errorf("URL = %q, want /", cfg.URL)
	}
	if cfg.Mode != "pick" {
		t.Errorf("Mode = %q, want pick", cfg.Mode)
	}
	if cfg.HistoryMode != "push" {
		t.Errorf("HistoryMode = %q, want push", cfg.HistoryMode)
	}
	if cfg.Metrics.Namespace != DefaultNamespace {
		t.Errorf("Metrics.Namespace = %q", cfg.Metrics.Namespace)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)

	content := `{
		"addr": "127.0.0.1:9000",
		"url": "/products?page=2",
		"schema": "filters.yaml",
		"mode": "strict",
		"historyMode": "replace",
		"log": {"level": "debug"},
		"trace": {"stdout": true}
	}`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Addr != "127.0.0.1:9000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.ValidationMode() != validate.Strict {
		t.Errorf("ValidationMode() = %v, want strict", cfg.ValidationMode())
	}
	if cfg.NavigationMode() != navigation.ModeReplace {
		t.Errorf("NavigationMode() = %v, want replace", cfg.NavigationMode())
	}
	if !cfg.Trace.Stdout {
		t.Error("Trace.Stdout should be true")
	}

	// Unset fields fall back to defaults.
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want text", cfg.Log.Format)
	}
	if cfg.Metrics.Namespace != DefaultNamespace {
		t.Errorf("Metrics.Namespace = %q", cfg.Metrics.Namespace)
	}

	if cfg.Path() != configPath || cfg.Dir() != dir {
		t.Errorf("Path() = %q, Dir() = %q", cfg.Path(), cfg.Dir())
	}
	if got, want := cfg.SchemaSource(), filepath.Join(dir, "filters.yaml"); got != want {
		t.Errorf("SchemaSource() = %q, want %q", got, want)
	}
}

func TestLoad_FromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`{"addr": ":7000"}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":7000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
}

func TestLoadFile_NotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Code(err) != "Q101" {
		t.Errorf("code = %q, want Q101", errors.Code(err))
	}
	if !stderrors.Is(err, fs.ErrNotExist) {
		t.Error("error should wrap fs.ErrNotExist")
	}
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("{\n  \"addr\": ,\n}"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if errors.Code(err) != "Q102" {
		t.Fatalf("code = %q, want Q102", errors.Code(err))
	}

	var qe *errors.Error
	if !stderrors.As(err, &qe) || qe.Location == nil {
		t.Fatal("syntax errors should carry a location")
	}
	if qe.Location.Line != 2 {
		t.Errorf("Location.Line = %d, want 2", qe.Location.Line)
	}
}

func TestSaveTo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)

	cfg := New()
	cfg.Schema = "s3://configs/filters.yaml"
	cfg.S3.Region = "eu-west-1"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasSuffix(data, []byte("\n")) {
		t.Error("saved file should end with a newline")
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.S3.Region != "eu-west-1" {
		t.Errorf("S3.Region = %q", loaded.S3.Region)
	}
	// URIs are not resolved against the config directory.
	if loaded.SchemaSource() != "s3://configs/filters.yaml" {
		t.Errorf("SchemaSource() = %q", loaded.SchemaSource())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		detail string
	}{
		{"bad mode", func(c *Config) { c.Mode = "loose" }, `mode "loose"`},
		{"bad history mode", func(c *Config) { c.HistoryMode = "pop" }, `historyMode "pop"`},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, `log.level "loud"`},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, `log.format "xml"`},
		{"bad timeout", func(c *Config) { c.ShutdownTimeout = "soon" }, `shutdownTimeout "soon"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)

			err := cfg.Validate()
			if errors.Code(err) != "Q103" {
				t.Fatalf("Validate() = %v, want Q103", err)
			}
			var qe *errors.Error
			stderrors.As(err, &qe)
			if !strings.Contains(qe.Detail, tt.detail) {
				t.Errorf("Detail = %q, want %q", qe.Detail, tt.detail)
			}
		})
	}
}

func TestShutdownDuration(t *testing.T) {
	cfg := New()
	cfg.ShutdownTimeout = "250ms"
	if got := cfg.ShutdownDuration(); got != 250*time.Millisecond {
		t.Errorf("ShutdownDuration() = %v", got)
	}

	cfg.ShutdownTimeout = "bogus"
	if got := cfg.ShutdownDuration(); got != 10*time.Second {
		t.Errorf("ShutdownDuration() fallback = %v", got)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	cfg := New()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"key":"value"`) {
		t.Errorf("json output = %q", out)
	}

	buf.Reset()
	cfg.Log.Format = "text"
	cfg.NewLogger(&buf).Warn("plain")
	if !strings.Contains(buf.String(), "msg=plain") {
		t.Errorf("text output = %q", buf.String())
	}
}

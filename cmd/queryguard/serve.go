package main

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vango-dev/queryguard/internal/config"
	"github.com/vango-dev/queryguard/internal/errors"
	"github.com/vango-dev/queryguard/internal/schemasrc"
	"github.com/vango-dev/queryguard/pkg/schema"
	"github.com/vango-dev/queryguard/pkg/server"
)

type serveFlags struct {
	config      string
	addr        string
	url         string
	schema      string
	mode        string
	historyMode string
	logLevel    string
	trace       bool
}

func serveCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a shared query over HTTP and WebSocket",
		Long: `Serve a shared history over HTTP and WebSocket.

Settings come from queryguard.json in the working directory (if present)
and are overridden by flags.

Routes:
  GET  /search, PUT /search       raw query string
  POST /history/back, /forward    traversal
  GET  /state, PATCH /params      validated snapshot and updates
  GET  /ws                        change stream
  GET  /metrics, /healthz

Examples:
  queryguard serve
  queryguard serve --addr=:9000 --schema=filters.yaml --mode=strict
  queryguard serve --config=deploy/queryguard.json --trace`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&f.config, "config", "c", config.ConfigFileName, "Config file path")
	cmd.Flags().StringVarP(&f.addr, "addr", "a", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&f.url, "url", "", "Initial location, e.g. /products?page=1")
	cmd.Flags().StringVar(&f.schema, "schema", "", "Schema descriptor path or s3://bucket/key")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "Validation mode: pick or strict")
	cmd.Flags().StringVar(&f.historyMode, "history-mode", "", "Default write mode: push or replace")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&f.trace, "trace", false, "Export spans to stdout")

	return cmd
}

// resolve loads the config file and applies flag overrides. A missing
// default config file is not an error.
func (f *serveFlags) resolve(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadFile(f.config)
	if err != nil {
		if flags.Changed("config") || !stderrors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = config.New()
	}

	if flags.Changed("addr") {
		cfg.Addr = f.addr
	}
	if flags.Changed("url") {
		cfg.URL = f.url
	}
	if flags.Changed("schema") {
		cfg.Schema = f.schema
	}
	if flags.Changed("mode") {
		cfg.Mode = f.mode
	}
	if flags.Changed("history-mode") {
		cfg.HistoryMode = f.historyMode
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if flags.Changed("trace") {
		cfg.Trace.Stdout = f.trace
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	logger := cfg.NewLogger(stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Trace.Stdout {
		shutdown, err := setupTracing(ctx, stdout)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("tracer shutdown failed", "error", err)
			}
		}()
	}

	srvCfg, err := serverConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		return errors.New("Q302").WithDetailf("url %q", cfg.URL).Wrap(err)
	}

	success(stderr, "Serving %s on %s", cfg.URL, cfg.Addr)

	if err := srv.Run(ctx); err != nil {
		return errors.New("Q301").Wrap(err)
	}
	return nil
}

// serverConfig converts the file configuration into a server.Config,
// loading the schema if one is named.
func serverConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.Config, error) {
	var s *schema.Schema
	if src := cfg.SchemaSource(); src != "" {
		var err error
		s, err = schemasrc.Load(ctx, src,
			schemasrc.WithRegion(cfg.S3.Region),
			schemasrc.WithEndpoint(cfg.S3.Endpoint, cfg.S3.UsePathStyle),
			schemasrc.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Address = cfg.Addr
	srvCfg.URL = cfg.URL
	srvCfg.Schema = s
	srvCfg.Mode = cfg.ValidationMode()
	srvCfg.HistoryMode = cfg.NavigationMode()
	srvCfg.ShutdownTimeout = cfg.ShutdownDuration()
	srvCfg.TracerName = cfg.Trace.TracerName
	srvCfg.MetricsNamespace = cfg.Metrics.Namespace
	srvCfg.Logger = logger
	return srvCfg, nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docarchive/internal/api"
	"github.com/Aman-CERP/docarchive/internal/archive"
	"github.com/Aman-CERP/docarchive/internal/config"
	"github.com/Aman-CERP/docarchive/internal/logging"
	"github.com/Aman-CERP/docarchive/internal/mcp"
	"github.com/Aman-CERP/docarchive/internal/preflight"
	"github.com/Aman-CERP/docarchive/internal/watcher"
)

type serveOptions struct {
	addr       string
	consumeDir string
	mcp        bool
	noHTTP     bool
	polling    bool
	skipCheck  bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the archive over HTTP",
		Long: `Serve the archive over HTTP on server.addr.

When ingest.consume_dir (or --consume) is set, PDFs dropped into that folder
are ingested once they stop changing, then moved to .done/ or .failed/.

With --mcp the archive is also exposed as an MCP server on stdin/stdout.
Logs then go to ~/.docarchive/logs/server.log only, because stdout carries
the JSON-RPC stream. The server stops when the MCP client disconnects.`,
		Example: `  # HTTP API on the configured address
  docarchive serve

  # Watch a scanner folder as well
  docarchive serve --consume ~/scans

  # MCP only, for an AI assistant
  docarchive serve --mcp --no-http`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().StringVar(&opts.consumeDir, "consume", "", "Consume folder (overrides ingest.consume_dir)")
	cmd.Flags().BoolVar(&opts.mcp, "mcp", false, "Serve MCP on stdin/stdout")
	cmd.Flags().BoolVar(&opts.noHTTP, "no-http", false, "Do not start the HTTP server")
	cmd.Flags().BoolVar(&opts.polling, "poll", false, "Poll the consume folder instead of using file system events")
	cmd.Flags().BoolVar(&opts.skipCheck, "skip-check", false, "Skip the system check on first start")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.consumeDir != "" {
		cfg.Ingest.ConsumeDir = opts.consumeDir
	}
	if opts.noHTTP && !opts.mcp && cfg.Ingest.ConsumeDir == "" {
		return fmt.Errorf("nothing to serve: --no-http needs --mcp or a consume folder")
	}

	cleanup, err := setupServeLogging(cfg, opts.mcp)
	if err != nil {
		return err
	}
	defer cleanup()

	if !opts.skipCheck {
		if err := runServePreflight(ctx, cfg); err != nil {
			return err
		}
	}

	a, err := openArchiveWith(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("failed to close archive", slog.String("error", err.Error()))
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if !opts.noHTTP {
		srv := api.NewServer(a, serverConfig(cfg))
		g.Go(func() error {
			return srv.ListenAndServe(gctx)
		})
	}

	if cfg.Ingest.ConsumeDir != "" {
		consumer, err := watcher.NewConsumer(a, consumerConfig(cfg, opts.polling))
		if err != nil {
			return err
		}
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	}

	if opts.mcp {
		srv := mcp.NewServer(a)
		g.Go(func() error {
			// The session ends when the client disconnects; take the rest down with it.
			defer cancel()
			return srv.Serve(gctx)
		})
	}

	return g.Wait()
}

// runServePreflight runs the system checks once per release. Results go to
// the log only, since stdout may carry MCP.
func runServePreflight(ctx context.Context, cfg *config.Config) error {
	if !preflight.NeedsCheck(cfg.DataDir) {
		return nil
	}

	checker := preflight.New(preflight.WithOutput(io.Discard))
	results := checker.RunAll(ctx, cfg)
	for _, r := range results {
		if r.Status != preflight.StatusPass {
			slog.Warn("system check",
				slog.String("check", r.Name),
				slog.String("status", r.Status.String()),
				slog.String("message", r.Message))
		}
	}
	if checker.HasCriticalFailures(results) {
		slog.Error("System check failed - run 'docarchive doctor' for diagnostics")
		return errSystemCheckFailed
	}

	if err := preflight.MarkPassed(cfg.DataDir); err != nil {
		slog.Debug("failed to mark system check as passed", slog.String("error", err.Error()))
	}
	return nil
}

// setupServeLogging logs to the rotating server log, and to stderr unless
// stdio carries MCP. The returned cleanup restores the previous default logger.
func setupServeLogging(cfg *config.Config, mcpMode bool) (func(), error) {
	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      logging.DefaultLogPath(),
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: true,
	}
	if debugMode {
		logCfg.Level = "debug"
	}

	prev := slog.Default()
	setup := logging.SetupDefault
	if mcpMode {
		setup = logging.SetupMCPMode
	}
	cleanup, err := setup(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return func() {
		slog.SetDefault(prev)
		cleanup()
	}, nil
}

func serverConfig(cfg *config.Config) api.Config {
	return api.Config{
		Addr:          cfg.Server.Addr,
		ReadTimeout:   config.Duration(cfg.Server.ReadTimeout, 30*time.Second),
		WriteTimeout:  config.Duration(cfg.Server.WriteTimeout, 60*time.Second),
		ShutdownGrace: config.Duration(cfg.Server.ShutdownGrace, 10*time.Second),
		MaxUploadSize: cfg.Server.MaxUploadSize,
	}
}

func consumerConfig(cfg *config.Config, polling bool) watcher.ConsumerConfig {
	return watcher.ConsumerConfig{
		Dir:         cfg.Ingest.ConsumeDir,
		MaxFileSize: cfg.Ingest.MaxFileSize,
		Watch: watcher.Options{
			DebounceWindow: config.Duration(cfg.Ingest.ConsumeInterval, 2*time.Second),
			ForcePolling:   polling,
		},
	}
}

// openArchiveWith opens the archive for an already loaded configuration.
func openArchiveWith(cfg *config.Config) (*archive.Archive, error) {
	a, err := archive.Open(cfg)
	if err != nil {
		return nil, archiveOpenError(err)
	}
	return a, nil
}

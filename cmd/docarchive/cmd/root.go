// Package cmd provides the CLI commands for docarchive.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docarchive/internal/errors"
	"github.com/Aman-CERP/docarchive/internal/logging"
	"github.com/Aman-CERP/docarchive/internal/profiling"
	"github.com/Aman-CERP/docarchive/pkg/version"
)

// Profiling flags
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     *profiling.Session
)

// Global flags
var (
	debugMode      bool
	serverURL      string
	configDir      string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the docarchive CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docarchive",
		Short: "Content-addressed archive for scanned documents",
		Long: `docarchive stores PDF documents by the SHA-256 of their bytes, splits
them into per-page fragments, indexes the page text for full-text search,
and keeps newly uploaded documents in an inbox until they are archived
with labels and properties.

Commands work on the local data directory by default. Pass --server to
talk to a running 'docarchive serve' instead.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("docarchive version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.docarchive/logs/")
	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "Use the server at this URL instead of the local data directory")
	cmd.PersistentFlags().StringVar(&configDir, "config", ".", "Directory containing .docarchive.yaml")

	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newInboxCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newBundleCmd())
	cmd.AddCommand(newFragmentCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts profiling and debug logging if flags are set.
// serve configures its own logging.
func startProfilingAndLogging(cmd *cobra.Command, _ []string) error {
	if debugMode && cmd.Name() != "serve" {
		cfg := logging.DefaultConfig()
		cfg.Level = "debug"
		cfg.WriteToStderr = false
		prev := slog.Default()
		cleanup, err := logging.SetupDefault(cfg)
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = func() {
			slog.SetDefault(prev)
			cleanup()
		}
		slog.Info("debug logging enabled",
			slog.String("log_file", cfg.FilePath),
			slog.String("command", cmd.CommandPath()))
	}

	session, err := profiling.Start(profiling.Options{
		CPU:   profileCPU,
		Heap:  profileMem,
		Trace: profileTrace,
	})
	if err != nil {
		return err
	}
	profiler = session
	return nil
}

// stopProfilingAndLogging stops profiling, writes the heap profile if
// requested, and closes the debug log.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	err := profiler.Stop()
	profiler = nil

	if loggingCleanup != nil {
		slog.Info("debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command and prints the error, with its suggestion,
// to stderr.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
	}
	return err
}

package logging

import (
	"log/slog"
)

// SetupMCPMode installs file-only logging for `serve --mcp`.
//
// stdout carries the JSON-RPC stream and must never see a log line, and
// MCP hosts treat stderr output as noise, so cfg.WriteToStderr is forced off.
func SetupMCPMode(cfg Config) (func(), error) {
	cfg.WriteToStderr = false
	if cfg.FilePath == "" {
		cfg.FilePath = DefaultLogPath()
	}

	cleanup, err := SetupDefault(cfg)
	if err != nil {
		return nil, err
	}

	slog.Info("mcp mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))
	return cleanup, nil
}

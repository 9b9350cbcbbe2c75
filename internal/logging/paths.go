package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

const logFileName = "server.log"

// DefaultLogDir returns ~/.docarchive/logs.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "docarchive", "logs")
	}
	return filepath.Join(home, ".docarchive", "logs")
}

// DefaultLogPath returns the server log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), logFileName)
}

// FindLogFile resolves the log file to view.
// An explicit path wins; otherwise the default path must exist.
func FindLogFile(explicit string) (string, error) {
	path := explicit
	if path == "" {
		path = DefaultLogPath()
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("log file not found: %s (start `docarchive serve` to create it)", path)
		}
		return "", fmt.Errorf("failed to stat log file: %w", err)
	}
	return path, nil
}

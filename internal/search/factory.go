package search

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend names a search index implementation.
type Backend string

const (
	// BackendSQLite keeps postings in a SQLite table (default).
	// WAL mode allows readers alongside the writer.
	BackendSQLite Backend = "sqlite"

	// BackendBleve keeps one Bleve document per fragment.
	// BoltDB holds an exclusive file lock, so one process only.
	BackendBleve Backend = "bleve"
)

// indexBaseName is the file stem of the on-disk index.
const indexBaseName = "index"

// NewIndex creates the index selected by cfg.Backend inside dataDir.
// The file extension follows the backend (.db for SQLite, .bleve for Bleve).
// If dataDir is empty, creates an in-memory index for testing.
func NewIndex(dataDir string, cfg Config) (Index, error) {
	switch Backend(cfg.Backend) {
	case BackendSQLite, "":
		var path string
		if dataDir != "" {
			path = IndexPath(dataDir, BackendSQLite)
		}
		return NewSQLiteIndex(path, cfg)

	case BackendBleve:
		var path string
		if dataDir != "" {
			path = IndexPath(dataDir, BackendBleve)
		}
		return NewBleveIndex(path, cfg)

	default:
		return nil, fmt.Errorf("unknown search backend: %s (valid options: sqlite, bleve)", cfg.Backend)
	}
}

// DetectBackend reports which backend an existing index in dataDir uses.
// Returns an empty string if no index exists.
func DetectBackend(dataDir string) Backend {
	if fileExists(IndexPath(dataDir, BackendSQLite)) {
		return BackendSQLite
	}
	if dirExists(IndexPath(dataDir, BackendBleve)) {
		return BackendBleve
	}
	return ""
}

// IndexPath returns the index file or directory for backend.
func IndexPath(dataDir string, backend Backend) string {
	base := filepath.Join(dataDir, indexBaseName)
	if backend == BackendBleve {
		return base + ".bleve"
	}
	return base + ".db"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio"

	"github.com/Aman-CERP/docarchive/pkg/version"
)

// MarkerFile records, inside the data directory, that the checks passed.
const MarkerFile = ".preflight-passed"

// NeedsCheck reports whether serve should run the checks: the marker is
// missing or was written by a different docarchive version.
func NeedsCheck(dataDir string) bool {
	v, _, ok := readMarker(dataDir)
	return !ok || v != version.Version
}

// MarkPassed records that the checks passed for the running version.
func MarkPassed(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}
	content := version.Version + "\n" + time.Now().UTC().Format(time.RFC3339) + "\n"
	return renameio.WriteFile(filepath.Join(dataDir, MarkerFile), []byte(content), 0o644)
}

// ClearMarker removes the marker, forcing a re-check on next run.
func ClearMarker(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, MarkerFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// MarkerAge returns how long ago the checks passed, or zero without a marker.
func MarkerAge(dataDir string) time.Duration {
	_, passed, ok := readMarker(dataDir)
	if !ok {
		return 0
	}
	return time.Since(passed)
}

func readMarker(dataDir string) (string, time.Time, bool) {
	content, err := os.ReadFile(filepath.Join(dataDir, MarkerFile))
	if err != nil {
		return "", time.Time{}, false
	}
	v, ts, found := strings.Cut(strings.TrimSpace(string(content)), "\n")
	if !found {
		return "", time.Time{}, false
	}
	passed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return "", time.Time{}, false
	}
	return v, passed, true
}

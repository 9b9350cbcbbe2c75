package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/extract/pdftest"
)

// testEnv isolates a test from the user's config and data directory.
type testEnv struct {
	dir     string
	dataDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{dir: dir, dataDir: filepath.Join(dir, "data")}
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("DOCARCHIVE_DATA_DIR", env.dataDir)
	t.Setenv("NO_COLOR", "1")
	return env
}

// run executes the CLI with args and returns stdout and stderr.
func (e *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", e.dir}, args...))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// writePDF writes a PDF with one page per text and returns its path and id.
func (e *testEnv) writePDF(t *testing.T, name string, pages ...string) (string, docid.DocID) {
	t.Helper()
	raw := pdftest.Build(pages...)
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path, docid.FromContent(raw)
}

// ingest runs `docarchive ingest` for one file and returns its id.
func (e *testEnv) ingest(t *testing.T, name string, pages ...string) docid.DocID {
	t.Helper()
	path, id := e.writePDF(t, name, pages...)
	_, _, err := e.run(t, "ingest", "--plain", path)
	require.NoError(t, err)
	return id
}

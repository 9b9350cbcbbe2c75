package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirWatcher_ShouldIgnore(t *testing.T) {
	w, err := NewDirWatcher(DefaultOptions())
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	tests := []struct {
		name   string
		ignore bool
	}{
		{"invoice.pdf", false},
		{"Invoice.PDF", false},
		{".done", true},
		{".failed", true},
		{".hidden.pdf", true},
		{"upload.pdf.part", true},
		{"scan.tmp", true},
		{"~lock.pdf", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ignore, w.ShouldIgnore(tt.name), tt.name)
	}
}

func TestNewDirWatcher_InvalidPattern(t *testing.T) {
	_, err := NewDirWatcher(Options{IgnorePatterns: []string{"[unclosed"}})
	require.Error(t, err)
}

func TestDirWatcher_ReportsSettledFiles(t *testing.T) {
	for _, polling := range []bool{false, true} {
		name := "fsnotify"
		if polling {
			name = "polling"
		}
		t.Run(name, func(t *testing.T) {
			// Given: a watcher over an empty folder
			dir := t.TempDir()
			w, err := NewDirWatcher(Options{
				DebounceWindow: 50 * time.Millisecond,
				PollInterval:   20 * time.Millisecond,
				IgnorePatterns: []string{"*.part"},
				ForcePolling:   polling,
			})
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() { _ = w.Start(ctx, dir) }()
			time.Sleep(100 * time.Millisecond)

			// When: a PDF and an ignored partial download appear
			require.NoError(t, os.WriteFile(filepath.Join(dir, "a.part"), []byte("x"), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.pdf"), []byte("%PDF"), 0o644))

			// Then: one batch reports the PDF only
			select {
			case batch := <-w.Events():
				require.NotEmpty(t, batch)
				names := make([]string, len(batch))
				for i, e := range batch {
					names[i] = e.Name
				}
				assert.Contains(t, names, "scan.pdf")
				assert.NotContains(t, names, "a.part")
			case <-time.After(2 * time.Second):
				t.Fatal("timeout waiting for batch")
			}

			require.NoError(t, w.Stop())
			require.NoError(t, w.Stop())
		})
	}
}

func TestOperation_StringSpotCheck(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "RENAME", OpRename.String())
	assert.Equal(t, "UNKNOWN", Operation(42).String())
}

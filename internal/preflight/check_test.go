package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docarchive/internal/archive"
	"github.com/Aman-CERP/docarchive/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	return cfg
}

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
		{CheckStatus(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSON(t *testing.T) {
	// Given: a failed check
	r := CheckResult{Name: "config", Status: StatusFail, Message: "bad", Required: true}

	// When: encoding it
	raw, err := json.Marshal(r)
	require.NoError(t, err)

	// Then: the status is a lowercase name
	assert.JSONEq(t, `{"name":"config","status":"fail","message":"bad","required":true}`, string(raw))
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{
			name:     "required pass is not critical",
			result:   CheckResult{Status: StatusPass, Required: true},
			expected: false,
		},
		{
			name:     "required fail is critical",
			result:   CheckResult{Status: StatusFail, Required: true},
			expected: true,
		},
		{
			name:     "optional fail is not critical",
			result:   CheckResult{Status: StatusFail, Required: false},
			expected: false,
		},
		{
			name:     "required warn is not critical",
			result:   CheckResult{Status: StatusWarn, Required: true},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_NewWithOptions(t *testing.T) {
	// Given: custom options
	buf := &bytes.Buffer{}
	checker := New(
		WithVerbose(true),
		WithOutput(buf),
	)

	// Then: options are applied
	assert.True(t, checker.verbose)
	assert.Equal(t, buf, checker.output)
}

func TestChecker_HasCriticalFailures(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected bool
	}{
		{
			name:     "no results",
			results:  []CheckResult{},
			expected: false,
		},
		{
			name: "warning only",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusWarn, Required: false},
			},
			expected: false,
		},
		{
			name: "required failure",
			results: []CheckResult{
				{Status: StatusPass, Required: true},
				{Status: StatusFail, Required: true},
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.HasCriticalFailures(tt.results))
		})
	}
}

func TestChecker_CheckConfig(t *testing.T) {
	checker := New()

	t.Run("valid", func(t *testing.T) {
		result := checker.CheckConfig(testConfig(t))
		assert.Equal(t, StatusPass, result.Status)
		assert.Contains(t, result.Message, "sqlite")
	})

	t.Run("invalid backend", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Search.Backend = "elastic"

		result := checker.CheckConfig(cfg)

		assert.True(t, result.IsCritical())
		assert.Contains(t, result.Message, "search.backend")
	})
}

func TestChecker_CheckWritePermissions_CreatesDir(t *testing.T) {
	// Given: a data directory that does not exist yet
	dir := filepath.Join(t.TempDir(), "nested", "data")

	// When: checking write permissions
	result := New().CheckWritePermissions(dir)

	// Then: passes, creates the directory and leaves no probe behind
	assert.Equal(t, StatusPass, result.Status)
	assert.True(t, result.Required)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChecker_CheckWritePermissions_ReadOnly(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("Skipping read-only test when running as root")
	}

	tmpDir := t.TempDir()
	readOnlyDir := filepath.Join(tmpDir, "readonly")
	require.NoError(t, os.Mkdir(readOnlyDir, 0o555))
	defer func() { _ = os.Chmod(readOnlyDir, 0o755) }()

	result := New().CheckWritePermissions(readOnlyDir)

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "permission denied")
}

func TestChecker_CheckDiskSpace(t *testing.T) {
	result := New().CheckDiskSpace(t.TempDir())

	assert.Equal(t, "disk_space", result.Name)
	assert.Contains(t, result.Message, "free")
}

func TestFileDescriptorResult(t *testing.T) {
	tests := []struct {
		name    string
		limit   uint64
		backend string
		want    CheckStatus
	}{
		{"sqlite at minimum", 1024, "sqlite", StatusPass},
		{"below minimum", 256, "sqlite", StatusFail},
		{"bleve below recommended", 2048, "bleve", StatusWarn},
		{"bleve at recommended", 4096, "bleve", StatusPass},
		{"bleve below minimum", 512, "bleve", StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := fileDescriptorResult(CheckResult{Name: "file_descriptors", Required: true}, tt.limit, tt.backend)
			assert.Equal(t, tt.want, result.Status)
		})
	}
}

func TestChecker_CheckDataDirLock(t *testing.T) {
	checker := New()

	t.Run("free", func(t *testing.T) {
		result := checker.CheckDataDirLock(t.TempDir())
		assert.Equal(t, StatusPass, result.Status)
	})

	t.Run("held by an open archive", func(t *testing.T) {
		// Given: an archive holding the data directory
		cfg := testConfig(t)
		a, err := archive.Open(cfg)
		require.NoError(t, err)
		defer func() { _ = a.Close() }()

		// When: checking the lock
		result := checker.CheckDataDirLock(cfg.DataDir)

		// Then: warns but is not critical
		assert.Equal(t, StatusWarn, result.Status)
		assert.False(t, result.IsCritical())
		assert.Contains(t, result.Details, "--server")
	})
}

func TestChecker_CheckConsumeDir(t *testing.T) {
	checker := New()

	t.Run("missing", func(t *testing.T) {
		result := checker.CheckConsumeDir(filepath.Join(t.TempDir(), "scans"))
		assert.Equal(t, StatusWarn, result.Status)
	})

	t.Run("file instead of directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scans")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		result := checker.CheckConsumeDir(path)

		assert.Equal(t, StatusFail, result.Status)
		assert.Contains(t, result.Message, "not a directory")
	})

	t.Run("writable directory", func(t *testing.T) {
		dir := t.TempDir()

		result := checker.CheckConsumeDir(dir)

		assert.Equal(t, StatusPass, result.Status)
		assert.NoFileExists(t, filepath.Join(dir, ".preflight-probe"))
	})
}

func TestChecker_RunAll(t *testing.T) {
	names := func(results []CheckResult) []string {
		out := make([]string, len(results))
		for i, r := range results {
			out[i] = r.Name
		}
		return out
	}

	t.Run("without consume folder", func(t *testing.T) {
		results := New().RunAll(context.Background(), testConfig(t))

		assert.Equal(t, []string{
			"config", "write_permissions", "disk_space", "file_descriptors", "data_dir_lock",
		}, names(results))
	})

	t.Run("with consume folder", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Ingest.ConsumeDir = t.TempDir()

		results := New().RunAll(context.Background(), cfg)

		assert.Contains(t, names(results), "consume_dir")
	})
}

func TestChecker_PrintResults(t *testing.T) {
	// Given: some check results
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50.0 GB free"},
		{Name: "data_dir_lock", Status: StatusWarn, Message: "in use", Details: "Local commands need --server while it runs"},
		{Name: "config", Status: StatusFail, Message: "invalid", Required: true},
	}

	buf := &bytes.Buffer{}
	checker := New(WithOutput(buf), WithVerbose(true))

	// When: printing results
	checker.PrintResults(results)

	// Then: output contains formatted results and the details
	output := buf.String()
	assert.Contains(t, output, "[PASS] disk_space")
	assert.Contains(t, output, "[WARN] data_dir_lock")
	assert.Contains(t, output, "[FAIL] config")
	assert.Contains(t, output, "Local commands need --server")
	assert.Contains(t, output, "Status: FAILED")
	assert.Contains(t, output, "1 error(s):")
	assert.Contains(t, output, "1 warning(s):")
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{
			name:     "all pass",
			results:  []CheckResult{{Status: StatusPass}, {Status: StatusPass}},
			expected: "ready",
		},
		{
			name:     "with warnings",
			results:  []CheckResult{{Status: StatusPass}, {Status: StatusWarn}},
			expected: "ready_with_warnings",
		},
		{
			name:     "with critical failure",
			results:  []CheckResult{{Status: StatusPass}, {Status: StatusFail, Required: true}},
			expected: "failed",
		},
		{
			name:     "with optional failure",
			results:  []CheckResult{{Status: StatusPass}, {Status: StatusFail, Required: false}},
			expected: "ready_with_warnings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
		})
	}
}

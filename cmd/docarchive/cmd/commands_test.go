package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docarchive/internal/api"
	"github.com/Aman-CERP/docarchive/internal/errors"
	"github.com/Aman-CERP/docarchive/internal/ui"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func TestSearch_RanksAndListsPages(t *testing.T) {
	// Given: two documents mentioning "tax" a different number of times
	env := newTestEnv(t)
	once := env.ingest(t, "once.pdf", "tax return", "nothing here")
	twice := env.ingest(t, "twice.pdf", "cover", "tax tax")

	// When: searching as JSON
	out, _, err := env.run(t, "search", "--json", "tax")
	require.NoError(t, err)

	// Then: the stronger match comes first with its pages
	var resp api.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Hits, 2)
	assert.Equal(t, twice.String(), resp.Hits[0].ID)
	assert.Equal(t, []int{1}, resp.Hits[0].Fragments)
	assert.Equal(t, once.String(), resp.Hits[1].ID)
	assert.Equal(t, []int{0}, resp.Hits[1].Fragments)
}

func TestSearch_Limit(t *testing.T) {
	env := newTestEnv(t)
	env.ingest(t, "a.pdf", "common word")
	env.ingest(t, "b.pdf", "common again")

	out, _, err := env.run(t, "search", "-n", "1", "common")

	require.NoError(t, err)
	assert.Contains(t, out, "1 documents match")
}

func TestBundleGet_WritesOriginalBytes(t *testing.T) {
	// Given: an ingested document
	env := newTestEnv(t)
	path, docID := env.writePDF(t, "in.pdf", "content")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	_, _, err = env.run(t, "ingest", "--plain", path)
	require.NoError(t, err)
	id := docID.String()

	// When: fetching it to a file and to stdout
	dest := filepath.Join(env.dir, "out.pdf")
	_, _, err = env.run(t, "bundle", "get", id, "-o", dest)
	require.NoError(t, err)
	stdout, _, err := env.run(t, "bundle", "get", id)
	require.NoError(t, err)

	// Then: both hold the exact stored bytes
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
	assert.Equal(t, raw, []byte(stdout))
}

func TestFragment(t *testing.T) {
	env := newTestEnv(t)
	id := env.ingest(t, "doc.pdf", "first page", "second page")

	t.Run("text", func(t *testing.T) {
		out, _, err := env.run(t, "fragment", id.String(), "1")
		require.NoError(t, err)
		assert.Equal(t, "second page\n", out)
	})

	t.Run("out of range", func(t *testing.T) {
		_, _, err := env.run(t, "fragment", id.String(), "2")
		assert.Equal(t, errors.KindOutOfRange, errors.KindOf(err))
	})

	t.Run("invalid index", func(t *testing.T) {
		_, _, err := env.run(t, "fragment", id.String(), "-1")
		assert.Equal(t, errors.KindInvalidIdentifier, errors.KindOf(err))
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := env.run(t, "fragment", "--json", id.String(), "0")
		require.NoError(t, err)
		var resp api.FragmentResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, 0, resp.Index)
		require.NotNil(t, resp.Text)
		assert.Equal(t, "first page", *resp.Text)
		assert.Positive(t, resp.Size)
	})
}

func TestStats_JSON(t *testing.T) {
	// Given: one pending and one archived document
	env := newTestEnv(t)
	env.ingest(t, "a.pdf", "one")
	filed := env.ingest(t, "b.pdf", "two", "three")
	_, _, err := env.run(t, "inbox", "archive", filed.String())
	require.NoError(t, err)

	// When: reading stats
	out, _, err := env.run(t, "stats", "--json")
	require.NoError(t, err)

	// Then: counts reflect both documents
	var info ui.StatsInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, 2, info.Bundles)
	assert.Equal(t, 3, info.Fragments)
	assert.Equal(t, 1, info.Filed)
	assert.Equal(t, 1, info.Pending)
	assert.Equal(t, "sqlite", info.Backend)
	assert.Equal(t, env.dataDir, info.DataDir)
}

func TestReindex_RestoresSearch(t *testing.T) {
	// Given: an ingested document
	env := newTestEnv(t)
	id := env.ingest(t, "a.pdf", "rebuild me")

	// When: rebuilding the index
	_, progress, err := env.run(t, "reindex", "--plain")
	require.NoError(t, err)
	assert.Contains(t, progress, "Reindexed: 1 pages")

	// Then: search still finds the document
	out, _, err := env.run(t, "search", "rebuild")
	require.NoError(t, err)
	assert.Contains(t, out, id.String())
}

func TestReindex_RejectsServer(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "--server", "http://127.0.0.1:1", "reindex")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "local data directory only")
}

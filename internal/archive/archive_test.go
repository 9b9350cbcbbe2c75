package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docarchive/internal/config"
	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
	"github.com/Aman-CERP/docarchive/internal/extract/pdftest"
	"github.com/Aman-CERP/docarchive/internal/search"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.DataDir = t.TempDir()
	cfg.Ingest.Concurrency = 2
	return cfg
}

func openArchive(t *testing.T, cfg *config.Config) *Archive {
	t.Helper()
	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	a, err := Open(cfg, WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestOpen_IngestSearchArchive(t *testing.T) {
	// Given: an archive with one ingested two-page document
	ctx := context.Background()
	a := openArchive(t, testConfig(t))

	id, err := a.Ingest(ctx, pdftest.Build("quarterly invoice", "payment terms"))
	require.NoError(t, err)

	// When: the document is searched and archived
	hits, err := a.Search(ctx, "invoice")
	require.NoError(t, err)
	require.NoError(t, a.Inbox().Archive(ctx, id, []string{"finance"}, map[string]string{"year": "2026"}))

	// Then: the hit points at page 0 and the bundle is filed
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].ID)
	assert.Equal(t, []int{0}, hits[0].Fragments)

	b, err := a.Bundles().GetBundle(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, b.Filed)
	assert.Equal(t, []string{"finance"}, b.Filed.Labels)

	_, err = a.Inbox().Get(ctx, id)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestOpen_DataDirLocked(t *testing.T) {
	// Given: an open archive
	cfg := testConfig(t)
	a := openArchive(t, cfg)

	// When: the same data directory is opened again
	_, err := Open(cfg)

	// Then: the second open fails fast
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)

	// And: it succeeds once the first archive is closed
	require.NoError(t, a.Close())
	b, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, b.Close())
}

func TestIsLocked(t *testing.T) {
	cfg := testConfig(t)

	locked, err := IsLocked(cfg.DataDir)
	require.NoError(t, err)
	assert.False(t, locked, "fresh directory")

	a := openArchive(t, cfg)
	locked, err = IsLocked(cfg.DataDir)
	require.NoError(t, err)
	assert.True(t, locked, "held by an open archive")

	require.NoError(t, a.Close())
	locked, err = IsLocked(cfg.DataDir)
	require.NoError(t, err)
	assert.False(t, locked, "released on close")
}

func TestClose_Idempotent(t *testing.T) {
	a, err := Open(testConfig(t))
	require.NoError(t, err)

	require.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	a := openArchive(t, testConfig(t))

	pending, err := a.Ingest(ctx, pdftest.Build("first document"))
	require.NoError(t, err)
	filed, err := a.Ingest(ctx, pdftest.Build("second document", "more text"))
	require.NoError(t, err)
	require.NoError(t, a.Inbox().Archive(ctx, filed, nil, nil))

	stats, err := a.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Store.Bundles)
	assert.Equal(t, 3, stats.Store.Fragments)
	assert.Equal(t, 1, stats.Store.Filed)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, "sqlite", stats.Index.Backend)
	assert.Equal(t, 2, stats.Index.Documents)
	assert.NotEqual(t, pending, filed)
}

func TestSearch_RecordsTelemetry(t *testing.T) {
	// Given: an archive with one document
	ctx := context.Background()
	cfg := testConfig(t)
	a := openArchive(t, cfg)
	_, err := a.Ingest(ctx, pdftest.Build("rental agreement"))
	require.NoError(t, err)

	// When: one search hits and one misses
	_, err = a.Search(ctx, "rental")
	require.NoError(t, err)
	_, err = a.Search(ctx, "warranty")
	require.NoError(t, err)

	// Then: stats report both searches
	stats, err := a.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Searches.Queries)
	assert.Equal(t, int64(1), stats.Searches.ZeroResults)
	assert.Equal(t, []string{"warranty"}, stats.Searches.RecentMisses)

	// And: they survive a restart
	require.NoError(t, a.Close())
	b := openArchive(t, cfg)
	stats, err = b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Searches.Queries)
	assert.Equal(t, []string{"warranty"}, stats.Searches.RecentMisses)
}

func TestReindex_SwitchesBackend(t *testing.T) {
	// Given: documents indexed by the sqlite backend
	ctx := context.Background()
	cfg := testConfig(t)
	a, err := Open(cfg)
	require.NoError(t, err)
	first, err := a.Ingest(ctx, pdftest.Build("alpha beta", "gamma"))
	require.NoError(t, err)
	second, err := a.Ingest(ctx, pdftest.Build("beta delta"))
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// When: the archive is reopened with bleve and reindexed
	cfg.Search.Backend = string(search.BackendBleve)
	b := openArchive(t, cfg)
	var reported int
	count, err := b.Reindex(ctx, func(n int) { reported = n })
	require.NoError(t, err)

	// Then: every fragment is searchable again through bleve
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, reported)
	assert.Equal(t, search.BackendBleve, search.DetectBackend(cfg.DataDir))

	hits, err := b.Search(ctx, "beta")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	ids := []docid.DocID{hits[0].ID, hits[1].ID}
	assert.ElementsMatch(t, []docid.DocID{first, second}, ids)

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bleve", stats.Index.Backend)
	assert.Equal(t, 3, stats.Index.Fragments)
}

func TestReindex_DropsStalePostings(t *testing.T) {
	// Given: an index entry for a document the store does not hold
	ctx := context.Background()
	a := openArchive(t, testConfig(t))
	id, err := a.Ingest(ctx, pdftest.Build("kept words"))
	require.NoError(t, err)
	stale := docid.FromContent([]byte("stale"))
	require.NoError(t, a.Index().IndexFragment(ctx, stale, 0, "kept orphan"))

	// When: the index is rebuilt
	_, err = a.Reindex(ctx, nil)
	require.NoError(t, err)

	// Then: only stored documents remain searchable
	hits, err := a.Search(ctx, "kept")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, id, hits[0].ID)
}

func TestReindex_FailureKeepsIndexUsable(t *testing.T) {
	tests := []struct {
		name  string
		setup func(a *Archive) context.Context
	}{
		{
			name: "new index cannot be created",
			setup: func(a *Archive) context.Context {
				a.searchCfg.Backend = "elastic"
				return context.Background()
			},
		},
		{
			name: "rebuild is cancelled",
			setup: func(*Archive) context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: an indexed document
			a := openArchive(t, testConfig(t))
			id, err := a.Ingest(context.Background(), pdftest.Build("survivor text"))
			require.NoError(t, err)

			// When: the rebuild fails
			_, err = a.Reindex(tt.setup(a), nil)
			require.Error(t, err)
			a.searchCfg.Backend = string(search.BackendSQLite)

			// Then: the live index still answers and accepts writes
			hits, err := a.Search(context.Background(), "survivor")
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, id, hits[0].ID)

			_, err = a.Ingest(context.Background(), pdftest.Build("another survivor"))
			require.NoError(t, err)
			assert.NoDirExists(t, filepath.Join(a.DataDir(), reindexDirName))
		})
	}
}

func TestIngest_DeletedContentReturnsAsPending(t *testing.T) {
	// Given: a document that was deleted from the inbox
	ctx := context.Background()
	a := openArchive(t, testConfig(t))
	raw := pdftest.Build("returning letter")
	id, err := a.Ingest(ctx, raw)
	require.NoError(t, err)
	require.NoError(t, a.Inbox().Delete(ctx, id))
	_, err = a.Bundles().GetBundle(ctx, id)
	require.True(t, errors.IsKind(err, errors.KindNotFound))

	// When: the same bytes are uploaded again
	again, err := a.Ingest(ctx, raw)

	// Then: the content address is reused and the document is pending again
	require.NoError(t, err)
	assert.Equal(t, id, again)
	_, err = a.Inbox().Get(ctx, id)
	require.NoError(t, err)
	hits, err := a.Search(ctx, "returning")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

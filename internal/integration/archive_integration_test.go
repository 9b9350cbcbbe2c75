// Package integration runs the archive end to end: HTTP API, client,
// consume folder and search against one data directory.
package integration

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docarchive/internal/api"
	"github.com/Aman-CERP/docarchive/internal/archive"
	"github.com/Aman-CERP/docarchive/internal/client"
	"github.com/Aman-CERP/docarchive/internal/config"
	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
	"github.com/Aman-CERP/docarchive/internal/extract/pdftest"
	"github.com/Aman-CERP/docarchive/internal/watcher"
)

type harness struct {
	archive *archive.Archive
	client  *client.Client
}

func newHarness(t *testing.T, backend string) *harness {
	t.Helper()
	cfg := config.NewConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Search.Backend = backend

	a, err := archive.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(api.NewServer(a, api.Config{}).Handler())
	t.Cleanup(srv.Close)

	c, err := client.New(srv.URL)
	require.NoError(t, err)
	return &harness{archive: a, client: c}
}

func TestArchive_UploadTriageSearch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, backend := range []string{"sqlite", "bleve"} {
		t.Run(backend, func(t *testing.T) {
			// Given: two documents uploaded over HTTP
			h := newHarness(t, backend)
			ctx := context.Background()

			invoice, err := h.client.Upload(ctx, pdftest.Build("invoice from acme", "payment due in thirty days"))
			require.NoError(t, err)
			lease, err := h.client.Upload(ctx, pdftest.Build("apartment lease", "rent payment schedule"))
			require.NoError(t, err)

			// When: one is archived with metadata and the other deleted
			require.NoError(t, h.client.InboxArchive(ctx, invoice, api.MetadataRequest{
				Labels:     []string{"finance"},
				Properties: map[string]string{"sender": "acme"},
			}))
			require.NoError(t, h.client.InboxDelete(ctx, lease))

			// Then: the inbox is empty
			list, err := h.client.InboxList(ctx)
			require.NoError(t, err)
			assert.Empty(t, list.Docs)

			// And: search finds only the archived document, on its second page
			res, err := h.client.Search(ctx, "payment")
			require.NoError(t, err)
			require.Len(t, res.Hits, 1)
			assert.Equal(t, invoice.String(), res.Hits[0].ID)
			assert.Equal(t, []int{1}, res.Hits[0].Fragments)

			// And: the deleted document is gone entirely
			_, err = h.client.Bundle(ctx, lease)
			assert.True(t, errors.IsKind(err, errors.KindNotFound))

			// And: fragments and bundle bytes round-trip
			frag, err := h.client.Fragment(ctx, invoice, 0)
			require.NoError(t, err)
			require.NotNil(t, frag.Text)
			assert.Contains(t, *frag.Text, "acme")

			raw, err := h.client.Bundle(ctx, invoice)
			require.NoError(t, err)
			assert.Equal(t, invoice, docid.FromContent(raw))

			_, err = h.client.Fragment(ctx, invoice, 2)
			assert.True(t, errors.IsKind(err, errors.KindOutOfRange))
		})
	}
}

func TestArchive_ConsumeFolderFeedsInbox(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a running consumer on the archive
	h := newHarness(t, "sqlite")
	dir := filepath.Join(t.TempDir(), "scans")
	consumer, err := watcher.NewConsumer(h.archive, watcher.ConsumerConfig{
		Dir:   dir,
		Watch: watcher.Options{DebounceWindow: 50 * time.Millisecond},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()
	time.Sleep(150 * time.Millisecond)

	// When: a scan and a broken file are dropped into the folder
	raw := pdftest.Build("scanned warranty card")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.pdf"), raw, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("not a pdf"), 0o644))

	// Then: the scan reaches the inbox and is searchable over HTTP
	require.Eventually(t, func() bool {
		s := consumer.Stats()
		return s.Ingested == 1 && s.Rejected == 1
	}, 5*time.Second, 20*time.Millisecond)

	entry, err := h.client.InboxGet(context.Background(), docid.FromContent(raw))
	require.NoError(t, err)
	assert.Empty(t, entry.Labels)

	res, err := h.client.Search(context.Background(), "warranty")
	require.NoError(t, err)
	assert.Len(t, res.Hits, 1)

	assert.FileExists(t, filepath.Join(dir, watcher.DoneDir, "scan.pdf"))
	assert.FileExists(t, filepath.Join(dir, watcher.FailedDir, "broken.pdf"))

	cancel()
	require.NoError(t, <-done)
}

func TestArchive_ReopenKeepsEverything(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an archived document and a recorded search
	cfg := config.NewConfig()
	cfg.DataDir = t.TempDir()
	ctx := context.Background()

	a, err := archive.Open(cfg)
	require.NoError(t, err)
	id, err := a.Ingest(ctx, pdftest.Build("tax return 2025"))
	require.NoError(t, err)
	require.NoError(t, a.Inbox().Archive(ctx, id, []string{"tax"}, nil))
	_, err = a.Search(ctx, "return")
	require.NoError(t, err)
	require.NoError(t, a.Close())

	// When: the data directory is reopened with the other backend and reindexed
	cfg.Search.Backend = "bleve"
	b, err := archive.Open(cfg)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()
	_, err = b.Reindex(ctx, nil)
	require.NoError(t, err)

	// Then: metadata, index and telemetry are all there
	bundle, err := b.Bundles().GetBundle(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, bundle.Filed)
	assert.Equal(t, []string{"tax"}, bundle.Filed.Labels)

	hits, err := b.Search(ctx, "tax")
	require.NoError(t, err)
	require.Len(t, hits, 1)

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Searches.Queries)
}

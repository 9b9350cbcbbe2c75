package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docarchive/internal/api"
	"github.com/Aman-CERP/docarchive/internal/archive"
	"github.com/Aman-CERP/docarchive/internal/config"
	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
	"github.com/Aman-CERP/docarchive/internal/extract/pdftest"
)

func newClient(t *testing.T) *Client {
	t.Helper()
	cfg := config.NewConfig()
	cfg.DataDir = t.TempDir()
	a, err := archive.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(api.NewServer(a, api.Config{}).Handler())
	t.Cleanup(srv.Close)

	c, err := New(srv.URL + "/")
	require.NoError(t, err)
	return c
}

func TestNew_RejectsInvalidURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8000", "://x"} {
		_, err := New(raw)
		assert.Error(t, err, raw)
	}
}

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	require.NoError(t, c.Health(ctx))

	// Given: an uploaded document
	raw := pdftest.Build("lease agreement", "rent schedule")
	id, err := c.Upload(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, docid.FromContent(raw), id)

	// Then: it is pending and searchable
	list, err := c.InboxList(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)

	res, err := c.Search(ctx, "rent schedule")
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, []int{1}, res.Hits[0].Fragments)

	frag, err := c.Fragment(ctx, id, 1)
	require.NoError(t, err)
	require.NotNil(t, frag.Text)
	assert.Equal(t, "rent schedule", *frag.Text)

	content, err := c.Bundle(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, raw, content)

	// When: it is updated and archived
	entry, err := c.InboxUpdate(ctx, id, api.MetadataRequest{Properties: map[string]string{"landlord": "acme"}})
	require.NoError(t, err)
	assert.Equal(t, "acme", entry.Properties["landlord"])
	require.NoError(t, c.InboxArchive(ctx, id, api.MetadataRequest{Labels: []string{"housing"}}))

	// Then: the filed metadata holds both inputs
	info, err := c.BundleInfo(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, info.Filed)
	assert.Equal(t, []string{"housing"}, info.Filed.Labels)
	assert.Equal(t, map[string]string{"landlord": "acme"}, info.Filed.Properties)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Store.Filed)
	assert.Equal(t, 0, stats.Pending)
}

func TestClient_PreservesErrorKinds(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	id, err := c.Upload(ctx, pdftest.Build("single"))
	require.NoError(t, err)
	unknown := docid.FromContent([]byte("unknown"))

	_, err = c.InboxGet(ctx, unknown)
	assert.True(t, errors.IsKind(err, errors.KindNotFound), "%v", err)

	err = c.InboxDelete(ctx, unknown)
	assert.True(t, errors.IsKind(err, errors.KindNotFound), "%v", err)

	_, err = c.Fragment(ctx, id, 5)
	assert.True(t, errors.IsKind(err, errors.KindOutOfRange), "%v", err)

	_, err = c.Upload(ctx, []byte("not a pdf"))
	assert.True(t, errors.IsKind(err, errors.KindUnsupportedFormat), "%v", err)
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.InboxList(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindInternal, errors.KindOf(err))
	assert.Contains(t, err.Error(), "bad gateway")
}

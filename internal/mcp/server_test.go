package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docarchive/internal/archive"
	"github.com/Aman-CERP/docarchive/internal/config"
	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/extract/pdftest"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *archive.Archive) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.DataDir = t.TempDir()
	a, err := archive.Open(cfg, archive.WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return NewServer(a), a
}

func ingest(t *testing.T, a *archive.Archive, pages ...string) docid.DocID {
	t.Helper()
	id, err := a.Ingest(context.Background(), pdftest.Build(pages...))
	require.NoError(t, err)
	return id
}

func requireMCPCode(t *testing.T, err error, code int) {
	t.Helper()
	var me *MCPError
	require.True(t, stderrors.As(err, &me), "expected MCPError, got %v", err)
	assert.Equal(t, code, me.Code)
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestNewServer_RegistersTools(t *testing.T) {
	srv, _ := newTestServer(t)

	names := make([]string, 0)
	for _, tool := range srv.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.ElementsMatch(t, []string{
		"search", "inbox_list", "inbox_show", "inbox_archive", "inbox_delete", "get_fragment",
	}, names)
	assert.NotNil(t, srv.MCPServer())
}

func TestHandleSearch(t *testing.T) {
	// Given: two documents, one mentioning the term twice
	ctx := context.Background()
	srv, a := newTestServer(t)
	twice := ingest(t, a, "invoice number", "invoice total")
	once := ingest(t, a, "an invoice")
	ingest(t, a, "unrelated letter")

	// When: searching
	res, out, err := srv.handleSearch(ctx, nil, SearchInput{Query: "invoice"})

	// Then: both match, best score first
	require.NoError(t, err)
	assert.Equal(t, 2, out.Total)
	require.Len(t, out.Results, 2)
	assert.Equal(t, twice.String(), out.Results[0].ID)
	assert.Equal(t, []int{0, 1}, out.Results[0].Fragments)
	assert.Equal(t, once.String(), out.Results[1].ID)
	assert.Contains(t, resultText(t, res), "Found 2 documents")
}

func TestHandleSearch_Limit(t *testing.T) {
	ctx := context.Background()
	srv, a := newTestServer(t)
	ingest(t, a, "receipt one")
	ingest(t, a, "receipt two")

	_, out, err := srv.handleSearch(ctx, nil, SearchInput{Query: "receipt", Limit: 1})

	require.NoError(t, err)
	assert.Equal(t, 2, out.Total)
	assert.Len(t, out.Results, 1)
}

func TestHandleSearch_EmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	_, _, err := srv.handleSearch(context.Background(), nil, SearchInput{})

	requireMCPCode(t, err, ErrCodeInvalidParams)
}

func TestHandleInbox_Lifecycle(t *testing.T) {
	// Given: a pending document
	ctx := context.Background()
	srv, a := newTestServer(t)
	id := ingest(t, a, "contract draft")

	// When: listing and showing it
	res, list, err := srv.handleInboxList(ctx, nil, InboxListInput{})
	require.NoError(t, err)
	_, entry, err := srv.handleInboxShow(ctx, nil, DocumentInput{ID: id.String()})
	require.NoError(t, err)

	// Then: it is pending with empty metadata
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, []string{id.String()}, list.Docs)
	assert.True(t, strings.HasPrefix(resultText(t, res), "1 document in inbox"))
	assert.Equal(t, "2026-03-01T12:00:00Z", entry.Uploaded)
	assert.Equal(t, []string{}, entry.Labels)
	assert.Equal(t, map[string]string{}, entry.Properties)

	// When: archiving it
	_, status, err := srv.handleInboxArchive(ctx, nil, InboxArchiveInput{
		ID:         id.String(),
		Labels:     []string{"legal"},
		Properties: map[string]string{"party": "acme"},
	})
	require.NoError(t, err)
	assert.Equal(t, "archived", status.Status)

	// Then: the inbox is empty and the bundle is filed
	res, list, err = srv.handleInboxList(ctx, nil, InboxListInput{})
	require.NoError(t, err)
	assert.Equal(t, 0, list.Count)
	assert.Equal(t, "Inbox is empty", resultText(t, res))

	b, err := a.Bundles().GetBundle(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, b.Filed)
	assert.Equal(t, map[string]string{"party": "acme"}, b.Filed.Properties)

	_, _, err = srv.handleInboxShow(ctx, nil, DocumentInput{ID: id.String()})
	requireMCPCode(t, err, ErrCodeNotFound)
}

func TestHandleInboxDelete(t *testing.T) {
	ctx := context.Background()
	srv, a := newTestServer(t)
	id := ingest(t, a, "spam flyer")

	_, status, err := srv.handleInboxDelete(ctx, nil, DocumentInput{ID: id.String()})
	require.NoError(t, err)
	assert.Equal(t, "deleted", status.Status)

	hits, err := a.Search(ctx, "flyer")
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, _, err = srv.handleInboxDelete(ctx, nil, DocumentInput{ID: id.String()})
	requireMCPCode(t, err, ErrCodeNotFound)
}

func TestHandlers_InvalidID(t *testing.T) {
	ctx := context.Background()
	srv, _ := newTestServer(t)

	_, _, err := srv.handleInboxShow(ctx, nil, DocumentInput{ID: "not-hex"})
	requireMCPCode(t, err, ErrCodeInvalidParams)

	_, _, err = srv.handleInboxDelete(ctx, nil, DocumentInput{})
	requireMCPCode(t, err, ErrCodeInvalidParams)

	_, _, err = srv.handleGetFragment(ctx, nil, FragmentInput{ID: strings.Repeat("z", 64)})
	requireMCPCode(t, err, ErrCodeInvalidParams)
}

func TestHandleGetFragment(t *testing.T) {
	// Given: a two-page document
	ctx := context.Background()
	srv, a := newTestServer(t)
	id := ingest(t, a, "first page", "second page")

	// When: reading page 1
	res, out, err := srv.handleGetFragment(ctx, nil, FragmentInput{ID: id.String(), Index: 1})

	// Then: its text comes back
	require.NoError(t, err)
	assert.True(t, out.HasText)
	assert.Equal(t, "second page", out.Text)
	assert.Equal(t, 1, out.Index)
	assert.Positive(t, out.Size)
	assert.Contains(t, resultText(t, res), "second page")

	// And: an index past the end is out of range
	_, _, err = srv.handleGetFragment(ctx, nil, FragmentInput{ID: id.String(), Index: 2})
	requireMCPCode(t, err, ErrCodeOutOfRange)

	// And: a negative index is an invalid parameter
	_, _, err = srv.handleGetFragment(ctx, nil, FragmentInput{ID: id.String(), Index: -1})
	requireMCPCode(t, err, ErrCodeInvalidParams)

	// And: an unknown document is not found
	unknown := docid.FromContent([]byte("never uploaded"))
	_, _, err = srv.handleGetFragment(ctx, nil, FragmentInput{ID: unknown.String()})
	requireMCPCode(t, err, ErrCodeNotFound)
}

func TestReadFragmentResource(t *testing.T) {
	ctx := context.Background()
	srv, a := newTestServer(t)
	id := ingest(t, a, "cover letter")
	uri := fragmentURIPrefix + id.String() + "/0"

	res, err := srv.handleReadFragment(ctx, &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: uri},
	})

	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, uri, res.Contents[0].URI)
	assert.Equal(t, "text/plain", res.Contents[0].MIMEType)
	assert.Equal(t, "cover letter", res.Contents[0].Text)
}

func TestReadFragmentResource_BadURI(t *testing.T) {
	ctx := context.Background()
	srv, a := newTestServer(t)
	id := ingest(t, a, "cover letter")

	tests := []struct {
		name string
		uri  string
		code int
	}{
		{"wrong scheme", "file:///etc/passwd", ErrCodeNotFound},
		{"missing index", fragmentURIPrefix + id.String(), ErrCodeNotFound},
		{"bad index", fragmentURIPrefix + id.String() + "/x", ErrCodeInvalidParams},
		{"bad id", fragmentURIPrefix + "abc/0", ErrCodeInvalidParams},
		{"out of range", fragmentURIPrefix + id.String() + "/5", ErrCodeOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.handleReadFragment(ctx, &mcp.ReadResourceRequest{
				Params: &mcp.ReadResourceParams{URI: tt.uri},
			})
			requireMCPCode(t, err, tt.code)
		})
	}
}

func TestReadStatsResource(t *testing.T) {
	ctx := context.Background()
	srv, a := newTestServer(t)
	ingest(t, a, "one", "two")

	res, err := srv.handleReadStats(ctx, &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{URI: statsURI},
	})

	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	var stats archive.Stats
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &stats))
	assert.Equal(t, 1, stats.Store.Bundles)
	assert.Equal(t, 2, stats.Store.Fragments)
	assert.Equal(t, 1, stats.Pending)
}

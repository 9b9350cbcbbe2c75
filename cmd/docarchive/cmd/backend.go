package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/Aman-CERP/docarchive/internal/api"
	"github.com/Aman-CERP/docarchive/internal/archive"
	"github.com/Aman-CERP/docarchive/internal/client"
	"github.com/Aman-CERP/docarchive/internal/config"
	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
	"github.com/Aman-CERP/docarchive/internal/search"
	"github.com/Aman-CERP/docarchive/internal/store"
	"github.com/Aman-CERP/docarchive/internal/telemetry"
	"github.com/Aman-CERP/docarchive/internal/ui"
)

// backend is what the CLI commands run against: the local data directory
// or a remote server. Both speak the HTTP API's wire types.
type backend interface {
	IngestFile(ctx context.Context, path string) (docid.DocID, error)
	InboxList(ctx context.Context) ([]string, error)
	InboxGet(ctx context.Context, id docid.DocID) (*api.InboxGetResponse, error)
	InboxDelete(ctx context.Context, id docid.DocID) error
	InboxArchive(ctx context.Context, id docid.DocID, req api.MetadataRequest) error
	InboxUpdate(ctx context.Context, id docid.DocID, req api.MetadataRequest) (*api.InboxGetResponse, error)
	Search(ctx context.Context, query string) (*api.SearchResponse, error)
	Bundle(ctx context.Context, id docid.DocID) ([]byte, error)
	Fragment(ctx context.Context, id docid.DocID, index int) (*api.FragmentResponse, error)
	Stats(ctx context.Context) (ui.StatsInfo, error)
	Close() error
}

// openBackend returns a remote backend when --server is set and the local
// archive otherwise.
func openBackend() (backend, error) {
	if serverURL != "" {
		c, err := client.New(serverURL)
		if err != nil {
			return nil, err
		}
		return &remoteBackend{client: c}, nil
	}

	a, err := openArchive()
	if err != nil {
		return nil, err
	}
	return &localBackend{archive: a}, nil
}

// loadConfig loads the configuration for --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openArchive opens the local archive named by the configuration.
func openArchive() (*archive.Archive, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openArchiveWith(cfg)
}

// archiveOpenError adds a hint when the data directory is locked.
func archiveOpenError(err error) error {
	if stderrors.Is(err, archive.ErrLocked) {
		return errors.New(errors.ErrCodeStorageFailure, err.Error(), err).
			WithSuggestion("A server may be running on this data directory; pass --server to use it")
	}
	return err
}

// localBackend runs commands in-process.
type localBackend struct {
	archive *archive.Archive
}

func (b *localBackend) IngestFile(ctx context.Context, path string) (docid.DocID, error) {
	return b.archive.Pipeline().IngestFile(ctx, path)
}

func (b *localBackend) InboxList(ctx context.Context) ([]string, error) {
	ids, err := b.archive.Inbox().List(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]string, len(ids))
	for i, id := range ids {
		docs[i] = id.String()
	}
	return docs, nil
}

func (b *localBackend) InboxGet(ctx context.Context, id docid.DocID) (*api.InboxGetResponse, error) {
	e, err := b.archive.Inbox().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := api.NewInboxGetResponse(e)
	return &resp, nil
}

func (b *localBackend) InboxDelete(ctx context.Context, id docid.DocID) error {
	return b.archive.Inbox().Delete(ctx, id)
}

func (b *localBackend) InboxArchive(ctx context.Context, id docid.DocID, req api.MetadataRequest) error {
	return b.archive.Inbox().Archive(ctx, id, req.Labels, req.Properties)
}

func (b *localBackend) InboxUpdate(ctx context.Context, id docid.DocID, req api.MetadataRequest) (*api.InboxGetResponse, error) {
	e, err := b.archive.Inbox().Update(ctx, id, req.Labels, req.Properties)
	if err != nil {
		return nil, err
	}
	resp := api.NewInboxGetResponse(e)
	return &resp, nil
}

func (b *localBackend) Search(ctx context.Context, query string) (*api.SearchResponse, error) {
	hits, err := b.archive.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	resp := api.NewSearchResponse(query, hits)
	return &resp, nil
}

func (b *localBackend) Bundle(ctx context.Context, id docid.DocID) ([]byte, error) {
	bundle, err := b.archive.Bundles().GetBundle(ctx, id)
	if err != nil {
		return nil, err
	}
	return bundle.Content, nil
}

func (b *localBackend) Fragment(ctx context.Context, id docid.DocID, index int) (*api.FragmentResponse, error) {
	frag, err := b.archive.Bundles().GetFragment(ctx, id, index)
	if err != nil {
		return nil, err
	}
	return &api.FragmentResponse{
		ID:    id.String(),
		Index: frag.Index,
		Text:  frag.Text,
		Size:  len(frag.Content),
	}, nil
}

func (b *localBackend) Stats(ctx context.Context) (ui.StatsInfo, error) {
	s, err := b.archive.Stats(ctx)
	if err != nil {
		return ui.StatsInfo{}, err
	}
	info := statsInfo(s.Store, s.Index, s.Pending, s.Searches)
	info.DataDir = s.DataDir
	return info, nil
}

func (b *localBackend) Close() error {
	return b.archive.Close()
}

// remoteBackend forwards commands to a running server.
type remoteBackend struct {
	client *client.Client
}

func (b *remoteBackend) IngestFile(ctx context.Context, path string) (docid.DocID, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return docid.DocID{}, errors.NotFound(fmt.Sprintf("file %s not found", path))
	}
	if err != nil {
		return docid.DocID{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return b.client.Upload(ctx, raw)
}

func (b *remoteBackend) InboxList(ctx context.Context) ([]string, error) {
	resp, err := b.client.InboxList(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Docs, nil
}

func (b *remoteBackend) InboxGet(ctx context.Context, id docid.DocID) (*api.InboxGetResponse, error) {
	return b.client.InboxGet(ctx, id)
}

func (b *remoteBackend) InboxDelete(ctx context.Context, id docid.DocID) error {
	return b.client.InboxDelete(ctx, id)
}

func (b *remoteBackend) InboxArchive(ctx context.Context, id docid.DocID, req api.MetadataRequest) error {
	return b.client.InboxArchive(ctx, id, req)
}

func (b *remoteBackend) InboxUpdate(ctx context.Context, id docid.DocID, req api.MetadataRequest) (*api.InboxGetResponse, error) {
	return b.client.InboxUpdate(ctx, id, req)
}

func (b *remoteBackend) Search(ctx context.Context, query string) (*api.SearchResponse, error) {
	return b.client.Search(ctx, query)
}

func (b *remoteBackend) Bundle(ctx context.Context, id docid.DocID) ([]byte, error) {
	return b.client.Bundle(ctx, id)
}

func (b *remoteBackend) Fragment(ctx context.Context, id docid.DocID, index int) (*api.FragmentResponse, error) {
	return b.client.Fragment(ctx, id, index)
}

func (b *remoteBackend) Stats(ctx context.Context) (ui.StatsInfo, error) {
	s, err := b.client.Stats(ctx)
	if err != nil {
		return ui.StatsInfo{}, err
	}
	return statsInfo(s.Store, s.Index, s.Pending, s.Searches), nil
}

func (b *remoteBackend) Close() error {
	return nil
}

func statsInfo(st store.StoreStats, idx search.IndexStats, pending int, q telemetry.Snapshot) ui.StatsInfo {
	info := ui.StatsInfo{
		Bundles:          st.Bundles,
		Fragments:        st.Fragments,
		Filed:            st.Filed,
		Pending:          pending,
		TotalBytes:       st.TotalBytes,
		Backend:          idx.Backend,
		IndexedDocuments: idx.Documents,
		IndexedPages:     idx.Fragments,
		Searches:         q.Queries,
		ZeroResults:      q.ZeroResults,
		RecentMisses:     q.RecentMisses,
	}
	for _, tc := range q.TopTerms {
		info.TopTerms = append(info.TopTerms, tc.Term)
	}
	return info
}

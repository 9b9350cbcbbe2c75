// Package archive opens a data directory and wires the bundle store, search
// index, inbox workflow and ingestion pipeline over it.
//
// One process owns a data directory at a time; Open takes an exclusive
// flock and fails fast with ErrLocked otherwise. Every adapter (HTTP, MCP,
// CLI, consume watcher) works through the components of one Archive.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docarchive/internal/config"
	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
	"github.com/Aman-CERP/docarchive/internal/extract"
	"github.com/Aman-CERP/docarchive/internal/inbox"
	"github.com/Aman-CERP/docarchive/internal/ingest"
	"github.com/Aman-CERP/docarchive/internal/keylock"
	"github.com/Aman-CERP/docarchive/internal/search"
	"github.com/Aman-CERP/docarchive/internal/store"
	"github.com/Aman-CERP/docarchive/internal/telemetry"
)

// blobDirName holds the content-addressed bundle bytes.
const blobDirName = "blobs"

// Archive is an opened data directory.
type Archive struct {
	dataDir   string
	searchCfg search.Config
	ingestCfg ingest.Config
	now       func() time.Time

	lock      *dirLock
	db        *sql.DB
	locks     *keylock.Map
	extractor extract.Extractor
	queries   *telemetry.QueryMetrics

	// mu guards the component fields, which Reindex swaps.
	mu       sync.RWMutex
	bundles  *store.SQLiteBundleStore
	index    search.Index
	inbox    *inbox.Workflow
	pipeline *ingest.Pipeline

	closeOnce sync.Once
	closeErr  error
}

// Option configures an Archive.
type Option func(*Archive)

// WithClock overrides the time source of every component.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) {
		a.now = now
	}
}

// WithExtractor replaces the PDF extractor.
func WithExtractor(e extract.Extractor) Option {
	return func(a *Archive) {
		a.extractor = e
	}
}

// Open locks cfg.DataDir and opens every component inside it.
func Open(cfg *config.Config, opts ...Option) (*Archive, error) {
	a := &Archive{
		dataDir: cfg.DataDir,
		searchCfg: search.Config{
			Backend:        cfg.Search.Backend,
			MinTokenLength: cfg.Search.MinTokenLength,
			StopWords:      cfg.Search.StopWords,
		},
		ingestCfg: ingest.Config{
			Concurrency: cfg.Ingest.Concurrency,
			MaxFileSize: cfg.Ingest.MaxFileSize,
		},
		now:       time.Now,
		locks:     keylock.New(),
		extractor: extract.NewPDFExtractor(),
	}
	for _, opt := range opts {
		opt(a)
	}

	lock, err := lockDir(a.dataDir)
	if err != nil {
		return nil, err
	}
	a.lock = lock

	db, err := store.OpenArchiveDB(filepath.Join(a.dataDir, store.ArchiveDBName))
	if err != nil {
		_ = lock.Unlock()
		return nil, errors.StorageFailure("failed to open archive database", err)
	}
	a.db = db

	bundles, err := store.NewSQLiteBundleStore(db, filepath.Join(a.dataDir, blobDirName),
		cfg.Store.CacheSize, store.WithClock(a.now))
	if err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	a.bundles = bundles

	telemetryStore, err := telemetry.NewSQLiteStore(db)
	if err == nil {
		a.queries, err = telemetry.NewQueryMetrics(context.Background(), telemetryStore, telemetry.DefaultConfig())
	}
	if err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, errors.StorageFailure("failed to load search telemetry", err)
	}

	if existing := search.DetectBackend(a.dataDir); existing != "" && string(existing) != a.searchCfg.Backend {
		slog.Warn("search index backend differs from configuration",
			slog.String("existing", string(existing)),
			slog.String("configured", a.searchCfg.Backend),
			slog.String("hint", "run docarchive reindex to populate the configured backend"))
	}

	index, err := search.NewIndex(a.dataDir, a.searchCfg)
	if err != nil {
		_ = a.queries.Close(context.Background())
		_ = db.Close()
		_ = lock.Unlock()
		return nil, errors.IndexFailure("failed to open search index", err)
	}
	a.wire(index)

	slog.Info("archive opened",
		slog.String("data_dir", a.dataDir),
		slog.String("search_backend", a.searchCfg.Backend))
	return a, nil
}

// wire builds the components that depend on the index. Callers hold mu
// or have exclusive access.
func (a *Archive) wire(index search.Index) {
	a.index = index
	a.inbox = inbox.NewWorkflow(inbox.NewRepository(a.db), a.bundles, index, a.locks,
		inbox.WithClock(a.now))
	a.pipeline = ingest.NewPipeline(a.extractor, a.bundles, index, a.inbox, a.locks,
		a.ingestCfg, ingest.WithClock(a.now))
}

// DataDir returns the data directory.
func (a *Archive) DataDir() string {
	return a.dataDir
}

// Bundles returns the bundle store.
func (a *Archive) Bundles() store.BundleStore {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bundles
}

// Index returns the search index.
func (a *Archive) Index() search.Index {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.index
}

// Inbox returns the inbox workflow.
func (a *Archive) Inbox() *inbox.Workflow {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.inbox
}

// Pipeline returns the ingestion pipeline.
func (a *Archive) Pipeline() *ingest.Pipeline {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pipeline
}

// Ingest runs raw through the ingestion pipeline.
func (a *Archive) Ingest(ctx context.Context, raw []byte) (docid.DocID, error) {
	return a.Pipeline().Ingest(ctx, raw)
}

// Search queries the search index and records the search.
func (a *Archive) Search(ctx context.Context, query string) ([]search.Hit, error) {
	start := time.Now()
	hits, err := a.Index().Search(ctx, query)
	if err != nil {
		return nil, err
	}
	a.queries.Record(telemetry.QueryEvent{
		Query:   query,
		Hits:    len(hits),
		Latency: time.Since(start),
		Time:    a.now(),
	})
	return hits, nil
}

// Stats summarizes an archive.
type Stats struct {
	DataDir string            `json:"data_dir"`
	Store   store.StoreStats  `json:"store"`
	Index   search.IndexStats `json:"index"`
	Pending int               `json:"pending"`

	Searches telemetry.Snapshot `json:"searches"`
}

// Stats collects store, index and inbox statistics concurrently.
func (a *Archive) Stats(ctx context.Context) (*Stats, error) {
	bundles, index, wf := a.Bundles(), a.Index(), a.Inbox()
	stats := &Stats{DataDir: a.dataDir, Searches: a.queries.Snapshot()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := bundles.Stats(gctx)
		if err != nil {
			return err
		}
		stats.Store = *s
		return nil
	})
	g.Go(func() error {
		s, err := index.Stats(gctx)
		if err != nil {
			return err
		}
		stats.Index = *s
		return nil
	})
	g.Go(func() error {
		n, err := wf.Count(gctx)
		if err != nil {
			return err
		}
		stats.Pending = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// ReindexProgress is called after each fragment Reindex indexes.
type ReindexProgress func(fragments int)

// reindexDirName holds the index being rebuilt until it replaces the live one.
const reindexDirName = ".reindex"

// Reindex rebuilds the search index from the fragment text in the bundle
// store and returns the number of fragments indexed. The new index is built
// beside the live one, which keeps serving until the rebuild succeeds; on
// any failure before the swap the live index is left as it was.
func (a *Archive) Reindex(ctx context.Context, progress ReindexProgress) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	staging := filepath.Join(a.dataDir, reindexDirName)
	if err := os.RemoveAll(staging); err != nil {
		return 0, errors.IndexFailure("failed to clear previous rebuild", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return 0, errors.IndexFailure("failed to create rebuild directory", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	built, err := search.NewIndex(staging, a.searchCfg)
	if err != nil {
		return 0, errors.IndexFailure("failed to create search index", err)
	}

	count := 0
	err = a.bundles.ForEachText(ctx, func(id docid.DocID, fragment int, text string) error {
		if err := built.IndexFragment(ctx, id, fragment, text); err != nil {
			return err
		}
		count++
		if progress != nil {
			progress(count)
		}
		return nil
	})
	if cerr := built.Close(); err == nil && cerr != nil {
		err = errors.IndexFailure("failed to close rebuilt search index", cerr)
	}
	if err != nil {
		return count, err
	}

	if err := a.index.Close(); err != nil {
		slog.Warn("failed to close search index before swap", slog.String("error", err.Error()))
	}
	if err := swapIndexFiles(staging, a.dataDir); err != nil {
		return count, a.reopenIndex(errors.IndexFailure("failed to install rebuilt search index", err))
	}
	index, err := search.NewIndex(a.dataDir, a.searchCfg)
	if err != nil {
		return count, a.reopenIndex(errors.IndexFailure("failed to open rebuilt search index", err))
	}
	a.wire(index)

	slog.Info("search index rebuilt",
		slog.String("backend", a.searchCfg.Backend),
		slog.Int("fragments", count),
		slog.Duration("duration", time.Since(start)))
	return count, nil
}

// reopenIndex opens whatever index is on disk after a failed swap, so later
// operations do not run against a closed index. It returns cause.
func (a *Archive) reopenIndex(cause error) error {
	index, err := search.NewIndex(a.dataDir, a.searchCfg)
	if err != nil {
		slog.Error("search index unavailable after failed rebuild",
			slog.String("error", err.Error()))
		return cause
	}
	a.wire(index)
	return cause
}

// indexFiles lists every on-disk path of every backend's index in dir.
func indexFiles(dir string) []string {
	sqlitePath := search.IndexPath(dir, search.BackendSQLite)
	return []string{
		sqlitePath,
		sqlitePath + "-wal",
		sqlitePath + "-shm",
		search.IndexPath(dir, search.BackendBleve),
	}
}

// swapIndexFiles replaces the index in dataDir with the one built in
// staging. Indexes of other backends are removed too, so a backend switch
// leaves nothing stale behind.
func swapIndexFiles(staging, dataDir string) error {
	for _, p := range indexFiles(dataDir) {
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	built := indexFiles(staging)
	for i, p := range indexFiles(dataDir) {
		if _, err := os.Stat(built[i]); os.IsNotExist(err) {
			continue
		}
		if err := os.Rename(built[i], p); err != nil {
			return fmt.Errorf("install %s: %w", p, err)
		}
	}
	return nil
}

// Close flushes search telemetry, then releases the index, the database
// and the data directory lock, in that order. It is safe to call more than once.
func (a *Archive) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		var errs []error
		if err := a.queries.Close(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("flush search telemetry: %w", err))
		}
		if err := a.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close search index: %w", err))
		}
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close archive database: %w", err))
		}
		if err := a.lock.Unlock(); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			a.closeErr = errs[0]
			for _, err := range errs[1:] {
				slog.Warn("archive close", slog.String("error", err.Error()))
			}
		}
	})
	return a.closeErr
}

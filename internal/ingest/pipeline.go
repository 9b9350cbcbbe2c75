// Package ingest turns uploaded documents into stored, indexed, pending documents.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
	"github.com/Aman-CERP/docarchive/internal/extract"
	"github.com/Aman-CERP/docarchive/internal/inbox"
	"github.com/Aman-CERP/docarchive/internal/keylock"
	"github.com/Aman-CERP/docarchive/internal/search"
	"github.com/Aman-CERP/docarchive/internal/store"
)

// DefaultMaxFileSize is the largest file IngestFile accepts (100 MiB).
const DefaultMaxFileSize = 100 << 20

// Config configures the ingestion pipeline.
type Config struct {
	// Concurrency bounds the fragment writes in flight per document.
	// 0 uses GOMAXPROCS.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// MaxFileSize bounds IngestFile input in bytes. 0 uses DefaultMaxFileSize.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
}

// Pipeline runs extraction, storage, indexing and inbox creation for one upload.
type Pipeline struct {
	extractor   extract.Extractor
	bundles     store.BundleStore
	index       search.Index
	inbox       *inbox.Workflow
	locks       *keylock.Map
	concurrency int
	maxFileSize int64
	now         func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source used for upload timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a pipeline. locks must be the map the inbox workflow uses.
func NewPipeline(extractor extract.Extractor, bundles store.BundleStore, index search.Index,
	wf *inbox.Workflow, locks *keylock.Map, cfg Config, opts ...Option) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.GOMAXPROCS(0)
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}

	p := &Pipeline{
		extractor:   extractor,
		bundles:     bundles,
		index:       index,
		inbox:       wf,
		locks:       locks,
		concurrency: cfg.Concurrency,
		maxFileSize: cfg.MaxFileSize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest stores raw, indexes its pages and makes it pending.
// The pending entry is created only after every fragment is stored and
// indexed. On failure no entry is created and a bundle written by this
// call is removed again. Re-ingesting known content returns the same id.
// Ids are content addresses: uploading the bytes of a deleted document
// brings it back as pending under its old id, and an archived document
// stays archived.
func (p *Pipeline) Ingest(ctx context.Context, raw []byte) (docid.DocID, error) {
	start := time.Now()

	pages, err := p.extractor.Extract(ctx, raw)
	if err != nil {
		return docid.DocID{}, err
	}

	id := docid.FromContent(raw)
	unlock := p.locks.Lock(id.String())
	defer unlock()

	id, created, err := p.bundles.PutBundle(ctx, raw)
	if err != nil {
		return docid.DocID{}, err
	}

	if err := p.persistPages(ctx, id, pages); err != nil {
		p.rollback(ctx, id, created, err)
		return docid.DocID{}, err
	}

	if err := p.inbox.Create(ctx, id, p.now()); err != nil {
		p.rollback(ctx, id, created, err)
		return docid.DocID{}, err
	}

	slog.Info("document ingested",
		slog.String("id", id.String()),
		slog.Int("pages", len(pages)),
		slog.Bool("new", created),
		slog.Duration("duration", time.Since(start)))
	return id, nil
}

// persistPages stores every page and indexes every page with text.
func (p *Pipeline) persistPages(ctx context.Context, id docid.DocID, pages []extract.Page) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, page := range pages {
		g.Go(func() error {
			frag := store.Fragment{Index: i, Content: page.Content, Text: page.Text}
			if err := p.bundles.PutFragment(gctx, id, frag); err != nil {
				return err
			}
			if page.Text == nil {
				return nil
			}
			return p.index.IndexFragment(gctx, id, i, *page.Text)
		})
	}
	return g.Wait()
}

// rollback removes what a failed ingestion wrote. Content that existed
// before this call is left alone.
func (p *Pipeline) rollback(ctx context.Context, id docid.DocID, created bool, cause error) {
	slog.Warn("ingestion failed",
		slog.String("id", id.String()),
		slog.Bool("rollback", created),
		slog.String("error", cause.Error()))
	if !created {
		return
	}

	ctx = context.WithoutCancel(ctx)
	if err := p.index.RemoveDocument(ctx, id); err != nil {
		slog.Error("rollback: remove postings failed",
			slog.String("id", id.String()),
			slog.String("error", err.Error()))
	}
	if err := p.bundles.DeleteBundle(ctx, id); err != nil {
		slog.Error("rollback: delete bundle failed",
			slog.String("id", id.String()),
			slog.String("error", err.Error()))
	}
}

// IngestFile reads path and ingests it.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (docid.DocID, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return docid.DocID{}, errors.NotFound(fmt.Sprintf("file %s not found", path))
	}
	if err != nil {
		return docid.DocID{}, errors.StorageFailure("stat upload", err)
	}
	if info.IsDir() {
		return docid.DocID{}, errors.UnsupportedFormat(fmt.Sprintf("%s is a directory", path), nil)
	}
	if info.Size() > p.maxFileSize {
		return docid.DocID{}, errors.UnsupportedFormat(
			fmt.Sprintf("%s is %d bytes, limit is %d", path, info.Size(), p.maxFileSize), nil)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return docid.DocID{}, errors.StorageFailure("read upload", err)
	}
	return p.Ingest(ctx, raw)
}

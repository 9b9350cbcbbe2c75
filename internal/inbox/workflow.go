// Package inbox implements the triage workflow of newly ingested documents.
//
// Every document is in exactly one state. Ingestion makes it Pending; from
// there it is either Archived, with its labels and properties filed, or
// Deleted together with its bundle and postings. Both are terminal.
package inbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/keylock"
	"github.com/Aman-CERP/docarchive/internal/search"
	"github.com/Aman-CERP/docarchive/internal/store"
)

// Entry is a document awaiting triage.
type Entry struct {
	ID         docid.DocID
	UploadedAt time.Time
	Labels     []string          // sorted, unique
	Properties map[string]string // keys unique
}

// Workflow drives the Pending, Archived and Deleted transitions.
type Workflow struct {
	repo    *Repository
	bundles store.BundleStore
	index   search.Index
	locks   *keylock.Map
	now     func() time.Time
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithClock overrides the time source used for filing timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		w.now = now
	}
}

// NewWorkflow creates a workflow. locks must be the same map the ingestion
// pipeline uses, so transitions of one document never interleave with its ingestion.
func NewWorkflow(repo *Repository, bundles store.BundleStore, index search.Index, locks *keylock.Map, opts ...Option) *Workflow {
	w := &Workflow{
		repo:    repo,
		bundles: bundles,
		index:   index,
		locks:   locks,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Create makes id Pending. An existing entry keeps its original upload time,
// and a filed document stays filed.
// The caller must hold the id lock; ingestion calls this as its final step.
func (w *Workflow) Create(ctx context.Context, id docid.DocID, uploadedAt time.Time) error {
	created, err := w.repo.Create(ctx, id, uploadedAt)
	if err != nil {
		return err
	}
	if created {
		slog.Info("document pending", slog.String("id", id.String()))
	}
	return nil
}

// List returns pending ids, oldest upload first.
func (w *Workflow) List(ctx context.Context) ([]docid.DocID, error) {
	return w.repo.List(ctx)
}

// Count returns the number of pending documents.
func (w *Workflow) Count(ctx context.Context) (int, error) {
	return w.repo.Count(ctx)
}

// Get returns the pending entry for id, or NotFound.
func (w *Workflow) Get(ctx context.Context, id docid.DocID) (*Entry, error) {
	return w.repo.Get(ctx, id)
}

// Delete moves id from Pending to Deleted, removing its postings and bundle.
// Fails NotFound unless id is Pending.
func (w *Workflow) Delete(ctx context.Context, id docid.DocID) error {
	unlock := w.locks.Lock(id.String())
	defer unlock()

	if _, err := w.repo.Get(ctx, id); err != nil {
		return err
	}

	// The entry goes last: after a partial failure the document is still
	// Pending and the delete can be repeated.
	if err := w.index.RemoveDocument(ctx, id); err != nil {
		return err
	}
	if err := w.bundles.DeleteBundle(ctx, id); err != nil {
		return err
	}
	if err := w.repo.Remove(ctx, id); err != nil {
		return err
	}

	slog.Info("document deleted", slog.String("id", id.String()))
	return nil
}

// Archive moves id from Pending to Archived. labels are merged by union and
// properties with incoming keys winning; the result becomes the filed metadata.
// Fails NotFound unless id is Pending.
func (w *Workflow) Archive(ctx context.Context, id docid.DocID, labels []string, properties map[string]string) error {
	unlock := w.locks.Lock(id.String())
	defer unlock()

	e, err := w.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	merge(e, labels, properties)

	if err := w.repo.File(ctx, e, w.now()); err != nil {
		return err
	}

	slog.Info("document archived",
		slog.String("id", id.String()),
		slog.Int("labels", len(e.Labels)),
		slog.Int("properties", len(e.Properties)))
	return nil
}

// Update merges labels and properties into a Pending entry without filing it.
func (w *Workflow) Update(ctx context.Context, id docid.DocID, labels []string, properties map[string]string) (*Entry, error) {
	unlock := w.locks.Lock(id.String())
	defer unlock()

	e, err := w.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	merge(e, labels, properties)

	if err := w.repo.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func merge(e *Entry, labels []string, properties map[string]string) {
	e.Labels = store.MergeLabels(e.Labels, labels)
	e.Properties = store.MergeProperties(e.Properties, properties)
}

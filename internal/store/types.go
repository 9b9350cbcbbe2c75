// Package store persists document bundles and their fragments.
//
// Bundle bytes are content-addressed blobs on disk; bundle, fragment and
// filed metadata live in the SQLite archive database.
package store

import (
	"context"
	"time"

	"github.com/Aman-CERP/docarchive/internal/docid"
)

// Bundle is the immutable stored form of one document.
type Bundle struct {
	ID            docid.DocID
	Content       []byte
	Size          int64
	FragmentCount int
	CreatedAt     time.Time

	// Filed is set once the document has been archived.
	Filed *FiledMetadata
}

// FiledMetadata is the metadata attached to an archived document.
type FiledMetadata struct {
	Labels     []string          // sorted, unique
	Properties map[string]string // keys unique
	FiledAt    time.Time
}

// Fragment is one page of a bundle.
type Fragment struct {
	Index   int
	Content []byte

	// Text is the normalized page text, nil when extraction produced none.
	Text *string
}

// HasText reports whether the fragment carries extracted text.
func (f *Fragment) HasText() bool {
	return f.Text != nil
}

// StoreStats summarizes the contents of a bundle store.
type StoreStats struct {
	Bundles    int   `json:"bundles"`
	Fragments  int   `json:"fragments"`
	Filed      int   `json:"filed"`
	TotalBytes int64 `json:"total_bytes"`
}

// BundleStore persists bundles and fragments.
type BundleStore interface {
	// PutBundle stores content under its content address.
	// created reports whether this call wrote the bundle.
	PutBundle(ctx context.Context, content []byte) (id docid.DocID, created bool, err error)

	// GetBundle returns the bundle stored under id.
	GetBundle(ctx context.Context, id docid.DocID) (*Bundle, error)

	// PutFragment stores one fragment of an existing bundle.
	PutFragment(ctx context.Context, id docid.DocID, frag Fragment) error

	// GetFragment returns fragment index of bundle id.
	GetFragment(ctx context.Context, id docid.DocID, index int) (*Fragment, error)

	// DeleteBundle removes a bundle with its fragments and filed metadata.
	DeleteBundle(ctx context.Context, id docid.DocID) error

	// ListFiled returns archived documents, oldest filing first.
	ListFiled(ctx context.Context) ([]docid.DocID, error)

	// Stats returns store statistics.
	Stats(ctx context.Context) (*StoreStats, error)

	// ForEachText calls fn for every fragment that carries text.
	ForEachText(ctx context.Context, fn func(id docid.DocID, index int, text string) error) error
}

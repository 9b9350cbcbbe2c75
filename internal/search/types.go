// Package search provides the full-text index over fragment text.
//
// Postings are kept per fragment; results are whole documents. A document
// matches when every query term occurs in at least one of its fragments.
package search

import (
	"context"
	"sort"

	"github.com/Aman-CERP/docarchive/internal/docid"
)

// Index is the full-text search index.
type Index interface {
	// IndexFragment replaces the postings of (id, fragment) with the terms of text.
	IndexFragment(ctx context.Context, id docid.DocID, fragment int, text string) error

	// RemoveDocument drops every posting of id. Removing an unknown id succeeds.
	RemoveDocument(ctx context.Context, id docid.DocID) error

	// Search returns documents containing every query term, best first.
	Search(ctx context.Context, query string) ([]Hit, error)

	// Stats returns index statistics.
	Stats(ctx context.Context) (*IndexStats, error)

	// Close releases the index.
	Close() error
}

// Hit is one matching document.
type Hit struct {
	ID docid.DocID

	// Score is the summed frequency of the query terms over the document's fragments.
	Score int

	// Fragments lists the fragment indexes containing at least one query term, ascending.
	Fragments []int
}

// IndexStats summarizes the index.
type IndexStats struct {
	Backend   string `json:"backend"`
	Documents int    `json:"documents"`
	Fragments int    `json:"fragments"`
}

// Config configures the search index.
type Config struct {
	// Backend selects the implementation: "sqlite" (default) or "bleve".
	Backend string `yaml:"backend" json:"backend"`

	// MinTokenLength drops shorter tokens. Default: 1.
	MinTokenLength int `yaml:"min_token_length" json:"min_token_length"`

	// StopWords are dropped from both documents and queries. Default: none.
	StopWords []string `yaml:"stop_words,omitempty" json:"stop_words,omitempty"`
}

// DefaultConfig returns the default index configuration.
func DefaultConfig() Config {
	return Config{
		Backend:        string(BackendSQLite),
		MinTokenLength: 1,
	}
}

// sortHits orders hits by score descending, ties by ascending id string.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID.String() < hits[j].ID.String()
	})
}

// Package extract splits raw documents into per-page fragments with normalized text.
package extract

import (
	"context"
	"strings"
)

// Page is one extracted fragment, in document order.
type Page struct {
	// Content is the decoded page content stream.
	Content []byte

	// Text is the normalized page text, nil when the page yields none.
	Text *string
}

// Extractor turns raw document bytes into pages.
// Implementations are pure: they never touch storage.
type Extractor interface {
	Extract(ctx context.Context, raw []byte) ([]Page, error)
}

// NormalizeText collapses whitespace runs to single spaces and trims.
// Returns nil when nothing remains.
func NormalizeText(s string) *string {
	n := strings.Join(strings.Fields(s), " ")
	if n == "" {
		return nil
	}
	return &n
}

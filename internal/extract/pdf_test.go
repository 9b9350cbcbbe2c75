package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docarchive/internal/errors"
	"github.com/Aman-CERP/docarchive/internal/extract/pdftest"
)

func TestPDFExtractor_PagesInOrder(t *testing.T) {
	// Given: a two page PDF
	raw := pdftest.Build("alpha", "beta")

	// When: extracting
	pages, err := NewPDFExtractor().Extract(context.Background(), raw)

	// Then: two pages with their text, in document order
	require.NoError(t, err)
	require.Len(t, pages, 2)
	require.NotNil(t, pages[0].Text)
	require.NotNil(t, pages[1].Text)
	assert.Equal(t, "alpha", *pages[0].Text)
	assert.Equal(t, "beta", *pages[1].Text)
	assert.Contains(t, string(pages[0].Content), "(alpha) Tj")
}

func TestPDFExtractor_PageWithoutTextHasNilText(t *testing.T) {
	raw := pdftest.Build("first", "", "third")

	pages, err := NewPDFExtractor().Extract(context.Background(), raw)

	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.NotNil(t, pages[0].Text)
	assert.Nil(t, pages[1].Text)
	assert.NotNil(t, pages[2].Text)
	assert.NotEmpty(t, pages[1].Content)
}

func TestPDFExtractor_UndecodablePageKeepsOtherPages(t *testing.T) {
	// Given: a PDF whose second page uses a stream filter the parser lacks
	raw := pdftest.BuildWithUndecodablePage("alpha")

	// When: extracting
	pages, err := NewPDFExtractor().Extract(context.Background(), raw)

	// Then: both pages come back and only the broken one lacks text
	require.NoError(t, err)
	require.Len(t, pages, 2)
	require.NotNil(t, pages[0].Text)
	assert.Equal(t, "alpha", *pages[0].Text)
	assert.Nil(t, pages[1].Text)
	assert.NotNil(t, pages[1].Content)
}

func TestPDFExtractor_NormalizesWhitespace(t *testing.T) {
	raw := pdftest.Build("  invoice    march  ")

	pages, err := NewPDFExtractor().Extract(context.Background(), raw)

	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.NotNil(t, pages[0].Text)
	assert.Equal(t, "invoice march", *pages[0].Text)
}

func TestPDFExtractor_UnsupportedFormat(t *testing.T) {
	valid := pdftest.Build("alpha")

	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "empty", raw: nil},
		{name: "plain text", raw: []byte("this is definitely not a PDF document, just some text that is long enough to read a trailer from")},
		{name: "header only", raw: []byte("%PDF-1.4\n")},
		{name: "truncated", raw: valid[:len(valid)/2]},
		{name: "no pages", raw: pdftest.BuildNoPages()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := NewPDFExtractor().Extract(context.Background(), tt.raw)

			require.Error(t, err)
			assert.Nil(t, pages)
			assert.True(t, errors.IsKind(err, errors.KindUnsupportedFormat), "got %v", err)
		})
	}
}

func TestPDFExtractor_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPDFExtractor().Extract(ctx, pdftest.Build("alpha"))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want *string
	}{
		{in: "", want: nil},
		{in: " \n\t ", want: nil},
		{in: "a\n\nb\tc", want: strPtr("a b c")},
		{in: " x ", want: strPtr("x")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeText(tt.in), "input %q", tt.in)
	}
}

func strPtr(s string) *string { return &s }

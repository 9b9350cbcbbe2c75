package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/Aman-CERP/docarchive/internal/errors"
)

// PDFExtractor extracts one fragment per PDF page.
type PDFExtractor struct{}

// Verify interface implementation at compile time
var _ Extractor = (*PDFExtractor)(nil)

// NewPDFExtractor creates a PDF extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract parses raw as a PDF and returns its pages in order.
// A page whose content stream or text cannot be decoded is kept with empty
// content and a nil Text. A document that cannot be parsed, or has no pages,
// fails with UnsupportedFormat.
func (e *PDFExtractor) Extract(ctx context.Context, raw []byte) (pages []Page, err error) {
	// The parser panics on some malformed input.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = errors.UnsupportedFormat("malformed PDF", fmt.Errorf("parser panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, errors.UnsupportedFormat("not a valid PDF document", err)
	}

	n := reader.NumPage()
	if n == 0 {
		return nil, errors.UnsupportedFormat("PDF document has no pages", nil)
	}

	pages = make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := reader.Page(i)
		if p.V.IsNull() {
			return nil, errors.UnsupportedFormat(fmt.Sprintf("PDF page %d is missing", i), nil)
		}
		pages = append(pages, readPage(p, i))
	}
	return pages, nil
}

// readPage decodes one page. Stream decoding panics on filters the parser
// does not implement and on corrupt data; those stay local to the page.
func readPage(p pdf.Page, number int) (page Page) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("page content could not be decoded",
				slog.Int("page", number),
				slog.String("error", fmt.Sprint(r)))
			page = Page{Content: []byte{}}
		}
	}()

	content, err := pageContent(p.V.Key("Contents"))
	if err != nil {
		slog.Debug("page content could not be read",
			slog.Int("page", number),
			slog.String("error", err.Error()))
		return Page{Content: []byte{}}
	}
	return Page{Content: content, Text: pageText(p, number)}
}

// pageText returns the normalized text of p, or nil when extraction fails.
func pageText(p pdf.Page, number int) *string {
	text, err := p.GetPlainText(nil)
	if err != nil {
		slog.Debug("page text extraction failed",
			slog.Int("page", number),
			slog.String("error", err.Error()))
		return nil
	}
	return NormalizeText(text)
}

// pageContent decodes a page's /Contents, which is a stream or an array of streams.
func pageContent(v pdf.Value) ([]byte, error) {
	switch v.Kind() {
	case pdf.Null:
		return []byte{}, nil
	case pdf.Array:
		var buf bytes.Buffer
		for i := 0; i < v.Len(); i++ {
			b, err := readStream(v.Index(i))
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		return buf.Bytes(), nil
	default:
		return readStream(v)
	}
}

func readStream(v pdf.Value) ([]byte, error) {
	rc := v.Reader()
	defer rc.Close()
	return io.ReadAll(rc)
}

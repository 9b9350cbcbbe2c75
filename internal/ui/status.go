package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// StatsInfo is what `docarchive stats` shows.
type StatsInfo struct {
	DataDir          string `json:"data_dir,omitempty"`
	Bundles          int    `json:"bundles"`
	Fragments        int    `json:"fragments"`
	Filed            int    `json:"filed"`
	Pending          int    `json:"pending"`
	TotalBytes       int64  `json:"total_bytes"`
	Backend          string `json:"backend"`
	IndexedDocuments int    `json:"indexed_documents"`
	IndexedPages     int    `json:"indexed_pages"`

	Searches     int64    `json:"searches"`
	ZeroResults  int64    `json:"zero_result_searches"`
	TopTerms     []string `json:"top_terms,omitempty"`
	RecentMisses []string `json:"recent_misses,omitempty"`
}

// StatusRenderer displays archive statistics.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render writes the statistics as aligned text.
func (r *StatusRenderer) Render(info StatsInfo) error {
	title := "Archive"
	if info.DataDir != "" {
		title += ": " + info.DataDir
	}
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render(title))

	_, _ = fmt.Fprintf(r.out, "  Documents:  %d\n", info.Bundles)
	_, _ = fmt.Fprintf(r.out, "    Archived: %d\n", info.Filed)
	_, _ = fmt.Fprintf(r.out, "    Pending:  %s\n", r.renderPending(info.Pending))
	_, _ = fmt.Fprintf(r.out, "  Pages:      %d\n", info.Fragments)
	_, _ = fmt.Fprintf(r.out, "  Size:       %s\n", FormatBytes(info.TotalBytes))
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Index (%s):\n", info.Backend)
	_, _ = fmt.Fprintf(r.out, "    Documents: %d\n", info.IndexedDocuments)
	_, _ = fmt.Fprintf(r.out, "    Pages:     %d\n", info.IndexedPages)

	if info.Searches == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintf(r.out, "  Searches:   %d (%s without hits)\n", info.Searches, r.renderMisses(info.ZeroResults))
	if len(info.TopTerms) > 0 {
		_, _ = fmt.Fprintf(r.out, "    Top terms: %s\n", strings.Join(info.TopTerms, ", "))
	}
	if len(info.RecentMisses) > 0 {
		_, _ = fmt.Fprintf(r.out, "    Last miss: %s\n", r.styles.Dim.Render(info.RecentMisses[0]))
	}
	return nil
}

func (r *StatusRenderer) renderMisses(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n > 0 {
		return r.styles.Warning.Render(s)
	}
	return s
}

// RenderJSON outputs the statistics as JSON.
func (r *StatusRenderer) RenderJSON(info StatsInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderPending(n int) string {
	s := fmt.Sprintf("%d", n)
	if n > 0 {
		return r.styles.Warning.Render(s)
	}
	return r.styles.Success.Render(s)
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

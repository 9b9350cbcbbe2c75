package ui

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusRenderer_Render(t *testing.T) {
	// Given: archive statistics
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)
	info := StatsInfo{
		DataDir:          "/srv/archive",
		Bundles:          3,
		Fragments:        7,
		Filed:            2,
		Pending:          1,
		TotalBytes:       2048,
		Backend:          "sqlite",
		IndexedDocuments: 3,
		IndexedPages:     7,
	}

	// When: rendering without color
	require.NoError(t, r.Render(info))

	// Then: every figure is shown
	out := buf.String()
	assert.Contains(t, out, "Archive: /srv/archive")
	assert.Contains(t, out, "Documents:  3")
	assert.Contains(t, out, "Archived: 2")
	assert.Contains(t, out, "Pending:  1")
	assert.Contains(t, out, "Pages:      7")
	assert.Contains(t, out, "Size:       2.0 KB")
	assert.Contains(t, out, "Index (sqlite):")
	assert.NotContains(t, out, "Searches:", "hidden before the first search")
}

func TestStatusRenderer_RenderSearches(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	require.NoError(t, r.Render(StatsInfo{
		Backend:      "sqlite",
		Searches:     12,
		ZeroResults:  3,
		TopTerms:     []string{"invoice", "acme"},
		RecentMisses: []string{"warranty", "lease"},
	}))

	out := buf.String()
	assert.Contains(t, out, "Searches:   12 (3 without hits)")
	assert.Contains(t, out, "Top terms: invoice, acme")
	assert.Contains(t, out, "Last miss: warranty")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewStatusRenderer(buf, true)

	require.NoError(t, r.RenderJSON(StatsInfo{Bundles: 1, Backend: "bleve"}))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "bleve", parsed["backend"])
	assert.Equal(t, float64(1), parsed["bundles"])
	assert.NotContains(t, parsed, "data_dir")
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}

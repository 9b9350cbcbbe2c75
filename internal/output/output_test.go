package output

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Messages(t *testing.T) {
	tests := []struct {
		name  string
		print func(w *Writer)
		want  string
	}{
		{"success", func(w *Writer) { w.Success("Document archived") }, "✓ Document archived\n"},
		{"successf", func(w *Writer) { w.Successf("%d uploaded", 3) }, "✓ 3 uploaded\n"},
		{"warning", func(w *Writer) { w.Warning("Inbox is not empty") }, "! Inbox is not empty\n"},
		{"warningf", func(w *Writer) { w.Warningf("%s skipped", "a.txt") }, "! a.txt skipped\n"},
		{"error", func(w *Writer) { w.Error("Not found") }, "✗ Not found\n"},
		{"errorf", func(w *Writer) { w.Errorf("code %d", 404) }, "✗ code 404\n"},
		{"status without icon", func(w *Writer) { w.Status("", "detail") }, "  detail\n"},
		{"println", func(w *Writer) { w.Println("plain") }, "plain\n"},
		{"printf", func(w *Writer) { w.Printf("%s=%d", "k", 1) }, "k=1"},
		{"newline", func(w *Writer) { w.Newline() }, "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.print(New(buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_Code_IndentsLines(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Code("line1\nline2")
	assert.Equal(t, "\n  line1\n  line2\n\n", buf.String())
}

func TestWriter_NoColorForBuffers(t *testing.T) {
	// Given: a writer over a buffer
	w := New(&bytes.Buffer{})

	// Then: styling helpers return their input unchanged
	assert.False(t, w.UseColor())
	assert.Equal(t, "Labels:", w.Label("Labels:"))
	assert.Equal(t, "hint", w.Dim("hint"))
}

func TestWriter_NoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, New(os.Stdout).UseColor())
}

func TestWriter_ForcedColorKeepsText(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWithColor(buf, true)

	w.Success("done")

	require.True(t, w.UseColor())
	assert.Contains(t, buf.String(), "done")
	assert.Same(t, buf, w.Out())
}

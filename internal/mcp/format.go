package mcp

import (
	"fmt"
	"sort"
	"strings"
)

// FormatSearchResults formats search hits as markdown.
func FormatSearchResults(query string, out SearchOutput) string {
	if len(out.Results) == 0 {
		return fmt.Sprintf("No documents match \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d document", out.Total)
	if out.Total != 1 {
		sb.WriteString("s")
	}
	if out.Total > len(out.Results) {
		fmt.Fprintf(&sb, ", showing the top %d", len(out.Results))
	}
	sb.WriteString("\n\n")

	for i, r := range out.Results {
		fmt.Fprintf(&sb, "### %d. `%s` (score: %d)\n", i+1, r.ID, r.Score)
		fmt.Fprintf(&sb, "**Pages:** %s\n\n", joinInts(r.Fragments))
	}
	return sb.String()
}

// FormatInboxList formats the pending documents as markdown.
func FormatInboxList(out InboxListOutput) string {
	if out.Count == 0 {
		return "Inbox is empty"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d document", out.Count)
	if out.Count != 1 {
		sb.WriteString("s")
	}
	sb.WriteString(" in inbox\n\n")
	for _, id := range out.Docs {
		fmt.Fprintf(&sb, "- `%s`\n", id)
	}
	return sb.String()
}

// FormatInboxEntry formats a pending document as markdown.
func FormatInboxEntry(e InboxEntryOutput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Document `%s`\n\n", e.ID)
	fmt.Fprintf(&sb, "**Uploaded:** %s\n\n", e.Uploaded)

	if len(e.Labels) == 0 {
		sb.WriteString("**Labels:** none\n\n")
	} else {
		fmt.Fprintf(&sb, "**Labels:** %s\n\n", strings.Join(e.Labels, ", "))
	}

	if len(e.Properties) == 0 {
		sb.WriteString("**Properties:** none\n")
		return sb.String()
	}
	sb.WriteString("**Properties:**\n")
	keys := make([]string, 0, len(e.Properties))
	for k := range e.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "- %s: %s\n", k, e.Properties[k])
	}
	return sb.String()
}

// FormatFragment formats one page of a document as markdown.
func FormatFragment(f FragmentOutput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Page %d of `%s` (%s)\n\n", f.Index, f.ID, humanSize(int64(f.Size)))
	if !f.HasText {
		sb.WriteString("_No text was extracted from this page._\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "```\n%s\n```\n", f.Text)
	return sb.String()
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprintf("%d", x)
	}
	return strings.Join(parts, ", ")
}

// humanSize formats a byte count for display.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

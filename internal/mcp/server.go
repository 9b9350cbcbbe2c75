package mcp

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docarchive/internal/archive"
	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
	"github.com/Aman-CERP/docarchive/pkg/version"
)

// Default and maximum number of documents the search tool returns.
const (
	defaultSearchLimit = 10
	maxSearchLimit     = 100
)

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search",
		Description: "Full-text search over archived and pending documents. Every query word must occur somewhere in a document; results are ranked by how often the words occur and list the matching pages.",
	},
	{
		Name:        "inbox_list",
		Description: "List pending documents waiting to be archived or deleted, oldest upload first.",
	},
	{
		Name:        "inbox_show",
		Description: "Show a pending document's upload time, labels and properties.",
	},
	{
		Name:        "inbox_archive",
		Description: "Archive a pending document, attaching labels and key/value properties. Labels are merged with any already set; incoming properties win.",
	},
	{
		Name:        "inbox_delete",
		Description: "Delete a pending document and everything stored for it. Archived documents cannot be deleted.",
	},
	{
		Name:        "get_fragment",
		Description: "Read the extracted text of one page of a document. Use the page indexes returned by search.",
	},
}

// Server is the MCP adapter over one archive.
type Server struct {
	mcp     *mcp.Server
	archive *archive.Archive
	logger  *slog.Logger
}

// NewServer creates an MCP server with every tool and the fragment
// resource template registered.
func NewServer(a *archive.Archive) *Server {
	s := &Server{
		archive: a,
		logger:  slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: version.Name, Version: version.Version},
		nil,
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// Serve runs the server on stdin/stdout until ctx is cancelled or the
// client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server starting", slog.String("transport", "stdio"))
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !stderrors.Is(err, context.Canceled) {
		s.logger.Error("mcp server stopped with error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp server stopped")
	return nil
}

func (s *Server) registerTools() {
	descriptions := make(map[string]string, len(tools))
	for _, t := range tools {
		descriptions[t.Name] = t.Description
	}
	tool := func(name string) *mcp.Tool {
		return &mcp.Tool{Name: name, Description: descriptions[name]}
	}

	mcp.AddTool(s.mcp, tool("search"), s.handleSearch)
	mcp.AddTool(s.mcp, tool("inbox_list"), s.handleInboxList)
	mcp.AddTool(s.mcp, tool("inbox_show"), s.handleInboxShow)
	mcp.AddTool(s.mcp, tool("inbox_archive"), s.handleInboxArchive)
	mcp.AddTool(s.mcp, tool("inbox_delete"), s.handleInboxDelete)
	mcp.AddTool(s.mcp, tool("get_fragment"), s.handleGetFragment)

	s.logger.Debug("mcp tools registered", slog.Int("count", len(tools)))
}

// logged runs one tool call and logs its outcome.
func (s *Server) logged(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	if err != nil {
		s.logger.Warn("mcp tool failed",
			slog.String("tool", name),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	s.logger.Debug("mcp tool completed",
		slog.String("tool", name),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func parseID(raw string) (docid.DocID, error) {
	if raw == "" {
		return docid.DocID{}, NewInvalidParamsError("id parameter is required")
	}
	return docid.Parse(raw)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	var out SearchOutput
	err := s.logged("search", func() error {
		if input.Query == "" {
			return NewInvalidParamsError("query parameter is required")
		}
		hits, err := s.archive.Search(ctx, input.Query)
		if err != nil {
			return err
		}

		limit := clampLimit(input.Limit, defaultSearchLimit, 1, maxSearchLimit)
		out.Total = len(hits)
		if len(hits) > limit {
			hits = hits[:limit]
		}
		out.Results = make([]SearchResultOutput, len(hits))
		for i, h := range hits {
			out.Results[i] = SearchResultOutput{ID: h.ID.String(), Score: h.Score, Fragments: h.Fragments}
		}
		return nil
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return textResult(FormatSearchResults(input.Query, out)), out, nil
}

func (s *Server) handleInboxList(ctx context.Context, _ *mcp.CallToolRequest, _ InboxListInput) (
	*mcp.CallToolResult, InboxListOutput, error,
) {
	var out InboxListOutput
	err := s.logged("inbox_list", func() error {
		ids, err := s.archive.Inbox().List(ctx)
		if err != nil {
			return err
		}
		out.Count = len(ids)
		out.Docs = make([]string, len(ids))
		for i, id := range ids {
			out.Docs[i] = id.String()
		}
		return nil
	})
	if err != nil {
		return nil, InboxListOutput{}, err
	}
	return textResult(FormatInboxList(out)), out, nil
}

func (s *Server) handleInboxShow(ctx context.Context, _ *mcp.CallToolRequest, input DocumentInput) (
	*mcp.CallToolResult, InboxEntryOutput, error,
) {
	var out InboxEntryOutput
	err := s.logged("inbox_show", func() error {
		id, err := parseID(input.ID)
		if err != nil {
			return err
		}
		e, err := s.archive.Inbox().Get(ctx, id)
		if err != nil {
			return err
		}
		out = InboxEntryOutput{
			ID:         e.ID.String(),
			Uploaded:   e.UploadedAt.UTC().Format(time.RFC3339),
			Labels:     e.Labels,
			Properties: e.Properties,
		}
		if out.Labels == nil {
			out.Labels = []string{}
		}
		if out.Properties == nil {
			out.Properties = map[string]string{}
		}
		return nil
	})
	if err != nil {
		return nil, InboxEntryOutput{}, err
	}
	return textResult(FormatInboxEntry(out)), out, nil
}

func (s *Server) handleInboxArchive(ctx context.Context, _ *mcp.CallToolRequest, input InboxArchiveInput) (
	*mcp.CallToolResult, StatusOutput, error,
) {
	err := s.logged("inbox_archive", func() error {
		id, err := parseID(input.ID)
		if err != nil {
			return err
		}
		return s.archive.Inbox().Archive(ctx, id, input.Labels, input.Properties)
	})
	if err != nil {
		return nil, StatusOutput{}, err
	}
	out := StatusOutput{ID: input.ID, Status: "archived"}
	return textResult("Document " + input.ID + " archived."), out, nil
}

func (s *Server) handleInboxDelete(ctx context.Context, _ *mcp.CallToolRequest, input DocumentInput) (
	*mcp.CallToolResult, StatusOutput, error,
) {
	err := s.logged("inbox_delete", func() error {
		id, err := parseID(input.ID)
		if err != nil {
			return err
		}
		return s.archive.Inbox().Delete(ctx, id)
	})
	if err != nil {
		return nil, StatusOutput{}, err
	}
	out := StatusOutput{ID: input.ID, Status: "deleted"}
	return textResult("Document " + input.ID + " deleted."), out, nil
}

func (s *Server) handleGetFragment(ctx context.Context, _ *mcp.CallToolRequest, input FragmentInput) (
	*mcp.CallToolResult, FragmentOutput, error,
) {
	var out FragmentOutput
	err := s.logged("get_fragment", func() error {
		id, err := parseID(input.ID)
		if err != nil {
			return err
		}
		if input.Index < 0 {
			return errors.InvalidIdentifier(fmt.Sprintf("fragment index must be non-negative, got %d", input.Index))
		}
		frag, err := s.archive.Bundles().GetFragment(ctx, id, input.Index)
		if err != nil {
			return err
		}
		out = FragmentOutput{ID: id.String(), Index: frag.Index, Size: len(frag.Content)}
		if frag.Text != nil {
			out.HasText = true
			out.Text = *frag.Text
		}
		return nil
	})
	if err != nil {
		return nil, FragmentOutput{}, err
	}
	return textResult(FormatFragment(out)), out, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

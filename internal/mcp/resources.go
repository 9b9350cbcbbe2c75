package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/docarchive/internal/errors"
)

// Resource URIs.
const (
	fragmentURIPrefix   = "docarchive://fragment/"
	fragmentURITemplate = fragmentURIPrefix + "{id}/{index}"
	statsURI            = "docarchive://stats"
)

func (s *Server) registerResources() {
	s.mcp.AddResourceTemplate(
		&mcp.ResourceTemplate{
			Name:        "fragment",
			URITemplate: fragmentURITemplate,
			Description: "Extracted text of one page of a document",
			MIMEType:    "text/plain",
		},
		s.handleReadFragment,
	)
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "stats",
			URI:         statsURI,
			Description: "Document, page and inbox counts of the archive",
			MIMEType:    "application/json",
		},
		s.handleReadStats,
	)
}

// parseFragmentURI splits docarchive://fragment/<id>/<index>.
func parseFragmentURI(uri string) (string, int, error) {
	rest, ok := strings.CutPrefix(uri, fragmentURIPrefix)
	if !ok {
		return "", 0, NewResourceNotFoundError(uri)
	}
	id, rawIndex, ok := strings.Cut(rest, "/")
	if !ok || id == "" {
		return "", 0, NewResourceNotFoundError(uri)
	}
	index, err := strconv.Atoi(rawIndex)
	if err != nil || index < 0 {
		return "", 0, MapError(errors.Newf(errors.KindInvalidIdentifier, "invalid fragment index %q", rawIndex))
	}
	return id, index, nil
}

func (s *Server) handleReadFragment(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	rawID, index, err := parseFragmentURI(uri)
	if err != nil {
		return nil, err
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, MapError(err)
	}

	frag, err := s.archive.Bundles().GetFragment(ctx, id, index)
	if err != nil {
		return nil, MapError(err)
	}
	text := ""
	if frag.Text != nil {
		text = *frag.Text
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: "text/plain", Text: text},
		},
	}, nil
}

func (s *Server) handleReadStats(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	stats, err := s.archive.Stats(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	content, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return nil, MapError(fmt.Errorf("encode stats: %w", err))
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: statsURI, MIMEType: "application/json", Text: string(content)},
		},
	}, nil
}

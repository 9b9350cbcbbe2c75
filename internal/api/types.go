package api

import (
	"time"

	"github.com/Aman-CERP/docarchive/internal/inbox"
	"github.com/Aman-CERP/docarchive/internal/search"
	"github.com/Aman-CERP/docarchive/internal/store"
	"github.com/Aman-CERP/docarchive/internal/telemetry"
)

// Wire types shared by the server and internal/client.

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// UploadResponse answers POST /api/upload_pdf.
type UploadResponse struct {
	ID string `json:"id"`
}

// InboxListResponse answers GET /api/inbox.
type InboxListResponse struct {
	Count int      `json:"count"`
	Docs  []string `json:"docs"`
}

// InboxGetResponse answers GET and PATCH /api/inbox/{id}.
type InboxGetResponse struct {
	ID         string            `json:"id"`
	Uploaded   time.Time         `json:"uploaded"`
	Labels     []string          `json:"labels"`
	Properties map[string]string `json:"properties"`
}

// MetadataRequest is the body of POST /api/inbox/{id}/archive and
// PATCH /api/inbox/{id}. Labels and properties are independent.
type MetadataRequest struct {
	Labels     []string          `json:"labels"`
	Properties map[string]string `json:"properties"`
}

// SearchHit is one matching document.
type SearchHit struct {
	ID        string `json:"id"`
	Score     int    `json:"score"`
	Fragments []int  `json:"fragments"`
}

// SearchResponse answers GET /api/search.
type SearchResponse struct {
	Query string      `json:"query"`
	Hits  []SearchHit `json:"hits"`
}

// FragmentResponse answers GET /api/fragment/{id}/{index}.
type FragmentResponse struct {
	ID    string  `json:"id"`
	Index int     `json:"index"`
	Text  *string `json:"text"`
	Size  int     `json:"size"`
}

// FiledInfo is the filed metadata of an archived bundle.
type FiledInfo struct {
	Labels     []string          `json:"labels"`
	Properties map[string]string `json:"properties"`
	FiledAt    time.Time         `json:"filed_at"`
}

// BundleInfo answers GET /api/bundle/{id}/info.
type BundleInfo struct {
	ID        string     `json:"id"`
	Size      int64      `json:"size"`
	Fragments int        `json:"fragments"`
	Created   time.Time  `json:"created"`
	Filed     *FiledInfo `json:"filed,omitempty"`
}

// StatsResponse answers GET /api/stats.
type StatsResponse struct {
	Store   store.StoreStats  `json:"store"`
	Index   search.IndexStats `json:"index"`
	Pending int               `json:"pending"`

	Searches telemetry.Snapshot `json:"searches"`
}

// NewInboxGetResponse renders a pending entry. Empty metadata renders as [] and {}.
func NewInboxGetResponse(e *inbox.Entry) InboxGetResponse {
	resp := InboxGetResponse{
		ID:         e.ID.String(),
		Uploaded:   e.UploadedAt,
		Labels:     e.Labels,
		Properties: e.Properties,
	}
	if resp.Labels == nil {
		resp.Labels = []string{}
	}
	if resp.Properties == nil {
		resp.Properties = map[string]string{}
	}
	return resp
}

// NewBundleInfo renders bundle metadata without its content.
func NewBundleInfo(b *store.Bundle) BundleInfo {
	info := BundleInfo{
		ID:        b.ID.String(),
		Size:      b.Size,
		Fragments: b.FragmentCount,
		Created:   b.CreatedAt,
	}
	if b.Filed != nil {
		info.Filed = &FiledInfo{
			Labels:     b.Filed.Labels,
			Properties: b.Filed.Properties,
			FiledAt:    b.Filed.FiledAt,
		}
	}
	return info
}

// NewSearchResponse renders search hits in rank order.
func NewSearchResponse(query string, hits []search.Hit) SearchResponse {
	resp := SearchResponse{Query: query, Hits: make([]SearchHit, len(hits))}
	for i, h := range hits {
		resp.Hits[i] = SearchHit{ID: h.ID.String(), Score: h.Score, Fragments: h.Fragments}
	}
	return resp
}

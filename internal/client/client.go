// Package client talks to a running docarchive server over HTTP.
//
// Server-side error kinds survive the round trip: a 404 from the server
// comes back as an error for which errors.KindOf reports KindNotFound.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/docarchive/internal/api"
	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
)

// DefaultTimeout bounds every request unless the context ends sooner.
const DefaultTimeout = 60 * time.Second

// Client is an HTTP client for the archive API.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the server at baseURL, e.g. http://127.0.0.1:8000.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimSuffix(u.String(), "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Health checks that the server answers.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, "", nil)
}

// Upload ingests raw and returns its id.
func (c *Client) Upload(ctx context.Context, raw []byte) (docid.DocID, error) {
	var resp api.UploadResponse
	if err := c.do(ctx, http.MethodPost, "/api/upload_pdf", bytes.NewReader(raw), "application/pdf", &resp); err != nil {
		return docid.DocID{}, err
	}
	return docid.Parse(resp.ID)
}

// InboxList returns the pending documents.
func (c *Client) InboxList(ctx context.Context) (*api.InboxListResponse, error) {
	var resp api.InboxListResponse
	if err := c.do(ctx, http.MethodGet, "/api/inbox", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InboxGet returns one pending entry.
func (c *Client) InboxGet(ctx context.Context, id docid.DocID) (*api.InboxGetResponse, error) {
	var resp api.InboxGetResponse
	if err := c.do(ctx, http.MethodGet, "/api/inbox/"+id.String(), nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InboxDelete deletes a pending document.
func (c *Client) InboxDelete(ctx context.Context, id docid.DocID) error {
	return c.do(ctx, http.MethodDelete, "/api/inbox/"+id.String(), nil, "", nil)
}

// InboxArchive files a pending document with the given metadata.
func (c *Client) InboxArchive(ctx context.Context, id docid.DocID, req api.MetadataRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/api/inbox/"+id.String()+"/archive", bytes.NewReader(body), "application/json", nil)
}

// InboxUpdate merges metadata into a pending document without filing it.
func (c *Client) InboxUpdate(ctx context.Context, id docid.DocID, req api.MetadataRequest) (*api.InboxGetResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var resp api.InboxGetResponse
	if err := c.do(ctx, http.MethodPatch, "/api/inbox/"+id.String(), bytes.NewReader(body), "application/json", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search runs a full-text query.
func (c *Client) Search(ctx context.Context, query string) (*api.SearchResponse, error) {
	var resp api.SearchResponse
	if err := c.do(ctx, http.MethodGet, "/api/search?q="+url.QueryEscape(query), nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Bundle downloads the stored bytes of id.
func (c *Client) Bundle(ctx context.Context, id docid.DocID) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.do(ctx, http.MethodGet, "/api/bundle/"+id.String(), nil, "", &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BundleInfo returns bundle metadata.
func (c *Client) BundleInfo(ctx context.Context, id docid.DocID) (*api.BundleInfo, error) {
	var resp api.BundleInfo
	if err := c.do(ctx, http.MethodGet, "/api/bundle/"+id.String()+"/info", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Fragment returns one fragment's text and size.
func (c *Client) Fragment(ctx context.Context, id docid.DocID, index int) (*api.FragmentResponse, error) {
	var resp api.FragmentResponse
	path := "/api/fragment/" + id.String() + "/" + strconv.Itoa(index)
	if err := c.do(ctx, http.MethodGet, path, nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats returns archive statistics.
func (c *Client) Stats(ctx context.Context) (*api.StatsResponse, error) {
	var resp api.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends one request. out may be nil, a *bytes.Buffer for raw bodies,
// or a value to decode JSON into.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}

	switch v := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *bytes.Buffer:
		if _, err := v.ReadFrom(resp.Body); err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}
}

// decodeError rebuilds the server's error with its original code.
func decodeError(resp *http.Response) error {
	var body api.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(data, &body); err != nil || body.Code == "" {
		return errors.InternalError(
			fmt.Sprintf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data))), nil)
	}
	return errors.New(body.Code, body.Message, nil)
}

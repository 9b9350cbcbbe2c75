// Package api serves the archive over HTTP.
//
// Routes mirror the original backend under /api, plus /healthz and
// /metrics. Handlers are thin: they parse, call one archive component,
// and render. Error kinds become statuses in errors.go only.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aman-CERP/docarchive/internal/archive"
	"github.com/Aman-CERP/docarchive/internal/docid"
	"github.com/Aman-CERP/docarchive/internal/errors"
)

// multipartMemory is the part of a multipart upload held in memory.
const multipartMemory = 32 << 20

// Config configures the HTTP server.
type Config struct {
	Addr          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	ShutdownGrace time.Duration
	MaxUploadSize int64
}

// Server is the HTTP adapter over one archive.
type Server struct {
	archive  *archive.Archive
	cfg      Config
	registry *prometheus.Registry
	metrics  *Metrics
	router   chi.Router
}

// NewServer builds the router. Each server owns its metrics registry.
func NewServer(a *archive.Archive, cfg Config) *Server {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 100 << 20
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		archive:  a,
		cfg:      cfg,
		registry: registry,
		metrics:  NewMetrics(registry),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(s.metrics.middleware)
	r.Use(recoverer)

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/bundle/{id}", s.getBundle)
		r.Get("/bundle/{id}/info", s.getBundleInfo)
		r.Get("/fragment/{id}/{index}", s.getFragment)
		r.Get("/fragment/{id}/{index}/content", s.getFragmentContent)
		r.Get("/search", s.search)
		r.Get("/stats", s.stats)
		r.Post("/upload_pdf", s.uploadPDF)

		r.Route("/inbox", func(r chi.Router) {
			r.Get("/", s.listInbox)
			r.Get("/{id}", s.getInbox)
			r.Patch("/{id}", s.updateInbox)
			r.Delete("/{id}", s.deleteInbox)
			r.Post("/{id}/archive", s.archiveInbox)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errors.NotFound("no route for "+r.URL.Path))
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the server's metrics registry.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// ListenAndServe listens on cfg.Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
// within cfg.ShutdownGrace.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	grace := s.cfg.ShutdownGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	slog.Info("http server shutting down", slog.Duration("grace", grace))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(r *http.Request) (docid.DocID, error) {
	return docid.Parse(chi.URLParam(r, "id"))
}

func pathIndex(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return 0, errors.Newf(errors.KindInvalidIdentifier, "invalid fragment index %q", raw)
	}
	return index, nil
}

func (s *Server) getBundle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.archive.Bundles().GetBundle(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Content never changes under an id, so the id is a strong validator.
	w.Header().Set("ETag", strconv.Quote(id.String()))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeContent(w, r, id.String()+".pdf", b.CreatedAt, bytes.NewReader(b.Content))
}

func (s *Server) getBundleInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.archive.Bundles().GetBundle(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewBundleInfo(b))
}

func (s *Server) getFragment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	frag, err := s.archive.Bundles().GetFragment(r.Context(), id, index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FragmentResponse{
		ID:    id.String(),
		Index: frag.Index,
		Text:  frag.Text,
		Size:  len(frag.Content),
	})
}

func (s *Server) getFragmentContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	index, err := pathIndex(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	frag, err := s.archive.Bundles().GetFragment(r.Context(), id, index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(frag.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(frag.Content)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	hits, err := s.archive.Search(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSearchResponse(query, hits))
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.archive.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		Store:    st.Store,
		Index:    st.Index,
		Pending:  st.Pending,
		Searches: st.Searches,
	})
}

func (s *Server) uploadPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	raw, err := s.readUpload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id, err := s.archive.Ingest(r.Context(), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{ID: id.String()})
}

// readUpload returns the multipart field "file", or the raw body for any
// other content type.
func (s *Server) readUpload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, s.uploadError(err)
		}
		return raw, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, s.uploadError(err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errors.UnsupportedFormat(`multipart upload has no "file" field`, err)
	}
	defer func() { _ = file.Close() }()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, s.uploadError(err)
	}
	return raw, nil
}

func (s *Server) uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return errors.UnsupportedFormat(
			fmt.Sprintf("upload exceeds the %d byte limit", tooLarge.Limit), err)
	}
	return errors.UnsupportedFormat("failed to read upload", err)
}

func (s *Server) listInbox(w http.ResponseWriter, r *http.Request) {
	ids, err := s.archive.Inbox().List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := InboxListResponse{Count: len(ids), Docs: make([]string, len(ids))}
	for i, id := range ids {
		resp.Docs[i] = id.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getInbox(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.archive.Inbox().Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewInboxGetResponse(e))
}

func (s *Server) deleteInbox(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.archive.Inbox().Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) archiveInbox(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeMetadata(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.archive.Inbox().Archive(r.Context(), id, req.Labels, req.Properties); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateInbox(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeMetadata(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.archive.Inbox().Update(r.Context(), id, req.Labels, req.Properties)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewInboxGetResponse(e))
}

// decodeMetadata accepts an empty body as an empty request.
func decodeMetadata(r *http.Request) (MetadataRequest, error) {
	var req MetadataRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !stderrors.Is(err, io.EOF) {
		return req, errors.UnsupportedFormat("invalid request body: "+err.Error(), err)
	}
	return req, nil
}

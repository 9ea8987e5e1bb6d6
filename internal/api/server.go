// Package api exposes the HTTP interface for the crawl and retrieval service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praxis-search/ragline/internal/config"
	"github.com/praxis-search/ragline/internal/crawler"
	"github.com/praxis-search/ragline/internal/ingest"
	"github.com/praxis-search/ragline/internal/metrics"
	"github.com/praxis-search/ragline/internal/rag"
)

// Ingestor runs the crawl-and-store pipeline.
type Ingestor interface {
	Run(ctx context.Context, startURL string, opts crawler.Options) (ingest.Report, error)
}

// Answerer answers a query against the document store.
type Answerer interface {
	Answer(ctx context.Context, query string) (rag.Response, error)
}

// Server wires HTTP handlers to the ingestor, the retrieval engine, and the
// document store.
type Server struct {
	router   chi.Router
	ingestor Ingestor
	answerer Answerer
	store    rag.Store
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(ingestor Ingestor, answerer Answerer, store rag.Store, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ingestor: ingestor,
		answerer: answerer,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/crawl", s.crawl)
		r.Post("/query", s.query)
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.listDocuments)
			r.Delete("/{doc_id}", s.deleteDocument)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if _, err := s.store.ListDocuments(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type crawlRequest struct {
	URL             string   `json:"url"`
	MaxDepth        *int     `json:"max_depth"`
	MaxPages        *int     `json:"max_pages"`
	IncludePatterns []string `json:"include_patterns"`
	ExcludePatterns []string `json:"exclude_patterns"`
	RespectRobots   *bool    `json:"respect_robots"`
	FollowSitemap   *bool    `json:"follow_sitemap"`
	DelayMs         *int     `json:"delay_ms"`
}

func (s *Server) crawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	opts := s.toCrawlOptions(req)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout())
	defer cancel()

	report, err := s.ingestor.Run(ctx, req.URL, opts)
	if err != nil {
		// A deadline on the whole request surfaces as a failed run, not a
		// hung connection.
		status := http.StatusBadRequest
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type queryRequest struct {
	Question string `json:"question"`
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout())
	defer cancel()

	resp, err := s.answerer.Answer(ctx, req.Question)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "doc_id")
	if err := s.store.DeleteDocument(r.Context(), docID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": docID, "status": "deleted"})
}

func (s *Server) toCrawlOptions(req crawlRequest) crawler.Options {
	opts := crawler.Options{
		MaxDepth:        valueOrDefault(req.MaxDepth, s.cfg.Crawler.MaxDepthDefault),
		MaxPages:        valueOrDefault(req.MaxPages, s.cfg.Crawler.MaxPagesDefault),
		IncludePatterns: req.IncludePatterns,
		ExcludePatterns: req.ExcludePatterns,
		RespectRobots:   valueOrDefault(req.RespectRobots, s.cfg.Crawler.RespectRobots),
		FollowSitemap:   valueOrDefault(req.FollowSitemap, s.cfg.Crawler.FollowSitemap),
		CrawlDelay:      s.cfg.CrawlDelay(),
	}
	if req.DelayMs != nil {
		opts.CrawlDelay = time.Duration(*req.DelayMs) * time.Millisecond
	}
	return opts
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Package httpapi serves the operational endpoints of the syncer.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"initiative_syncer/internal/domain"
)

type Syncer interface {
	SyncIfTotalChanged(ctx context.Context) (*domain.SyncResult, error)
}

type StatusReader interface {
	Get(ctx context.Context) (*domain.SyncMeta, error)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	syncer Syncer
	status StatusReader
	logger *slog.Logger
}

func NewServer(syncer Syncer, status StatusReader, logger *slog.Logger) *Server {
	return &Server{
		syncer: syncer,
		status: status,
		logger: logger.With("component", "http"),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/sync", func(r chi.Router) {
		r.Get("/status", s.statusHandler)
		r.Post("/", s.syncHandler)
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	meta, err := s.status.Get(r.Context())
	if err != nil {
		s.logger.Error("read sync status", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to read sync status"})
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// syncHandler runs a sync in the request goroutine. A client disconnect
// does not cancel the run.
func (s *Server) syncHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.syncer.SyncIfTotalChanged(context.WithoutCancel(r.Context()))
	if err != nil {
		s.logger.Error("manual sync failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

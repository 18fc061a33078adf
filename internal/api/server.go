// Package api exposes the HTTP interface for observing a crawl: health,
// Prometheus metrics, live progress, and the finished session report.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seoscope/crawler/internal/crawl"
	"github.com/seoscope/crawler/internal/metrics"
	"github.com/seoscope/crawler/internal/progress"
)

// ProgressSource yields the most recent progress snapshot, if any.
type ProgressSource interface {
	Latest() (progress.Snapshot, bool)
}

// SessionHolder hands the finished session export to the API once the crawl
// completes. Safe for concurrent use.
type SessionHolder struct {
	val atomic.Pointer[crawl.Export]
}

// Set publishes the finished session.
func (h *SessionHolder) Set(export crawl.Export) {
	h.val.Store(&export)
}

// Get returns the finished session, if the crawl has completed.
func (h *SessionHolder) Get() (crawl.Export, bool) {
	p := h.val.Load()
	if p == nil {
		return crawl.Export{}, false
	}
	return *p, true
}

// Server wires HTTP handlers to progress and session state.
type Server struct {
	router   chi.Router
	progress ProgressSource
	session  *SessionHolder
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(progressSource ProgressSource, session *SessionHolder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		progress: progressSource,
		session:  session,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", metrics.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/progress", s.getProgress)
		r.Get("/session", s.getSession)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getProgress(w http.ResponseWriter, _ *http.Request) {
	if s.progress == nil {
		s.writeError(w, http.StatusNotFound, "no progress feed configured")
		return
	}
	snap, ok := s.progress.Latest()
	if !ok {
		s.writeError(w, http.StatusNotFound, "crawl has not started")
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) getSession(w http.ResponseWriter, _ *http.Request) {
	if s.session == nil {
		s.writeError(w, http.StatusNotFound, "no session available")
		return
	}
	export, ok := s.session.Get()
	if !ok {
		s.writeError(w, http.StatusConflict, "crawl still in progress")
		return
	}
	s.writeJSON(w, http.StatusOK, export)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Package api exposes the read-only HTTP interface: session status,
// document lookups, health, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/guidance"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/session"
	"github.com/sanatan-artixio/regulatory-guidelines-wfs/internal/telemetry"
)

// Pinger reports whether the backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP handlers to the session manager and stores.
type Server struct {
	router   chi.Router
	sessions *session.Manager
	docs     guidance.DocumentStore
	features guidance.FeatureStore
	pinger   Pinger
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	sessions *session.Manager,
	docs guidance.DocumentStore,
	features guidance.FeatureStore,
	pinger Pinger,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		sessions: sessions,
		docs:     docs,
		features: features,
		pinger:   pinger,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(telemetry.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/sessions/{session_id}", func(r chi.Router) {
			r.Get("/", s.getSession)
		})
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.getDocumentByURL)
			r.Get("/{document_id}/features", s.getDocumentFeatures)
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
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			writeError(s.logger, w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "session_id"))
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid session id")
		return
	}
	sess, err := s.sessions.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, guidance.ErrSessionNotFound) {
			writeError(s.logger, w, http.StatusNotFound, "session not found")
			return
		}
		writeError(s.logger, w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"session": sess})
}

func (s *Server) getDocumentByURL(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(s.logger, w, http.StatusBadRequest, "url query parameter required")
		return
	}
	doc, err := s.docs.FindByURL(r.Context(), url)
	if err != nil {
		if errors.Is(err, guidance.ErrNotFound) {
			writeError(s.logger, w, http.StatusNotFound, "document not found")
			return
		}
		writeError(s.logger, w, http.StatusInternalServerError, "failed to load document")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"document": doc})
}

func (s *Server) getDocumentFeatures(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "document_id"))
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid document id")
		return
	}
	rec, err := s.features.GetByDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, guidance.ErrNotFound) {
			writeError(s.logger, w, http.StatusNotFound, "no features extracted for document")
			return
		}
		writeError(s.logger, w, http.StatusInternalServerError, "failed to load features")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"features": rec})
}

func requestIDMiddleware(next http.Handler) http.Handler {
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
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("Request completed",
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
				s.logger.Error("Panic recovered", zap.Any("panic", rec))
				writeError(s.logger, w, http.StatusInternalServerError, "internal server error")
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

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

type requestIDKey struct{}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}

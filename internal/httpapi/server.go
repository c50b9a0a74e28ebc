// Package httpapi exposes the progression service over JSON HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/p-n-ai/pai-academy/internal/progression"
)

const readyTimeout = 2 * time.Second

// Checker is a dependency probed by /readyz.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Config holds dependencies for the HTTP server.
type Config struct {
	Service   *progression.Service
	JWTSecret string
	Checks    map[string]Checker // keyed by dependency name, e.g. "database"
	Now       func() time.Time   // default: time.Now
}

// Server routes HTTP requests to the progression service.
type Server struct {
	svc      *progression.Service
	auth     authenticator
	validate *validator.Validate
	checks   map[string]Checker
	now      func() time.Time
}

// New creates a server. The service and JWT secret are required.
func New(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("progression service is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{
		svc:      cfg.Service,
		auth:     authenticator{secret: []byte(cfg.JWTSecret)},
		validate: newValidator(),
		checks:   cfg.Checks,
		now:      cfg.Now,
	}, nil
}

// Handler returns the routed, request-logging handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /courses/{courseID}/sections", s.requireUser(s.handleSectionStatuses))
	mux.HandleFunc("GET /courses/{courseID}/sections/{order}", s.requireUser(s.handleSectionContent))
	mux.HandleFunc("GET /sections/{sectionID}/next", s.requireUser(s.handleNextSections))
	mux.HandleFunc("POST /contents/{contentID}/progress", s.requireUser(s.handleVideoProgress))
	mux.HandleFunc("POST /challenges/{contentID}/submit", s.requireUser(s.handleSubmit))

	mux.HandleFunc("GET /admin/courses/{courseID}/report", s.requireAdmin(s.handleReport))
	mux.HandleFunc("DELETE /admin/users/{userID}/challenges/{contentID}/attempts", s.requireAdmin(s.handleResetAttempts))

	return logRequests(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps progression errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *progression.ValidationError
	var nf *progression.NotFoundError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	case errors.Is(err, progression.ErrSectionLocked):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

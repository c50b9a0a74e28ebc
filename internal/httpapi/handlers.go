package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/p-n-ai/pai-academy/internal/report"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := make(map[string]string)
	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "dependency", name, "error", err)
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleSectionStatuses(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	statuses, err := s.svc.SectionStatuses(r.Context(), id.UserID, r.PathValue("courseID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": statuses})
}

func (s *Server) handleSectionContent(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	order, err := strconv.Atoi(r.PathValue("order"))
	if err != nil || order < 1 {
		writeError(w, http.StatusBadRequest, "order must be a positive integer")
		return
	}

	view, err := s.svc.SectionContent(r.Context(), id.UserID, r.PathValue("courseID"), order)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleNextSections(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	next, err := s.svc.NextSections(r.Context(), id.UserID, r.PathValue("sectionID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": next})
}

func (s *Server) handleVideoProgress(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	var req progressRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.svc.RecordVideoWatch(r.Context(), id.UserID, r.PathValue("contentID"), *req.WatchedSeconds, *req.TotalSeconds)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"watched_duration": p.WatchedDuration,
		"total_duration":   p.TotalDuration,
		"progress_percent": p.ProgressPercent(),
		"is_completed":     p.IsCompleted,
		"updated_at":       p.UpdatedAt,
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	var req submitRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.svc.SubmitChallenge(r.Context(), id.UserID, r.PathValue("contentID"), req.Answers)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("courseID")
	course, act, err := s.svc.CourseActivity(r.Context(), courseID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, course, act); err != nil {
		writeServiceError(w, r, fmt.Errorf("render report: %w", err))
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(courseID, s.now())))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("failed to send report", "course_id", courseID, "error", err)
	}
}

func (s *Server) handleResetAttempts(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	n, err := s.svc.ResetAttempts(r.Context(), userID, r.PathValue("contentID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "deleted": n})
}

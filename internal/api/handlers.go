package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/Tranquil/internal/models"
)

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.timers != nil {
		healthData["active_sessions"] = len(s.timers.ListActive())
	}
	healthData["reminders_enabled"] = s.reminders != nil

	// The store backs every write path, so ping it
	if _, err := s.st.ListProfessionals(ctx, ""); err != nil {
		slog.Warn("Health check: store ping failed", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Store unavailable"
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, healthData)
}

// timersHandler handles GET /timers
func (s *Server) timersHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("timersHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	timers := []models.TimerInfo{}
	if s.timers != nil {
		timers = s.timers.ListActive()
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"timers": timers,
		"count":  len(timers),
	}))
}

// professionalsHandler handles GET /professionals?approach=
func (s *Server) professionalsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	approach := strings.TrimSpace(r.URL.Query().Get("approach"))
	if approach != "" && !models.KnownApproach(approach) {
		slog.Warn("Server.professionalsHandler: unknown approach", "approach", approach)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown approach. Valid approaches: "+strings.Join(models.Approaches, ", ")))
		return
	}
	pros, err := s.st.ListProfessionals(r.Context(), approach)
	if err != nil {
		slog.Error("Server.professionalsHandler: failed to list professionals", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list professionals"))
		return
	}
	if pros == nil {
		pros = []models.Professional{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(pros))
}

// parseLimit reads a non-negative integer query parameter. Missing means 0.
func parseLimit(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

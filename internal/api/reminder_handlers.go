package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/Tranquil/internal/flow"
	"github.com/BTreeMap/Tranquil/internal/messaging"
	"github.com/BTreeMap/Tranquil/internal/models"
)

// reminderRequest is the body of POST /reminders.
type reminderRequest struct {
	To   string `json:"to"`
	Cron string `json:"cron"`
}

// remindersEnabled writes a 503 when no messaging backend is configured.
func (s *Server) remindersEnabled(w http.ResponseWriter) bool {
	if s.reminders == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Reminders are not configured"))
		return false
	}
	return true
}

// remindersHandler handles POST and GET /reminders
func (s *Server) remindersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w, "GET, POST")
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok || !s.remindersEnabled(w) {
		return
	}
	if r.Method == http.MethodGet {
		writeJSONResponse(w, http.StatusOK, models.Success(s.reminders.List(userID)))
		return
	}

	var req reminderRequest
	if !decodeJSONBody(w, r, &req, "remindersHandler") {
		return
	}
	if req.Cron == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: cron"))
		return
	}
	reminder, err := s.reminders.Schedule(r.Context(), userID, req.To, req.Cron)
	switch {
	case errors.Is(err, messaging.ErrInvalidRecipient), errors.Is(err, flow.ErrInvalidCron):
		slog.Warn("Server.remindersHandler: invalid reminder", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	case err != nil:
		slog.Error("Server.remindersHandler: failed to schedule reminder", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to schedule reminder"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Reminder scheduled", reminder))
}

// reminderHandler handles DELETE /reminders/{id}
func (s *Server) reminderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok || !s.remindersEnabled(w) {
		return
	}
	id := r.PathValue("id")
	err := s.reminders.Cancel(r.Context(), userID, id)
	switch {
	case errors.Is(err, flow.ErrReminderNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("Reminder not found"))
		return
	case err != nil:
		slog.Error("Server.reminderHandler: failed to cancel reminder", "userID", userID, "reminderID", id, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to cancel reminder"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Reminder cancelled", nil))
}

package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/Tranquil/internal/flow"
	"github.com/BTreeMap/Tranquil/internal/models"
)

// startSessionRequest is the body of POST /breathing/sessions.
type startSessionRequest struct {
	ProgramID string `json:"program_id"`
}

// programsHandler handles GET /breathing/programs
func (s *Server) programsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.sessions.Programs()))
}

// sessionsHandler handles POST and GET /breathing/sessions
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSONResponse(w, http.StatusOK, models.Success(s.sessions.List(userID)))
	case http.MethodPost:
		var req startSessionRequest
		if !decodeJSONBody(w, r, &req, "sessionsHandler") {
			return
		}
		view, err := s.sessions.Start(r.Context(), userID, req.ProgramID)
		switch {
		case errors.Is(err, models.ErrEmptyProgramID):
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: program_id"))
			return
		case errors.Is(err, flow.ErrUnknownProgram):
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		case err != nil:
			slog.Error("Server.sessionsHandler: failed to start session", "userID", userID, "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start session"))
			return
		}
		writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Session started", view))
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// ownedSession returns the session when it exists and belongs to the caller.
// Sessions of other users are reported as not found.
func (s *Server) ownedSession(w http.ResponseWriter, r *http.Request) (flow.SessionView, bool) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return flow.SessionView{}, false
	}
	id := r.PathValue("id")
	view, err := s.sessions.Get(id)
	if err != nil || view.UserID != userID {
		slog.Debug("Server.ownedSession: session not found", "sessionID", id, "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return flow.SessionView{}, false
	}
	return view, true
}

// sessionHandler handles GET and DELETE /breathing/sessions/{id}
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodDelete {
		methodNotAllowed(w, "GET, DELETE")
		return
	}
	view, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	if r.Method == http.MethodGet {
		writeJSONResponse(w, http.StatusOK, models.Success(view))
		return
	}
	if err := s.sessions.Remove(view.ID); err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	slog.Info("Server.sessionHandler: session removed", "sessionID", view.ID, "userID", view.UserID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session removed", nil))
}

// sessionActionHandler handles POST /breathing/sessions/{id}/{pause|resume|reset|start}
func (s *Server) sessionActionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	view, ok := s.ownedSession(w, r)
	if !ok {
		return
	}

	var err error
	id := view.ID
	action := r.PathValue("action")
	switch action {
	case "pause":
		view, err = s.sessions.Pause(id)
	case "resume":
		view, err = s.sessions.Resume(id)
	case "reset":
		view, err = s.sessions.Reset(id)
	case "start":
		view, err = s.sessions.Restart(r.Context(), id)
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown session action: "+action))
		return
	}
	if errors.Is(err, flow.ErrSessionNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	if err != nil {
		slog.Error("Server.sessionActionHandler: action failed", "sessionID", id, "action", action, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to "+action+" session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(view))
}

// breathingHistoryHandler handles GET /breathing/history?limit=N
func (s *Server) breathingHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(r, "limit")
	if !ok {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a non-negative integer"))
		return
	}
	logs, err := s.sessions.History(r.Context(), userID, limit)
	if err != nil {
		slog.Error("Server.breathingHistoryHandler: failed to load history", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load breathing history"))
		return
	}
	if logs == nil {
		logs = []models.SessionLog{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(logs))
}

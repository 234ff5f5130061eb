package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/Tranquil/internal/flow"
	"github.com/BTreeMap/Tranquil/internal/models"
	"github.com/BTreeMap/Tranquil/internal/pss"
)

// Form-level messages for rejected check-ins.
const (
	msgIncompleteAnswers = "Please answer all 10 questions before submitting."
	msgInvalidAnswers    = "Each answer must be one of the 5 options (0 to 4)."
)

// assessmentRequest is the body of POST /assessments. Only a null answer is
// unanswered; any given number is validated as an answer.
type assessmentRequest struct {
	Answers []*int `json:"answers"`
}

func (req assessmentRequest) toAnswers() []models.Answer {
	answers := make([]models.Answer, len(req.Answers))
	for i, a := range req.Answers {
		if a == nil {
			answers[i] = models.Unanswered
			continue
		}
		v := models.Answer(*a)
		if v == models.Unanswered {
			// Present in the body, so it must not read as missing.
			v = models.MinAnswer - 1
		}
		answers[i] = v
	}
	return answers
}

// questionsHandler handles GET /assessment/questions
func (s *Server) questionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"questions": s.assessments.Questions(),
		"labels":    models.LikertLabels,
	}))
}

// assessmentsHandler handles POST /assessments and GET /assessments?limit=N
func (s *Server) assessmentsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.submitAssessmentHandler(w, r)
	case http.MethodGet:
		s.assessmentHistoryHandler(w, r)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

func (s *Server) submitAssessmentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req assessmentRequest
	if !decodeJSONBody(w, r, &req, "submitAssessmentHandler") {
		return
	}

	result, err := s.assessments.Submit(r.Context(), userID, req.toAnswers())
	switch {
	case errors.Is(err, pss.ErrIncompleteInput):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(msgIncompleteAnswers))
		return
	case errors.Is(err, pss.ErrInvalidAnswer):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(msgInvalidAnswers))
		return
	case err != nil:
		slog.Error("Server.submitAssessmentHandler: submit failed", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record assessment"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Assessment recorded", result))
}

func (s *Server) assessmentHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(r, "limit")
	if !ok {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a non-negative integer"))
		return
	}
	records, err := s.assessments.History(r.Context(), userID, limit)
	if err != nil {
		slog.Error("Server.assessmentHistoryHandler: failed to load history", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load assessments"))
		return
	}
	if records == nil {
		records = []models.ScoreRecord{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(records))
}

// latestAssessmentHandler handles GET /assessments/latest
func (s *Server) latestAssessmentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	result, err := s.assessments.Latest(r.Context(), userID)
	if errors.Is(err, flow.ErrNoAssessments) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("No assessments recorded yet"))
		return
	}
	if err != nil {
		slog.Error("Server.latestAssessmentHandler: failed to load latest", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load assessment"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// assessmentTrendHandler handles GET /assessments/trend?n=7
func (s *Server) assessmentTrendHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	n, ok := parseLimit(r, "n")
	if !ok {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("n must be a non-negative integer"))
		return
	}
	trend, err := s.assessments.Trend(r.Context(), userID, n)
	if err != nil {
		slog.Error("Server.assessmentTrendHandler: failed to build trend", "userID", userID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load trend"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(trend))
}

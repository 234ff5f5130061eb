package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/BTreeMap/Tranquil/internal/flow"
	"github.com/BTreeMap/Tranquil/internal/models"
	"github.com/BTreeMap/Tranquil/internal/pss"
)

// answersBody builds an assessment body; a negative value is sent as null.
func answersBody(values ...int) map[string]interface{} {
	answers := make([]interface{}, len(values))
	for i, v := range values {
		if v < 0 {
			answers[i] = nil
			continue
		}
		answers[i] = v
	}
	return map[string]interface{}{"answers": answers}
}

func TestQuestionsHandler(t *testing.T) {
	ts := newTestServer(t)
	var result struct {
		Questions []string `json:"questions"`
		Labels    []string `json:"labels"`
	}
	rec := ts.do(t, http.MethodGet, "/assessment/questions", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}
	decode(t, rec, &result)
	if len(result.Questions) != pss.QuestionCount || len(result.Labels) != 5 || result.Labels[0] != "Never" {
		t.Errorf("unexpected questionnaire: %+v", result)
	}
}

func TestSubmitAssessment(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/assessments", "alice", answersBody(4, 4, 4, 4, 4, 4, 4, 4, 4, 4))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	var result flow.AssessmentResult
	env := decode(t, rec, &result)
	if env.Status != string(models.APIStatusOK) {
		t.Errorf("Expected status=%s, got %s", models.APIStatusOK, env.Status)
	}
	if result.Record.Score != 24 || result.Record.Band != models.BandModerate || result.Record.UserID != "alice" {
		t.Errorf("unexpected record: %+v", result.Record)
	}
	if result.Interpretation.Label == "" || result.Advice == "" {
		t.Errorf("expected interpretation and advice: %+v", result)
	}
	if len(ts.msg.Sent()) != 0 {
		t.Error("moderate scores must not trigger a referral")
	}
}

func TestSubmitAssessment_HighBandReferral(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/assessments", "alice", answersBody(4, 4, 4, 0, 0, 4, 0, 0, 4, 4))
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	var result flow.AssessmentResult
	decode(t, rec, &result)
	if result.Record.Band != models.BandHigh || !result.RecommendSupport || !result.Referred {
		t.Errorf("expected high band with referral, got %+v", result)
	}
	sent := ts.msg.Sent()
	if len(sent) != 1 || sent[0].To != testReferralContact {
		t.Errorf("expected referral to %s, got %+v", testReferralContact, sent)
	}
}

func TestSubmitAssessment_Rejections(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name    string
		body    interface{}
		wantMsg string
	}{
		{"unanswered", answersBody(1, 2, 3, -1, 1, 2, 3, 0, 1, 2), msgIncompleteAnswers},
		{"too few", answersBody(1, 2, 3), msgInvalidAnswers},
		{"out of range", answersBody(1, 2, 3, 5, 1, 2, 3, 0, 1, 2), msgInvalidAnswers},
		{"explicit negative one", map[string]interface{}{"answers": []int{-1, 0, 0, 0, 0, 0, 0, 0, 0, 0}}, msgInvalidAnswers},
		{"explicit min int", map[string]interface{}{"answers": []int{0, 0, 0, 0, 0, 0, 0, 0, 0, int(models.Unanswered)}}, msgInvalidAnswers},
		{"bad json", "{not json", "Invalid JSON format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/assessments", "bob", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if env := decode(t, rec, nil); env.Message != tt.wantMsg {
				t.Errorf("expected message %q, got %q", tt.wantMsg, env.Message)
			}
		})
	}
	records, _ := ts.store.GetScoreRecords(t.Context(), "bob", 0)
	if len(records) != 0 {
		t.Errorf("rejected submissions must not be stored, got %d", len(records))
	}
}

func TestAssessmentHistoryLatestTrend(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/assessments/latest", "carol", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 before any check-in, got %d", rec.Code)
	}

	for _, v := range []int{0, 2, 4} {
		body := answersBody(v, v, v, v, v, v, v, v, v, v)
		if rec := ts.do(t, http.MethodPost, "/assessments", "carol", body); rec.Code != http.StatusCreated {
			t.Fatalf("submit %d: got %d", v, rec.Code)
		}
	}

	var history []models.ScoreRecord
	rec = ts.do(t, http.MethodGet, "/assessments?limit=2", "carol", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}
	decode(t, rec, &history)
	if len(history) != 2 {
		t.Errorf("expected 2 records with limit, got %d", len(history))
	}

	var latest flow.AssessmentResult
	decode(t, ts.do(t, http.MethodGet, "/assessments/latest", "carol", nil), &latest)
	if latest.Record.UserID != "carol" || !latest.Record.Band.Valid() {
		t.Errorf("unexpected latest: %+v", latest)
	}

	var trend pss.TrendResult
	rec = ts.do(t, http.MethodGet, "/assessments/trend?n=7", "carol", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}
	decode(t, rec, &trend)
	if len(trend.Points) != 3 {
		t.Errorf("expected 3 trend points, got %+v", trend)
	}

	var empty []models.ScoreRecord
	decode(t, ts.do(t, http.MethodGet, "/assessments", "dave", nil), &empty)
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty JSON array for a new user, got %v", empty)
	}

	for _, path := range []string{"/assessments?limit=-1", "/assessments?limit=abc", "/assessments/trend?n=x"} {
		if rec := ts.do(t, http.MethodGet, path, "carol", nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}

	rec = ts.do(t, http.MethodPut, "/assessments", "carol", nil)
	if rec.Code != http.StatusMethodNotAllowed || !strings.Contains(rec.Header().Get("Allow"), http.MethodPost) {
		t.Errorf("expected 405 allowing POST, got %d %q", rec.Code, rec.Header().Get("Allow"))
	}
}

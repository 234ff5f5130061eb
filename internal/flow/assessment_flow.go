package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/Tranquil/internal/genai"
	"github.com/BTreeMap/Tranquil/internal/messaging"
	"github.com/BTreeMap/Tranquil/internal/metrics"
	"github.com/BTreeMap/Tranquil/internal/models"
	"github.com/BTreeMap/Tranquil/internal/pss"
	"github.com/BTreeMap/Tranquil/internal/store"
)

// ErrNoAssessments is returned by Latest when the user has no records.
var ErrNoAssessments = errors.New("no assessments recorded")

// adviceTimeout bounds the GenAI call made during a check-in.
const adviceTimeout = 10 * time.Second

// AssessmentResult is what a user sees after submitting a check-in.
type AssessmentResult struct {
	Record           models.ScoreRecord `json:"record"`
	Interpretation   pss.Interpretation `json:"interpretation"`
	Advice           string             `json:"advice"`
	RecommendSupport bool               `json:"recommend_support"`
	Referred         bool               `json:"referred"`
}

// AssessmentFlow scores, records and interprets PSS-10 check-ins.
type AssessmentFlow struct {
	store           store.Store
	genai           genai.ClientInterface
	msg             messaging.Service
	referralContact string
	metrics         *metrics.Metrics
	trendWindow     int
	now             func() time.Time
}

// AssessmentOption configures an AssessmentFlow.
type AssessmentOption func(*AssessmentFlow)

// WithAdvice personalizes the interpretation summary with GenAI.
func WithAdvice(client genai.ClientInterface) AssessmentOption {
	return func(f *AssessmentFlow) { f.genai = client }
}

// WithReferral notifies contact through msg when a check-in lands in the high band.
func WithReferral(msg messaging.Service, contact string) AssessmentOption {
	return func(f *AssessmentFlow) {
		f.msg = msg
		f.referralContact = contact
	}
}

// WithAssessmentMetrics counts check-ins and referrals in m.
func WithAssessmentMetrics(m *metrics.Metrics) AssessmentOption {
	return func(f *AssessmentFlow) { f.metrics = m }
}

// WithTrendWindow sets the default number of scores in a trend.
func WithTrendWindow(n int) AssessmentOption {
	return func(f *AssessmentFlow) { f.trendWindow = n }
}

// WithAssessmentClock overrides the clock used for record timestamps.
func WithAssessmentClock(now func() time.Time) AssessmentOption {
	return func(f *AssessmentFlow) { f.now = now }
}

// NewAssessmentFlow creates an AssessmentFlow persisting to st.
func NewAssessmentFlow(st store.Store, opts ...AssessmentOption) *AssessmentFlow {
	f := &AssessmentFlow{
		store:       st,
		trendWindow: pss.DefaultTrendWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Questions returns the ten questionnaire items in order.
func (f *AssessmentFlow) Questions() []string {
	return pss.Questions[:]
}

// Submit scores answers for userID, stores the record and interprets it.
// Validation errors from pss are returned unchanged.
func (f *AssessmentFlow) Submit(ctx context.Context, userID string, answers []models.Answer) (AssessmentResult, error) {
	if userID == "" {
		return AssessmentResult{}, models.ErrEmptyUserID
	}
	score, err := pss.Compute(answers)
	if err != nil {
		slog.Debug("AssessmentFlow.Submit: rejected answers", "userID", userID, "error", err)
		return AssessmentResult{}, err
	}
	record, err := pss.ToRecord(score, userID, f.now())
	if err != nil {
		return AssessmentResult{}, err
	}
	if err := f.store.AddScoreRecord(ctx, record); err != nil {
		slog.Error("AssessmentFlow.Submit: failed to store record", "userID", userID, "error", err)
		return AssessmentResult{}, fmt.Errorf("store score record: %w", err)
	}
	if f.metrics != nil {
		f.metrics.RecordAssessment(string(record.Band))
	}

	interp, _ := pss.Interpret(record.Band)
	result := AssessmentResult{
		Record:           record,
		Interpretation:   interp,
		Advice:           f.advice(ctx, record, interp),
		RecommendSupport: pss.RecommendsSupport(score),
	}
	if result.RecommendSupport {
		result.Referred = f.refer(ctx, record)
	}
	slog.Info("AssessmentFlow.Submit: check-in recorded", "userID", userID, "score", score, "band", record.Band, "referred", result.Referred)
	return result, nil
}

// advice returns GenAI advice, falling back to the static summary.
func (f *AssessmentFlow) advice(ctx context.Context, record models.ScoreRecord, interp pss.Interpretation) string {
	if f.genai == nil {
		return interp.Summary
	}
	ctx, cancel := context.WithTimeout(ctx, adviceTimeout)
	defer cancel()
	text, err := f.genai.GenerateAdvice(ctx, record.Band, record.Score)
	if err != nil || text == "" {
		slog.Warn("AssessmentFlow: GenAI advice unavailable, using summary", "userID", record.UserID, "error", err)
		return interp.Summary
	}
	return text
}

// refer sends the referral notification. It reports whether one was sent.
func (f *AssessmentFlow) refer(ctx context.Context, record models.ScoreRecord) bool {
	if f.msg == nil || f.referralContact == "" {
		return false
	}
	body := fmt.Sprintf("Tranquil referral: user %s reported high perceived stress (%d/40) at %s and may benefit from professional support.",
		record.UserID, record.Score, record.CreatedAt.Format(time.RFC3339))
	err := f.msg.SendMessage(ctx, f.referralContact, body)
	if f.metrics != nil {
		f.metrics.RecordReferral(err == nil)
	}
	if err != nil {
		slog.Error("AssessmentFlow: referral notification failed", "userID", record.UserID, "error", err)
		return false
	}
	return true
}

// History returns the user's records newest first. limit <= 0 returns all.
func (f *AssessmentFlow) History(ctx context.Context, userID string, limit int) ([]models.ScoreRecord, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	return f.store.GetScoreRecords(ctx, userID, limit)
}

// Latest returns the user's most recent record with its interpretation.
func (f *AssessmentFlow) Latest(ctx context.Context, userID string) (AssessmentResult, error) {
	records, err := f.History(ctx, userID, 1)
	if err != nil {
		return AssessmentResult{}, err
	}
	if len(records) == 0 {
		return AssessmentResult{}, ErrNoAssessments
	}
	record := records[0]
	interp, _ := pss.Interpret(record.Band)
	return AssessmentResult{
		Record:           record,
		Interpretation:   interp,
		Advice:           interp.Summary,
		RecommendSupport: pss.RecommendsSupport(record.Score),
	}, nil
}

// Trend returns the user's n most recent scores oldest first. n <= 0 uses
// the configured window.
func (f *AssessmentFlow) Trend(ctx context.Context, userID string, n int) (pss.TrendResult, error) {
	if n <= 0 {
		n = f.trendWindow
	}
	records, err := f.History(ctx, userID, n)
	if err != nil {
		return pss.TrendResult{}, err
	}
	return pss.Trend(records, n), nil
}

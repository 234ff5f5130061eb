// Package pss implements the Perceived Stress Scale (PSS-10) scoring engine.
//
// Scoring is a pure function of the ten answers: no state is kept between
// calls and the package is safe for concurrent use.
package pss

import (
	"errors"
	"fmt"
	"time"

	"github.com/BTreeMap/Tranquil/internal/models"
	"github.com/google/uuid"
)

// QuestionCount is the number of items in the instrument.
const QuestionCount = 10

// Score bounds and band thresholds. Bands are inclusive on both ends.
const (
	MinScore         = 0
	MaxScore         = 40
	LowMaxScore      = 13
	ModerateMaxScore = 26
)

// Errors returned by the engine. They are local validation failures; the
// caller must collect valid input and call again.
var (
	ErrIncompleteInput = errors.New("all questions must be answered")
	ErrInvalidAnswer   = errors.New("invalid answer")
	ErrScoreOutOfRange = errors.New("score out of range")
	ErrEmptyUserID     = models.ErrEmptyUserID
)

// reverseScored holds the 0-based indices of positively worded items.
var reverseScored = map[int]bool{3: true, 4: true, 6: true, 7: true}

// ReverseScored returns the 0-based indices of reverse-scored items in order.
func ReverseScored() []int {
	return []int{3, 4, 6, 7}
}

// IsReverseScored reports whether question i is reverse-scored.
func IsReverseScored(i int) bool {
	return reverseScored[i]
}

// Questions is the fixed PSS-10 question text, in scoring order.
var Questions = [QuestionCount]string{
	"In the last month, how often have you been upset because of something that happened unexpectedly?",
	"In the last month, how often have you felt that you were unable to control the important things in your life?",
	"In the last month, how often have you felt nervous and 'stressed'?",
	"In the last month, how often have you felt confident about your ability to handle your personal problems?",
	"In the last month, how often have you felt that things were going your way?",
	"In the last month, how often have you found that you could not cope with all the things that you had to do?",
	"In the last month, how often have you been able to control irritations in your life?",
	"In the last month, how often have you felt that you were on top of things?",
	"In the last month, how often have you been angered because of things that were outside of your control?",
	"In the last month, how often have you felt difficulties were piling up so high that you could not overcome them?",
}

// ItemScore returns the contribution of answer v at question index i.
func ItemScore(i int, v models.Answer) int {
	if reverseScored[i] {
		return int(models.MaxAnswer - v)
	}
	return int(v)
}

// Compute returns the stress score for exactly ten answers.
//
// Unanswered positions fail with ErrIncompleteInput; a wrong length or a
// value outside [0,4] fails with ErrInvalidAnswer.
func Compute(answers []models.Answer) (int, error) {
	if len(answers) != QuestionCount {
		return 0, fmt.Errorf("%w: expected %d answers, got %d", ErrInvalidAnswer, QuestionCount, len(answers))
	}
	for i, v := range answers {
		if !v.IsSet() {
			return 0, fmt.Errorf("%w: question %d is unanswered", ErrIncompleteInput, i+1)
		}
	}
	sum := 0
	for i, v := range answers {
		if v < models.MinAnswer || v > models.MaxAnswer {
			return 0, fmt.Errorf("%w: question %d has value %d", ErrInvalidAnswer, i+1, v)
		}
		sum += ItemScore(i, v)
	}
	return sum, nil
}

// Classify maps a score in [0,40] to its severity band.
func Classify(score int) (models.SeverityBand, error) {
	switch {
	case score < MinScore || score > MaxScore:
		return "", fmt.Errorf("%w: %d", ErrScoreOutOfRange, score)
	case score <= LowMaxScore:
		return models.BandLow, nil
	case score <= ModerateMaxScore:
		return models.BandModerate, nil
	default:
		return models.BandHigh, nil
	}
}

// ToRecord builds the persistable record for a score. Persisting it is the
// caller's job.
func ToRecord(score int, userID string, now time.Time) (models.ScoreRecord, error) {
	if userID == "" {
		return models.ScoreRecord{}, ErrEmptyUserID
	}
	band, err := Classify(score)
	if err != nil {
		return models.ScoreRecord{}, err
	}
	return models.ScoreRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Score:     score,
		Band:      band,
		CreatedAt: now.UTC(),
	}, nil
}

// RecommendsSupport reports whether the score warrants suggesting
// professional support.
func RecommendsSupport(score int) bool {
	band, err := Classify(score)
	return err == nil && band == models.BandHigh
}

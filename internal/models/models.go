// Package models defines the core data structures for Tranquil.
//
// It includes stress assessment records, breathing programs and sequencer
// state, and the JSON envelope used by the API, which are shared across modules.
package models

import (
	"errors"
	"math"
	"time"
)

// Answer is a Likert index in [0,4] for one PSS-10 question.
type Answer int

// Unanswered marks a question the user has not answered yet. It lies far
// outside the Likert range so a given but invalid value such as -1 stays invalid.
const Unanswered Answer = math.MinInt

// Likert answer bounds.
const (
	MinAnswer Answer = 0
	MaxAnswer Answer = 4
)

// LikertLabels are the five fixed answer labels, indexed by Answer.
var LikertLabels = []string{"Never", "Almost Never", "Sometimes", "Fairly Often", "Very Often"}

// IsSet reports whether the answer was given.
func (a Answer) IsSet() bool {
	return a != Unanswered
}

// Label returns the Likert label for a, or "" when a is outside [0,4].
func (a Answer) Label() string {
	if a < MinAnswer || a > MaxAnswer {
		return ""
	}
	return LikertLabels[a]
}

// SeverityBand classifies a stress score.
type SeverityBand string

const (
	// BandLow covers scores 0-13.
	BandLow SeverityBand = "low"
	// BandModerate covers scores 14-26.
	BandModerate SeverityBand = "moderate"
	// BandHigh covers scores 27-40.
	BandHigh SeverityBand = "high"
)

// Valid reports whether b is one of the known bands.
func (b SeverityBand) Valid() bool {
	switch b {
	case BandLow, BandModerate, BandHigh:
		return true
	}
	return false
}

// ScoreRecord is a persisted stress score. Records are append-only.
type ScoreRecord struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Score     int          `json:"score"`
	Band      SeverityBand `json:"band"`
	CreatedAt time.Time    `json:"created_at"`
}

// Validation errors shared by the store and API layers.
var (
	ErrEmptyUserID    = errors.New("user id cannot be empty")
	ErrEmptyProgramID = errors.New("program id cannot be empty")
)

// Validate checks the fields a store needs before persisting a record.
func (r *ScoreRecord) Validate() error {
	if r.UserID == "" {
		return ErrEmptyUserID
	}
	if !r.Band.Valid() {
		return errors.New("invalid severity band")
	}
	return nil
}

// Professional is a support professional a user can be referred to.
type Professional struct {
	ID         string   `json:"id" toml:"id"`
	Name       string   `json:"name" toml:"name"`
	Title      string   `json:"title,omitempty" toml:"title"`
	Approaches []string `json:"approaches,omitempty" toml:"approaches"`
	Contact    string   `json:"contact,omitempty" toml:"contact"`
}

// Approaches are the referral approaches users can filter professionals by.
var Approaches = []string{"Christian", "Gentle", "Direct", "Cognitive Behavioral (CBT)", "Mindfulness-based"}

// KnownApproach reports whether approach is one of Approaches.
func KnownApproach(approach string) bool {
	for _, a := range Approaches {
		if a == approach {
			return true
		}
	}
	return false
}

// Offers reports whether the professional practices the given approach.
// An empty approach matches everyone.
func (p Professional) Offers(approach string) bool {
	if approach == "" {
		return true
	}
	for _, a := range p.Approaches {
		if a == approach {
			return true
		}
	}
	return false
}

// TimerInfo describes an active tick source.
type TimerInfo struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	Interval    time.Duration `json:"interval"`
	Ticks       int64         `json:"ticks"`
	Description string        `json:"description,omitempty"`
}

// Reminder is a recurring check-in nudge sent to a phone number.
type Reminder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	To        string    `json:"to"`
	Cron      string    `json:"cron"`
	CreatedAt time.Time `json:"created_at"`
	Next      time.Time `json:"next,omitempty"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// Package models defines breathing exercise structures for Tranquil.
package models

import "time"

// BreathingPhase is a named, timed segment of a breathing exercise.
type BreathingPhase struct {
	Name     string `json:"name"`
	Duration int    `json:"duration_seconds"`
}

// Instructions is the user-facing description of a program.
type Instructions struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
}

// PhaseProgram is an ordered, non-empty list of phases repeated Repetitions times.
type PhaseProgram struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Phases       []BreathingPhase `json:"phases"`
	Repetitions  int              `json:"repetitions"`
	Instructions Instructions     `json:"instructions"`
}

// CycleSeconds returns the length of one repetition in seconds.
func (p PhaseProgram) CycleSeconds() int {
	total := 0
	for _, ph := range p.Phases {
		total += ph.Duration
	}
	return total
}

// SequencerStatus is the lifecycle state of a phase sequencer.
type SequencerStatus string

const (
	// StatusIdle means no program is selected.
	StatusIdle SequencerStatus = "idle"
	// StatusReady is the pre-start countdown.
	StatusReady SequencerStatus = "ready"
	// StatusRunning means a phase is counting down.
	StatusRunning SequencerStatus = "running"
	// StatusPaused means ticking is frozen.
	StatusPaused SequencerStatus = "paused"
	// StatusDone is terminal until reset or restart.
	StatusDone SequencerStatus = "done"
)

// NoPhase is the PhaseIndex reported outside the Running state.
const NoPhase = -1

// ReadyPhaseName and DonePhaseName label the non-phase states for display.
const (
	ReadyPhaseName = "Get Ready"
	DonePhaseName  = "Done"
)

// SequencerState is a snapshot of a sequencer for rendering.
type SequencerState struct {
	Status           SequencerStatus `json:"status"`
	ProgramID        string          `json:"program_id,omitempty"`
	PhaseIndex       int             `json:"phase_index"`
	PhaseName        string          `json:"phase_name,omitempty"`
	Remaining        int             `json:"remaining_seconds"`
	Repetition       int             `json:"repetition"`
	TotalRepetitions int             `json:"total_repetitions"`
}

// Done reports whether the state is terminal.
func (s SequencerState) Done() bool {
	return s.Status == StatusDone
}

// SessionLog records a completed breathing session.
type SessionLog struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProgramID   string    `json:"program_id"`
	Repetitions int       `json:"repetitions"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

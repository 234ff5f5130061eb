// Package breathing implements the breathing-exercise phase sequencer.
//
// A Sequencer walks a PhaseProgram one tick (one elapsed second) at a time:
// a short "Get Ready" countdown, then every phase of the program for the
// configured number of repetitions, then Done. The sequencer has no clock of
// its own; the caller owns the periodic timer and calls Tick once per second.
//
// A Sequencer is not safe for concurrent use. Keep one per running exercise
// and drive it from a single timer callback at a time.
package breathing

import (
	"errors"
	"fmt"

	"github.com/BTreeMap/Tranquil/internal/models"
)

// DefaultCountdown is the "Get Ready" countdown in seconds.
const DefaultCountdown = 3

// ErrInvalidProgram is returned by Start for an empty program, a phase
// without a positive duration, or a program with no repetitions.
var ErrInvalidProgram = errors.New("invalid breathing program")

// Validate checks that p can be run by a Sequencer.
func Validate(p models.PhaseProgram) error {
	if len(p.Phases) == 0 {
		return fmt.Errorf("%w: program %q has no phases", ErrInvalidProgram, p.ID)
	}
	if p.Repetitions < 1 {
		return fmt.Errorf("%w: program %q has %d repetitions", ErrInvalidProgram, p.ID, p.Repetitions)
	}
	for i, ph := range p.Phases {
		if ph.Duration < 1 {
			return fmt.Errorf("%w: phase %d (%s) has duration %d", ErrInvalidProgram, i, ph.Name, ph.Duration)
		}
	}
	return nil
}

// TotalTicks is the number of ticks from Start to Done for p.
func TotalTicks(p models.PhaseProgram, countdown int) int {
	return countdown + p.CycleSeconds()*p.Repetitions
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithCountdown sets the pre-start countdown. Negative values are treated as 0.
func WithCountdown(seconds int) Option {
	return func(s *Sequencer) {
		if seconds < 0 {
			seconds = 0
		}
		s.countdown = seconds
	}
}

// Sequencer is the phase state machine for one exercise.
type Sequencer struct {
	countdown int

	program    models.PhaseProgram
	status     models.SequencerStatus
	pausedFrom models.SequencerStatus
	phase      int
	remaining  int
	repetition int
}

// NewSequencer returns an Idle sequencer.
func NewSequencer(opts ...Option) *Sequencer {
	s := &Sequencer{countdown: DefaultCountdown}
	for _, opt := range opts {
		opt(s)
	}
	s.clear()
	return s
}

// Countdown returns the configured pre-start countdown.
func (s *Sequencer) Countdown() int {
	return s.countdown
}

// Program returns the selected program, which is zero while Idle.
func (s *Sequencer) Program() models.PhaseProgram {
	return s.program
}

// Start selects program and enters the countdown. Calling Start on a
// sequencer that is already running restarts it with the new program.
func (s *Sequencer) Start(program models.PhaseProgram) (models.SequencerState, error) {
	if err := Validate(program); err != nil {
		return s.State(), err
	}
	s.clear()
	s.program = program
	s.program.Phases = append([]models.BreathingPhase(nil), program.Phases...)
	if s.countdown == 0 {
		s.enterPhase(0)
		return s.State(), nil
	}
	s.status = models.StatusReady
	s.remaining = s.countdown
	return s.State(), nil
}

// Tick advances the sequencer by one second. It is a no-op while Idle,
// Paused or Done.
//
// Remaining is decremented first and the unit ends when it reaches zero, so
// a phase of d seconds lasts exactly d ticks and a full run takes
// TotalTicks ticks.
func (s *Sequencer) Tick() models.SequencerState {
	if s.status != models.StatusReady && s.status != models.StatusRunning {
		return s.State()
	}
	s.remaining--
	if s.remaining > 0 {
		return s.State()
	}

	if s.status == models.StatusReady {
		s.enterPhase(0)
		return s.State()
	}

	last := len(s.program.Phases) - 1
	switch {
	case s.phase < last:
		s.enterPhase(s.phase + 1)
	case s.repetition < s.program.Repetitions-1:
		s.repetition++
		s.enterPhase(0)
	default:
		s.status = models.StatusDone
		s.phase = models.NoPhase
		s.remaining = 0
	}
	return s.State()
}

// Pause freezes ticking without losing position.
func (s *Sequencer) Pause() models.SequencerState {
	if s.status == models.StatusReady || s.status == models.StatusRunning {
		s.pausedFrom = s.status
		s.status = models.StatusPaused
	}
	return s.State()
}

// Resume continues from the exact position Pause froze.
func (s *Sequencer) Resume() models.SequencerState {
	if s.status == models.StatusPaused {
		s.status = s.pausedFrom
		s.pausedFrom = ""
	}
	return s.State()
}

// Reset returns the sequencer to Idle from any state.
func (s *Sequencer) Reset() models.SequencerState {
	s.clear()
	return s.State()
}

// State returns a snapshot for rendering.
func (s *Sequencer) State() models.SequencerState {
	st := models.SequencerState{
		Status:           s.status,
		ProgramID:        s.program.ID,
		PhaseIndex:       s.phase,
		Remaining:        s.remaining,
		Repetition:       s.repetition,
		TotalRepetitions: s.program.Repetitions,
	}
	shown := s.status
	if shown == models.StatusPaused {
		shown = s.pausedFrom
	}
	switch shown {
	case models.StatusReady:
		st.PhaseName = models.ReadyPhaseName
	case models.StatusRunning:
		st.PhaseName = s.program.Phases[s.phase].Name
	case models.StatusDone:
		st.PhaseName = models.DonePhaseName
	}
	return st
}

func (s *Sequencer) enterPhase(i int) {
	s.status = models.StatusRunning
	s.phase = i
	s.remaining = s.program.Phases[i].Duration
}

func (s *Sequencer) clear() {
	s.program = models.PhaseProgram{}
	s.status = models.StatusIdle
	s.pausedFrom = ""
	s.phase = models.NoPhase
	s.remaining = 0
	s.repetition = 0
}

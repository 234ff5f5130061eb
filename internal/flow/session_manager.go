package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/Tranquil/internal/breathing"
	"github.com/BTreeMap/Tranquil/internal/metrics"
	"github.com/BTreeMap/Tranquil/internal/models"
	"github.com/BTreeMap/Tranquil/internal/store"
)

// TickInterval is the wall-clock length of one sequencer tick.
const TickInterval = time.Second

// DefaultDoneRetention is how long a finished session stays readable before
// it is dropped from memory. Its log entry is kept in the store.
const DefaultDoneRetention = 15 * time.Minute

var (
	// ErrSessionNotFound is returned for unknown session IDs.
	ErrSessionNotFound = errors.New("breathing session not found")
	// ErrUnknownProgram is returned when the program ID is not in the catalog.
	ErrUnknownProgram = errors.New("unknown breathing program")
)

// SessionView is a snapshot of a breathing session for rendering.
type SessionView struct {
	ID        string                `json:"id"`
	UserID    string                `json:"user_id"`
	ProgramID string                `json:"program_id"`
	StartedAt time.Time             `json:"started_at"`
	State     models.SequencerState `json:"state"`
}

// session pairs a sequencer with its tick subscription. mu serializes every
// sequencer call.
type session struct {
	mu        sync.Mutex
	id        string
	userID    string
	program   models.PhaseProgram
	seq       *breathing.Sequencer
	startedAt time.Time
	tickID    string
	tickGen   uint64 // bumped on every subscribe and cancel
	active    bool   // counted in the active-sessions gauge
	doneAt    time.Time
}

func (s *session) view() SessionView {
	return SessionView{
		ID:        s.id,
		UserID:    s.userID,
		ProgramID: s.program.ID,
		StartedAt: s.startedAt,
		State:     s.seq.State(),
	}
}

// SessionManager owns the breathing sessions of all users.
type SessionManager struct {
	programs  *breathing.Catalog
	store     store.Store
	ticks     TickSource
	metrics   *metrics.Metrics
	countdown int
	retention time.Duration
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithSessionMetrics records session outcomes in m.
func WithSessionMetrics(m *metrics.Metrics) SessionOption {
	return func(sm *SessionManager) { sm.metrics = m }
}

// WithCountdown overrides the "Get Ready" countdown length in seconds.
func WithCountdown(seconds int) SessionOption {
	return func(sm *SessionManager) { sm.countdown = seconds }
}

// WithDoneRetention overrides how long finished sessions stay in memory.
func WithDoneRetention(d time.Duration) SessionOption {
	return func(sm *SessionManager) { sm.retention = d }
}

// WithSessionClock overrides the clock used for session timestamps.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(sm *SessionManager) { sm.now = now }
}

// NewSessionManager creates a SessionManager. ticks drives every session at TickInterval.
func NewSessionManager(programs *breathing.Catalog, st store.Store, ticks TickSource, opts ...SessionOption) *SessionManager {
	sm := &SessionManager{
		programs:  programs,
		store:     st,
		ticks:     ticks,
		countdown: breathing.DefaultCountdown,
		retention: DefaultDoneRetention,
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// Programs returns the program catalog.
func (m *SessionManager) Programs() []models.PhaseProgram {
	return m.programs.List()
}

// Start creates a session for userID running programID and begins ticking.
func (m *SessionManager) Start(ctx context.Context, userID, programID string) (SessionView, error) {
	if userID == "" {
		return SessionView{}, models.ErrEmptyUserID
	}
	if programID == "" {
		return SessionView{}, models.ErrEmptyProgramID
	}
	program, ok := m.programs.Get(programID)
	if !ok {
		return SessionView{}, fmt.Errorf("%w: %q", ErrUnknownProgram, programID)
	}

	s := &session{
		id:      uuid.NewString(),
		userID:  userID,
		program: program,
		seq:     breathing.NewSequencer(breathing.WithCountdown(m.countdown)),
	}

	s.mu.Lock()
	err := m.startLocked(s)
	view := s.view()
	s.mu.Unlock()
	if err != nil {
		return SessionView{}, err
	}

	m.mu.Lock()
	m.pruneLocked()
	m.sessions[s.id] = s
	m.mu.Unlock()

	slog.Info("SessionManager.Start: session started", "sessionID", s.id, "userID", userID, "programID", programID)
	return view, nil
}

// Restart starts the session's program again from the beginning.
func (m *SessionManager) Restart(ctx context.Context, id string) (SessionView, error) {
	s, err := m.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.stopTicking(s)
	m.deactivate(s, metrics.SessionAbandoned)
	if err := m.startLocked(s); err != nil {
		return SessionView{}, err
	}
	slog.Debug("SessionManager.Restart: session restarted", "sessionID", id)
	return s.view(), nil
}

// startLocked starts the sequencer and subscribes to ticks. s.mu must be held.
func (m *SessionManager) startLocked(s *session) error {
	if _, err := s.seq.Start(s.program); err != nil {
		return err
	}
	s.startedAt = m.now().UTC()
	s.doneAt = time.Time{}
	if err := m.subscribe(s); err != nil {
		s.seq.Reset()
		return err
	}
	s.active = true
	m.record(metrics.SessionStarted)
	return nil
}

// Get returns a snapshot of the session.
func (m *SessionManager) Get(id string) (SessionView, error) {
	s, err := m.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view(), nil
}

// List returns the sessions of userID, oldest first.
func (m *SessionManager) List(userID string) []SessionView {
	m.mu.RLock()
	var owned []*session
	for _, s := range m.sessions {
		if s.userID == userID {
			owned = append(owned, s)
		}
	}
	m.mu.RUnlock()

	views := make([]SessionView, 0, len(owned))
	for _, s := range owned {
		s.mu.Lock()
		views = append(views, s.view())
		s.mu.Unlock()
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].StartedAt.Equal(views[j].StartedAt) {
			return views[i].ID < views[j].ID
		}
		return views[i].StartedAt.Before(views[j].StartedAt)
	})
	return views
}

// Tick advances the session by one second. When the program finishes it
// stops ticking and logs the completed session.
func (m *SessionManager) Tick(ctx context.Context, id string) (models.SequencerState, error) {
	s, err := m.lookup(id)
	if err != nil {
		return models.SequencerState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return m.tickLocked(ctx, s)
}

// tickFrom is the tick callback of subscription gen. A callback that was
// already running when its subscription was cancelled finds a newer
// generation and leaves the session alone.
func (m *SessionManager) tickFrom(ctx context.Context, id string, gen uint64) (models.SequencerState, error) {
	s, err := m.lookup(id)
	if err != nil {
		return models.SequencerState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tickGen != gen || s.tickID == "" {
		slog.Debug("SessionManager.tickFrom: dropping stale tick", "sessionID", id, "generation", gen)
		return s.seq.State(), nil
	}
	return m.tickLocked(ctx, s)
}

// tickLocked advances s. s.mu must be held.
func (m *SessionManager) tickLocked(ctx context.Context, s *session) (models.SequencerState, error) {
	state := s.seq.Tick()
	if !state.Done() || !s.active {
		return state, nil
	}

	m.stopTicking(s)
	m.deactivate(s, metrics.SessionCompleted)
	s.doneAt = m.now().UTC()
	entry := models.SessionLog{
		ID:          uuid.NewString(),
		UserID:      s.userID,
		ProgramID:   s.program.ID,
		Repetitions: s.program.Repetitions,
		StartedAt:   s.startedAt,
		CompletedAt: m.now().UTC(),
	}
	if err := m.store.AddSessionLog(ctx, entry); err != nil {
		return state, fmt.Errorf("log completed session: %w", err)
	}
	slog.Info("SessionManager.Tick: session completed", "sessionID", s.id, "userID", s.userID, "programID", s.program.ID)
	return state, nil
}

// Pause freezes the session and stops its ticks.
func (m *SessionManager) Pause(id string) (SessionView, error) {
	s, err := m.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.seq.Pause(); st.Status == models.StatusPaused {
		m.stopTicking(s)
	}
	return s.view(), nil
}

// Resume continues a paused session from where it stopped.
func (m *SessionManager) Resume(id string) (SessionView, error) {
	s, err := m.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq.State().Status != models.StatusPaused {
		return s.view(), nil
	}
	if err := m.subscribe(s); err != nil {
		return SessionView{}, err
	}
	s.seq.Resume()
	return s.view(), nil
}

// Reset returns the session to Idle and stops ticking. The session is kept.
func (m *SessionManager) Reset(id string) (SessionView, error) {
	s, err := m.lookup(id)
	if err != nil {
		return SessionView{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.stopTicking(s)
	m.deactivate(s, metrics.SessionAbandoned)
	s.seq.Reset()
	s.doneAt = time.Time{}
	return s.view(), nil
}

// Remove stops and forgets the session.
func (m *SessionManager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.stopTicking(s)
	m.deactivate(s, metrics.SessionAbandoned)
	slog.Debug("SessionManager.Remove: session removed", "sessionID", id)
	return nil
}

// Stop cancels the ticks of every session.
func (m *SessionManager) Stop() {
	m.mu.RLock()
	all := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()
	for _, s := range all {
		s.mu.Lock()
		m.stopTicking(s)
		s.mu.Unlock()
	}
}

// History returns the completed sessions of userID, newest first.
func (m *SessionManager) History(ctx context.Context, userID string, limit int) ([]models.SessionLog, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	return m.store.GetSessionLogs(ctx, userID, limit)
}

// pruneLocked drops sessions that finished more than the retention period
// ago. m.mu must be held for writing.
func (m *SessionManager) pruneLocked() {
	if m.retention <= 0 {
		return
	}
	cutoff := m.now().UTC().Add(-m.retention)
	for id, s := range m.sessions {
		s.mu.Lock()
		expired := !s.doneAt.IsZero() && s.doneAt.Before(cutoff)
		s.mu.Unlock()
		if expired {
			delete(m.sessions, id)
			slog.Debug("SessionManager.pruneLocked: finished session dropped", "sessionID", id)
		}
	}
}

func (m *SessionManager) lookup(id string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// subscribe drives s from the tick source. s.mu must be held.
func (m *SessionManager) subscribe(s *session) error {
	id := s.id
	s.tickGen++
	gen := s.tickGen
	tickID, err := m.ticks.Every(TickInterval, "breathing session "+id, func() {
		if _, err := m.tickFrom(context.Background(), id, gen); err != nil && !errors.Is(err, ErrSessionNotFound) {
			slog.Error("SessionManager tick failed", "sessionID", id, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to ticks: %w", err)
	}
	s.tickID = tickID
	return nil
}

func (m *SessionManager) stopTicking(s *session) {
	if s.tickID == "" {
		return
	}
	if err := m.ticks.Cancel(s.tickID); err != nil {
		slog.Warn("SessionManager: cancel ticks failed", "sessionID", s.id, "error", err)
	}
	s.tickID = ""
	s.tickGen++
}

func (m *SessionManager) deactivate(s *session, status string) {
	if !s.active {
		return
	}
	s.active = false
	m.record(status)
}

func (m *SessionManager) record(status string) {
	if m.metrics != nil {
		m.metrics.RecordSession(status)
	}
}

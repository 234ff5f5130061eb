package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/BTreeMap/Tranquil/internal/breathing"
	"github.com/BTreeMap/Tranquil/internal/metrics"
	"github.com/BTreeMap/Tranquil/internal/models"
	"github.com/BTreeMap/Tranquil/internal/store"
)

func newTestSessionManager(t *testing.T, opts ...SessionOption) (*SessionManager, *store.InMemoryStore, *ManualTicker) {
	t.Helper()
	catalog, err := breathing.DefaultCatalog(breathing.DefaultBoxConfig())
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	st := store.NewInMemoryStore()
	ticks := NewManualTicker()
	return NewSessionManager(catalog, st, ticks, opts...), st, ticks
}

func TestSessionManager_RunsToCompletionAndLogs(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	sm, st, ticks := newTestSessionManager(t, WithSessionMetrics(m))

	view, err := sm.Start(ctx, "alice", breathing.ProgramFourSevenEight)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if view.State.Status != models.StatusReady || view.State.PhaseName != models.ReadyPhaseName {
		t.Fatalf("expected Get Ready countdown, got %+v", view.State)
	}
	if ticks.Active() != 1 {
		t.Fatalf("expected session to subscribe to ticks, got %d", ticks.Active())
	}
	if got := gaugeValue(t, m, "tranquil_breathing_sessions_active"); got != 1 {
		t.Errorf("expected one active session, got %v", got)
	}

	total := breathing.TotalTicks(breathing.FourSevenEight(), breathing.DefaultCountdown)
	var state models.SequencerState
	for i := 0; i < total; i++ {
		state, err = sm.Tick(ctx, view.ID)
		if err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
		if i < total-1 && state.Done() {
			t.Fatalf("finished early at tick %d", i)
		}
	}
	if !state.Done() {
		t.Fatalf("expected Done after %d ticks, got %+v", total, state)
	}
	if ticks.Active() != 0 {
		t.Errorf("expected ticks cancelled on completion, got %d active", ticks.Active())
	}

	logs, err := st.GetSessionLogs(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("GetSessionLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].ProgramID != breathing.ProgramFourSevenEight || logs[0].Repetitions != 4 {
		t.Errorf("unexpected session logs: %+v", logs)
	}

	// Further ticks are no-ops and do not log again.
	if _, err := sm.Tick(ctx, view.ID); err != nil {
		t.Fatalf("Tick after done: %v", err)
	}
	logs, _ = sm.History(ctx, "alice", 0)
	if len(logs) != 1 {
		t.Errorf("expected exactly one log, got %d", len(logs))
	}

	if got := gaugeValue(t, m, "tranquil_breathing_sessions_active"); got != 0 {
		t.Errorf("expected no active sessions after completion, got %v", got)
	}
}

// gaugeValue reads an unlabelled gauge from the metrics registry.
func gaugeValue(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name && len(mf.GetMetric()) == 1 {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestSessionManager_ManualTickerDrivesSession(t *testing.T) {
	ctx := context.Background()
	sm, _, ticks := newTestSessionManager(t, WithCountdown(0))
	view, err := sm.Start(ctx, "bob", breathing.ProgramBox)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if view.State.Status != models.StatusRunning || view.State.PhaseName != breathing.PhaseInhale {
		t.Fatalf("expected to start in Inhale without countdown, got %+v", view.State)
	}
	// Every registered tick function advances its own session.
	for i := 0; i < 4; i++ {
		ticks.Fire(sessionTickID(t, ticks))
	}
	got, err := sm.Get(view.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State.PhaseName != breathing.PhaseHold || got.State.Remaining != 4 {
		t.Errorf("expected Hold with 4s left after 4 ticks, got %+v", got.State)
	}
}

// sessionTickID returns the only registered manual tick ID.
func sessionTickID(t *testing.T, m *ManualTicker) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.fns) != 1 {
		t.Fatalf("expected one tick subscription, got %d", len(m.fns))
	}
	for id := range m.fns {
		return id
	}
	return ""
}

func TestSessionManager_PauseResume(t *testing.T) {
	ctx := context.Background()
	sm, _, ticks := newTestSessionManager(t)
	view, _ := sm.Start(ctx, "alice", breathing.ProgramBox)

	for i := 0; i < 5; i++ {
		sm.Tick(ctx, view.ID)
	}
	before, _ := sm.Get(view.ID)

	paused, err := sm.Pause(view.ID)
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if paused.State.Status != models.StatusPaused {
		t.Fatalf("expected paused, got %s", paused.State.Status)
	}
	if ticks.Active() != 0 {
		t.Errorf("expected ticks cancelled while paused, got %d", ticks.Active())
	}
	// Manual ticks while paused do not move the sequencer.
	for i := 0; i < 3; i++ {
		sm.Tick(ctx, view.ID)
	}

	resumed, err := sm.Resume(view.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if diff := cmp.Diff(before.State, resumed.State); diff != "" {
		t.Errorf("resume changed position (-before +after):\n%s", diff)
	}
	if ticks.Active() != 1 {
		t.Errorf("expected ticks resumed, got %d", ticks.Active())
	}

	// Resume on a running session is a no-op and does not double subscribe.
	if _, err := sm.Resume(view.ID); err != nil {
		t.Fatalf("Resume again: %v", err)
	}
	if ticks.Active() != 1 {
		t.Errorf("expected a single subscription, got %d", ticks.Active())
	}
}

func TestSessionManager_ResetRestartRemove(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	sm, st, ticks := newTestSessionManager(t, WithSessionMetrics(m))
	view, _ := sm.Start(ctx, "alice", breathing.ProgramBox)
	sm.Tick(ctx, view.ID)

	reset, err := sm.Reset(view.ID)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	want := models.SequencerState{Status: models.StatusIdle, PhaseIndex: models.NoPhase}
	if diff := cmp.Diff(want, reset.State); diff != "" {
		t.Errorf("reset state mismatch (-want +got):\n%s", diff)
	}
	if ticks.Active() != 0 {
		t.Errorf("expected no ticks after reset, got %d", ticks.Active())
	}

	restarted, err := sm.Restart(ctx, view.ID)
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if restarted.State.Status != models.StatusReady {
		t.Errorf("expected Ready after restart, got %s", restarted.State.Status)
	}

	if err := sm.Remove(view.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := sm.Get(view.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := sm.Remove(view.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second remove, got %v", err)
	}
	if ticks.Active() != 0 {
		t.Errorf("expected no ticks after remove, got %d", ticks.Active())
	}

	logs, _ := st.GetSessionLogs(ctx, "alice", 0)
	if len(logs) != 0 {
		t.Errorf("abandoned sessions must not be logged, got %d", len(logs))
	}
}

func TestSessionManager_StartErrors(t *testing.T) {
	ctx := context.Background()
	sm, _, ticks := newTestSessionManager(t)
	if _, err := sm.Start(ctx, "", breathing.ProgramBox); !errors.Is(err, models.ErrEmptyUserID) {
		t.Errorf("expected ErrEmptyUserID, got %v", err)
	}
	if _, err := sm.Start(ctx, "alice", ""); !errors.Is(err, models.ErrEmptyProgramID) {
		t.Errorf("expected ErrEmptyProgramID, got %v", err)
	}
	if _, err := sm.Start(ctx, "alice", "nope"); !errors.Is(err, ErrUnknownProgram) {
		t.Errorf("expected ErrUnknownProgram, got %v", err)
	}
	if ticks.Active() != 0 {
		t.Errorf("failed starts must not subscribe, got %d", ticks.Active())
	}
	if _, err := sm.Tick(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionManager_ListIsPerUser(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	sm, _, _ := newTestSessionManager(t, WithSessionClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	first, _ := sm.Start(ctx, "alice", breathing.ProgramBox)
	second, _ := sm.Start(ctx, "alice", breathing.ProgramFourSevenEight)
	sm.Start(ctx, "bob", breathing.ProgramBox)

	got := sm.List("alice")
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Errorf("unexpected sessions for alice: %+v", got)
	}
	if len(sm.List("carol")) != 0 {
		t.Error("expected no sessions for carol")
	}
	if len(sm.Programs()) != 2 {
		t.Errorf("expected 2 programs, got %d", len(sm.Programs()))
	}
}

// retainingTicker keeps every callback after Cancel so a test can replay a
// tick that was already in flight when its subscription ended.
type retainingTicker struct {
	*ManualTicker
	all []func()
}

func (r *retainingTicker) Every(interval time.Duration, description string, fn func()) (string, error) {
	id, err := r.ManualTicker.Every(interval, description, fn)
	if err == nil {
		r.all = append(r.all, fn)
	}
	return id, err
}

func TestSessionManager_StaleTickIgnored(t *testing.T) {
	ctx := context.Background()
	catalog, err := breathing.DefaultCatalog(breathing.DefaultBoxConfig())
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	ticks := &retainingTicker{ManualTicker: NewManualTicker()}
	sm := NewSessionManager(catalog, store.NewInMemoryStore(), ticks, WithCountdown(0))

	view, err := sm.Start(ctx, "alice", breathing.ProgramBox)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	sm.Pause(view.ID)
	sm.Resume(view.ID)
	if len(ticks.all) != 2 {
		t.Fatalf("expected two subscriptions, got %d", len(ticks.all))
	}

	before, _ := sm.Get(view.ID)
	ticks.all[0]()
	after, _ := sm.Get(view.ID)
	if diff := cmp.Diff(before.State, after.State); diff != "" {
		t.Errorf("cancelled tick moved the session after resume (-before +after):\n%s", diff)
	}

	ticks.all[1]()
	current, _ := sm.Get(view.ID)
	if current.State.Remaining != before.State.Remaining-1 {
		t.Errorf("live tick should advance one second, got %+v from %+v", current.State, before.State)
	}

	if _, err := sm.Restart(ctx, view.ID); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	restarted, _ := sm.Get(view.ID)
	ticks.all[1]()
	after, _ = sm.Get(view.ID)
	if diff := cmp.Diff(restarted.State, after.State); diff != "" {
		t.Errorf("cancelled tick moved the session after restart (-before +after):\n%s", diff)
	}
	if len(ticks.all) != 3 || ticks.Active() != 1 {
		t.Fatalf("expected one live subscription of three, got %d of %d", ticks.Active(), len(ticks.all))
	}
	ticks.all[2]()
	if got, _ := sm.Get(view.ID); got.State.Remaining != restarted.State.Remaining-1 {
		t.Errorf("restart subscription should advance, got %+v", got.State)
	}

	// A cancelled tick after Reset does nothing either.
	sm.Reset(view.ID)
	ticks.all[2]()
	if got, _ := sm.Get(view.ID); got.State.Status != models.StatusIdle {
		t.Errorf("expected Idle after reset, got %+v", got.State)
	}
}

func TestSessionManager_FinishedSessionsExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	sm, _, _ := newTestSessionManager(t,
		WithCountdown(0),
		WithDoneRetention(time.Minute),
		WithSessionClock(func() time.Time { return now }),
	)

	done, _ := sm.Start(ctx, "alice", breathing.ProgramBox)
	running, _ := sm.Start(ctx, "alice", breathing.ProgramFourSevenEight)
	var state models.SequencerState
	for i := 0; i < 10000 && !state.Done(); i++ {
		state, _ = sm.Tick(ctx, done.ID)
	}
	if !state.Done() {
		t.Fatalf("box session never finished: %+v", state)
	}

	// Still readable within the retention window.
	now = now.Add(30 * time.Second)
	sm.Start(ctx, "bob", breathing.ProgramBox)
	if got, err := sm.Get(done.ID); err != nil || got.State.Status != models.StatusDone {
		t.Fatalf("expected finished session to be kept, got %+v %v", got, err)
	}

	now = now.Add(time.Minute)
	sm.Start(ctx, "bob", breathing.ProgramBox)
	if _, err := sm.Get(done.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected finished session to expire, got %v", err)
	}
	if _, err := sm.Get(running.ID); err != nil {
		t.Errorf("running session must not expire: %v", err)
	}
	logs, _ := sm.History(ctx, "alice", 0)
	if len(logs) != 1 || logs[0].ID == "" {
		t.Errorf("expected the completed session log to survive, got %+v", logs)
	}
}

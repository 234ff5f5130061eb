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

	"github.com/BTreeMap/Tranquil/internal/messaging"
	"github.com/BTreeMap/Tranquil/internal/metrics"
	"github.com/BTreeMap/Tranquil/internal/models"
	"github.com/BTreeMap/Tranquil/internal/recovery"
	"github.com/BTreeMap/Tranquil/internal/scheduler"
	"github.com/BTreeMap/Tranquil/internal/store"
)

// ReminderMessage is the body of every check-in reminder.
const ReminderMessage = "Hi from Tranquil. It is time to retake your stress check-in and see how you are doing."

var (
	// ErrReminderNotFound is returned for unknown reminder IDs.
	ErrReminderNotFound = errors.New("reminder not found")
	// ErrInvalidCron is returned for malformed cron expressions.
	ErrInvalidCron = errors.New("invalid cron expression")
)

// reminderEntry pairs a reminder with its scheduler entry.
type reminderEntry struct {
	reminder models.Reminder
	entryID  int
}

// ReminderFlow schedules recurring check-in reminders. Reminders are persisted
// so RecoverState can re-register them with the scheduler after a restart.
type ReminderFlow struct {
	sched   *scheduler.Scheduler
	msg     messaging.Service
	st      store.Store
	metrics *metrics.Metrics

	mu        sync.RWMutex
	reminders map[string]*reminderEntry
}

// NewReminderFlow creates a ReminderFlow. m may be nil.
func NewReminderFlow(sched *scheduler.Scheduler, msg messaging.Service, st store.Store, m *metrics.Metrics) *ReminderFlow {
	return &ReminderFlow{
		sched:     sched,
		msg:       msg,
		st:        st,
		metrics:   m,
		reminders: make(map[string]*reminderEntry),
	}
}

// Schedule sends ReminderMessage to `to` on every activation of cronExpr.
func (f *ReminderFlow) Schedule(ctx context.Context, userID, to, cronExpr string) (models.Reminder, error) {
	if userID == "" {
		return models.Reminder{}, models.ErrEmptyUserID
	}
	canonical, err := f.msg.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return models.Reminder{}, err
	}
	if err := f.sched.Validate(cronExpr); err != nil {
		return models.Reminder{}, fmt.Errorf("%w: %v", ErrInvalidCron, err)
	}

	r := models.Reminder{
		ID:        uuid.NewString(),
		UserID:    userID,
		To:        canonical,
		Cron:      cronExpr,
		CreatedAt: time.Now().UTC(),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	entryID, err := f.register(r)
	if err != nil {
		return models.Reminder{}, err
	}
	if err := f.st.SaveReminder(ctx, r); err != nil {
		f.sched.Remove(entryID)
		delete(f.reminders, r.ID)
		return models.Reminder{}, fmt.Errorf("failed to save reminder: %w", err)
	}

	r.Next = f.sched.Next(entryID)
	slog.Info("ReminderFlow.Schedule: reminder scheduled", "reminderID", r.ID, "userID", userID, "cron", cronExpr)
	return r, nil
}

// register adds the cron job for r. The caller holds f.mu.
func (f *ReminderFlow) register(r models.Reminder) (int, error) {
	id := r.ID
	entryID, err := f.sched.AddJob(r.Cron, func() {
		if err := f.SendNow(context.Background(), id); err != nil {
			slog.Error("ReminderFlow: scheduled reminder failed", "reminderID", id, "error", err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCron, err)
	}
	f.reminders[id] = &reminderEntry{reminder: r, entryID: entryID}
	return entryID, nil
}

// RecoverState re-registers every stored reminder that is not already
// scheduled. Reminders whose cron no longer parses are skipped.
func (f *ReminderFlow) RecoverState(ctx context.Context, registry *recovery.RecoveryRegistry) error {
	stored, err := registry.GetStore().ListReminders(ctx)
	if err != nil {
		return fmt.Errorf("failed to list reminders: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	recovered := 0
	for _, r := range stored {
		if _, ok := f.reminders[r.ID]; ok {
			continue
		}
		if _, err := f.register(r); err != nil {
			slog.Warn("ReminderFlow.RecoverState: skipping reminder", "reminderID", r.ID, "cron", r.Cron, "error", err)
			continue
		}
		recovered++
	}
	slog.Info("ReminderFlow.RecoverState: reminders recovered", "recovered", recovered, "stored", len(stored))
	return nil
}

// SendNow delivers the reminder immediately.
func (f *ReminderFlow) SendNow(ctx context.Context, id string) error {
	f.mu.RLock()
	entry, ok := f.reminders[id]
	f.mu.RUnlock()
	if !ok {
		return ErrReminderNotFound
	}
	err := f.msg.SendMessage(ctx, entry.reminder.To, ReminderMessage)
	if f.metrics != nil {
		f.metrics.RecordReminder(err == nil)
	}
	if err != nil {
		return fmt.Errorf("send reminder %s: %w", id, err)
	}
	slog.Debug("ReminderFlow.SendNow: reminder sent", "reminderID", id, "userID", entry.reminder.UserID)
	return nil
}

// List returns the reminders of userID, oldest first.
func (f *ReminderFlow) List(userID string) []models.Reminder {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := []models.Reminder{}
	for _, e := range f.reminders {
		if e.reminder.UserID != userID {
			continue
		}
		r := e.reminder
		r.Next = f.sched.Next(e.entryID)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Cancel unschedules and forgets a reminder owned by userID.
func (f *ReminderFlow) Cancel(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.reminders[id]
	if !ok || e.reminder.UserID != userID {
		return ErrReminderNotFound
	}
	if err := f.st.DeleteReminder(ctx, id); err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	f.sched.Remove(e.entryID)
	delete(f.reminders, id)
	slog.Info("ReminderFlow.Cancel: reminder cancelled", "reminderID", id, "userID", userID)
	return nil
}

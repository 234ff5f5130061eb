// Package store provides storage backends for Tranquil.
//
// Score records and breathing session logs are append-only; the store never
// updates or deletes them. In-memory, SQLite and PostgreSQL backends are
// provided behind the Store interface.
package store

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/Tranquil/internal/models"
)

// Store is the document store for per-user history.
type Store interface {
	// AddScoreRecord appends a stress score record.
	AddScoreRecord(ctx context.Context, r models.ScoreRecord) error
	// GetScoreRecords returns a user's records newest first. limit <= 0 returns all.
	GetScoreRecords(ctx context.Context, userID string, limit int) ([]models.ScoreRecord, error)
	// AddSessionLog appends a completed breathing session.
	AddSessionLog(ctx context.Context, l models.SessionLog) error
	// GetSessionLogs returns a user's sessions newest first. limit <= 0 returns all.
	GetSessionLogs(ctx context.Context, userID string, limit int) ([]models.SessionLog, error)
	// SaveProfessional inserts or replaces a professional by ID.
	SaveProfessional(ctx context.Context, p models.Professional) error
	// ListProfessionals returns professionals offering approach, or all when approach is empty.
	ListProfessionals(ctx context.Context, approach string) ([]models.Professional, error)
	// SaveReminder inserts or replaces a check-in reminder by ID.
	SaveReminder(ctx context.Context, r models.Reminder) error
	// DeleteReminder removes a reminder. Unknown IDs are not an error.
	DeleteReminder(ctx context.Context, id string) error
	// ListReminders returns every stored reminder, oldest first.
	ListReminders(ctx context.Context) ([]models.Reminder, error)
	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
	// Driver selects the backend: "sqlite3", "postgres" or "" for in-memory.
	Driver string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN selects the SQLite backend with the given database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = "sqlite3"
	}
}

// WithPostgresDSN selects the PostgreSQL backend with the given connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = "postgres"
	}
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite3" for anything else, which is treated as a file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// New opens the backend selected by opts. With no DSN it returns an in-memory store.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.DSN == "":
		slog.Info("store.New: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	case cfg.Driver == "postgres":
		return NewPostgresStore(opts...)
	default:
		return NewSQLiteStore(opts...)
	}
}

// InMemoryStore keeps everything in process memory. It is safe for concurrent use.
type InMemoryStore struct {
	mu            sync.RWMutex
	scores        []models.ScoreRecord
	sessions      []models.SessionLog
	professionals map[string]models.Professional
	reminders     map[string]models.Reminder
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		professionals: make(map[string]models.Professional),
		reminders:     make(map[string]models.Reminder),
	}
}

func (s *InMemoryStore) AddScoreRecord(ctx context.Context, r models.ScoreRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = append(s.scores, r)
	return nil
}

func (s *InMemoryStore) GetScoreRecords(ctx context.Context, userID string, limit int) ([]models.ScoreRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ScoreRecord
	for _, r := range s.scores {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) AddSessionLog(ctx context.Context, l models.SessionLog) error {
	if l.UserID == "" {
		return models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, l)
	return nil
}

func (s *InMemoryStore) GetSessionLogs(ctx context.Context, userID string, limit int) ([]models.SessionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SessionLog
	for _, l := range s.sessions {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) SaveProfessional(ctx context.Context, p models.Professional) error {
	if p.ID == "" {
		return ErrEmptyProfessionalID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Approaches = append([]string(nil), p.Approaches...)
	s.professionals[p.ID] = p
	return nil
}

func (s *InMemoryStore) ListProfessionals(ctx context.Context, approach string) ([]models.Professional, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Professional, 0, len(s.professionals))
	for _, p := range s.professionals {
		if p.Offers(approach) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) SaveReminder(ctx context.Context, r models.Reminder) error {
	if err := validateReminder(r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Next = time.Time{}
	s.reminders[r.ID] = r
	return nil
}

func (s *InMemoryStore) DeleteReminder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reminders, id)
	return nil
}

func (s *InMemoryStore) ListReminders(ctx context.Context) ([]models.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

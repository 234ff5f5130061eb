// Package store provides storage backends for Tranquil.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/Tranquil/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddScoreRecord(ctx context.Context, r models.ScoreRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO score_records (id, user_id, score, band, created_at) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.UserID, r.Score, string(r.Band), r.CreatedAt.UTC())
	if err != nil {
		slog.Error("PostgresStore AddScoreRecord failed", "error", err, "userID", r.UserID)
		return fmt.Errorf("failed to insert score record for %s: %w", r.UserID, err)
	}
	slog.Debug("PostgresStore AddScoreRecord succeeded", "userID", r.UserID, "score", r.Score)
	return nil
}

func (s *PostgresStore) GetScoreRecords(ctx context.Context, userID string, limit int) ([]models.ScoreRecord, error) {
	query := `SELECT id, user_id, score, band, created_at FROM score_records
			  WHERE user_id = $1 ORDER BY created_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("PostgresStore GetScoreRecords query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query score records: %w", err)
	}
	defer rows.Close()

	records, err := scanScoreRecords(rows)
	if err != nil {
		slog.Error("PostgresStore GetScoreRecords scan failed", "error", err, "userID", userID)
		return nil, err
	}
	slog.Debug("PostgresStore GetScoreRecords succeeded", "userID", userID, "count", len(records))
	return records, nil
}

func (s *PostgresStore) AddSessionLog(ctx context.Context, l models.SessionLog) error {
	if l.UserID == "" {
		return models.ErrEmptyUserID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO breathing_sessions (id, user_id, program_id, repetitions, started_at, completed_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.UserID, l.ProgramID, l.Repetitions, l.StartedAt.UTC(), l.CompletedAt.UTC())
	if err != nil {
		slog.Error("PostgresStore AddSessionLog failed", "error", err, "userID", l.UserID)
		return fmt.Errorf("failed to insert session log for %s: %w", l.UserID, err)
	}
	slog.Debug("PostgresStore AddSessionLog succeeded", "userID", l.UserID, "programID", l.ProgramID)
	return nil
}

func (s *PostgresStore) GetSessionLogs(ctx context.Context, userID string, limit int) ([]models.SessionLog, error) {
	query := `SELECT id, user_id, program_id, repetitions, started_at, completed_at FROM breathing_sessions
			  WHERE user_id = $1 ORDER BY completed_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("PostgresStore GetSessionLogs query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query session logs: %w", err)
	}
	defer rows.Close()
	return scanSessionLogs(rows)
}

func (s *PostgresStore) SaveProfessional(ctx context.Context, p models.Professional) error {
	if p.ID == "" {
		return ErrEmptyProfessionalID
	}
	approaches, err := encodeApproaches(p.Approaches)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO professionals (id, name, title, approaches, contact)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			title = EXCLUDED.title,
			approaches = EXCLUDED.approaches,
			contact = EXCLUDED.contact`,
		p.ID, p.Name, nilIfEmpty(p.Title), approaches, nilIfEmpty(p.Contact))
	if err != nil {
		slog.Error("PostgresStore SaveProfessional failed", "error", err, "id", p.ID)
		return fmt.Errorf("failed to save professional %s: %w", p.ID, err)
	}
	slog.Debug("PostgresStore SaveProfessional succeeded", "id", p.ID)
	return nil
}

func (s *PostgresStore) ListProfessionals(ctx context.Context, approach string) ([]models.Professional, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, title, approaches, contact FROM professionals`)
	if err != nil {
		slog.Error("PostgresStore ListProfessionals query failed", "error", err)
		return nil, fmt.Errorf("failed to query professionals: %w", err)
	}
	defer rows.Close()
	return scanProfessionals(rows, approach)
}

func (s *PostgresStore) SaveReminder(ctx context.Context, r models.Reminder) error {
	if err := validateReminder(r); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, user_id, recipient, cron, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET
			recipient = EXCLUDED.recipient,
			cron = EXCLUDED.cron`,
		r.ID, r.UserID, r.To, r.Cron, r.CreatedAt.UTC())
	if err != nil {
		slog.Error("PostgresStore SaveReminder failed", "error", err, "id", r.ID)
		return fmt.Errorf("failed to save reminder %s: %w", r.ID, err)
	}
	slog.Debug("PostgresStore SaveReminder succeeded", "id", r.ID, "userID", r.UserID)
	return nil
}

func (s *PostgresStore) DeleteReminder(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id); err != nil {
		slog.Error("PostgresStore DeleteReminder failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete reminder %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) ListReminders(ctx context.Context) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, recipient, cron, created_at FROM reminders ORDER BY created_at, id`)
	if err != nil {
		slog.Error("PostgresStore ListReminders query failed", "error", err)
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}

// Package store provides storage backends for Tranquil.
//
// This file implements an SQLite-backed store for score records, breathing
// session logs, professionals and reminders.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/Tranquil/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is a Store backed by a single SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating SQLite store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// SQLite serializes writers; one connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) AddScoreRecord(ctx context.Context, r models.ScoreRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO score_records (id, user_id, score, band, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Score, string(r.Band), r.CreatedAt.UTC())
	if err != nil {
		slog.Error("SQLiteStore AddScoreRecord failed", "error", err, "userID", r.UserID)
		return fmt.Errorf("failed to insert score record for %s: %w", r.UserID, err)
	}
	slog.Debug("SQLiteStore AddScoreRecord succeeded", "userID", r.UserID, "score", r.Score)
	return nil
}

func (s *SQLiteStore) GetScoreRecords(ctx context.Context, userID string, limit int) ([]models.ScoreRecord, error) {
	query := `SELECT id, user_id, score, band, created_at FROM score_records
			  WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("SQLiteStore GetScoreRecords query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query score records: %w", err)
	}
	defer rows.Close()

	records, err := scanScoreRecords(rows)
	if err != nil {
		slog.Error("SQLiteStore GetScoreRecords scan failed", "error", err, "userID", userID)
		return nil, err
	}
	slog.Debug("SQLiteStore GetScoreRecords succeeded", "userID", userID, "count", len(records))
	return records, nil
}

func (s *SQLiteStore) AddSessionLog(ctx context.Context, l models.SessionLog) error {
	if l.UserID == "" {
		return models.ErrEmptyUserID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO breathing_sessions (id, user_id, program_id, repetitions, started_at, completed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.ProgramID, l.Repetitions, l.StartedAt.UTC(), l.CompletedAt.UTC())
	if err != nil {
		slog.Error("SQLiteStore AddSessionLog failed", "error", err, "userID", l.UserID)
		return fmt.Errorf("failed to insert session log for %s: %w", l.UserID, err)
	}
	slog.Debug("SQLiteStore AddSessionLog succeeded", "userID", l.UserID, "programID", l.ProgramID)
	return nil
}

func (s *SQLiteStore) GetSessionLogs(ctx context.Context, userID string, limit int) ([]models.SessionLog, error) {
	query := `SELECT id, user_id, program_id, repetitions, started_at, completed_at FROM breathing_sessions
			  WHERE user_id = ? ORDER BY completed_at DESC, rowid DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("SQLiteStore GetSessionLogs query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query session logs: %w", err)
	}
	defer rows.Close()
	return scanSessionLogs(rows)
}

func (s *SQLiteStore) SaveProfessional(ctx context.Context, p models.Professional) error {
	if p.ID == "" {
		return ErrEmptyProfessionalID
	}
	approaches, err := encodeApproaches(p.Approaches)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO professionals (id, name, title, approaches, contact)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, nilIfEmpty(p.Title), approaches, nilIfEmpty(p.Contact))
	if err != nil {
		slog.Error("SQLiteStore SaveProfessional failed", "error", err, "id", p.ID)
		return fmt.Errorf("failed to save professional %s: %w", p.ID, err)
	}
	slog.Debug("SQLiteStore SaveProfessional succeeded", "id", p.ID)
	return nil
}

func (s *SQLiteStore) ListProfessionals(ctx context.Context, approach string) ([]models.Professional, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, title, approaches, contact FROM professionals`)
	if err != nil {
		slog.Error("SQLiteStore ListProfessionals query failed", "error", err)
		return nil, fmt.Errorf("failed to query professionals: %w", err)
	}
	defer rows.Close()
	return scanProfessionals(rows, approach)
}

func (s *SQLiteStore) SaveReminder(ctx context.Context, r models.Reminder) error {
	if err := validateReminder(r); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reminders (id, user_id, recipient, cron, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.To, r.Cron, r.CreatedAt.UTC())
	if err != nil {
		slog.Error("SQLiteStore SaveReminder failed", "error", err, "id", r.ID)
		return fmt.Errorf("failed to save reminder %s: %w", r.ID, err)
	}
	slog.Debug("SQLiteStore SaveReminder succeeded", "id", r.ID, "userID", r.UserID)
	return nil
}

func (s *SQLiteStore) DeleteReminder(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id); err != nil {
		slog.Error("SQLiteStore DeleteReminder failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete reminder %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) ListReminders(ctx context.Context) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, recipient, cron, created_at FROM reminders ORDER BY created_at, id`)
	if err != nil {
		slog.Error("SQLiteStore ListReminders query failed", "error", err)
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}

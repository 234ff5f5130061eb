package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/BTreeMap/Tranquil/internal/models"
)

var (
	// ErrEmptyProfessionalID is returned when saving a professional without an ID.
	ErrEmptyProfessionalID = errors.New("professional id cannot be empty")
	// ErrEmptyReminderID is returned when saving a reminder without an ID.
	ErrEmptyReminderID = errors.New("reminder id cannot be empty")
)

// validateReminder checks the fields every backend requires.
func validateReminder(r models.Reminder) error {
	if r.ID == "" {
		return ErrEmptyReminderID
	}
	if r.UserID == "" {
		return models.ErrEmptyUserID
	}
	return nil
}

// scanReminders reads reminder rows in (id, user_id, recipient, cron, created_at) order.
func scanReminders(rows *sql.Rows) ([]models.Reminder, error) {
	var out []models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.ID, &r.UserID, &r.To, &r.Cron, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// encodeApproaches stores a professional's approaches as a JSON array.
func encodeApproaches(approaches []string) (string, error) {
	if len(approaches) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(approaches)
	if err != nil {
		return "", fmt.Errorf("encode approaches: %w", err)
	}
	return string(b), nil
}

// scanScoreRecords reads score rows in (id, user_id, score, band, created_at) order.
func scanScoreRecords(rows *sql.Rows) ([]models.ScoreRecord, error) {
	var out []models.ScoreRecord
	for rows.Next() {
		var r models.ScoreRecord
		var band string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Score, &band, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan score record failed: %w", err)
		}
		r.Band = models.SeverityBand(band)
		r.CreatedAt = r.CreatedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score records failed: %w", err)
	}
	return out, nil
}

// scanSessionLogs reads session rows in (id, user_id, program_id, repetitions, started_at, completed_at) order.
func scanSessionLogs(rows *sql.Rows) ([]models.SessionLog, error) {
	var out []models.SessionLog
	for rows.Next() {
		var l models.SessionLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProgramID, &l.Repetitions, &l.StartedAt, &l.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan session log failed: %w", err)
		}
		l.StartedAt = l.StartedAt.UTC()
		l.CompletedAt = l.CompletedAt.UTC()
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session logs failed: %w", err)
	}
	return out, nil
}

// scanProfessionals reads professional rows in (id, name, title, approaches, contact)
// order and keeps those offering approach.
func scanProfessionals(rows *sql.Rows, approach string) ([]models.Professional, error) {
	out := []models.Professional{}
	for rows.Next() {
		var p models.Professional
		var title, contact sql.NullString
		var approachesJSON string
		if err := rows.Scan(&p.ID, &p.Name, &title, &approachesJSON, &contact); err != nil {
			return nil, fmt.Errorf("scan professional failed: %w", err)
		}
		p.Title = title.String
		p.Contact = contact.String
		if approachesJSON != "" {
			if err := json.Unmarshal([]byte(approachesJSON), &p.Approaches); err != nil {
				return nil, fmt.Errorf("decode approaches for %s: %w", p.ID, err)
			}
		}
		if p.Offers(approach) {
			out = append(out, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate professionals failed: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

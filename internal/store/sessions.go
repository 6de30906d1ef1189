package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentatutor/rentatutor/internal/model"
)

// RecordSession stores a rated live session in the history of both parties,
// credits the tutor and bumps the platform counters.
func (s *Store) RecordSession(student model.Actor, desc model.SessionDescriptor, rating model.Rating, endedAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insert = `INSERT INTO session_records
		(owner_role, counterpart, subject, duration_minutes, amount, rating, when_label, feedback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'Just now', ?, ?)`
	amount := desc.Price.StringFixed(2)
	if _, err := tx.Exec(insert, model.RoleStudent, desc.TutorName, desc.Subject, desc.DurationMinutes,
		amount, rating.Stars, rating.Feedback, endedAt); err != nil {
		return fmt.Errorf("insert student record: %w", err)
	}
	if _, err := tx.Exec(insert, model.RoleTutor, student.Name, desc.Subject, desc.DurationMinutes,
		amount, rating.Stars, rating.Feedback, endedAt); err != nil {
		return fmt.Errorf("insert tutor record: %w", err)
	}

	// The inserts above hold the write lock, so the reads below see the
	// latest committed totals.
	var balance decimal.NullDecimal
	err = tx.QueryRow(`SELECT balance FROM actors WHERE id = ?`, desc.TutorID).Scan(&balance)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		slog.Warn("session tutor has no wallet", "tutor_id", desc.TutorID)
	case err != nil:
		return fmt.Errorf("read tutor balance: %w", err)
	default:
		if _, err := tx.Exec(`UPDATE actors SET balance = ? WHERE id = ?`,
			balance.Decimal.Add(desc.Price).StringFixed(2), desc.TutorID); err != nil {
			return fmt.Errorf("credit tutor: %w", err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO subject_sessions (subject, sessions) VALUES (?, 1)
		 ON CONFLICT(subject) DO UPDATE SET sessions = sessions + 1`, desc.Subject,
	); err != nil {
		return fmt.Errorf("count subject: %w", err)
	}
	for _, key := range []string{keySessionsToday, keySessionsMonth} {
		if err := bumpCounter(tx, key, 1); err != nil {
			return err
		}
	}
	if err := addRevenue(tx, desc.Price); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Info("session recorded",
		"student", student.Name,
		"tutor", desc.TutorName,
		"subject", desc.Subject,
		"stars", rating.Stars,
	)
	return nil
}

// ListSessionRecords returns the session history for a role, newest first.
func (s *Store) ListSessionRecords(role model.Role) ([]model.SessionRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, owner_role, counterpart, subject, duration_minutes, amount, rating, when_label
		 FROM session_records WHERE owner_role = ? ORDER BY created_at DESC, id DESC`, role,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.SessionRecord
	for rows.Next() {
		var r model.SessionRecord
		if err := rows.Scan(&r.ID, &r.OwnerRole, &r.Counterpart, &r.Subject, &r.DurationMinutes,
			&r.Amount, &r.Rating, &r.When); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

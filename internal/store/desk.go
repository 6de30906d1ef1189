package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rentatutor/rentatutor/internal/model"
)

// ListOpenRequests returns instant requests no tutor has answered yet.
func (s *Store) ListOpenRequests() ([]model.SessionRequestCard, error) {
	rows, err := s.db.Query(
		`SELECT id, student, subject, duration_minutes, price, received
		 FROM session_requests WHERE status = 'open' ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reqs []model.SessionRequestCard
	for rows.Next() {
		var r model.SessionRequestCard
		if err := rows.Scan(&r.ID, &r.Student, &r.Subject, &r.DurationMinutes, &r.Price, &r.Received); err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

// ResolveRequest closes an open request as accepted or declined.
func (s *Store) ResolveRequest(id int64, status string) error {
	status = strings.ToLower(status)
	if status != "accepted" && status != "declined" {
		return fmt.Errorf("unknown request status %q", status)
	}
	res, err := s.db.Exec(
		`UPDATE session_requests SET status = ? WHERE id = ? AND status = 'open'`, status, id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("request %d: %w", id, sql.ErrNoRows)
	}
	slog.Info("session request resolved", "id", id, "status", status)
	return nil
}

// ListUpcomingBookings returns the tutor's booked sessions.
func (s *Store) ListUpcomingBookings() ([]model.UpcomingBooking, error) {
	rows, err := s.db.Query(
		`SELECT id, student, subject, when_label, duration_minutes FROM upcoming_bookings ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bookings []model.UpcomingBooking
	for rows.Next() {
		var b model.UpcomingBooking
		if err := rows.Scan(&b.ID, &b.Student, &b.Subject, &b.When, &b.DurationMinutes); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

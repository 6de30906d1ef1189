package store

import (
	"database/sql"
	"log/slog"

	"github.com/rentatutor/rentatutor/internal/model"
)

const tutorColumns = `id, name, subjects, rating, sessions, hourly_rate, availability`

func scanTutor(row interface{ Scan(...any) error }) (*model.Tutor, error) {
	var t model.Tutor
	var subjects, availability string
	if err := row.Scan(&t.ID, &t.Name, &subjects, &t.Rating, &t.Sessions, &t.HourlyRate, &availability); err != nil {
		return nil, err
	}
	t.Subjects = decodeList(subjects)
	t.Availability = decodeList(availability)
	return &t, nil
}

// ListTutors returns the bookable tutors.
func (s *Store) ListTutors() ([]model.Tutor, error) {
	rows, err := s.db.Query(`SELECT ` + tutorColumns + ` FROM tutors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tutors []model.Tutor
	for rows.Next() {
		t, err := scanTutor(rows)
		if err != nil {
			return nil, err
		}
		tutors = append(tutors, *t)
	}
	return tutors, rows.Err()
}

// GetTutor returns a tutor by ID, or nil if not found.
func (s *Store) GetTutor(id int64) (*model.Tutor, error) {
	t, err := scanTutor(s.db.QueryRow(`SELECT `+tutorColumns+` FROM tutors WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// CreateBooking stores a scheduled session.
func (s *Store) CreateBooking(b model.Booking) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO bookings (student_id, tutor_id, date, time, duration_minutes, cost, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.StudentID, b.TutorID, b.Date, b.Time, b.DurationMinutes, b.Cost.StringFixed(2), b.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("booking created", "id", id, "tutor_id", b.TutorID, "date", b.Date, "time", b.Time)
	return id, nil
}

// ListBookings returns a student's bookings, newest first. An empty
// studentID lists every booking.
func (s *Store) ListBookings(studentID string) ([]model.Booking, error) {
	query := `SELECT b.id, b.student_id, b.tutor_id, t.name, b.date, b.time, b.duration_minutes, b.cost, b.created_at
		 FROM bookings b JOIN tutors t ON t.id = b.tutor_id`
	var args []any
	if studentID != "" {
		query += ` WHERE b.student_id = ?`
		args = append(args, studentID)
	}
	query += ` ORDER BY b.id DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bookings []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.StudentID, &b.TutorID, &b.TutorName, &b.Date, &b.Time,
			&b.DurationMinutes, &b.Cost, &b.CreatedAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

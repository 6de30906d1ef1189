package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/rentatutor/rentatutor/internal/model"
)

// CreateApplication stores a submitted instructor application as pending.
func (s *Store) CreateApplication(a model.TutorApplication) (int64, error) {
	submitted := a.Submitted
	if submitted == "" {
		submitted = "Just now"
	}
	res, err := s.db.Exec(
		`INSERT INTO tutor_applications (name, email, phone, university, gpa, subjects, status, submitted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.Email, a.Phone, a.University, a.GPA, encodeList(a.Subjects), model.ApplicationPending, submitted,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("tutor application submitted", "id", id, "name", a.Name)
	return id, nil
}

// ListPendingApplications returns applications awaiting a decision.
func (s *Store) ListPendingApplications() ([]model.TutorApplication, error) {
	rows, err := s.db.Query(
		`SELECT id, name, email, phone, university, gpa, subjects, status, submitted
		 FROM tutor_applications WHERE status = ? ORDER BY id`, model.ApplicationPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var apps []model.TutorApplication
	for rows.Next() {
		var a model.TutorApplication
		var subjects string
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.University, &a.GPA,
			&subjects, &a.Status, &a.Submitted); err != nil {
			return nil, err
		}
		a.Subjects = decodeList(subjects)
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// DecideApplication moves a pending application to approved or rejected.
// It returns the applicant's name.
func (s *Store) DecideApplication(id int64, status model.ApplicationStatus) (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var name string
	err = tx.QueryRow(
		`SELECT name FROM tutor_applications WHERE id = ? AND status = ?`, id, model.ApplicationPending,
	).Scan(&name)
	if err != nil {
		return "", fmt.Errorf("application %d: %w", id, err)
	}
	if _, err := tx.Exec(`UPDATE tutor_applications SET status = ? WHERE id = ?`, status, id); err != nil {
		return "", err
	}
	if status == model.ApplicationApproved {
		if _, err := tx.Exec(
			`UPDATE metadata SET value = CAST(value AS INTEGER) + 1 WHERE key = ?`, keyTotalTutors,
		); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	slog.Info("tutor application decided", "id", id, "status", status)
	return name, nil
}

// ListOpenFlags returns flagged sessions with no resolution yet.
func (s *Store) ListOpenFlags() ([]model.FlaggedSession, error) {
	rows, err := s.db.Query(
		`SELECT id, tutor, student, subject, reason, date FROM flagged_sessions WHERE resolution = '' ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var flags []model.FlaggedSession
	for rows.Next() {
		var f model.FlaggedSession
		if err := rows.Scan(&f.ID, &f.Tutor, &f.Student, &f.Subject, &f.Reason, &f.Date); err != nil {
			return nil, err
		}
		flags = append(flags, f)
	}
	return flags, rows.Err()
}

// ResolveFlag records the moderator action on an open flag.
func (s *Store) ResolveFlag(id int64, resolution string) error {
	res, err := s.db.Exec(
		`UPDATE flagged_sessions SET resolution = ? WHERE id = ? AND resolution = ''`, resolution, id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("flag %d: %w", id, sql.ErrNoRows)
	}
	slog.Info("flag resolved", "id", id, "resolution", resolution)
	return nil
}

// SubjectSessions returns session counts per subject, busiest first.
func (s *Store) SubjectSessions() ([]model.SubjectCount, error) {
	rows, err := s.db.Query(`SELECT subject, sessions FROM subject_sessions ORDER BY sessions DESC, subject`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var counts []model.SubjectCount
	for rows.Next() {
		var c model.SubjectCount
		if err := rows.Scan(&c.Subject, &c.Sessions); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// TopEarners returns tutors ranked by earnings.
func (s *Store) TopEarners() ([]model.TopEarner, error) {
	rows, err := s.db.Query(`SELECT name, earnings FROM top_earners`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var earners []model.TopEarner
	for rows.Next() {
		var e model.TopEarner
		if err := rows.Scan(&e.Name, &e.Earnings); err != nil {
			return nil, err
		}
		earners = append(earners, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Earnings are TEXT, so rank here rather than in SQL.
	slices.SortStableFunc(earners, func(a, b model.TopEarner) int {
		return b.Earnings.Cmp(a.Earnings)
	})
	return earners, nil
}

package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

type seedData struct {
	Actors []struct {
		ID      string   `yaml:"id"`
		Role    string   `yaml:"role"`
		Name    string   `yaml:"name"`
		Email   string   `yaml:"email"`
		Rating  *float64 `yaml:"rating"`
		Balance *string  `yaml:"balance"`
	} `yaml:"actors"`
	Tutors []struct {
		Name         string   `yaml:"name"`
		Subjects     []string `yaml:"subjects"`
		Rating       float64  `yaml:"rating"`
		Sessions     int      `yaml:"sessions"`
		HourlyRate   string   `yaml:"hourly_rate"`
		Availability []string `yaml:"availability"`
	} `yaml:"tutors"`
	Questions []struct {
		Author    string `yaml:"author"`
		AuthorID  string `yaml:"author_id"`
		Title     string `yaml:"title"`
		Subject   string `yaml:"subject"`
		Content   string `yaml:"content"`
		Upvotes   int    `yaml:"upvotes"`
		Answers   int    `yaml:"answers"`
		Posted    string `yaml:"posted"`
		HasAnswer bool   `yaml:"has_answer"`
		Replies   []struct {
			Author  string `yaml:"author"`
			Content string `yaml:"content"`
			Upvotes int    `yaml:"upvotes"`
			Posted  string `yaml:"posted"`
			Best    bool   `yaml:"best"`
		} `yaml:"replies"`
	} `yaml:"questions"`
	Applications []struct {
		Name       string   `yaml:"name"`
		Email      string   `yaml:"email"`
		University string   `yaml:"university"`
		GPA        float64  `yaml:"gpa"`
		Subjects   []string `yaml:"subjects"`
	} `yaml:"applications"`
	FlaggedSessions []struct {
		Tutor   string `yaml:"tutor"`
		Student string `yaml:"student"`
		Subject string `yaml:"subject"`
		Reason  string `yaml:"reason"`
		Date    string `yaml:"date"`
	} `yaml:"flagged_sessions"`
	SessionRequests []struct {
		Student  string `yaml:"student"`
		Subject  string `yaml:"subject"`
		Duration int    `yaml:"duration_minutes"`
		Price    string `yaml:"price"`
		Received string `yaml:"received"`
	} `yaml:"session_requests"`
	UpcomingBookings []struct {
		Student  string `yaml:"student"`
		Subject  string `yaml:"subject"`
		When     string `yaml:"when"`
		Duration int    `yaml:"duration_minutes"`
	} `yaml:"upcoming_bookings"`
	SessionRecords []struct {
		Owner       string  `yaml:"owner"`
		Counterpart string  `yaml:"counterpart"`
		Subject     string  `yaml:"subject"`
		Duration    int     `yaml:"duration_minutes"`
		Amount      string  `yaml:"amount"`
		Rating      float64 `yaml:"rating"`
		When        string  `yaml:"when"`
	} `yaml:"session_records"`
	Stats struct {
		TotalStudents  int     `yaml:"total_students"`
		TotalTutors    int     `yaml:"total_tutors"`
		ActiveSessions int     `yaml:"active_sessions"`
		TotalRevenue   string  `yaml:"total_revenue"`
		MonthlyRevenue string  `yaml:"monthly_revenue"`
		AverageRating  float64 `yaml:"average_rating"`
		SessionsToday  int     `yaml:"sessions_today"`
		SessionsMonth  int     `yaml:"sessions_month"`
	} `yaml:"stats"`
	SubjectSessions []struct {
		Subject  string `yaml:"subject"`
		Sessions int    `yaml:"sessions"`
	} `yaml:"subject_sessions"`
	TopEarners []struct {
		Name     string `yaml:"name"`
		Earnings string `yaml:"earnings"`
	} `yaml:"top_earners"`
}

func money(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// seed loads the sample data into an empty database.
func (s *Store) seed(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM actors`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		slog.Debug("database already seeded")
		return nil
	}

	var data seedData
	if err := yaml.Unmarshal(seedYAML, &data); err != nil {
		return fmt.Errorf("parse seed data: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := seedTx(ctx, tx, &data); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("seeded sample data",
		"tutors", len(data.Tutors),
		"questions", len(data.Questions),
		"applications", len(data.Applications),
	)
	return nil
}

func seedTx(ctx context.Context, tx *sql.Tx, data *seedData) error {
	for _, a := range data.Actors {
		var balance any
		if a.Balance != nil {
			b, err := money(*a.Balance)
			if err != nil {
				return err
			}
			balance = b.StringFixed(2)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO actors (id, role, name, email, rating, balance) VALUES (?, ?, ?, ?, ?, ?)`,
			a.ID, a.Role, a.Name, a.Email, a.Rating, balance,
		); err != nil {
			return fmt.Errorf("insert actor %s: %w", a.Name, err)
		}
	}

	for _, t := range data.Tutors {
		rate, err := money(t.HourlyRate)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tutors (name, subjects, rating, sessions, hourly_rate, availability) VALUES (?, ?, ?, ?, ?, ?)`,
			t.Name, encodeList(t.Subjects), t.Rating, t.Sessions, rate.StringFixed(2), encodeList(t.Availability),
		); err != nil {
			return fmt.Errorf("insert tutor %s: %w", t.Name, err)
		}
	}

	for _, q := range data.Questions {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO questions (author, author_id, title, content, subject, upvotes, answers, posted, has_answer)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			q.Author, q.AuthorID, q.Title, q.Content, q.Subject, q.Upvotes, q.Answers, q.Posted, q.HasAnswer,
		)
		if err != nil {
			return fmt.Errorf("insert question %q: %w", q.Title, err)
		}
		qid, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, r := range q.Replies {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO answers (question_id, author, role, content, upvotes, is_best, posted) VALUES (?, ?, 'tutor', ?, ?, ?, ?)`,
				qid, r.Author, r.Content, r.Upvotes, r.Best, r.Posted,
			); err != nil {
				return fmt.Errorf("insert answer: %w", err)
			}
		}
	}

	for _, a := range data.Applications {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tutor_applications (name, email, university, gpa, subjects, status) VALUES (?, ?, ?, ?, ?, 'pending')`,
			a.Name, a.Email, a.University, a.GPA, encodeList(a.Subjects),
		); err != nil {
			return fmt.Errorf("insert application %s: %w", a.Name, err)
		}
	}

	for _, f := range data.FlaggedSessions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO flagged_sessions (tutor, student, subject, reason, date) VALUES (?, ?, ?, ?, ?)`,
			f.Tutor, f.Student, f.Subject, f.Reason, f.Date,
		); err != nil {
			return fmt.Errorf("insert flagged session: %w", err)
		}
	}

	for _, r := range data.SessionRequests {
		price, err := money(r.Price)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_requests (student, subject, duration_minutes, price, received) VALUES (?, ?, ?, ?, ?)`,
			r.Student, r.Subject, r.Duration, price.StringFixed(2), r.Received,
		); err != nil {
			return fmt.Errorf("insert session request: %w", err)
		}
	}

	for _, b := range data.UpcomingBookings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO upcoming_bookings (student, subject, when_label, duration_minutes) VALUES (?, ?, ?, ?)`,
			b.Student, b.Subject, b.When, b.Duration,
		); err != nil {
			return fmt.Errorf("insert upcoming booking: %w", err)
		}
	}

	now := time.Now()
	for i, r := range data.SessionRecords {
		amount, err := money(r.Amount)
		if err != nil {
			return err
		}
		// Older seed records sort after newer ones.
		created := now.Add(-time.Duration(i+1) * time.Hour)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_records (owner_role, counterpart, subject, duration_minutes, amount, rating, when_label, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.Owner, r.Counterpart, r.Subject, r.Duration, amount.StringFixed(2), r.Rating, r.When, created,
		); err != nil {
			return fmt.Errorf("insert session record: %w", err)
		}
	}

	st := data.Stats
	stats := map[string]string{
		keyTotalStudents:  strconv.Itoa(st.TotalStudents),
		keyTotalTutors:    strconv.Itoa(st.TotalTutors),
		keyActiveSessions: strconv.Itoa(st.ActiveSessions),
		keyTotalRevenue:   st.TotalRevenue,
		keyMonthlyRevenue: st.MonthlyRevenue,
		keyAverageRating:  strconv.FormatFloat(st.AverageRating, 'f', -1, 64),
		keySessionsToday:  strconv.Itoa(st.SessionsToday),
		keySessionsMonth:  strconv.Itoa(st.SessionsMonth),
	}
	for k, v := range stats {
		if _, err := tx.ExecContext(ctx, `INSERT INTO metadata (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert stat %s: %w", k, err)
		}
	}

	for _, sc := range data.SubjectSessions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subject_sessions (subject, sessions) VALUES (?, ?)`, sc.Subject, sc.Sessions,
		); err != nil {
			return fmt.Errorf("insert subject sessions: %w", err)
		}
	}

	for _, e := range data.TopEarners {
		earnings, err := money(e.Earnings)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO top_earners (name, earnings) VALUES (?, ?)`, e.Name, earnings.StringFixed(2),
		); err != nil {
			return fmt.Errorf("insert top earner: %w", err)
		}
	}
	return nil
}

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/rentatutor/rentatutor/internal/model"
)

// Metadata keys for the platform overview figures.
const (
	keyTotalStudents  = "total_students"
	keyTotalTutors    = "total_tutors"
	keyActiveSessions = "active_sessions"
	keyTotalRevenue   = "total_revenue"
	keyMonthlyRevenue = "monthly_revenue"
	keyAverageRating  = "average_rating"
	keySessionsToday  = "sessions_today"
	keySessionsMonth  = "sessions_month"
)

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// PlatformStats reads the administrator overview figures.
func (s *Store) PlatformStats() (model.PlatformStats, error) {
	var st model.PlatformStats
	ints := []struct {
		key string
		dst *int
	}{
		{keyTotalStudents, &st.TotalStudents},
		{keyTotalTutors, &st.TotalTutors},
		{keyActiveSessions, &st.ActiveSessions},
		{keySessionsToday, &st.SessionsToday},
		{keySessionsMonth, &st.SessionsMonth},
	}
	for _, f := range ints {
		v, err := s.GetMetadata(f.key)
		if err != nil {
			return st, err
		}
		if v == "" {
			continue
		}
		if *f.dst, err = strconv.Atoi(v); err != nil {
			return st, fmt.Errorf("metadata %s: %w", f.key, err)
		}
	}

	money := []struct {
		key string
		dst *decimal.Decimal
	}{
		{keyTotalRevenue, &st.TotalRevenue},
		{keyMonthlyRevenue, &st.MonthlyRevenue},
	}
	for _, f := range money {
		v, err := s.GetMetadata(f.key)
		if err != nil {
			return st, err
		}
		if v == "" {
			continue
		}
		if *f.dst, err = decimal.NewFromString(v); err != nil {
			return st, fmt.Errorf("metadata %s: %w", f.key, err)
		}
	}

	v, err := s.GetMetadata(keyAverageRating)
	if err != nil {
		return st, err
	}
	if v != "" {
		if st.AverageRating, err = strconv.ParseFloat(v, 64); err != nil {
			return st, fmt.Errorf("metadata %s: %w", keyAverageRating, err)
		}
	}
	return st, nil
}

// bumpCounter adds delta to an integer metadata value in a single statement.
func bumpCounter(tx *sql.Tx, key string, delta int) error {
	_, err := tx.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + CAST(excluded.value AS INTEGER) AS TEXT)`,
		key, strconv.Itoa(delta),
	)
	if err != nil {
		return fmt.Errorf("bump %s: %w", key, err)
	}
	return nil
}

// addRevenue adds amount to both revenue totals. The caller's transaction
// must already hold the write lock.
func addRevenue(tx *sql.Tx, amount decimal.Decimal) error {
	for _, key := range []string{keyTotalRevenue, keyMonthlyRevenue} {
		var v string
		err := tx.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&v)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read %s: %w", key, err)
		}
		total := decimal.Zero
		if v != "" {
			if total, err = decimal.NewFromString(v); err != nil {
				return fmt.Errorf("metadata %s: %w", key, err)
			}
		}
		if _, err := tx.Exec(
			`INSERT INTO metadata (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, total.Add(amount).StringFixed(2),
		); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	return nil
}

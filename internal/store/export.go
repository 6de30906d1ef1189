package store

import (
	"fmt"
	"time"

	"github.com/rentatutor/rentatutor/internal/model"
)

// ExportReport builds the administrator report with every booking.
func (s *Store) ExportReport(now time.Time) (*model.PlatformReport, error) {
	stats, err := s.PlatformStats()
	if err != nil {
		return nil, fmt.Errorf("platform stats: %w", err)
	}
	subjects, err := s.SubjectSessions()
	if err != nil {
		return nil, fmt.Errorf("subject sessions: %w", err)
	}
	earners, err := s.TopEarners()
	if err != nil {
		return nil, fmt.Errorf("top earners: %w", err)
	}
	apps, err := s.ListPendingApplications()
	if err != nil {
		return nil, fmt.Errorf("pending applications: %w", err)
	}
	flags, err := s.ListOpenFlags()
	if err != nil {
		return nil, fmt.Errorf("open flags: %w", err)
	}
	bookings, err := s.ListBookings("")
	if err != nil {
		return nil, fmt.Errorf("bookings: %w", err)
	}

	report := &model.PlatformReport{
		GeneratedAt:     now.UTC().Format(time.RFC3339),
		Stats:           stats,
		SubjectSessions: subjects,
		TopEarners:      earners,
		PendingTutors:   len(apps),
		FlaggedSessions: len(flags),
		Bookings:        []model.BookingExport{},
	}
	for _, b := range bookings {
		report.Bookings = append(report.Bookings, model.BookingExport{
			Tutor:           b.TutorName,
			Date:            b.Date,
			Time:            b.Time,
			DurationMinutes: b.DurationMinutes,
			Cost:            b.Cost.StringFixed(2),
		})
	}
	return report, nil
}

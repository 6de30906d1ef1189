package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tutor is a bookable instructor.
type Tutor struct {
	ID           int64
	Name         string
	Subjects     []string
	Rating       float64
	Sessions     int
	HourlyRate   decimal.Decimal
	Availability []string
}

// Booking is a scheduled (not instant) session.
type Booking struct {
	ID              int64
	StudentID       string
	TutorID         int64
	TutorName       string
	Date            string
	Time            string
	DurationMinutes int
	Cost            decimal.Decimal
	CreatedAt       time.Time
}

// Question is a forum post.
type Question struct {
	ID        int64
	Author    string
	AuthorID  string
	Title     string
	Content   string
	Subject   string
	Upvotes   int
	Answers   int
	Posted    string
	HasAnswer bool
}

// Answer is a reply to a forum question.
type Answer struct {
	ID         int64
	QuestionID int64
	Author     string
	Role       Role
	Content    string
	Upvotes    int
	IsBest     bool
	Posted     string
}

// ApplicationStatus tracks an instructor application through moderation.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// TutorApplication is a submitted instructor application.
type TutorApplication struct {
	ID         int64
	Name       string
	Email      string
	Phone      string
	University string
	GPA        float64
	Subjects   []string
	Status     ApplicationStatus
	Submitted  string
}

// FlaggedSession is a session reported for moderation.
type FlaggedSession struct {
	ID      int64
	Tutor   string
	Student string
	Subject string
	Reason  string
	Date    string
}

// SessionRequestCard is an instant request waiting for a tutor.
type SessionRequestCard struct {
	ID              int64
	Student         string
	Subject         string
	DurationMinutes int
	Price           decimal.Decimal
	Received        string
}

// UpcomingBooking is a booked session on a tutor's calendar.
type UpcomingBooking struct {
	ID              int64
	Student         string
	Subject         string
	When            string
	DurationMinutes int
}

// SessionRecord is a finished session as listed on a dashboard. Counterpart
// is the tutor for a student's history and the student for a tutor's.
type SessionRecord struct {
	ID              int64
	OwnerRole       Role
	Counterpart     string
	Subject         string
	DurationMinutes int
	Amount          decimal.Decimal
	Rating          float64
	When            string
}

// SubjectCount is the number of sessions held in a subject.
type SubjectCount struct {
	Subject  string `json:"subject"`
	Sessions int    `json:"sessions"`
}

// TopEarner is a tutor ranked by earnings.
type TopEarner struct {
	Name     string          `json:"name"`
	Earnings decimal.Decimal `json:"earnings"`
}

// PlatformStats are the administrator's overview figures.
type PlatformStats struct {
	TotalStudents  int             `json:"total_students"`
	TotalTutors    int             `json:"total_tutors"`
	ActiveSessions int             `json:"active_sessions"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	MonthlyRevenue decimal.Decimal `json:"monthly_revenue"`
	AverageRating  float64         `json:"average_rating"`
	SessionsToday  int             `json:"sessions_today"`
	SessionsMonth  int             `json:"sessions_month"`
}

var platformShare = decimal.RequireFromString("0.30")

// PlatformShare is the platform's cut of the monthly revenue.
func (p PlatformStats) PlatformShare() decimal.Decimal {
	return p.MonthlyRevenue.Mul(platformShare).Round(2)
}

// TutorPayouts is what tutors receive from the monthly revenue.
func (p PlatformStats) TutorPayouts() decimal.Decimal {
	return p.MonthlyRevenue.Sub(p.PlatformShare())
}

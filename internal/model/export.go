package model

// PlatformReport is the JSON export of the administrator reports.
type PlatformReport struct {
	GeneratedAt     string          `json:"generated_at"`
	Stats           PlatformStats   `json:"stats"`
	SubjectSessions []SubjectCount  `json:"subject_sessions"`
	TopEarners      []TopEarner     `json:"top_earners"`
	PendingTutors   int             `json:"pending_tutors"`
	FlaggedSessions int             `json:"flagged_sessions"`
	Bookings        []BookingExport `json:"bookings"`
}

// BookingExport is one booking in a PlatformReport.
type BookingExport struct {
	Tutor           string `json:"tutor"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	Cost            string `json:"cost"`
}

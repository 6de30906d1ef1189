package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentatutor/rentatutor/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSeedIsLoadedOnce(t *testing.T) {
	s := newTestStore(t)

	tutors, err := s.ListTutors()
	if err != nil {
		t.Fatalf("ListTutors: %v", err)
	}
	if len(tutors) != 4 {
		t.Fatalf("expected 4 tutors, got %d", len(tutors))
	}
	if tutors[0].Name != "Dr. Katya Frangie Eter" {
		t.Errorf("expected first tutor Dr. Katya Frangie Eter, got %q", tutors[0].Name)
	}
	if len(tutors[3].Subjects) != 3 {
		t.Errorf("expected 3 subjects for Maya Sleiman, got %v", tutors[3].Subjects)
	}
	if !tutors[1].HourlyRate.Equal(decimal.NewFromInt(15)) {
		t.Errorf("expected hourly rate 15, got %s", tutors[1].HourlyRate)
	}

	// Seeding again must not duplicate rows.
	if err := s.seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tutors, _ = s.ListTutors()
	if len(tutors) != 4 {
		t.Errorf("expected 4 tutors after reseed, got %d", len(tutors))
	}
}

func TestActorByRole(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		role       model.Role
		name       string
		hasRating  bool
		hasBalance bool
	}{
		{model.RoleStudent, "Elias Kallas", false, true},
		{model.RoleTutor, "Ahmad Hassan", true, true},
		{model.RoleAdmin, "Admin User", false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			a, err := s.ActorByRole(tt.role)
			if err != nil {
				t.Fatalf("ActorByRole: %v", err)
			}
			if a == nil {
				t.Fatal("expected actor, got nil")
			}
			if a.Name != tt.name {
				t.Errorf("expected %q, got %q", tt.name, a.Name)
			}
			if (a.Rating != nil) != tt.hasRating {
				t.Errorf("rating presence: expected %v, got %v", tt.hasRating, a.Rating != nil)
			}
			if (a.Balance != nil) != tt.hasBalance {
				t.Errorf("balance presence: expected %v, got %v", tt.hasBalance, a.Balance != nil)
			}
		})
	}

	a, err := s.ActorByRole(model.RoleGuest)
	if err != nil {
		t.Fatalf("ActorByRole(guest): %v", err)
	}
	if a != nil {
		t.Errorf("expected no guest actor, got %+v", a)
	}
}

func TestClaimPayout(t *testing.T) {
	s := newTestStore(t)
	minimum := decimal.NewFromInt(50)

	paid, err := s.ClaimPayout("2", minimum)
	if err != nil {
		t.Fatalf("ClaimPayout: %v", err)
	}
	if paid.StringFixed(2) != "142.30" {
		t.Errorf("paid = %s, want 142.30", paid.StringFixed(2))
	}
	a, err := s.GetActor("2")
	if err != nil {
		t.Fatalf("GetActor: %v", err)
	}
	if a.Balance == nil || !a.Balance.IsZero() {
		t.Errorf("expected zero balance, got %v", a.Balance)
	}

	tests := []struct {
		name string
		id   string
		want string
	}{
		{"emptied wallet", "2", "0.00"},
		{"student below minimum", "1", "25.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ClaimPayout(tt.id, minimum)
			if !errors.Is(err, ErrBelowMinimum) {
				t.Fatalf("err = %v, want ErrBelowMinimum", err)
			}
			if got.StringFixed(2) != tt.want {
				t.Errorf("balance = %s, want %s", got.StringFixed(2), tt.want)
			}
		})
	}

	if _, err := s.ClaimPayout("missing", minimum); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("unknown actor: err = %v, want sql.ErrNoRows", err)
	}
}

func TestBookings(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateBooking(model.Booking{
		StudentID:       "1",
		TutorID:         2,
		Date:            "2026-10-20",
		Time:            "3:00 PM",
		DurationMinutes: 30,
		Cost:            decimal.NewFromInt(8),
		CreatedAt:       time.Now(),
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero booking id")
	}

	list, err := s.ListBookings("1")
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 booking, got %d", len(list))
	}
	if list[0].TutorName != "Lina Karam" {
		t.Errorf("expected tutor Lina Karam, got %q", list[0].TutorName)
	}
	if list[0].Cost.StringFixed(2) != "8.00" {
		t.Errorf("expected cost 8.00, got %s", list[0].Cost.StringFixed(2))
	}

	others, err := s.ListBookings("someone-else")
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if len(others) != 0 {
		t.Errorf("expected no bookings for another student, got %d", len(others))
	}
}

func TestForum(t *testing.T) {
	s := newTestStore(t)

	qs, err := s.ListQuestions()
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(qs) != 4 {
		t.Fatalf("expected 4 seeded questions, got %d", len(qs))
	}

	id, err := s.InsertQuestion(model.Question{
		Author:   "Elias Kallas",
		AuthorID: "1",
		Title:    "What is a derivative?",
		Content:  "I need an intuitive explanation.",
		Subject:  "Mathematics",
	})
	if err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}

	q, err := s.GetQuestion(id)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if q.HasAnswer || q.Answers != 0 {
		t.Errorf("new question should be unanswered, got %+v", q)
	}
	if q.Posted != "Just now" {
		t.Errorf("expected posted 'Just now', got %q", q.Posted)
	}

	if _, err := s.InsertAnswer(model.Answer{
		QuestionID: id,
		Author:     "Ahmad Hassan",
		Role:       model.RoleTutor,
		Content:    "It is the slope of the tangent line.",
	}); err != nil {
		t.Fatalf("InsertAnswer: %v", err)
	}
	q, _ = s.GetQuestion(id)
	if !q.HasAnswer || q.Answers != 1 {
		t.Errorf("expected answered question with 1 answer, got %+v", q)
	}

	if _, err := s.InsertAnswer(model.Answer{QuestionID: 9999, Author: "x", Content: "y"}); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows for missing question, got %v", err)
	}

	missing, err := s.GetQuestion(9999)
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing question, got %v, %v", missing, err)
	}
}

func TestListAnswersBestFirst(t *testing.T) {
	s := newTestStore(t)

	answers, err := s.ListAnswers(1)
	if err != nil {
		t.Fatalf("ListAnswers: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(answers))
	}
	if !answers[0].IsBest {
		t.Errorf("expected best answer first, got %+v", answers[0])
	}
	if answers[0].Author != "Dr. Rami Nassar" {
		t.Errorf("expected Dr. Rami Nassar first, got %q", answers[0].Author)
	}
}

func TestApplications(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateApplication(model.TutorApplication{
		Name:       "Jana Haddad",
		Email:      "jana@example.com",
		University: "Saint Joseph University",
		GPA:        3.4,
		Subjects:   []string{"French"},
	})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}

	pending, err := s.ListPendingApplications()
	if err != nil {
		t.Fatalf("ListPendingApplications: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending applications, got %d", len(pending))
	}

	before, _ := s.PlatformStats()
	name, err := s.DecideApplication(id, model.ApplicationApproved)
	if err != nil {
		t.Fatalf("DecideApplication: %v", err)
	}
	if name != "Jana Haddad" {
		t.Errorf("expected Jana Haddad, got %q", name)
	}
	after, _ := s.PlatformStats()
	if after.TotalTutors != before.TotalTutors+1 {
		t.Errorf("expected tutor count %d, got %d", before.TotalTutors+1, after.TotalTutors)
	}

	// A decided application cannot be decided again.
	if _, err := s.DecideApplication(id, model.ApplicationRejected); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows for decided application, got %v", err)
	}

	pending, _ = s.ListPendingApplications()
	if len(pending) != 2 {
		t.Errorf("expected 2 pending applications, got %d", len(pending))
	}
}

func TestFlags(t *testing.T) {
	s := newTestStore(t)

	flags, err := s.ListOpenFlags()
	if err != nil {
		t.Fatalf("ListOpenFlags: %v", err)
	}
	if len(flags) != 2 {
		t.Fatalf("expected 2 open flags, got %d", len(flags))
	}
	if err := s.ResolveFlag(flags[0].ID, "warn"); err != nil {
		t.Fatalf("ResolveFlag: %v", err)
	}
	if err := s.ResolveFlag(flags[0].ID, "ban"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows for resolved flag, got %v", err)
	}
	flags, _ = s.ListOpenFlags()
	if len(flags) != 1 {
		t.Errorf("expected 1 open flag, got %d", len(flags))
	}
}

func TestRequests(t *testing.T) {
	s := newTestStore(t)

	reqs, err := s.ListOpenRequests()
	if err != nil {
		t.Fatalf("ListOpenRequests: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("expected 2 open requests, got %d", len(reqs))
	}
	if err := s.ResolveRequest(reqs[0].ID, "accepted"); err != nil {
		t.Fatalf("ResolveRequest: %v", err)
	}
	if err := s.ResolveRequest(reqs[0].ID, "declined"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected ErrNoRows for closed request, got %v", err)
	}
	if err := s.ResolveRequest(reqs[1].ID, "maybe"); err == nil {
		t.Error("expected error for unknown status")
	}
	reqs, _ = s.ListOpenRequests()
	if len(reqs) != 1 {
		t.Errorf("expected 1 open request, got %d", len(reqs))
	}

	upcoming, err := s.ListUpcomingBookings()
	if err != nil {
		t.Fatalf("ListUpcomingBookings: %v", err)
	}
	if len(upcoming) != 2 {
		t.Errorf("expected 2 upcoming bookings, got %d", len(upcoming))
	}
}

func TestRecordSession(t *testing.T) {
	s := newTestStore(t)

	student, err := s.ActorByRole(model.RoleStudent)
	if err != nil || student == nil {
		t.Fatalf("ActorByRole: %v", err)
	}
	before, err := s.PlatformStats()
	if err != nil {
		t.Fatalf("PlatformStats: %v", err)
	}

	desc := model.SessionDescriptor{
		TutorID:         "2",
		TutorName:       "Ahmad Hassan",
		TutorRating:     4.8,
		Subject:         "Physics",
		DurationMinutes: 20,
		Price:           decimal.RequireFromString("2.50"),
	}
	if err := s.RecordSession(*student, desc, model.Rating{Stars: 4, Feedback: "Clear"}, time.Now()); err != nil {
		t.Fatalf("RecordSession: %v", err)
	}

	studentHistory, err := s.ListSessionRecords(model.RoleStudent)
	if err != nil {
		t.Fatalf("ListSessionRecords: %v", err)
	}
	if len(studentHistory) != 4 {
		t.Fatalf("expected 4 student records, got %d", len(studentHistory))
	}
	if studentHistory[0].Counterpart != "Ahmad Hassan" || studentHistory[0].Rating != 4 {
		t.Errorf("expected newest record first, got %+v", studentHistory[0])
	}

	tutorHistory, _ := s.ListSessionRecords(model.RoleTutor)
	if len(tutorHistory) != 4 || tutorHistory[0].Counterpart != "Elias Kallas" {
		t.Errorf("expected tutor record for Elias Kallas first, got %+v", tutorHistory)
	}

	tutor, _ := s.GetActor("2")
	if tutor.Balance.StringFixed(2) != "144.80" {
		t.Errorf("expected tutor balance 144.80, got %s", tutor.Balance.StringFixed(2))
	}

	after, _ := s.PlatformStats()
	if after.SessionsToday != before.SessionsToday+1 {
		t.Errorf("expected sessions today %d, got %d", before.SessionsToday+1, after.SessionsToday)
	}
	if !after.TotalRevenue.Equal(before.TotalRevenue.Add(desc.Price)) {
		t.Errorf("expected revenue %s, got %s", before.TotalRevenue.Add(desc.Price), after.TotalRevenue)
	}

	subjects, _ := s.SubjectSessions()
	for _, sc := range subjects {
		if sc.Subject == "Physics" && sc.Sessions != 190 {
			t.Errorf("expected 190 Physics sessions, got %d", sc.Sessions)
		}
	}
}

func TestPlatformStats(t *testing.T) {
	s := newTestStore(t)

	st, err := s.PlatformStats()
	if err != nil {
		t.Fatalf("PlatformStats: %v", err)
	}
	if st.TotalStudents != 1247 {
		t.Errorf("expected 1247 students, got %d", st.TotalStudents)
	}
	if st.MonthlyRevenue.StringFixed(2) != "2341.20" {
		t.Errorf("expected monthly revenue 2341.20, got %s", st.MonthlyRevenue.StringFixed(2))
	}
	if st.PlatformShare().StringFixed(2) != "702.36" {
		t.Errorf("expected platform share 702.36, got %s", st.PlatformShare().StringFixed(2))
	}
	if st.AverageRating != 4.7 {
		t.Errorf("expected average rating 4.7, got %v", st.AverageRating)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	val, err := s.GetMetadata("nonexistent")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if val != "" {
		t.Errorf("expected empty string, got %q", val)
	}

	if err := s.SetMetadata("motd", "welcome"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata("motd", "updated"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	val, _ = s.GetMetadata("motd")
	if val != "updated" {
		t.Errorf("expected 'updated', got %q", val)
	}
}

func TestTopEarnersRanked(t *testing.T) {
	s := newTestStore(t)

	earners, err := s.TopEarners()
	if err != nil {
		t.Fatalf("TopEarners: %v", err)
	}
	if len(earners) != 4 {
		t.Fatalf("expected 4 earners, got %d", len(earners))
	}
	for i := 1; i < len(earners); i++ {
		if earners[i].Earnings.GreaterThan(earners[i-1].Earnings) {
			t.Errorf("earners not ranked: %s before %s", earners[i-1].Earnings, earners[i].Earnings)
		}
	}
}

func TestExportReport(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreateBooking(model.Booking{
		StudentID: "1", TutorID: 1, Date: "2026-10-21", Time: "2:00 PM",
		DurationMinutes: 60, Cost: decimal.NewFromInt(20), CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	report, err := s.ExportReport(now)
	if err != nil {
		t.Fatalf("ExportReport: %v", err)
	}
	if report.GeneratedAt != "2026-10-17T09:00:00Z" {
		t.Errorf("unexpected generated_at %q", report.GeneratedAt)
	}
	if report.PendingTutors != 2 || report.FlaggedSessions != 2 {
		t.Errorf("expected 2 pending tutors and 2 flags, got %d and %d", report.PendingTutors, report.FlaggedSessions)
	}
	if len(report.Bookings) != 1 || report.Bookings[0].Cost != "20.00" {
		t.Errorf("unexpected bookings %+v", report.Bookings)
	}
	if len(report.SubjectSessions) != 4 || report.SubjectSessions[0].Subject != "Mathematics" {
		t.Errorf("unexpected subject sessions %+v", report.SubjectSessions)
	}
}

func TestRecordSessionConcurrent(t *testing.T) {
	// A file database gets a connection per goroutine, unlike :memory:.
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "rentatutor.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	student, err := s.ActorByRole(model.RoleStudent)
	if err != nil || student == nil {
		t.Fatalf("ActorByRole: %v", err)
	}
	before, err := s.PlatformStats()
	if err != nil {
		t.Fatalf("PlatformStats: %v", err)
	}
	tutorBefore, _ := s.GetActor("2")

	const sessions = 50
	price := decimal.RequireFromString("1.50")
	desc := model.SessionDescriptor{
		TutorID:         "2",
		TutorName:       "Ahmad Hassan",
		Subject:         "Chemistry",
		DurationMinutes: 10,
		Price:           price,
	}

	var wg sync.WaitGroup
	errs := make(chan error, sessions)
	for range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RecordSession(*student, desc, model.Rating{Stars: 5}, time.Now())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("RecordSession: %v", err)
		}
	}

	after, err := s.PlatformStats()
	if err != nil {
		t.Fatalf("PlatformStats: %v", err)
	}
	if got := after.SessionsToday - before.SessionsToday; got != sessions {
		t.Errorf("sessions today grew by %d, want %d", got, sessions)
	}
	if got := after.SessionsMonth - before.SessionsMonth; got != sessions {
		t.Errorf("sessions this month grew by %d, want %d", got, sessions)
	}
	total := price.Mul(decimal.NewFromInt(sessions))
	if got := after.TotalRevenue.Sub(before.TotalRevenue); !got.Equal(total) {
		t.Errorf("revenue grew by %s, want %s", got, total)
	}
	if got := after.MonthlyRevenue.Sub(before.MonthlyRevenue); !got.Equal(total) {
		t.Errorf("monthly revenue grew by %s, want %s", got, total)
	}
	tutorAfter, _ := s.GetActor("2")
	if got := tutorAfter.Balance.Sub(*tutorBefore.Balance); !got.Equal(total) {
		t.Errorf("tutor credited %s, want %s", got, total)
	}
}

func TestPayoutKeepsConcurrentCredits(t *testing.T) {
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "rentatutor.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	student, _ := s.ActorByRole(model.RoleStudent)
	tutor, _ := s.GetActor("2")
	desc := model.SessionDescriptor{TutorID: "2", TutorName: "Ahmad Hassan", Subject: "Physics",
		DurationMinutes: 20, Price: decimal.RequireFromString("2.50")}

	const credits = 20
	var wg sync.WaitGroup
	var paid decimal.Decimal
	var payErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		paid, payErr = s.ClaimPayout("2", decimal.NewFromInt(50))
	}()
	for range credits {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.RecordSession(*student, desc, model.Rating{Stars: 4}, time.Now()); err != nil {
				t.Errorf("RecordSession: %v", err)
			}
		}()
	}
	wg.Wait()
	if payErr != nil {
		t.Fatalf("ClaimPayout: %v", payErr)
	}

	// Whatever was paid out plus what is left must equal the opening
	// balance plus every credit.
	left, _ := s.GetActor("2")
	want := tutor.Balance.Add(desc.Price.Mul(decimal.NewFromInt(credits)))
	if got := paid.Add(*left.Balance); !got.Equal(want) {
		t.Errorf("paid %s + left %s = %s, want %s", paid, left.Balance, got, want)
	}
}

func TestRecordSessionBadBalance(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.db.Exec(`UPDATE actors SET balance = 'n/a' WHERE id = '2'`); err != nil {
		t.Fatalf("corrupt balance: %v", err)
	}
	before, _ := s.ListSessionRecords(model.RoleStudent)
	student, _ := s.ActorByRole(model.RoleStudent)
	desc := model.SessionDescriptor{TutorID: "2", TutorName: "Ahmad Hassan", Subject: "Physics",
		DurationMinutes: 10, Price: decimal.RequireFromString("1.50")}

	if err := s.RecordSession(*student, desc, model.Rating{Stars: 5}, time.Now()); err == nil {
		t.Fatal("expected an error when the tutor balance cannot be read")
	}
	after, _ := s.ListSessionRecords(model.RoleStudent)
	if len(after) != len(before) {
		t.Errorf("records = %d, want %d: the failed session must roll back", len(after), len(before))
	}
}

func TestRecordSessionUnknownTutor(t *testing.T) {
	s := newTestStore(t)

	student, _ := s.ActorByRole(model.RoleStudent)
	before, _ := s.PlatformStats()
	desc := model.SessionDescriptor{TutorID: "99", TutorName: "Guest Tutor", Subject: "Physics",
		DurationMinutes: 10, Price: decimal.RequireFromString("1.50")}
	if err := s.RecordSession(*student, desc, model.Rating{Stars: 3}, time.Now()); err != nil {
		t.Fatalf("RecordSession: %v", err)
	}
	after, _ := s.PlatformStats()
	if after.SessionsToday != before.SessionsToday+1 {
		t.Errorf("sessions today = %d, want %d", after.SessionsToday, before.SessionsToday+1)
	}
}

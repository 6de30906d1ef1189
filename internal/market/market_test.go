package market

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentatutor/rentatutor/internal/model"
)

func noticeID(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		return ""
	}
	n, ok := NoticeOf(err)
	if !ok {
		t.Fatalf("error %v carries no notice", err)
	}
	if n.Level != model.NoticeError {
		t.Errorf("notice level = %q, want error", n.Level)
	}
	return n.ID
}

func TestNewSessionRequest(t *testing.T) {
	tests := []struct {
		name      string
		subject   string
		minutes   int
		wantID    string
		wantPrice string
	}{
		{"ten minutes", "Mathematics", 10, "", "1.50"},
		{"twenty minutes", "Physics", 20, "", "2.50"},
		{"thirty minutes", "Computer Science", 30, "", "3.50"},
		{"no subject", "", 10, NoticeSelectSubject, ""},
		{"blank subject", "   ", 10, NoticeSelectSubject, ""},
		{"unknown subject", "Astrology", 10, NoticeSelectSubject, ""},
		{"bad duration", "Mathematics", 15, NoticeInvalidDuration, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewSessionRequest(tt.subject, tt.minutes)
			if got := noticeID(t, err); got != tt.wantID {
				t.Fatalf("notice = %q, want %q", got, tt.wantID)
			}
			if tt.wantID != "" {
				return
			}
			if req.Price.StringFixed(2) != tt.wantPrice {
				t.Errorf("price = %s, want %s", req.Price.StringFixed(2), tt.wantPrice)
			}

			desc := Match(req)
			if desc.TutorName != "Ahmad Hassan" || desc.TutorRating != 4.8 {
				t.Errorf("matched %s (%.1f), want Ahmad Hassan (4.8)", desc.TutorName, desc.TutorRating)
			}
			if desc.DurationMinutes != tt.minutes || desc.Subject != tt.subject {
				t.Errorf("descriptor = %+v", desc)
			}
		})
	}
}

func TestNewBooking(t *testing.T) {
	tutor := model.Tutor{ID: 1, Name: "Dr. Katya Frangie Eter", HourlyRate: decimal.NewFromInt(20)}
	now := time.Date(2024, 11, 25, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		form     BookingForm
		wantID   string
		wantCost string
	}{
		{"half hour flat fee", BookingForm{Date: "2024-12-01", Time: "2:00 PM", DurationMinutes: 30}, "", "8.00"},
		{"hour at rate", BookingForm{Date: "2024-12-01", Time: "7:00 PM", DurationMinutes: 60}, "", "20.00"},
		{"missing date", BookingForm{Time: "2:00 PM", DurationMinutes: 30}, NoticeSelectDateTime, ""},
		{"missing time", BookingForm{Date: "2024-12-01", DurationMinutes: 30}, NoticeSelectDateTime, ""},
		{"bad date", BookingForm{Date: "tomorrow", Time: "2:00 PM", DurationMinutes: 30}, NoticeSelectDateTime, ""},
		{"slot not offered", BookingForm{Date: "2024-12-01", Time: "9:00 AM", DurationMinutes: 30}, NoticeSelectDateTime, ""},
		{"bad duration", BookingForm{Date: "2024-12-01", Time: "2:00 PM", DurationMinutes: 45}, NoticeInvalidBookingLength, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, notice, err := NewBooking("1", tutor, tt.form, now)
			if got := noticeID(t, err); got != tt.wantID {
				t.Fatalf("notice = %q, want %q", got, tt.wantID)
			}
			if tt.wantID != "" {
				return
			}
			if b.Cost.StringFixed(2) != tt.wantCost {
				t.Errorf("cost = %s, want %s", b.Cost.StringFixed(2), tt.wantCost)
			}
			if notice.ID != NoticeBookingConfirmed || notice.Data["Tutor"] != tutor.Name || notice.Data["Cost"] != tt.wantCost {
				t.Errorf("notice = %+v", notice)
			}
			if !b.CreatedAt.Equal(now) || b.StudentID != "1" || b.TutorID != 1 {
				t.Errorf("booking = %+v", b)
			}
		})
	}
}

func TestValidateQuestion(t *testing.T) {
	tests := []struct {
		name   string
		form   QuestionForm
		wantID string
	}{
		{"ok", QuestionForm{"Why is the sky blue?", "I read about Rayleigh scattering.", "Physics"}, NoticeQuestionPosted},
		{"missing title", QuestionForm{"", "content", "Physics"}, NoticeFillAllFields},
		{"missing subject", QuestionForm{"title", "content", ""}, NoticeFillAllFields},
		{"homework in title", QuestionForm{"Please DO MY HOMEWORK", "chapter 3", "Mathematics"}, NoticeHomeworkRejected},
		{"answer in content", QuestionForm{"Integrals", "just give me the answer", "Mathematics"}, NoticeHomeworkRejected},
		{"solve for me", QuestionForm{"Solve this for me", "x^2 = 4", "Mathematics"}, NoticeHomeworkRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notice, err := ValidateQuestion(tt.form)
			got := noticeID(t, err)
			if err == nil {
				got = notice.ID
			}
			if got != tt.wantID {
				t.Errorf("notice = %q, want %q", got, tt.wantID)
			}
		})
	}
}

func TestValidateAnswer(t *testing.T) {
	tutor := &model.Actor{ID: "2", Role: model.RoleTutor}
	student := &model.Actor{ID: "1", Role: model.RoleStudent}

	if _, err := ValidateAnswer(student, "I think..."); noticeID(t, err) != NoticeTutorsOnly {
		t.Errorf("student answer error = %v", err)
	}
	if _, err := ValidateAnswer(nil, "I think..."); noticeID(t, err) != NoticeTutorsOnly {
		t.Errorf("anonymous answer error = %v", err)
	}
	if _, err := ValidateAnswer(tutor, "  "); noticeID(t, err) != NoticeAnswerEmpty {
		t.Errorf("empty answer error = %v", err)
	}
	if n, err := ValidateAnswer(tutor, "Start from the definition."); err != nil || n.ID != NoticeAnswerPosted {
		t.Errorf("ValidateAnswer = %+v, %v", n, err)
	}
}

func TestFilterQuestions(t *testing.T) {
	qs := []model.Question{
		{ID: 1, AuthorID: "1", Title: "Quadratic equations with complex roots", Content: "discriminant is negative", Upvotes: 12, HasAnswer: true},
		{ID: 2, AuthorID: "9", Title: "Mitosis vs meiosis", Content: "key differences", Upvotes: 8, HasAnswer: true},
		{ID: 3, AuthorID: "9", Title: "Newton's Third Law", Content: "why do things move", Upvotes: 15, HasAnswer: true},
		{ID: 4, AuthorID: "1", Title: "French verbs", Content: "memorize conjugations", Upvotes: 6, HasAnswer: false},
	}

	ids := func(qs []model.Question) []int64 {
		var out []int64
		for _, q := range qs {
			out = append(out, q.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter Filter
		query  string
		actor  string
		want   []int64
	}{
		{"all", FilterAll, "", "", []int64{1, 2, 3, 4}},
		{"unanswered", FilterUnanswered, "", "", []int64{4}},
		{"trending", FilterTrending, "", "", []int64{1, 3}},
		{"mine", FilterMine, "", "1", []int64{1, 4}},
		{"mine anonymous", FilterMine, "", "", nil},
		{"search title", FilterAll, "NEWTON", "", []int64{3}},
		{"search content", FilterAll, "discriminant", "", []int64{1}},
		{"search and tab", FilterTrending, "mitosis", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(FilterQuestions(qs, tt.filter, tt.query, tt.actor))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", got, tt.want)
				}
			}
		})
	}

	if ParseFilter("bogus") != FilterAll || ParseFilter("trending") != FilterTrending {
		t.Error("ParseFilter fallback broken")
	}
}

func TestWizard(t *testing.T) {
	w := NewWizard()

	steps := []struct {
		name   string
		in     ApplicationForm
		upload []Document
		wantID string
		want   Step
	}{
		{"personal incomplete", ApplicationForm{FullName: "Nour Khalil", Email: "nour@example.com"}, nil, NoticeFillAllFields, StepPersonal},
		{"personal", ApplicationForm{FullName: "Nour Khalil", Email: "nour@example.com", Phone: "+961 3 000 000"}, nil, "", StepAcademic},
		{"academic missing gpa", ApplicationForm{University: "AUB"}, nil, NoticeFillAllFields, StepAcademic},
		{"academic bad gpa", ApplicationForm{University: "AUB", GPA: "excellent"}, nil, NoticeInvalidGPA, StepAcademic},
		{"academic gpa too low", ApplicationForm{University: "AUB", GPA: "2.9"}, nil, NoticeMinimumGPA, StepAcademic},
		{"academic", ApplicationForm{University: "AUB", GPA: "3.7"}, nil, "", StepSubjects},
		{"no subjects", ApplicationForm{Subjects: []string{"Astrology"}}, nil, NoticeSelectOneSubject, StepSubjects},
		{"subjects", ApplicationForm{Subjects: []string{"Mathematics", "Physics", "Mathematics"}}, nil, "", StepDocuments},
		{"one document", ApplicationForm{}, []Document{DocumentID}, NoticeUploadDocuments, StepDocuments},
		{"documents", ApplicationForm{}, []Document{DocumentTranscript}, "", StepTests},
	}

	for _, st := range steps {
		for _, d := range st.upload {
			if !w.Upload(d) {
				t.Fatalf("%s: Upload(%s) refused", st.name, d)
			}
		}
		app, err := w.Next(st.in)
		if got := noticeID(t, err); got != st.wantID {
			t.Fatalf("%s: notice = %q, want %q", st.name, got, st.wantID)
		}
		if app != nil {
			t.Fatalf("%s: application returned before the last step", st.name)
		}
		if w.Step != st.want {
			t.Fatalf("%s: step = %d, want %d", st.name, w.Step, st.want)
		}
	}

	w.Previous()
	if w.Step != StepDocuments {
		t.Fatalf("Previous: step = %d, want %d", w.Step, StepDocuments)
	}
	if _, err := w.Next(ApplicationForm{}); err != nil {
		t.Fatalf("documents again: %v", err)
	}

	app, err := w.Next(ApplicationForm{})
	if err != nil || app == nil {
		t.Fatalf("submit = %v, %v", app, err)
	}
	if app.Name != "Nour Khalil" || app.GPA != 3.7 || app.Status != model.ApplicationPending {
		t.Errorf("application = %+v", app)
	}
	if len(app.Subjects) != 2 {
		t.Errorf("subjects = %v, want Mathematics and Physics once each", app.Subjects)
	}

	if w.Upload(Document("passport")) {
		t.Error("unknown document accepted")
	}
	first := NewWizard()
	first.Previous()
	if first.Step != StepPersonal {
		t.Errorf("Previous on first step moved to %d", first.Step)
	}
}

func TestModerationParsing(t *testing.T) {
	if d, err := ParseDecision("approve"); err != nil || d.Status() != model.ApplicationApproved || d.Notice().ID != NoticeTutorApproved {
		t.Errorf("approve = %v, %v", d, err)
	}
	if d, err := ParseDecision("reject"); err != nil || d.Status() != model.ApplicationRejected || d.Notice().ID != NoticeTutorRejected {
		t.Errorf("reject = %v, %v", d, err)
	}
	if _, err := ParseDecision("maybe"); err == nil {
		t.Error("unknown decision accepted")
	}

	actions := map[string]string{
		"dismiss": NoticeFlagDismissed,
		"warn":    NoticeTutorWarned,
		"ban":     NoticeTutorBanned,
	}
	for s, want := range actions {
		a, err := ParseFlagAction(s)
		if err != nil || a.Notice().ID != want {
			t.Errorf("ParseFlagAction(%q) = %v, %v", s, a, err)
		}
	}
	if _, err := ParseFlagAction("ignore"); err == nil {
		t.Error("unknown flag action accepted")
	}
	if ParseAdminTab("reports") != TabReports || ParseAdminTab("") != TabOverview {
		t.Error("ParseAdminTab broken")
	}
}

func TestDesk(t *testing.T) {
	if _, err := AnswerRequest(false, RequestAccept); noticeID(t, err) != NoticeGoOnline {
		t.Errorf("offline accept error = %v", err)
	}
	if n, err := AnswerRequest(true, RequestAccept); err != nil || n.ID != NoticeSessionAccepted {
		t.Errorf("accept = %+v, %v", n, err)
	}
	if n, err := AnswerRequest(true, RequestDecline); err != nil || n.ID != NoticeRequestDeclined {
		t.Errorf("decline = %+v, %v", n, err)
	}

	_, err := RequestPayout(decimal.RequireFromString("49.99"))
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Notice.ID != NoticePayoutMinimum {
		t.Errorf("payout below minimum error = %v", err)
	}
	n, err := RequestPayout(decimal.RequireFromString("142.30"))
	if err != nil || n.Data["Amount"] != "142.30" {
		t.Errorf("payout = %+v, %v", n, err)
	}

	earned := TotalEarned([]model.SessionRecord{
		{Amount: decimal.RequireFromString("6.00")},
		{Amount: decimal.RequireFromString("4.00")},
		{Amount: decimal.RequireFromString("20.00")},
	})
	if earned.StringFixed(2) != "30.00" {
		t.Errorf("TotalEarned = %s, want 30.00", earned.StringFixed(2))
	}
}

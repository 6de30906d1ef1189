package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	appI18n "github.com/rentatutor/rentatutor/internal/i18n"
	"github.com/rentatutor/rentatutor/internal/live"
	"github.com/rentatutor/rentatutor/internal/model"
	"github.com/rentatutor/rentatutor/internal/navigator"
	"github.com/rentatutor/rentatutor/internal/store"
)

// idleScheduler never fires, so sessions stay where the test puts them.
type idleScheduler struct{}

func (idleScheduler) Every(time.Duration, func()) func() { return func() {} }
func (idleScheduler) After(time.Duration, func()) func() { return func() {} }

type testEnv struct {
	srv      *httptest.Server
	store    *store.Store
	handler  *Handler
	visitors *navigator.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	st, err := store.New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	visitors := navigator.NewRegistry(navigator.Config{
		Actors:    st,
		Lifecycle: live.Options{Scheduler: idleScheduler{}},
		OnSessionClosed: func(actor model.Actor, desc model.SessionDescriptor, snap live.Snapshot) {
			if err := st.RecordSession(actor, desc, *snap.Rating, time.Now()); err != nil {
				t.Errorf("RecordSession: %v", err)
			}
		},
	})
	t.Cleanup(visitors.Shutdown)

	h, err := New(st, visitors, model.AppConfig{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	r.Use(h.BasePathMiddleware)
	h.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: st, handler: h, visitors: visitors}
}

// browser is a cookie-keeping client that fills in the CSRF token.
type browser struct {
	t      *testing.T
	env    *testEnv
	client *http.Client
}

func (e *testEnv) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	b := &browser{t: t, env: e, client: &http.Client{Jar: jar}}
	b.get("/")
	return b
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.env.srv.URL)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (b *browser) read(resp *http.Response, err error) (int, string) {
	b.t.Helper()
	if err != nil {
		b.t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		b.t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func (b *browser) get(path string) (int, string) {
	b.t.Helper()
	return b.read(b.client.Get(b.env.srv.URL + path))
}

// post submits a form and follows the redirect to the rendered page.
func (b *browser) post(path string, form url.Values) (int, string) {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", b.cookie(csrfCookieName))
	return b.read(b.client.PostForm(b.env.srv.URL+path, form))
}

func (b *browser) login(role string) string {
	b.t.Helper()
	status, body := b.post("/login", url.Values{"role": {role}})
	if status != http.StatusOK {
		b.t.Fatalf("login as %s: status %d", role, status)
	}
	return body
}

func assertContains(t *testing.T, body string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("page should contain %q", w)
		}
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestLandingForGuest(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	status, body := b.get("/")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	assertContains(t, body, "Rent a Tutor", "Continue as student", "Teach with us")
	if b.cookie(visitorCookieName) == "" {
		t.Error("expected visitor cookie")
	}
	if b.cookie(csrfCookieName) == "" {
		t.Error("expected csrf cookie")
	}
}

func TestCSRFRequired(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	resp, err := b.client.PostForm(env.srv.URL+"/login", url.Values{"role": {"student"}})
	status, _ := b.read(resp, err)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 without token, got %d", status)
	}

	resp, err = b.client.PostForm(env.srv.URL+"/login", url.Values{"role": {"student"}, "csrf_token": {"forged"}})
	status, _ = b.read(resp, err)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 with forged token, got %d", status)
	}
}

func TestLoginAndNavigate(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	body := b.login("student")
	assertContains(t, body, "Welcome back, Elias Kallas", "$25.50", "Get instant help")

	_, body = b.post("/navigate", url.Values{"page": {"booking"}})
	assertContains(t, body, "Book a session", "Lina Karam")

	_, body = b.post("/back", nil)
	assertContains(t, body, "Welcome back, Elias Kallas")

	_, body = b.post("/navigate", url.Values{"page": {"admin-dashboard"}})
	assertContains(t, body, "That page is not available for your role", "Welcome back")

	_, body = b.post("/logout", nil)
	assertContains(t, body, "Continue as student")
}

func TestRoleGuard(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.login("student")

	_, body := b.post("/admin/flags/1/dismiss", nil)
	assertContains(t, body, "That page is not available for your role")

	flags, err := env.store.ListOpenFlags()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range flags {
		if f.ID == 1 {
			return
		}
	}
	t.Error("flag 1 should still be open")
}

func TestInstantSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.login("student")

	_, body := b.post("/instant", url.Values{"subject": {""}, "duration": {"10"}})
	assertContains(t, body, "Please select a subject first")

	_, body = b.post("/instant", url.Values{"subject": {"Physics"}, "duration": {"10"}})
	assertContains(t, body, "Time remaining", "10:00", live.Greeting)

	_, body = b.post("/session/message", url.Values{"text": {"What is torque?"}})
	assertContains(t, body, "What is torque?")

	_, body = b.post("/session/mute", nil)
	assertContains(t, body, "Unmute")

	status, raw := b.get("/session/state")
	if status != http.StatusOK {
		t.Fatalf("state: expected 200, got %d", status)
	}
	var snap struct {
		State    string              `json:"state"`
		Subject  string              `json:"subject"`
		Muted    bool                `json:"muted"`
		Messages []model.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if snap.State != "connected" || snap.Subject != "Physics" || !snap.Muted || len(snap.Messages) != 2 {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	_, body = b.post("/session/end", nil)
	assertContains(t, body, "How was your session?")

	_, body = b.post("/session/rating", url.Values{"stars": {""}})
	assertContains(t, body, "Please select a rating")

	before, err := env.store.ListSessionRecords(model.RoleStudent)
	if err != nil {
		t.Fatal(err)
	}
	_, body = b.post("/session/rating", url.Values{"stars": {"5"}, "feedback": {"clear"}})
	assertContains(t, body, "Thank you for your feedback!", "Welcome back, Elias Kallas")

	after, err := env.store.ListSessionRecords(model.RoleStudent)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before)+1 {
		t.Errorf("expected one new session record, got %d -> %d", len(before), len(after))
	}

	status, _ = b.get("/session/state")
	if status != http.StatusNotFound {
		t.Errorf("state after close: expected 404, got %d", status)
	}
	_, body = b.post("/session/end", nil)
	assertContains(t, body, "That session is no longer active")
}

func TestSessionFeed(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.login("student")
	b.post("/instant", url.Values{"subject": {"Chemistry"}, "duration": {"20"}})

	dialer := websocket.Dialer{Jar: b.client.Jar, HandshakeTimeout: 5 * time.Second}
	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/session/ws"
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	type feedEvent struct {
		Kind     live.EventKind `json:"kind"`
		Snapshot struct {
			State     string `json:"state"`
			Remaining string `json:"remaining"`
		} `json:"snapshot"`
	}
	read := func() feedEvent {
		t.Helper()
		var ev feedEvent
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read event: %v", err)
		}
		return ev
	}

	first := read()
	if first.Kind != live.EventTick || first.Snapshot.Remaining != "20:00" {
		t.Errorf("first event = %+v, want tick at 20:00", first)
	}

	b.post("/session/end", nil)
	ev := read()
	if ev.Kind != live.EventState || ev.Snapshot.State != "rating" {
		t.Errorf("after end got %+v, want state event in rating prompt", ev)
	}
}

func TestSessionFeedWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.login("student")

	status, _ := b.get("/session/ws")
	if status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestBooking(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	b.login("student")
	b.post("/navigate", url.Values{"page": {"booking"}})

	_, body := b.post("/booking", url.Values{"tutor_id": {"2"}, "time": {"3:00 PM"}, "duration": {"30"}})
	assertContains(t, body, "Please select a date and time", "Book a session")

	_, body = b.post("/booking", url.Values{"tutor_id": {"99"}, "date": {"2026-10-20"}, "time": {"3:00 PM"}, "duration": {"30"}})
	assertContains(t, body, "That tutor is not available")

	_, body = b.post("/booking", url.Values{"tutor_id": {"2"}, "date": {"2026-10-20"}, "time": {"3:00 PM"}, "duration": {"30"}})
	assertContains(t, body, "Session booked with Lina Karam", "$8.00", "Welcome back, Elias Kallas")

	bookings, err := env.store.ListBookings("1")
	if err != nil {
		t.Fatal(err)
	}
	if len(bookings) == 0 || bookings[0].TutorName != "Lina Karam" {
		t.Errorf("expected booking with Lina Karam, got %+v", bookings)
	}
}

func TestForum(t *testing.T) {
	env := newTestEnv(t)
	student := env.browser(t)
	student.login("student")
	student.post("/navigate", url.Values{"page": {"forum"}})

	_, body := student.post("/forum/questions", url.Values{"title": {"Limits"}, "content": {""}, "subject": {"Mathematics"}})
	assertContains(t, body, "Please fill in all fields")

	_, body = student.post("/forum/questions", url.Values{
		"title": {"Calculus"}, "content": {"Can you do my homework?"}, "subject": {"Mathematics"},
	})
	assertContains(t, body, "not completing homework")

	_, body = student.post("/forum/questions", url.Values{
		"title": {"Why do limits exist?"}, "content": {"I do not get epsilon-delta."}, "subject": {"Mathematics"},
	})
	assertContains(t, body, "Question posted successfully!", "Why do limits exist?")

	questions, err := env.store.ListQuestions()
	if err != nil {
		t.Fatal(err)
	}
	posted := questions[0]
	if posted.Title != "Why do limits exist?" || posted.AuthorID != "1" {
		t.Fatalf("newest question = %+v", posted)
	}

	_, body = student.post("/forum/questions/1/answers", url.Values{"content": {"sneaky"}})
	assertContains(t, body, "That page is not available for your role")

	tutor := env.browser(t)
	tutor.login("tutor")
	tutor.post("/navigate", url.Values{"page": {"forum"}})
	path := "/forum/questions/" + itoa(posted.ID) + "/answers"

	_, body = tutor.post(path, url.Values{"content": {"  "}})
	assertContains(t, body, "Please write an answer first")

	_, body = tutor.post(path, url.Values{"content": {"Limits pin down behaviour near a point."}})
	assertContains(t, body, "Answer posted", "Limits pin down behaviour near a point.")

	status, _ := tutor.post("/forum/questions/9999/answers", url.Values{"content": {"hello"}})
	if status != http.StatusNotFound {
		t.Errorf("answer to missing question: expected 404, got %d", status)
	}

	student.post("/forum/questions/"+itoa(posted.ID)+"/upvote", nil)
	q, err := env.store.GetQuestion(posted.ID)
	if err != nil {
		t.Fatal(err)
	}
	if q.Upvotes != 1 || q.Answers != 1 || !q.HasAnswer {
		t.Errorf("question after answer and upvote = %+v", q)
	}
}

func TestApplicationWizard(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	before, err := env.store.ListPendingApplications()
	if err != nil {
		t.Fatal(err)
	}

	_, body := b.post("/navigate", url.Values{"page": {"tutor-application"}})
	assertContains(t, body, "Step 1 of 5")

	_, body = b.post("/apply/next", url.Values{"full_name": {"Jana Aoun"}, "email": {""}, "phone": {"+961 1"}})
	assertContains(t, body, "Please fill in all fields", "Step 1 of 5")

	_, body = b.post("/apply/next", url.Values{"full_name": {"Jana Aoun"}, "email": {"jana@example.com"}, "phone": {"+961 1"}})
	assertContains(t, body, "Step 2 of 5")

	_, body = b.post("/apply/next", url.Values{"university": {"USJ"}, "gpa": {"2.5"}})
	assertContains(t, body, "Minimum GPA requirement is 3.0/4.0")

	_, body = b.post("/apply/previous", nil)
	assertContains(t, body, "Step 1 of 5", "Jana Aoun")
	b.post("/apply/next", url.Values{"full_name": {"Jana Aoun"}, "email": {"jana@example.com"}, "phone": {"+961 1"}})

	b.post("/apply/next", url.Values{"university": {"USJ"}, "gpa": {"3.6"}})
	_, body = b.post("/apply/next", url.Values{"subjects": {"Physics", "Mathematics"}})
	assertContains(t, body, "Step 4 of 5")

	_, body = b.post("/apply/next", nil)
	assertContains(t, body, "Please upload all required documents")
	b.post("/apply/upload/id", nil)
	b.post("/apply/upload/transcript", nil)
	status, _ := b.post("/apply/upload/passport", nil)
	if status != http.StatusNotFound {
		t.Errorf("unknown document: expected 404, got %d", status)
	}

	_, body = b.post("/apply/next", nil)
	assertContains(t, body, "Step 5 of 5")

	_, body = b.post("/apply/next", nil)
	assertContains(t, body, "Application submitted!", "Continue as student")

	after, err := env.store.ListPendingApplications()
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("expected %d pending applications, got %d", len(before)+1, len(after))
	}
	last := after[len(after)-1]
	if last.Name != "Jana Aoun" || len(last.Subjects) != 2 || last.GPA != 3.6 {
		t.Errorf("stored application = %+v", last)
	}
}

func TestAdminModeration(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	body := b.login("admin")
	assertContains(t, body, "Administration", "Students")

	apps, err := env.store.ListPendingApplications()
	if err != nil || len(apps) == 0 {
		t.Fatalf("expected seeded applications: %v", err)
	}
	_, body = b.get("/?tab=tutors")
	assertContains(t, body, apps[0].Name, "Approve")

	path := "/admin/applications/" + itoa(apps[0].ID) + "/approve"
	_, body = b.post(path, nil)
	assertContains(t, body, "Tutor approved! Welcome email sent.")

	status, _ := b.post(path, nil)
	if status != http.StatusNotFound {
		t.Errorf("deciding twice: expected 404, got %d", status)
	}
	status, _ = b.post("/admin/applications/1/promote", nil)
	if status != http.StatusBadRequest {
		t.Errorf("unknown decision: expected 400, got %d", status)
	}

	flags, err := env.store.ListOpenFlags()
	if err != nil || len(flags) == 0 {
		t.Fatalf("expected seeded flags: %v", err)
	}
	_, body = b.post("/admin/flags/"+itoa(flags[0].ID)+"/ban", nil)
	assertContains(t, body, "Tutor banned from platform.")

	_, body = b.get("/?tab=reports")
	assertContains(t, body, "Popular subjects", "Top earners", "Platform (30%)")
}

func TestTutorDesk(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	body := b.login("tutor")
	assertContains(t, body, "Welcome back, Ahmad Hassan", "$142.30", "Sarah K.")

	reqs, err := env.store.ListOpenRequests()
	if err != nil || len(reqs) < 2 {
		t.Fatalf("expected seeded requests: %v", err)
	}

	_, body = b.post("/tutor/online", nil)
	assertContains(t, body, "Go online to see incoming requests.")
	_, body = b.post("/tutor/requests/"+itoa(reqs[0].ID)+"/accept", nil)
	assertContains(t, body, "Go online to accept requests")

	b.post("/tutor/online", nil)
	_, body = b.post("/tutor/requests/"+itoa(reqs[0].ID)+"/accept", nil)
	assertContains(t, body, "Session accepted! Starting video call...")
	_, body = b.post("/tutor/requests/"+itoa(reqs[1].ID)+"/decline", nil)
	assertContains(t, body, "Request declined")

	open, err := env.store.ListOpenRequests()
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != len(reqs)-2 {
		t.Errorf("expected %d open requests, got %d", len(reqs)-2, len(open))
	}

	_, body = b.post("/tutor/payout", nil)
	assertContains(t, body, "Payout of $142.30 requested", "$0.00")

	_, body = b.post("/tutor/payout", nil)
	assertContains(t, body, "The minimum payout is $50.00")
}

func TestDeskUsesRequestActor(t *testing.T) {
	env := newTestEnv(t)
	v := env.visitors.Create()
	if err := v.Nav.Login(model.RoleTutor); err != nil {
		t.Fatalf("Login: %v", err)
	}
	tutor := v.Nav.Actor()
	// The visitor logs out in another tab after the guard let this request in.
	v.Nav.Logout()

	tests := []struct {
		name   string
		handle http.HandlerFunc
	}{
		{"toggle online", env.handler.handleToggleOnline},
		{"payout", env.handler.handlePayout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			ctx := model.ContextWithActor(withVisitor(req.Context(), v), tutor)
			rec := httptest.NewRecorder()
			tt.handle(rec, req.WithContext(ctx))
			if rec.Code != http.StatusSeeOther {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
			}
		})
	}
}

func TestRoleGuardReadsRequestActor(t *testing.T) {
	env := newTestEnv(t)
	v := env.visitors.Create()
	if err := v.Nav.Login(model.RoleTutor); err != nil {
		t.Fatalf("Login: %v", err)
	}

	called := false
	guard := requireRole(model.RoleTutor)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	// The request started while the visitor was still a guest.
	req := httptest.NewRequest(http.MethodPost, "/tutor/payout", nil)
	rec := httptest.NewRecorder()
	guard.ServeHTTP(rec, req.WithContext(withVisitor(req.Context(), v)))
	if called {
		t.Error("guard let a guest request through")
	}
	if rec.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

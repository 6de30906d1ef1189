package navigator

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentatutor/rentatutor/internal/live"
	"github.com/rentatutor/rentatutor/internal/market"
	"github.com/rentatutor/rentatutor/internal/model"
)

type stubActors map[model.Role]*model.Actor

func (s stubActors) ActorByRole(role model.Role) (*model.Actor, error) {
	a, ok := s[role]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

// idleScheduler never fires; it only records whether timers are stopped.
type idleScheduler struct {
	mu      sync.Mutex
	running int
}

func (s *idleScheduler) Every(time.Duration, func()) func() {
	s.mu.Lock()
	s.running++
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.running--
			s.mu.Unlock()
		})
	}
}

func (s *idleScheduler) After(time.Duration, func()) func() { return func() {} }

func (s *idleScheduler) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func testActors() stubActors {
	rating := 4.8
	bal := decimal.RequireFromString("25.50")
	return stubActors{
		model.RoleStudent: {ID: "1", Name: "Elias Kallas", Role: model.RoleStudent, Balance: &bal},
		model.RoleTutor:   {ID: "2", Name: "Ahmad Hassan", Role: model.RoleTutor, Rating: &rating},
		model.RoleAdmin:   {ID: "3", Name: "Admin User", Role: model.RoleAdmin},
	}
}

func newTestNavigator(t *testing.T) (*Navigator, *idleScheduler, *[]live.Snapshot) {
	t.Helper()
	sched := &idleScheduler{}
	var closed []live.Snapshot
	n := New(Config{
		Actors:    testActors(),
		Lifecycle: live.Options{Scheduler: sched},
		OnSessionClosed: func(_ model.Actor, _ model.SessionDescriptor, snap live.Snapshot) {
			closed = append(closed, snap)
		},
	})
	t.Cleanup(n.Teardown)
	return n, sched, &closed
}

func testSession() model.SessionDescriptor {
	req, _ := market.NewSessionRequest("Mathematics", 10)
	return market.Match(req)
}

func TestInitialState(t *testing.T) {
	n, _, _ := newTestNavigator(t)
	if n.Actor() != nil || n.Page() != model.PageLanding || n.Session() != nil {
		t.Errorf("initial = (%v, %s, %v), want (nil, landing, nil)", n.Actor(), n.Page(), n.Session())
	}
	if n.Role() != model.RoleGuest {
		t.Errorf("role = %s, want guest", n.Role())
	}
}

func TestLoginShowsDashboard(t *testing.T) {
	tests := []struct {
		role model.Role
		want model.Page
	}{
		{model.RoleStudent, model.PageStudentDashboard},
		{model.RoleTutor, model.PageTutorDashboard},
		{model.RoleAdmin, model.PageAdminDashboard},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			n, _, _ := newTestNavigator(t)
			if err := n.Login(tt.role); err != nil {
				t.Fatalf("Login: %v", err)
			}
			if n.Page() != tt.want {
				t.Errorf("page = %s, want %s", n.Page(), tt.want)
			}
			if a := n.Actor(); a == nil || a.Role != tt.role {
				t.Errorf("actor = %+v", a)
			}
		})
	}

	n, _, _ := newTestNavigator(t)
	for _, role := range []model.Role{model.RoleGuest, model.Role("superuser")} {
		if err := n.Login(role); !errors.Is(err, ErrInvalidRole) {
			t.Errorf("Login(%s) error = %v, want ErrInvalidRole", role, err)
		}
	}
}

func TestNavigateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		role    model.Role
		page    model.Page
		wantErr error
	}{
		{"guest to application", model.RoleGuest, model.PageTutorApplication, nil},
		{"guest to booking", model.RoleGuest, model.PageBooking, ErrPageNotAllowed},
		{"student to booking", model.RoleStudent, model.PageBooking, nil},
		{"student to forum", model.RoleStudent, model.PageForum, nil},
		{"student to admin", model.RoleStudent, model.PageAdminDashboard, ErrPageNotAllowed},
		{"student to live page", model.RoleStudent, model.PageInstantSession, ErrPageNotAllowed},
		{"tutor to forum", model.RoleTutor, model.PageForum, nil},
		{"tutor to booking", model.RoleTutor, model.PageBooking, ErrPageNotAllowed},
		{"admin to forum", model.RoleAdmin, model.PageForum, ErrPageNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, _, _ := newTestNavigator(t)
			if tt.role != model.RoleGuest {
				if err := n.Login(tt.role); err != nil {
					t.Fatalf("Login: %v", err)
				}
			}
			before := n.Page()
			err := n.Navigate(tt.page)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Navigate error = %v, want %v", err, tt.wantErr)
			}
			want := tt.page
			if tt.wantErr != nil {
				want = before
			}
			if n.Page() != want {
				t.Errorf("page = %s, want %s", n.Page(), want)
			}
		})
	}
}

func TestBack(t *testing.T) {
	n, _, _ := newTestNavigator(t)
	_ = n.Navigate(model.PageTutorApplication)
	if err := n.Back(); err != nil || n.Page() != model.PageLanding {
		t.Errorf("guest Back = %v, page %s", err, n.Page())
	}

	_ = n.Login(model.RoleStudent)
	_ = n.Navigate(model.PageForum)
	if err := n.Back(); err != nil || n.Page() != model.PageStudentDashboard {
		t.Errorf("student Back = %v, page %s", err, n.Page())
	}
}

func TestSessionRatedReturnsToDashboard(t *testing.T) {
	n, sched, closed := newTestNavigator(t)
	_ = n.Login(model.RoleStudent)

	sess, err := n.StartSession(testSession())
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if n.Page() != model.PageInstantSession || n.Session() != sess {
		t.Fatalf("page = %s, session = %v", n.Page(), n.Session())
	}

	if err := sess.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if n.Page() != model.PageInstantSession {
		t.Error("rating prompt should stay on the session page")
	}
	if err := sess.SubmitRating(4, ""); err != nil {
		t.Fatalf("SubmitRating: %v", err)
	}

	if n.Page() != model.PageStudentDashboard || n.Session() != nil {
		t.Errorf("after rating: page = %s, session = %v", n.Page(), n.Session())
	}
	if len(*closed) != 1 || (*closed)[0].Rating.Stars != 4 {
		t.Errorf("closed callbacks = %+v", *closed)
	}
	if sched.active() != 0 {
		t.Errorf("running tickers = %d, want 0", sched.active())
	}
}

func TestLeavingSessionTearsItDown(t *testing.T) {
	t.Run("end session", func(t *testing.T) {
		n, sched, _ := newTestNavigator(t)
		_ = n.Login(model.RoleStudent)
		sess, _ := n.StartSession(testSession())

		n.EndSession()
		if n.Page() != model.PageStudentDashboard || n.Session() != nil {
			t.Errorf("page = %s, session = %v", n.Page(), n.Session())
		}
		if sched.active() != 0 {
			t.Error("ticker still running")
		}
		if err := sess.SendMessage("hello?"); !errors.Is(err, live.ErrNotConnected) {
			t.Errorf("SendMessage after teardown error = %v", err)
		}
	})

	t.Run("navigate away", func(t *testing.T) {
		n, sched, _ := newTestNavigator(t)
		_ = n.Login(model.RoleStudent)
		_, _ = n.StartSession(testSession())

		if err := n.Navigate(model.PageForum); err != nil {
			t.Fatalf("Navigate: %v", err)
		}
		if n.Session() != nil || sched.active() != 0 {
			t.Error("session should be torn down after navigating away")
		}
	})

	t.Run("logout", func(t *testing.T) {
		n, sched, closed := newTestNavigator(t)
		_ = n.Login(model.RoleStudent)
		sess, _ := n.StartSession(testSession())

		n.Logout()
		if n.Actor() != nil || n.Page() != model.PageLanding || n.Session() != nil {
			t.Errorf("after logout = (%v, %s, %v)", n.Actor(), n.Page(), n.Session())
		}
		if sched.active() != 0 {
			t.Error("ticker still running after logout")
		}
		if err := sess.End(); !errors.Is(err, live.ErrNotConnected) {
			t.Errorf("End after logout error = %v", err)
		}
		if len(*closed) != 0 {
			t.Error("torn-down session must not be recorded as closed")
		}
	})
}

func TestOnlyStudentsStartSessions(t *testing.T) {
	n, _, _ := newTestNavigator(t)
	if _, err := n.StartSession(testSession()); !errors.Is(err, ErrNotStudent) {
		t.Errorf("guest StartSession error = %v", err)
	}
	_ = n.Login(model.RoleTutor)
	if _, err := n.StartSession(testSession()); !errors.Is(err, ErrNotStudent) {
		t.Errorf("tutor StartSession error = %v", err)
	}
}

func TestStaleSessionCloseIgnored(t *testing.T) {
	n, _, closed := newTestNavigator(t)
	_ = n.Login(model.RoleStudent)
	first, _ := n.StartSession(testSession())
	_ = first.End()

	second, _ := n.StartSession(testSession())
	// first was torn down by the second start, so rating it is refused.
	if err := first.SubmitRating(5, ""); !errors.Is(err, live.ErrNotAwaitingRating) {
		t.Errorf("rating stale session error = %v", err)
	}
	if n.Session() != second || n.Page() != model.PageInstantSession {
		t.Error("stale session should not affect the current one")
	}
	if len(*closed) != 0 {
		t.Errorf("closed = %d, want 0", len(*closed))
	}
}

package navigator

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/rentatutor/rentatutor/internal/live"
	"github.com/rentatutor/rentatutor/internal/market"
	"github.com/rentatutor/rentatutor/internal/model"
)

func newTestRegistry(t *testing.T) (*Registry, *idleScheduler, *time.Time) {
	t.Helper()
	sched := &idleScheduler{}
	r := NewRegistry(Config{Actors: testActors(), Lifecycle: live.Options{Scheduler: sched}})
	now := time.Date(2024, 11, 25, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	t.Cleanup(r.Shutdown)
	return r, sched, &now
}

func TestRegistryCreateAndGet(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	v := r.Create()
	if v.ID == "" || v.Nav == nil {
		t.Fatalf("visitor = %+v", v)
	}
	got, ok := r.Get(v.ID)
	if !ok || got != v {
		t.Errorf("Get(%s) = %v, %v", v.ID, got, ok)
	}
	if _, ok := r.Get("unknown"); ok {
		t.Error("unknown visitor found")
	}
	if other := r.Create(); other.ID == v.ID {
		t.Error("visitor ids should be unique")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}

func TestRegistrySweepEvictsIdle(t *testing.T) {
	r, sched, now := newTestRegistry(t)

	idle := r.Create()
	_ = idle.Nav.Login(model.RoleStudent)
	if _, err := idle.Nav.StartSession(testSession()); err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	*now = now.Add(20 * time.Minute)
	active := r.Create()

	if n := r.Sweep(15 * time.Minute); n != 1 {
		t.Fatalf("Sweep evicted %d, want 1", n)
	}
	if _, ok := r.Get(idle.ID); ok {
		t.Error("idle visitor still registered")
	}
	if _, ok := r.Get(active.ID); !ok {
		t.Error("active visitor evicted")
	}
	if sched.active() != 0 {
		t.Error("evicted visitor's session still ticking")
	}
}

func TestRegistryRunStopsWithContext(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond, time.Hour)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestVisitorScratchState(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	v := r.Create()

	v.Flash(market.Success(market.NoticeQuestionPosted))
	v.Flash(market.Rejection(market.NoticeFillAllFields))
	notices := v.TakeNotices()
	if len(notices) != 2 || notices[0].ID != market.NoticeQuestionPosted {
		t.Errorf("notices = %+v", notices)
	}
	if len(v.TakeNotices()) != 0 {
		t.Error("notices should be cleared once taken")
	}

	if !v.TutorOnline() {
		t.Error("tutors start online")
	}
	if v.ToggleOnline() {
		t.Error("ToggleOnline should go offline first")
	}

	v.WithWizard(func(w *market.Wizard) bool {
		_, _ = w.Next(market.ApplicationForm{FullName: "Nour", Email: "n@example.com", Phone: "1"})
		return false
	})
	if v.WizardState().Step != market.StepAcademic {
		t.Errorf("wizard step = %d, want %d", v.WizardState().Step, market.StepAcademic)
	}
	v.WithWizard(func(*market.Wizard) bool { return true })
	if v.WizardState().Step != market.StepPersonal {
		t.Error("discarded wizard should restart at the first step")
	}
}

func TestWizardStateIsDetached(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	v := r.Create()

	v.WithWizard(func(w *market.Wizard) bool {
		w.Step = market.StepSubjects
		w.Form.Subjects = []string{"Physics", "Chemistry"}
		return false
	})
	snap := v.WizardState()

	v.WithWizard(func(w *market.Wizard) bool {
		w.Form.Subjects = w.Form.Subjects[:0]
		w.Form.Subjects = append(w.Form.Subjects, "Biology", "History")
		return false
	})
	if want := []string{"Physics", "Chemistry"}; !slices.Equal(snap.Form.Subjects, want) {
		t.Errorf("rendered subjects = %v, want %v", snap.Form.Subjects, want)
	}
	if got := v.WizardState().Form.Subjects; !slices.Equal(got, []string{"Biology", "History"}) {
		t.Errorf("wizard subjects = %v", got)
	}
}

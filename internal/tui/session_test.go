package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/rentatutor/rentatutor/internal/live"
	"github.com/rentatutor/rentatutor/internal/model"
)

type idleScheduler struct{}

func (idleScheduler) Every(time.Duration, func()) func() { return func() {} }
func (idleScheduler) After(time.Duration, func()) func() { return func() {} }

func startSession(t *testing.T, onClosed func(live.Snapshot)) *live.Session {
	t.Helper()
	sess, err := live.Start(model.SessionDescriptor{
		TutorID:         "2",
		TutorName:       "Ahmad Hassan",
		TutorRating:     4.8,
		Subject:         "Biology",
		DurationMinutes: 10,
		Price:           decimal.RequireFromString("1.50"),
	}, live.Options{Scheduler: idleScheduler{}, OnClosed: onClosed})
	if err != nil {
		t.Fatalf("live.Start: %v", err)
	}
	t.Cleanup(sess.Teardown)
	return sess
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(Model)
	}
	return m, cmd
}

func typeText(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestChatAndControls(t *testing.T) {
	sess := startSession(t, nil)
	m := New(sess)

	view := m.View()
	for _, want := range []string{"Biology", "Ahmad Hassan", "10:00", live.Greeting} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q", want)
		}
	}

	m, _ = press(t, m, typeText("what is osmosis"), tea.KeyMsg{Type: tea.KeySpace}, typeText("?!"),
		tea.KeyMsg{Type: tea.KeyBackspace})
	if m.input != "what is osmosis ?" {
		t.Fatalf("input = %q", m.input)
	}
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.input != "" {
		t.Error("input should clear after sending")
	}
	if n := len(m.Snapshot().Messages); n != 2 {
		t.Fatalf("expected 2 messages, got %d", n)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.notice != "" {
		t.Errorf("empty message should be ignored silently, got %q", m.notice)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlK}, tea.KeyMsg{Type: tea.KeyCtrlV})
	if snap := m.Snapshot(); !snap.Muted || !snap.CameraOff {
		t.Errorf("expected muted and camera off, got %+v", snap)
	}
	if !strings.Contains(m.View(), "muted") {
		t.Error("view should show muted")
	}
}

func TestEndAndRate(t *testing.T) {
	var closed []live.Snapshot
	sess := startSession(t, func(s live.Snapshot) { closed = append(closed, s) })
	m := New(sess)

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlE})
	if m.Snapshot().State != live.StateRatingPrompt {
		t.Fatalf("expected rating prompt, got %v", m.Snapshot().State)
	}
	if !strings.Contains(m.View(), "How was your session?") {
		t.Error("view should ask for a rating")
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.notice != live.ErrRatingRequired.Error() {
		t.Errorf("notice = %q, want rating required", m.notice)
	}

	m, _ = press(t, m, typeText("4"), typeText("great"), typeText("5"))
	if m.stars != 4 || m.input != "great5" {
		t.Errorf("stars=%d input=%q", m.stars, m.input)
	}

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.Quit after rating")
	}
	if len(closed) != 1 || closed[0].Rating == nil || closed[0].Rating.Stars != 4 || closed[0].Rating.Feedback != "great5" {
		t.Errorf("OnClosed got %+v", closed)
	}
	if !strings.Contains(m.View(), "★★★★") {
		t.Errorf("final view should show the stars, got %q", m.View())
	}
}

func TestEventsUpdateSnapshot(t *testing.T) {
	sess := startSession(t, nil)
	m := New(sess)

	snap := sess.Snapshot()
	snap.Remaining = "0:42"
	snap.RemainingSeconds = 42
	next, cmd := m.Update(eventMsg(live.Event{Kind: live.EventTick, Snapshot: snap}))
	m = next.(Model)
	if cmd == nil {
		t.Error("expected to keep waiting for events")
	}
	if !strings.Contains(m.View(), "0:42") {
		t.Error("view should show the ticked clock")
	}

	sess.Teardown()
	next, cmd = m.Update(feedClosedMsg{})
	if cmd != nil {
		t.Error("a torn down session that was never rated should not quit by itself")
	}
	_ = next
}

func TestCtrlCQuits(t *testing.T) {
	sess := startSession(t, nil)
	m, cmd := press(t, New(sess), tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.Quit")
	}
	if m.View() != "Session left.\n" {
		t.Errorf("view = %q", m.View())
	}
}

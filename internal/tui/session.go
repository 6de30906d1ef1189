// Package tui plays a live tutoring session in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rentatutor/rentatutor/internal/live"
	"github.com/rentatutor/rentatutor/internal/model"
)

// lowTimeSeconds turns the clock amber.
const lowTimeSeconds = 60

type eventMsg live.Event

type feedClosedMsg struct{}

// Model is the bubbletea model around one live session.
type Model struct {
	sess        *live.Session
	events      <-chan live.Event
	unsubscribe func()

	snap   live.Snapshot
	input  string
	stars  int
	notice string
	done   bool
}

// New subscribes to sess. The caller owns the session and tears it down.
func New(sess *live.Session) Model {
	events, unsubscribe := sess.Subscribe()
	return Model{
		sess:        sess,
		events:      events,
		unsubscribe: unsubscribe,
		snap:        sess.Snapshot(),
	}
}

// Snapshot is the last state the model saw.
func (m Model) Snapshot() live.Snapshot { return m.snap }

func waitForEvent(events <-chan live.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return feedClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		m.snap = msg.Snapshot
		return m, waitForEvent(m.events)

	case feedClosedMsg:
		m.snap = m.sess.Snapshot()
		if m.snap.State == live.StateClosed {
			m.done = true
			return m, tea.Quit
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.unsubscribe()
		m.done = true
		return m, tea.Quit
	}
	m.notice = ""

	switch m.snap.State {
	case live.StateConnected:
		switch msg.Type {
		case tea.KeyEnter:
			err := m.sess.SendMessage(m.input)
			if err != nil && !errors.Is(err, live.ErrEmptyMessage) {
				m.notice = err.Error()
			}
			m.input = ""
		case tea.KeyCtrlE:
			if err := m.sess.End(); err != nil {
				m.notice = err.Error()
			}
		case tea.KeyCtrlK:
			_, _ = m.sess.ToggleMute()
		case tea.KeyCtrlV:
			_, _ = m.sess.ToggleCamera()
		default:
			m.input = edit(m.input, msg)
		}

	case live.StateRatingPrompt:
		switch {
		case msg.Type == tea.KeyEnter:
			if err := m.sess.SubmitRating(m.stars, m.input); err != nil {
				m.notice = err.Error()
				break
			}
			m.snap = m.sess.Snapshot()
			m.done = true
			m.unsubscribe()
			return m, tea.Quit
		case msg.Type == tea.KeyRunes && len(msg.Runes) == 1 && msg.Runes[0] >= '1' && msg.Runes[0] <= '5' && m.input == "":
			m.stars = int(msg.Runes[0] - '0')
		default:
			m.input = edit(m.input, msg)
		}
	}
	m.snap = m.sess.Snapshot()
	return m, nil
}

// edit applies typing and backspace to a line of input.
func edit(line string, msg tea.KeyMsg) string {
	switch msg.Type {
	case tea.KeyRunes:
		return line + string(msg.Runes)
	case tea.KeySpace:
		return line + " "
	case tea.KeyBackspace:
		if r := []rune(line); len(r) > 0 {
			return string(r[:len(r)-1])
		}
	}
	return line
}

func (m Model) View() string {
	if m.done {
		if m.snap.Rating != nil {
			return fmt.Sprintf("Session closed. You rated it %s.\n", starStyle.Render(strings.Repeat("★", m.snap.Rating.Stars)))
		}
		return "Session left.\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s · %s ★ %s", m.snap.Subject, m.snap.TutorName, model.FormatRating(m.snap.TutorRating))))
	b.WriteString("\n")

	clock := clockStyle
	if m.snap.RemainingSeconds <= lowTimeSeconds {
		clock = lowClock
	}
	status := fmt.Sprintf("%s left of %d min · %s", clock.Render(m.snap.Remaining), m.snap.DurationMinutes, m.snap.Price)
	if m.snap.Muted {
		status += " · muted"
	}
	if m.snap.CameraOff {
		status += " · camera off"
	}
	b.WriteString(mutedStyle.Render(status))
	b.WriteString("\n")

	var chat strings.Builder
	for i, msg := range m.snap.Messages {
		if i > 0 {
			chat.WriteString("\n")
		}
		who := tutorStyle.Render(m.snap.TutorName)
		if msg.Sender == model.SenderStudent {
			who = studentStyle.Render("You")
		}
		fmt.Fprintf(&chat, "%s %s %s", mutedStyle.Render(msg.Time), who, msg.Text)
	}
	b.WriteString(paneStyle.Render(chat.String()))
	b.WriteString("\n")

	switch m.snap.State {
	case live.StateConnected:
		b.WriteString("> " + m.input + "\n")
		b.WriteString(mutedStyle.Render("enter send · ctrl+e end · ctrl+k mute · ctrl+v camera · ctrl+c quit"))
	case live.StateRatingPrompt:
		b.WriteString("How was your session? ")
		b.WriteString(starStyle.Render(strings.Repeat("★", m.stars)) + mutedStyle.Render(strings.Repeat("☆", 5-m.stars)))
		b.WriteString("\nFeedback: " + m.input + "\n")
		b.WriteString(mutedStyle.Render("1-5 stars · type feedback · enter submit · ctrl+c quit"))
	}
	if m.notice != "" {
		b.WriteString("\n" + errorStyle.Render(m.notice))
	}
	b.WriteString("\n")
	return b.String()
}

// Run shows the session until it is rated or the user quits, and returns
// the last snapshot.
func Run(ctx context.Context, sess *live.Session, opts ...tea.ProgramOption) (live.Snapshot, error) {
	m := New(sess)
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		m.unsubscribe()
		return sess.Snapshot(), fmt.Errorf("run session UI: %w", err)
	}
	if fm, ok := final.(Model); ok {
		return fm.snap, nil
	}
	return sess.Snapshot(), nil
}

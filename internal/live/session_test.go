package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rentatutor/rentatutor/internal/model"
)

type manualTicker struct {
	d       time.Duration
	f       func()
	stopped bool
}

type manualTimer struct {
	d         time.Duration
	f         func()
	cancelled bool
	fired     bool
}

// manualScheduler fires ticks and timers only when the test asks it to.
type manualScheduler struct {
	mu      sync.Mutex
	tickers []*manualTicker
	timers  []*manualTimer
}

func (m *manualScheduler) Every(d time.Duration, f func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{d: d, f: f}
	m.tickers = append(m.tickers, t)
	return func() {
		m.mu.Lock()
		t.stopped = true
		m.mu.Unlock()
	}
}

func (m *manualScheduler) After(d time.Duration, f func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{d: d, f: f}
	m.timers = append(m.timers, t)
	return func() {
		m.mu.Lock()
		t.cancelled = true
		m.mu.Unlock()
	}
}

func (m *manualScheduler) tick(n int) {
	for i := 0; i < n; i++ {
		m.mu.Lock()
		var due []func()
		for _, t := range m.tickers {
			if !t.stopped {
				due = append(due, t.f)
			}
		}
		m.mu.Unlock()
		for _, f := range due {
			f()
		}
	}
}

func (m *manualScheduler) activeTickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// fireTimers runs every armed, uncancelled timer once.
func (m *manualScheduler) fireTimers() int {
	m.mu.Lock()
	var due []func()
	for _, t := range m.timers {
		if !t.cancelled && !t.fired {
			t.fired = true
			due = append(due, t.f)
		}
	}
	m.mu.Unlock()
	for _, f := range due {
		f()
	}
	return len(due)
}

func (m *manualScheduler) pendingTimers() []*manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*manualTimer
	for _, t := range m.timers {
		if !t.cancelled && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func testDescriptor(minutes int) model.SessionDescriptor {
	return model.SessionDescriptor{
		TutorID:         "2",
		TutorName:       "Ahmad Hassan",
		TutorRating:     4.8,
		Subject:         "Mathematics",
		DurationMinutes: minutes,
		Price:           decimal.RequireFromString("1.50"),
	}
}

func startTestSession(t *testing.T, minutes int, opts Options) (*Session, *manualScheduler) {
	t.Helper()
	sched := &manualScheduler{}
	opts.Scheduler = sched
	s, err := Start(testDescriptor(minutes), opts)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Teardown)
	return s, sched
}

func TestStartInitialState(t *testing.T) {
	s, sched := startTestSession(t, 10, Options{})

	snap := s.Snapshot()
	if snap.State != StateConnected {
		t.Errorf("state = %v, want connected", snap.State)
	}
	if snap.RemainingSeconds != 600 || snap.TotalSeconds != 600 {
		t.Errorf("remaining/total = %d/%d, want 600/600", snap.RemainingSeconds, snap.TotalSeconds)
	}
	if snap.Remaining != "10:00" {
		t.Errorf("remaining clock = %q, want 10:00", snap.Remaining)
	}
	if len(snap.Messages) != 1 || snap.Messages[0].Text != Greeting || snap.Messages[0].Time != "0:00" {
		t.Errorf("messages = %+v, want greeting at 0:00", snap.Messages)
	}
	if sched.activeTickers() != 1 {
		t.Errorf("active tickers = %d, want 1", sched.activeTickers())
	}
	if sched.tickers[0].d != TickInterval {
		t.Errorf("tick interval = %v, want %v", sched.tickers[0].d, TickInterval)
	}
}

func TestStartRejectsNonPositiveDuration(t *testing.T) {
	for _, minutes := range []int{0, -5} {
		_, err := Start(testDescriptor(minutes), Options{Scheduler: &manualScheduler{}})
		if !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("Start(%d min) error = %v, want ErrInvalidDuration", minutes, err)
		}
	}
}

func TestCountdownMonotonic(t *testing.T) {
	tests := []struct {
		name  string
		ticks int
		want  int
	}{
		{"no ticks", 0, 600},
		{"one tick", 1, 599},
		{"half way", 300, 300},
		{"one left", 599, 1},
		{"expired", 600, 0},
		{"past expiry", 700, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, sched := startTestSession(t, 10, Options{})
			sched.tick(tt.ticks)
			if got := s.Snapshot().RemainingSeconds; got != tt.want {
				t.Errorf("remaining after %d ticks = %d, want %d", tt.ticks, got, tt.want)
			}
		})
	}
}

func TestExpiryMovesToRatingPrompt(t *testing.T) {
	s, sched := startTestSession(t, 10, Options{})

	sched.tick(600)
	if s.State() != StateRatingPrompt {
		t.Fatalf("state = %v, want rating", s.State())
	}
	if sched.activeTickers() != 0 {
		t.Error("ticker should be stopped after expiry")
	}

	// Direct ticks after expiry must not move anything.
	s.Tick()
	s.Tick()
	if got := s.Snapshot().RemainingSeconds; got != 0 {
		t.Errorf("remaining = %d, want 0", got)
	}

	if err := s.SubmitRating(4, ""); err != nil {
		t.Fatalf("SubmitRating: %v", err)
	}
	if s.State() != StateClosed {
		t.Errorf("state = %v, want closed", s.State())
	}
}

func TestManualEndFreezesCountdown(t *testing.T) {
	s, sched := startTestSession(t, 30, Options{})

	sched.tick(50)
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	snap := s.Snapshot()
	if snap.State != StateRatingPrompt {
		t.Fatalf("state = %v, want rating", snap.State)
	}
	if snap.RemainingSeconds != 1750 {
		t.Errorf("remaining = %d, want 1750", snap.RemainingSeconds)
	}

	sched.tick(10)
	s.Tick()
	if got := s.Snapshot().RemainingSeconds; got != 1750 {
		t.Errorf("remaining after further ticks = %d, want 1750", got)
	}
	if s.State() != StateRatingPrompt {
		t.Errorf("state changed after end: %v", s.State())
	}

	if err := s.End(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("second End error = %v, want ErrNotConnected", err)
	}
}

func TestMessagesKeepOrderAndTimestamps(t *testing.T) {
	s, sched := startTestSession(t, 10, Options{})

	sched.tick(5)
	if err := s.SendMessage("a"); err != nil {
		t.Fatalf("SendMessage(a): %v", err)
	}
	sched.tick(90)
	if err := s.SendMessage("  b  "); err != nil {
		t.Fatalf("SendMessage(b): %v", err)
	}

	msgs := s.Snapshot().Messages
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[1].Text != "a" || msgs[1].Time != "0:05" || msgs[1].Sender != model.SenderStudent {
		t.Errorf("msgs[1] = %+v, want a at 0:05", msgs[1])
	}
	if msgs[2].Text != "b" || msgs[2].Time != "1:35" {
		t.Errorf("msgs[2] = %+v, want b at 1:35", msgs[2])
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	s, sched := startTestSession(t, 10, Options{})

	for _, text := range []string{"", "   ", "\t\n"} {
		if err := s.SendMessage(text); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("SendMessage(%q) error = %v, want ErrEmptyMessage", text, err)
		}
	}
	if n := len(s.Snapshot().Messages); n != 1 {
		t.Errorf("messages = %d, want only the greeting", n)
	}
	if n := len(sched.pendingTimers()); n != 0 {
		t.Errorf("pending replies = %d, want 0", n)
	}
}

func TestReplyScheduling(t *testing.T) {
	s, sched := startTestSession(t, 10, Options{})

	sched.tick(42)
	if err := s.SendMessage("what is a derivative?"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	pending := sched.pendingTimers()
	if len(pending) != 1 {
		t.Fatalf("pending replies = %d, want 1", len(pending))
	}
	if pending[0].d != DefaultReplyDelay {
		t.Errorf("reply delay = %v, want %v", pending[0].d, DefaultReplyDelay)
	}

	// Not observable before the delay fires.
	if n := len(s.Snapshot().Messages); n != 2 {
		t.Fatalf("messages before reply = %d, want 2", n)
	}

	sched.tick(2)
	if fired := sched.fireTimers(); fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	msgs := s.Snapshot().Messages
	if len(msgs) != 3 {
		t.Fatalf("messages after reply = %d, want 3", len(msgs))
	}
	reply := msgs[2]
	if reply.Sender != model.SenderTutor || reply.Text != CannedReply {
		t.Errorf("reply = %+v, want canned tutor reply", reply)
	}
	if reply.Elapsed != 45 || reply.Time != "0:45" {
		t.Errorf("reply stamped %d (%s), want 45 (0:45)", reply.Elapsed, reply.Time)
	}

	// A timer that fires twice must not append twice.
	sched.fireTimers()
	if n := len(s.Snapshot().Messages); n != 3 {
		t.Errorf("messages = %d, want 3", n)
	}
}

func TestPendingRepliesCancelledOnEnd(t *testing.T) {
	s, sched := startTestSession(t, 10, Options{})

	if err := s.SendMessage("hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if n := len(sched.pendingTimers()); n != 0 {
		t.Errorf("pending replies after end = %d, want 0", n)
	}

	// Even a timer that slipped through is ignored.
	sched.mu.Lock()
	f := sched.timers[0].f
	sched.mu.Unlock()
	f()
	if n := len(s.Snapshot().Messages); n != 2 {
		t.Errorf("messages = %d, want 2", n)
	}

	if err := s.SendMessage("too late"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SendMessage after end error = %v, want ErrNotConnected", err)
	}
}

func TestRatingGate(t *testing.T) {
	var closed []Snapshot
	s, _ := startTestSession(t, 10, Options{OnClosed: func(snap Snapshot) { closed = append(closed, snap) }})

	if err := s.SubmitRating(5, ""); !errors.Is(err, ErrNotAwaitingRating) {
		t.Errorf("rating while connected error = %v, want ErrNotAwaitingRating", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	if err := s.SubmitRating(0, ""); !errors.Is(err, ErrRatingRequired) {
		t.Errorf("SubmitRating(0) error = %v, want ErrRatingRequired", err)
	}
	if err := s.SubmitRating(6, ""); !errors.Is(err, ErrInvalidRating) {
		t.Errorf("SubmitRating(6) error = %v, want ErrInvalidRating", err)
	}
	if s.State() != StateRatingPrompt {
		t.Fatalf("state = %v, want rating", s.State())
	}

	if err := s.SubmitRating(3, " clear explanations "); err != nil {
		t.Fatalf("SubmitRating(3): %v", err)
	}
	if err := s.SubmitRating(4, ""); !errors.Is(err, ErrNotAwaitingRating) {
		t.Errorf("second rating error = %v, want ErrNotAwaitingRating", err)
	}

	if len(closed) != 1 {
		t.Fatalf("OnClosed called %d times, want 1", len(closed))
	}
	if closed[0].Rating == nil || closed[0].Rating.Stars != 3 || closed[0].Rating.Feedback != "clear explanations" {
		t.Errorf("closed rating = %+v", closed[0].Rating)
	}
	if closed[0].State != StateClosed {
		t.Errorf("closed snapshot state = %v", closed[0].State)
	}
}

func TestTeardownStopsEverything(t *testing.T) {
	s, sched := startTestSession(t, 10, Options{})

	sched.tick(10)
	if err := s.SendMessage("question"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	s.Teardown()
	s.Teardown()

	if sched.activeTickers() != 0 {
		t.Error("ticker should be stopped after teardown")
	}
	if n := len(sched.pendingTimers()); n != 0 {
		t.Errorf("pending replies = %d, want 0", n)
	}

	s.Tick()
	if got := s.Snapshot().RemainingSeconds; got != 590 {
		t.Errorf("remaining = %d, want 590", got)
	}
	if err := s.End(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("End after teardown error = %v, want ErrNotConnected", err)
	}
}

func TestToggles(t *testing.T) {
	s, _ := startTestSession(t, 10, Options{})

	muted, err := s.ToggleMute()
	if err != nil || !muted {
		t.Errorf("ToggleMute = %v, %v; want true, nil", muted, err)
	}
	off, err := s.ToggleCamera()
	if err != nil || !off {
		t.Errorf("ToggleCamera = %v, %v; want true, nil", off, err)
	}
	muted, _ = s.ToggleMute()
	if muted {
		t.Error("second ToggleMute should unmute")
	}

	_ = s.End()
	if _, err := s.ToggleMute(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("ToggleMute after end error = %v, want ErrNotConnected", err)
	}
}

type fixedResponder struct {
	text string
	err  error
	seen int
}

func (f *fixedResponder) Reply(_ context.Context, _ model.SessionDescriptor, history []model.ChatMessage) (string, error) {
	f.seen = len(history)
	return f.text, f.err
}

func TestResponderUsedAndFallback(t *testing.T) {
	t.Run("custom reply", func(t *testing.T) {
		r := &fixedResponder{text: "Think about the slope of the tangent."}
		s, sched := startTestSession(t, 10, Options{Responder: r})
		_ = s.SendMessage("what is a derivative?")
		sched.fireTimers()

		msgs := s.Snapshot().Messages
		if got := msgs[len(msgs)-1].Text; got != r.text {
			t.Errorf("reply = %q, want %q", got, r.text)
		}
		if r.seen != 2 {
			t.Errorf("responder saw %d messages, want 2", r.seen)
		}
	})

	t.Run("error falls back to canned", func(t *testing.T) {
		r := &fixedResponder{err: errors.New("unreachable")}
		s, sched := startTestSession(t, 10, Options{Responder: r})
		_ = s.SendMessage("hi")
		sched.fireTimers()

		msgs := s.Snapshot().Messages
		if got := msgs[len(msgs)-1].Text; got != CannedReply {
			t.Errorf("reply = %q, want %q", got, CannedReply)
		}
	})
}

func TestSubscribe(t *testing.T) {
	s, sched := startTestSession(t, 10, Options{})

	events, unsubscribe := s.Subscribe()
	defer unsubscribe()

	sched.tick(1)
	ev := <-events
	if ev.Kind != EventTick || ev.Snapshot.RemainingSeconds != 599 {
		t.Errorf("event = %s/%d, want tick/599", ev.Kind, ev.Snapshot.RemainingSeconds)
	}

	_ = s.End()
	ev = <-events
	if ev.Kind != EventState || ev.Snapshot.State != StateRatingPrompt {
		t.Errorf("event = %s/%v, want state/rating", ev.Kind, ev.Snapshot.State)
	}

	_ = s.SubmitRating(5, "")
	ev = <-events
	if ev.Snapshot.State != StateClosed {
		t.Errorf("final event state = %v, want closed", ev.Snapshot.State)
	}
	if _, ok := <-events; ok {
		t.Error("channel should be closed after the session closes")
	}

	late, _ := s.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribing to a closed session should yield a closed channel")
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{59, "0:59"},
		{60, "1:00"},
		{95, "1:35"},
		{600, "10:00"},
		{3661, "61:01"},
		{-3, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.seconds); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestClockSchedulerStops(t *testing.T) {
	var mu sync.Mutex
	count := 0
	stop := ClockScheduler{}.Every(5*time.Millisecond, func() {
		mu.Lock()
		count++
		mu.Unlock()
	})
	time.Sleep(30 * time.Millisecond)
	stop()
	stop()
	mu.Lock()
	after := count
	mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	// One callback may already have been running when stop returned.
	if count > after+1 {
		t.Errorf("ticks continued after stop: %d -> %d", after, count)
	}

	fired := make(chan struct{}, 1)
	cancel := ClockScheduler{}.After(time.Hour, func() { fired <- struct{}{} })
	cancel()
	select {
	case <-fired:
		t.Error("cancelled timer fired")
	default:
	}
}

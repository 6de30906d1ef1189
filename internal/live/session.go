package live

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rentatutor/rentatutor/internal/model"
)

// TickInterval is the countdown resolution.
const TickInterval = time.Second

// DefaultReplyDelay is how long the counterpart takes to answer a message.
const DefaultReplyDelay = 2 * time.Second

// The reply is stamped a little later than the message it answers.
const replyStampOffset = 3

const subscriberBuffer = 16

// State is a phase of the live-session lifecycle.
type State int

const (
	StateConnected State = iota
	StateRatingPrompt
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateRatingPrompt:
		return "rating"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Options configures a session. Zero values pick the production defaults.
type Options struct {
	Scheduler  Scheduler
	Responder  Responder
	ReplyDelay time.Duration
	// OnClosed runs once, outside the session lock, after a rating is accepted.
	OnClosed func(Snapshot)
	Logger   *slog.Logger
}

// Session is one instant-help session from connection to rating.
type Session struct {
	id         string
	desc       model.SessionDescriptor
	total      int
	sched      Scheduler
	responder  Responder
	replyDelay time.Duration
	onClosed   func(Snapshot)
	log        *slog.Logger
	ctx        context.Context
	cancel     context.CancelFunc

	mu         sync.Mutex
	state      State
	remaining  int
	messages   []model.ChatMessage
	rating     *model.Rating
	muted      bool
	cameraOff  bool
	torndown   bool
	stopTicker func()
	stopOnce   sync.Once
	pending    map[int]func()
	nextReply  int
	subs       map[chan Event]struct{}
}

// Start connects a new session and starts its countdown.
func Start(desc model.SessionDescriptor, opts Options) (*Session, error) {
	if desc.DurationMinutes <= 0 {
		return nil, ErrInvalidDuration
	}
	if opts.Scheduler == nil {
		opts.Scheduler = ClockScheduler{}
	}
	if opts.Responder == nil {
		opts.Responder = CannedResponder{}
	}
	if opts.ReplyDelay <= 0 {
		opts.ReplyDelay = DefaultReplyDelay
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	s := &Session{
		id:         id,
		desc:       desc,
		total:      desc.DurationMinutes * 60,
		sched:      opts.Scheduler,
		responder:  opts.Responder,
		replyDelay: opts.ReplyDelay,
		onClosed:   opts.OnClosed,
		log:        opts.Logger.With("session_id", id),
		ctx:        ctx,
		cancel:     cancel,
		state:      StateConnected,
		pending:    make(map[int]func()),
		subs:       make(map[chan Event]struct{}),
	}
	s.remaining = s.total
	s.messages = []model.ChatMessage{{
		Sender: model.SenderTutor,
		Text:   Greeting,
		Time:   FormatClock(0),
	}}

	s.mu.Lock()
	s.stopTicker = s.sched.Every(TickInterval, s.Tick)
	s.mu.Unlock()

	s.log.Info("live session started",
		"tutor", desc.TutorName,
		"subject", desc.Subject,
		"duration_minutes", desc.DurationMinutes,
	)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Descriptor returns what the session was started with.
func (s *Session) Descriptor() model.SessionDescriptor { return s.desc }

// State returns the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Tick advances the countdown by one second. It does nothing outside
// StateConnected or after teardown.
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.torndown {
		return
	}
	s.remaining--
	if s.remaining <= 0 {
		s.remaining = 0
		s.stopTimersLocked()
		s.state = StateRatingPrompt
		s.log.Info("live session time expired")
		s.publishLocked(EventState)
		return
	}
	s.publishLocked(EventTick)
}

// SendMessage appends a student message and schedules one counterpart reply.
func (s *Session) SendMessage(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.torndown {
		return ErrNotConnected
	}

	elapsed := s.elapsedLocked()
	s.messages = append(s.messages, model.ChatMessage{
		Sender:  model.SenderStudent,
		Text:    text,
		Elapsed: elapsed,
		Time:    FormatClock(elapsed),
	})
	s.publishLocked(EventMessage)

	id := s.nextReply
	s.nextReply++
	stamp := elapsed + replyStampOffset
	s.pending[id] = s.sched.After(s.replyDelay, func() { s.deliverReply(id, stamp) })
	return nil
}

func (s *Session) deliverReply(id, stamp int) {
	s.mu.Lock()
	if _, ok := s.pending[id]; !ok || s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	history := append([]model.ChatMessage(nil), s.messages...)
	ctx := s.ctx
	s.mu.Unlock()

	text, err := s.responder.Reply(ctx, s.desc, history)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			s.log.Warn("counterpart reply failed, using canned reply", "error", err)
		}
		text = CannedReply
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; !ok || s.state != StateConnected {
		return
	}
	delete(s.pending, id)
	s.messages = append(s.messages, model.ChatMessage{
		Sender:  model.SenderTutor,
		Text:    text,
		Elapsed: stamp,
		Time:    FormatClock(stamp),
	})
	s.publishLocked(EventMessage)
}

// End finishes a connected session early and asks for a rating.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.torndown {
		return ErrNotConnected
	}
	s.stopTimersLocked()
	s.state = StateRatingPrompt
	s.log.Info("live session ended by student", "remaining", s.remaining)
	s.publishLocked(EventState)
	return nil
}

// SubmitRating closes the session with the given stars (1-5).
func (s *Session) SubmitRating(stars int, feedback string) error {
	s.mu.Lock()
	if s.state != StateRatingPrompt || s.torndown {
		s.mu.Unlock()
		return ErrNotAwaitingRating
	}
	if stars == 0 {
		s.mu.Unlock()
		return ErrRatingRequired
	}
	if stars < 1 || stars > 5 {
		s.mu.Unlock()
		return ErrInvalidRating
	}
	s.rating = &model.Rating{Stars: stars, Feedback: strings.TrimSpace(feedback)}
	s.state = StateClosed
	s.cancel()
	s.publishLocked(EventState)
	s.closeSubscribersLocked()
	snap := s.snapshotLocked()
	onClosed := s.onClosed
	s.mu.Unlock()

	s.log.Info("live session rated", "stars", stars)
	if onClosed != nil {
		onClosed(snap)
	}
	return nil
}

// ToggleMute flips the microphone flag and returns the new value.
func (s *Session) ToggleMute() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.torndown {
		return s.muted, ErrNotConnected
	}
	s.muted = !s.muted
	s.publishLocked(EventState)
	return s.muted, nil
}

// ToggleCamera flips the camera flag and returns true when the camera is off.
func (s *Session) ToggleCamera() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.torndown {
		return s.cameraOff, ErrNotConnected
	}
	s.cameraOff = !s.cameraOff
	s.publishLocked(EventState)
	return s.cameraOff, nil
}

// Teardown stops every timer. State is frozen afterwards; it is safe to
// call more than once.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.torndown {
		return
	}
	s.torndown = true
	s.stopTimersLocked()
	s.closeSubscribersLocked()
	s.log.Debug("live session torn down", "state", s.state.String())
}

// Subscribe returns a channel of lifecycle events and a function that
// unsubscribes. The channel is closed when the session closes or is torn
// down. Events are dropped for subscribers that fall behind.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.torndown || s.state == StateClosed {
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
}

func (s *Session) elapsedLocked() int {
	return s.total - s.remaining
}

// stopTimersLocked stops the ticker and cancels pending replies.
func (s *Session) stopTimersLocked() {
	s.stopOnce.Do(func() {
		if s.stopTicker != nil {
			s.stopTicker()
		}
	})
	for id, cancel := range s.pending {
		if cancel != nil {
			cancel()
		}
		delete(s.pending, id)
	}
	s.cancel()
}

func (s *Session) publishLocked(kind EventKind) {
	if len(s.subs) == 0 {
		return
	}
	ev := Event{Kind: kind, Snapshot: s.snapshotLocked()}
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Session) closeSubscribersLocked() {
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}

package live

import (
	"fmt"

	"github.com/rentatutor/rentatutor/internal/model"
)

// EventKind tells subscribers what changed.
type EventKind string

const (
	EventTick    EventKind = "tick"
	EventMessage EventKind = "message"
	EventState   EventKind = "state"
)

// Event is pushed to subscribers on every lifecycle change.
type Event struct {
	Kind     EventKind `json:"kind"`
	Snapshot Snapshot  `json:"snapshot"`
}

// Snapshot is a copy of a session's state, safe to hand to renderers.
type Snapshot struct {
	ID               string              `json:"id"`
	State            State               `json:"state"`
	TutorName        string              `json:"tutor_name"`
	TutorRating      float64             `json:"tutor_rating"`
	Subject          string              `json:"subject"`
	DurationMinutes  int                 `json:"duration_minutes"`
	Price            string              `json:"price"`
	TotalSeconds     int                 `json:"total_seconds"`
	RemainingSeconds int                 `json:"remaining_seconds"`
	ElapsedSeconds   int                 `json:"elapsed_seconds"`
	Remaining        string              `json:"remaining"`
	Elapsed          string              `json:"elapsed"`
	Messages         []model.ChatMessage `json:"messages"`
	Rating           *model.Rating       `json:"rating,omitempty"`
	Muted            bool                `json:"muted"`
	CameraOff        bool                `json:"camera_off"`
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	elapsed := s.elapsedLocked()
	snap := Snapshot{
		ID:               s.id,
		State:            s.state,
		TutorName:        s.desc.TutorName,
		TutorRating:      s.desc.TutorRating,
		Subject:          s.desc.Subject,
		DurationMinutes:  s.desc.DurationMinutes,
		Price:            model.Money(s.desc.Price),
		TotalSeconds:     s.total,
		RemainingSeconds: s.remaining,
		ElapsedSeconds:   elapsed,
		Remaining:        FormatClock(s.remaining),
		Elapsed:          FormatClock(elapsed),
		Messages:         append([]model.ChatMessage(nil), s.messages...),
		Muted:            s.muted,
		CameraOff:        s.cameraOff,
	}
	if s.rating != nil {
		r := *s.rating
		snap.Rating = &r
	}
	return snap
}

// FormatClock renders seconds as M:SS with unpadded minutes.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

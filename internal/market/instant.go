package market

import (
	"slices"
	"strings"

	"github.com/rentatutor/rentatutor/internal/model"
)

// The instructor every instant request is matched with.
const (
	matchedTutorID     = "2"
	matchedTutorName   = "Ahmad Hassan"
	matchedTutorRating = 4.8
)

// NewSessionRequest validates a student's instant-help form.
func NewSessionRequest(subject string, minutes int) (model.SessionRequest, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" || !slices.Contains(model.Subjects, subject) {
		return model.SessionRequest{}, invalid(NoticeSelectSubject, nil)
	}
	tier, ok := model.TierFor(minutes)
	if !ok {
		return model.SessionRequest{}, invalid(NoticeInvalidDuration, nil)
	}
	return model.SessionRequest{
		Subject:         subject,
		DurationMinutes: tier.Minutes,
		Price:           tier.Price,
	}, nil
}

// Match pairs a request with an instructor.
func Match(req model.SessionRequest) model.SessionDescriptor {
	return model.SessionDescriptor{
		TutorID:         matchedTutorID,
		TutorName:       matchedTutorName,
		TutorRating:     matchedTutorRating,
		Subject:         req.Subject,
		DurationMinutes: req.DurationMinutes,
		Price:           req.Price,
	}
}

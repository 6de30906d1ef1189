package live

import (
	"context"

	"github.com/rentatutor/rentatutor/internal/model"
)

const (
	// Greeting is the counterpart's opening line, stamped 0:00.
	Greeting = "Hi! How can I help you today?"
	// CannedReply is what the simulated counterpart answers to every message.
	CannedReply = "Let me explain that concept..."
)

// Responder produces the counterpart's reply to the latest student message.
type Responder interface {
	Reply(ctx context.Context, desc model.SessionDescriptor, history []model.ChatMessage) (string, error)
}

// CannedResponder always answers with the same text.
type CannedResponder struct {
	Text string
}

// Reply returns the canned text, or CannedReply when Text is empty.
func (c CannedResponder) Reply(context.Context, model.SessionDescriptor, []model.ChatMessage) (string, error) {
	if c.Text == "" {
		return CannedReply, nil
	}
	return c.Text, nil
}

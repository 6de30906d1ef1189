package market

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rentatutor/rentatutor/internal/model"
)

// MinimumPayout is the smallest balance a tutor can withdraw.
var MinimumPayout = decimal.NewFromInt(50)

// MinimumTutorRating is the average a tutor must keep to stay listed.
const MinimumTutorRating = 4.5

// RequestDecision is a tutor's answer to an incoming instant request.
type RequestDecision string

const (
	RequestAccept  RequestDecision = "accept"
	RequestDecline RequestDecision = "decline"
)

// ParseRequestDecision validates a decision path segment.
func ParseRequestDecision(s string) (RequestDecision, error) {
	switch d := RequestDecision(s); d {
	case RequestAccept, RequestDecline:
		return d, nil
	}
	return "", fmt.Errorf("unknown request decision %q", s)
}

// AnswerRequest checks a tutor can act on a request. Offline tutors see no
// requests, so they cannot accept one either.
func AnswerRequest(online bool, d RequestDecision) (model.Notice, error) {
	if !online {
		return model.Notice{}, invalid(NoticeGoOnline, nil)
	}
	if d == RequestAccept {
		return success(NoticeSessionAccepted, nil), nil
	}
	return success(NoticeRequestDeclined, nil), nil
}

// RequestPayout checks the balance covers the minimum payout.
func RequestPayout(balance decimal.Decimal) (model.Notice, error) {
	if balance.LessThan(MinimumPayout) {
		return model.Notice{}, invalid(NoticePayoutMinimum, map[string]any{
			"Minimum": MinimumPayout.StringFixed(2),
		})
	}
	return success(NoticePayoutRequested, map[string]any{
		"Amount": balance.StringFixed(2),
	}), nil
}

// TotalEarned sums what a tutor earned over the given sessions.
func TotalEarned(sessions []model.SessionRecord) decimal.Decimal {
	total := decimal.Zero
	for _, s := range sessions {
		total = total.Add(s.Amount)
	}
	return total
}

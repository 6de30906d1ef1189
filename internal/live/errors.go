package live

import "errors"

var (
	ErrInvalidDuration   = errors.New("session duration must be positive")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrNotConnected      = errors.New("session is not connected")
	ErrRatingRequired    = errors.New("please select a rating")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5 stars")
	ErrNotAwaitingRating = errors.New("session is not awaiting a rating")
)

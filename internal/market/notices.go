// Package market holds the rules behind every marketplace screen: instant
// requests, bookings, the forum, the tutor application wizard, moderation
// and the tutor desk. Rejections come back as *ValidationError values that
// carry the notice to show the user.
package market

import (
	"errors"

	"github.com/rentatutor/rentatutor/internal/model"
)

// Notice IDs. Each one is a key in the i18n locale files.
const (
	NoticeSelectSubject        = "NoticeSelectSubject"
	NoticeInvalidDuration      = "NoticeInvalidDuration"
	NoticeSelectRating         = "NoticeSelectRating"
	NoticeInvalidRating        = "NoticeInvalidRating"
	NoticeRatingThanks         = "NoticeRatingThanks"
	NoticeSessionNotActive     = "NoticeSessionNotActive"
	NoticeSelectDateTime       = "NoticeSelectDateTime"
	NoticeInvalidBookingLength = "NoticeInvalidBookingLength"
	NoticeUnknownTutor         = "NoticeUnknownTutor"
	NoticeBookingConfirmed     = "NoticeBookingConfirmed"
	NoticeFillAllFields        = "NoticeFillAllFields"
	NoticeHomeworkRejected     = "NoticeHomeworkRejected"
	NoticeQuestionPosted       = "NoticeQuestionPosted"
	NoticeAnswerEmpty          = "NoticeAnswerEmpty"
	NoticeAnswerPosted         = "NoticeAnswerPosted"
	NoticeTutorsOnly           = "NoticeTutorsOnly"
	NoticeInvalidGPA           = "NoticeInvalidGPA"
	NoticeMinimumGPA           = "NoticeMinimumGPA"
	NoticeSelectOneSubject     = "NoticeSelectOneSubject"
	NoticeUploadDocuments      = "NoticeUploadDocuments"
	NoticeApplicationSubmitted = "NoticeApplicationSubmitted"
	NoticeTutorApproved        = "NoticeTutorApproved"
	NoticeTutorRejected        = "NoticeTutorRejected"
	NoticeFlagDismissed        = "NoticeFlagDismissed"
	NoticeTutorWarned          = "NoticeTutorWarned"
	NoticeTutorBanned          = "NoticeTutorBanned"
	NoticeGoOnline             = "NoticeGoOnline"
	NoticeSessionAccepted      = "NoticeSessionAccepted"
	NoticeRequestDeclined      = "NoticeRequestDeclined"
	NoticePayoutMinimum        = "NoticePayoutMinimum"
	NoticePayoutRequested      = "NoticePayoutRequested"
	NoticePageNotAllowed       = "NoticePageNotAllowed"
)

// ValidationError is a user action that was refused.
type ValidationError struct {
	Notice model.Notice
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Notice.ID
}

func invalid(id string, data map[string]any) error {
	return &ValidationError{Notice: model.Notice{Level: model.NoticeError, ID: id, Data: data}}
}

func success(id string, data map[string]any) model.Notice {
	return model.Notice{Level: model.NoticeSuccess, ID: id, Data: data}
}

// Success builds a confirmation notice.
func Success(id string) model.Notice {
	return success(id, nil)
}

// Rejection builds an error notice.
func Rejection(id string) model.Notice {
	return model.Notice{Level: model.NoticeError, ID: id}
}

// NoticeOf extracts the notice from a validation error.
func NoticeOf(err error) (model.Notice, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Notice, true
	}
	return model.Notice{}, false
}

package handler

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rentatutor/rentatutor/internal/market"
	"github.com/rentatutor/rentatutor/internal/model"
)

func (h *Handler) handleBooking(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	tutorID, err := strconv.ParseInt(r.FormValue("tutor_id"), 10, 64)
	if err != nil {
		h.done(w, r, market.Rejection(market.NoticeUnknownTutor))
		return
	}
	tutor, err := h.store.GetTutor(tutorID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if tutor == nil {
		h.done(w, r, market.Rejection(market.NoticeUnknownTutor))
		return
	}

	minutes, _ := strconv.Atoi(r.FormValue("duration"))
	booking, notice, err := market.NewBooking(model.ActorFromContext(r.Context()).ID, *tutor, market.BookingForm{
		TutorID:         tutorID,
		Date:            r.FormValue("date"),
		Time:            r.FormValue("time"),
		DurationMinutes: minutes,
	}, h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.store.CreateBooking(booking); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := v.Nav.Back(); err != nil {
		h.fail(w, r, err)
		return
	}
	h.done(w, r, notice)
}

func (h *Handler) handlePostQuestion(w http.ResponseWriter, r *http.Request) {
	form := market.QuestionForm{
		Title:   strings.TrimSpace(r.FormValue("title")),
		Content: strings.TrimSpace(r.FormValue("content")),
		Subject: strings.TrimSpace(r.FormValue("subject")),
	}
	notice, err := market.ValidateQuestion(form)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	actor := model.ActorFromContext(r.Context())
	if _, err := h.store.InsertQuestion(model.Question{
		Author:   actor.Name,
		AuthorID: actor.ID,
		Title:    form.Title,
		Content:  form.Content,
		Subject:  form.Subject,
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	h.done(w, r, notice)
}

func (h *Handler) handlePostAnswer(w http.ResponseWriter, r *http.Request) {
	questionID, err := idParam(r, "questionID")
	if err != nil {
		http.Error(w, "invalid question ID", http.StatusBadRequest)
		return
	}
	actor := model.ActorFromContext(r.Context())
	content := strings.TrimSpace(r.FormValue("content"))
	notice, err := market.ValidateAnswer(actor, content)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_, err = h.store.InsertAnswer(model.Answer{
		QuestionID: questionID,
		Author:     actor.Name,
		Role:       actor.Role,
		Content:    content,
	})
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "question not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	visitorFrom(r.Context()).Flash(notice)
	http.Redirect(w, r, h.path(fmt.Sprintf("/?question=%d", questionID)), http.StatusSeeOther)
}

func (h *Handler) handleUpvote(w http.ResponseWriter, r *http.Request) {
	questionID, err := idParam(r, "questionID")
	if err != nil {
		http.Error(w, "invalid question ID", http.StatusBadRequest)
		return
	}
	if err := h.store.Upvote(questionID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirectHome(w, r)
}

// applicationForm reads whichever step's fields were posted.
func applicationForm(r *http.Request) market.ApplicationForm {
	return market.ApplicationForm{
		FullName:   r.FormValue("full_name"),
		Email:      r.FormValue("email"),
		Phone:      r.FormValue("phone"),
		University: r.FormValue("university"),
		GPA:        r.FormValue("gpa"),
		Subjects:   r.Form["subjects"],
	}
}

func (h *Handler) handleApplyNext(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	in := applicationForm(r)

	var stepErr, storeErr error
	submitted := false
	v.WithWizard(func(wiz *market.Wizard) bool {
		app, err := wiz.Next(in)
		if err != nil {
			stepErr = err
			return false
		}
		if app == nil {
			return false
		}
		id, err := h.store.CreateApplication(*app)
		if err != nil {
			storeErr = err
			return false
		}
		slog.Info("tutor application submitted", "application_id", id, "name", app.Name)
		submitted = true
		return true
	})

	switch {
	case stepErr != nil:
		h.fail(w, r, stepErr)
	case storeErr != nil:
		h.fail(w, r, storeErr)
	case submitted:
		if err := v.Nav.Back(); err != nil {
			h.fail(w, r, err)
			return
		}
		h.done(w, r, market.SubmittedNotice())
	default:
		h.redirectHome(w, r)
	}
}

func (h *Handler) handleApplyPrevious(w http.ResponseWriter, r *http.Request) {
	visitorFrom(r.Context()).WithWizard(func(wiz *market.Wizard) bool {
		wiz.Previous()
		return false
	})
	h.redirectHome(w, r)
}

func (h *Handler) handleApplyUpload(w http.ResponseWriter, r *http.Request) {
	doc := market.Document(chi.URLParam(r, "doc"))
	ok := false
	visitorFrom(r.Context()).WithWizard(func(wiz *market.Wizard) bool {
		ok = wiz.Upload(doc)
		return false
	})
	if !ok {
		http.Error(w, "unknown document", http.StatusNotFound)
		return
	}
	h.redirectHome(w, r)
}

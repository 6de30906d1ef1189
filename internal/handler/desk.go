package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rentatutor/rentatutor/internal/handler/views"
	"github.com/rentatutor/rentatutor/internal/market"
	"github.com/rentatutor/rentatutor/internal/model"
	"github.com/rentatutor/rentatutor/internal/navigator"
	"github.com/rentatutor/rentatutor/internal/store"
)

// loadDesk fills the tutor dashboard. The actor is reloaded so the balance
// reflects payouts and credited sessions.
func (h *Handler) loadDesk(v *navigator.Visitor, data *views.PageData) error {
	var err error
	if fresh, err := h.store.GetActor(data.Actor.ID); err != nil {
		return err
	} else if fresh != nil {
		data.Actor = fresh
	}

	data.Online = v.TutorOnline()
	if data.Online {
		if data.Requests, err = h.store.ListOpenRequests(); err != nil {
			return err
		}
	}
	if data.Upcoming, err = h.store.ListUpcomingBookings(); err != nil {
		return err
	}
	if data.History, err = h.store.ListSessionRecords(model.RoleTutor); err != nil {
		return err
	}
	data.TotalEarned = market.TotalEarned(data.History)
	return nil
}

func (h *Handler) handleToggleOnline(w http.ResponseWriter, r *http.Request) {
	online := visitorFrom(r.Context()).ToggleOnline()
	slog.Info("tutor availability changed", "actor_id", model.ActorFromContext(r.Context()).ID, "online", online)
	h.redirectHome(w, r)
}

func (h *Handler) handleAnswerRequest(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "requestID")
	if err != nil {
		http.Error(w, "invalid request ID", http.StatusBadRequest)
		return
	}
	decision, err := market.ParseRequestDecision(chi.URLParam(r, "decision"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	notice, err := market.AnswerRequest(visitorFrom(r.Context()).TutorOnline(), decision)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := "declined"
	if decision == market.RequestAccept {
		status = "accepted"
	}
	err = h.store.ResolveRequest(id, status)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "request not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.done(w, r, notice)
}

func (h *Handler) handlePayout(w http.ResponseWriter, r *http.Request) {
	actor := model.ActorFromContext(r.Context())
	paid, err := h.store.ClaimPayout(actor.ID, market.MinimumPayout)
	if errors.Is(err, store.ErrBelowMinimum) {
		_, err = market.RequestPayout(paid)
	}
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "tutor not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	notice, err := market.RequestPayout(paid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slog.Info("payout requested", "actor_id", actor.ID, "amount", paid.StringFixed(2))
	h.done(w, r, notice)
}

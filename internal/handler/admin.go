package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rentatutor/rentatutor/internal/handler/views"
	"github.com/rentatutor/rentatutor/internal/market"
)

// loadAdmin fills the administrator dashboard for the requested tab.
func (h *Handler) loadAdmin(r *http.Request, data *views.PageData) error {
	var err error
	data.AdminTabs = market.AdminTabs
	data.Tab = market.ParseAdminTab(r.URL.Query().Get("tab"))
	if data.Stats, err = h.store.PlatformStats(); err != nil {
		return err
	}

	switch data.Tab {
	case market.TabTutors:
		data.Applications, err = h.store.ListPendingApplications()
	case market.TabSessions:
		data.Flags, err = h.store.ListOpenFlags()
		data.FlagActions = market.FlagActions
	case market.TabReports:
		if data.SubjectSessions, err = h.store.SubjectSessions(); err != nil {
			return err
		}
		data.TopEarners, err = h.store.TopEarners()
	}
	return err
}

// backToTab redirects to the admin tab the action came from.
func (h *Handler) backToTab(w http.ResponseWriter, r *http.Request, tab market.AdminTab) {
	http.Redirect(w, r, h.path("/?tab="+string(tab)), http.StatusSeeOther)
}

func (h *Handler) handleDecideApplication(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "applicationID")
	if err != nil {
		http.Error(w, "invalid application ID", http.StatusBadRequest)
		return
	}
	decision, err := market.ParseDecision(chi.URLParam(r, "decision"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	name, err := h.store.DecideApplication(id, decision.Status())
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "application not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	slog.Info("tutor application decided", "application_id", id, "name", name, "decision", decision)

	visitorFrom(r.Context()).Flash(decision.Notice())
	h.backToTab(w, r, market.TabTutors)
}

func (h *Handler) handleResolveFlag(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "flagID")
	if err != nil {
		http.Error(w, "invalid flag ID", http.StatusBadRequest)
		return
	}
	action, err := market.ParseFlagAction(chi.URLParam(r, "action"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = h.store.ResolveFlag(id, string(action))
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "flag not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	visitorFrom(r.Context()).Flash(action.Notice())
	h.backToTab(w, r, market.TabSessions)
}

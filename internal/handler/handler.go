package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rentatutor/rentatutor/internal/handler/views"
	"github.com/rentatutor/rentatutor/internal/live"
	"github.com/rentatutor/rentatutor/internal/market"
	"github.com/rentatutor/rentatutor/internal/model"
	"github.com/rentatutor/rentatutor/internal/navigator"
	"github.com/rentatutor/rentatutor/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	visitors *navigator.Registry
	config   model.AppConfig
	now      func() time.Time
}

// New creates a new Handler.
func New(s *store.Store, visitors *navigator.Registry, cfg model.AppConfig) (*Handler, error) {
	if s == nil || visitors == nil {
		return nil, errors.New("handler needs a store and a visitor registry")
	}
	return &Handler{store: s, visitors: visitors, config: cfg, now: time.Now}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(h.visitorMiddleware)

		r.Get("/session/state", h.handleSessionState)
		r.Get("/session/ws", h.handleSessionFeed)

		r.Group(func(r chi.Router) {
			r.Use(h.csrfMiddleware)

			r.Get("/", h.handleIndex)
			r.Post("/login", h.handleLogin)
			r.Post("/logout", h.handleLogout)
			r.Post("/navigate", h.handleNavigate)
			r.Post("/back", h.handleBack)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.RoleStudent))
				r.Post("/instant", h.handleInstant)
				r.Post("/session/message", h.handleSessionMessage)
				r.Post("/session/end", h.handleSessionEnd)
				r.Post("/session/rating", h.handleSessionRating)
				r.Post("/session/mute", h.handleSessionMute)
				r.Post("/session/camera", h.handleSessionCamera)
				r.Post("/booking", h.handleBooking)
				r.Post("/forum/questions", h.handlePostQuestion)
			})

			r.With(requireRole(model.RoleTutor)).Post("/forum/questions/{questionID}/answers", h.handlePostAnswer)
			r.With(requireRole(model.RoleStudent, model.RoleTutor)).Post("/forum/questions/{questionID}/upvote", h.handleUpvote)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.RoleGuest))
				r.Post("/apply/next", h.handleApplyNext)
				r.Post("/apply/previous", h.handleApplyPrevious)
				r.Post("/apply/upload/{doc}", h.handleApplyUpload)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.RoleAdmin))
				r.Post("/admin/applications/{applicationID}/{decision}", h.handleDecideApplication)
				r.Post("/admin/flags/{flagID}/{action}", h.handleResolveFlag)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireRole(model.RoleTutor))
				r.Post("/tutor/online", h.handleToggleOnline)
				r.Post("/tutor/requests/{requestID}/{decision}", h.handleAnswerRequest)
				r.Post("/tutor/payout", h.handlePayout)
			})
		})
	})
}

// BasePathMiddleware injects the configured base path into the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// path prefixes p with the base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

// cookiePath scopes cookies to the base path.
func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		slog.Error("health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	data, err := h.pageData(r, v)
	if err != nil {
		slog.Error("failed to load page", "page", v.Nav.Page(), "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.Page(data).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

// pageData loads what the visitor's current page shows.
func (h *Handler) pageData(r *http.Request, v *navigator.Visitor) (views.PageData, error) {
	if v.Nav.Page() == model.PageInstantSession && v.Nav.Session() == nil {
		// The session was dropped after the redirect that led here.
		if err := v.Nav.Back(); err != nil {
			return views.PageData{}, err
		}
	}
	page := v.Nav.Page()
	actor := v.Nav.Actor()
	if actor == nil && page != model.PageTutorApplication {
		// Logged out between the two reads.
		page = model.PageLanding
	}
	data := views.PageData{
		Page:       page,
		Actor:      actor,
		Notices:    v.TakeNotices(),
		Subjects:   model.Subjects,
		PriceTiers: model.PriceTiers,
	}

	var err error
	switch page {
	case model.PageLanding:
		data.Roles = []model.Role{model.RoleStudent, model.RoleTutor, model.RoleAdmin}

	case model.PageStudentDashboard:
		if fresh, err := h.store.GetActor(actor.ID); err != nil {
			return data, err
		} else if fresh != nil {
			data.Actor = fresh
		}
		if data.History, err = h.store.ListSessionRecords(model.RoleStudent); err != nil {
			return data, err
		}
		data.Bookings, err = h.store.ListBookings(actor.ID)

	case model.PageInstantSession:
		if sess := v.Nav.Session(); sess != nil {
			snap := sess.Snapshot()
			data.Session = &snap
		}

	case model.PageBooking:
		data.Tutors, err = h.store.ListTutors()
		data.TimeSlots = market.TimeSlots
		data.BookingDurations = market.BookingDurations

	case model.PageForum:
		err = h.loadForum(r, actor, &data)

	case model.PageTutorApplication:
		data.Wizard = v.WizardState()

	case model.PageTutorDashboard:
		err = h.loadDesk(v, &data)

	case model.PageAdminDashboard:
		err = h.loadAdmin(r, &data)
	}
	return data, err
}

func (h *Handler) loadForum(r *http.Request, actor *model.Actor, data *views.PageData) error {
	questions, err := h.store.ListQuestions()
	if err != nil {
		return err
	}
	actorID := ""
	if actor != nil {
		actorID = actor.ID
	}
	data.Filters = market.Filters
	data.Filter = market.ParseFilter(r.URL.Query().Get("filter"))
	data.Query = r.URL.Query().Get("q")
	data.Questions = market.FilterQuestions(questions, data.Filter, data.Query, actorID)

	if idStr := r.URL.Query().Get("question"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return nil
		}
		if data.Selected, err = h.store.GetQuestion(id); err != nil {
			return err
		}
		if data.Selected != nil {
			if data.Answers, err = h.store.ListAnswers(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// redirectHome sends the browser back to the page renderer.
func (h *Handler) redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

// done flashes a confirmation and redirects.
func (h *Handler) done(w http.ResponseWriter, r *http.Request, n model.Notice) {
	visitorFrom(r.Context()).Flash(n)
	h.redirectHome(w, r)
}

// fail turns a refused action into a flashed notice. Anything that is not
// a user-facing rejection is a server error.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	v := visitorFrom(r.Context())
	if n, ok := noticeFor(err); ok {
		v.Flash(n)
		h.redirectHome(w, r)
		return
	}
	if errors.Is(err, live.ErrEmptyMessage) {
		h.redirectHome(w, r)
		return
	}
	slog.Error("request failed", "path", r.URL.Path, "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// noticeFor maps rejections from the domain packages to notices.
func noticeFor(err error) (model.Notice, bool) {
	if n, ok := market.NoticeOf(err); ok {
		return n, true
	}
	switch {
	case errors.Is(err, navigator.ErrPageNotAllowed),
		errors.Is(err, navigator.ErrInvalidRole),
		errors.Is(err, navigator.ErrNotStudent):
		return market.Rejection(market.NoticePageNotAllowed), true
	case errors.Is(err, navigator.ErrNoActiveSession),
		errors.Is(err, live.ErrNotConnected),
		errors.Is(err, live.ErrNotAwaitingRating):
		return market.Rejection(market.NoticeSessionNotActive), true
	case errors.Is(err, live.ErrRatingRequired):
		return market.Rejection(market.NoticeSelectRating), true
	case errors.Is(err, live.ErrInvalidRating):
		return market.Rejection(market.NoticeInvalidRating), true
	case errors.Is(err, live.ErrInvalidDuration):
		return market.Rejection(market.NoticeInvalidDuration), true
	}
	return model.Notice{}, false
}

func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

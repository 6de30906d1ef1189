package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/rentatutor/rentatutor/internal/market"
	"github.com/rentatutor/rentatutor/internal/model"
	"github.com/rentatutor/rentatutor/internal/navigator"
)

const (
	visitorCookieName = "visitor"
	csrfCookieName    = "csrf_token"
)

type visitorCtxKey struct{}

func withVisitor(ctx context.Context, v *navigator.Visitor) context.Context {
	return context.WithValue(ctx, visitorCtxKey{}, v)
}

// visitorFrom returns the visitor placed by visitorMiddleware.
func visitorFrom(ctx context.Context) *navigator.Visitor {
	v, _ := ctx.Value(visitorCtxKey{}).(*navigator.Visitor)
	return v
}

// visitorMiddleware attaches the browser's visitor, creating one when the
// cookie is missing or the visitor has been evicted.
func (h *Handler) visitorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var v *navigator.Visitor
		if cookie, err := r.Cookie(visitorCookieName); err == nil && cookie.Value != "" {
			v, _ = h.visitors.Get(cookie.Value)
		}
		if v == nil {
			v = h.visitors.Create()
			http.SetCookie(w, &http.Cookie{
				Name:     visitorCookieName,
				Value:    v.ID,
				Path:     h.cookiePath(),
				HttpOnly: true,
				Secure:   h.config.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := withVisitor(r.Context(), v)
		ctx = model.ContextWithActor(ctx, v.Nav.Actor())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// rotateCSRF issues a fresh token as a cookie and in the request context.
func (h *Handler) rotateCSRF(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	token, err := generateCSRFToken()
	if err != nil {
		slog.Error("failed to generate CSRF token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return r, false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		HttpOnly: false,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return r.WithContext(model.ContextWithCSRFToken(r.Context(), token)), true
}

func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			if r, ok := h.rotateCSRF(w, r); ok {
				next.ServeHTTP(w, r)
			}
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" {
			slog.Warn("CSRF cookie missing")
			http.Error(w, "csrf token missing", http.StatusForbidden)
			return
		}

		formToken := r.FormValue("csrf_token")
		if formToken == "" {
			slog.Warn("CSRF form token missing")
			http.Error(w, "csrf token missing", http.StatusForbidden)
			return
		}

		if len(formToken) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(formToken), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch")
			http.Error(w, "invalid csrf token", http.StatusForbidden)
			return
		}

		if r, ok := h.rotateCSRF(w, r); ok {
			next.ServeHTTP(w, r)
		}
	})
}

// requireRole lets through only visitors whose current role is allowed.
// Anyone else is sent back to their page with a notice.
func requireRole(allowed ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := visitorFrom(r.Context())
			// Checked against the actor captured for this request, which is
			// the one handlers read, not the navigator's current one.
			role := model.RoleGuest
			if actor := model.ActorFromContext(r.Context()); actor != nil {
				role = actor.Role
			}
			for _, a := range allowed {
				if role == a {
					next.ServeHTTP(w, r)
					return
				}
			}
			slog.Warn("action not allowed for role", "path", r.URL.Path, "role", role)
			v.Flash(market.Rejection(market.NoticePageNotAllowed))
			http.Redirect(w, r, model.BasePathFromContext(r.Context())+"/", http.StatusSeeOther)
		})
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	role, ok := model.ParseRole(r.FormValue("role"))
	if !ok {
		h.fail(w, r, navigator.ErrInvalidRole)
		return
	}
	if err := visitorFrom(r.Context()).Nav.Login(role); err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirectHome(w, r)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	visitorFrom(r.Context()).Nav.Logout()
	h.redirectHome(w, r)
}

func (h *Handler) handleNavigate(w http.ResponseWriter, r *http.Request) {
	page, ok := model.ParsePage(r.FormValue("page"))
	if !ok {
		h.fail(w, r, navigator.ErrPageNotAllowed)
		return
	}
	if err := visitorFrom(r.Context()).Nav.Navigate(page); err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirectHome(w, r)
}

func (h *Handler) handleBack(w http.ResponseWriter, r *http.Request) {
	if err := visitorFrom(r.Context()).Nav.Back(); err != nil {
		h.fail(w, r, err)
		return
	}
	h.redirectHome(w, r)
}

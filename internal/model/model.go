package model

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Role is the kind of actor using the platform.
type Role string

const (
	// RoleGuest is an unauthenticated visitor.
	RoleGuest Role = "guest"
	// RoleStudent is a learner who requests and books sessions.
	RoleStudent Role = "student"
	// RoleTutor is an instructor who answers requests.
	RoleTutor Role = "tutor"
	// RoleAdmin moderates tutors and sessions.
	RoleAdmin Role = "admin"
)

// ParseRole converts a form value into a Role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleGuest, RoleStudent, RoleTutor, RoleAdmin:
		return r, true
	}
	return "", false
}

// Dashboard returns the home page of the role.
func (r Role) Dashboard() Page {
	switch r {
	case RoleStudent:
		return PageStudentDashboard
	case RoleTutor:
		return PageTutorDashboard
	case RoleAdmin:
		return PageAdminDashboard
	default:
		return PageLanding
	}
}

// Page is a screen of the application.
type Page string

const (
	PageLanding          Page = "landing"
	PageStudentDashboard Page = "student-dashboard"
	PageTutorDashboard   Page = "tutor-dashboard"
	PageAdminDashboard   Page = "admin-dashboard"
	PageInstantSession   Page = "instant-session"
	PageBooking          Page = "booking"
	PageForum            Page = "forum"
	PageTutorApplication Page = "tutor-application"
)

// Pages lists every known page.
var Pages = []Page{
	PageLanding,
	PageStudentDashboard,
	PageTutorDashboard,
	PageAdminDashboard,
	PageInstantSession,
	PageBooking,
	PageForum,
	PageTutorApplication,
}

// ParsePage converts a form value into a Page.
func ParsePage(s string) (Page, bool) {
	for _, p := range Pages {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Actor is the mock identity established at login.
type Actor struct {
	ID      string
	Name    string
	Email   string
	Role    Role
	Rating  *float64
	Balance *decimal.Decimal
}

// Subjects offered for instant help.
var Subjects = []string{
	"Mathematics", "Physics", "Chemistry", "Biology", "Arabic", "English",
	"French", "History", "Geography", "Computer Science", "Economics",
}

// PriceTier is a fixed duration with a flat price.
type PriceTier struct {
	Minutes int
	Price   decimal.Decimal
}

// PriceTiers are the instant-session durations students can pick.
var PriceTiers = []PriceTier{
	{Minutes: 10, Price: decimal.RequireFromString("1.50")},
	{Minutes: 20, Price: decimal.RequireFromString("2.50")},
	{Minutes: 30, Price: decimal.RequireFromString("3.50")},
}

// TierFor returns the price tier for a duration.
func TierFor(minutes int) (PriceTier, bool) {
	for _, t := range PriceTiers {
		if t.Minutes == minutes {
			return t, true
		}
	}
	return PriceTier{}, false
}

// SessionRequest is a student's ask for instant help.
type SessionRequest struct {
	Subject         string
	DurationMinutes int
	Price           decimal.Decimal
}

// SessionDescriptor identifies who, what and how long for a live session.
type SessionDescriptor struct {
	TutorID         string
	TutorName       string
	TutorRating     float64
	Subject         string
	DurationMinutes int
	Price           decimal.Decimal
}

// Sender is the author of a chat message.
type Sender string

const (
	SenderStudent Sender = "student"
	SenderTutor   Sender = "tutor"
)

// ChatMessage is a line in the live-session chat. Time is the session
// clock at which it was stamped.
type ChatMessage struct {
	Sender  Sender `json:"sender"`
	Text    string `json:"text"`
	Elapsed int    `json:"elapsed"`
	Time    string `json:"time"`
}

// Rating is the feedback captured when a session closes.
type Rating struct {
	Stars    int    `json:"stars"`
	Feedback string `json:"feedback,omitempty"`
}

// Money formats an amount as dollars.
func Money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// FormatRating renders a reputation score with one decimal.
func FormatRating(r float64) string {
	return fmt.Sprintf("%.1f", r)
}

type actorCtxKey struct{}

// ContextWithActor stores the current actor in the request context.
func ContextWithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, a)
}

// ActorFromContext retrieves the current actor from context, or nil.
func ActorFromContext(ctx context.Context) *Actor {
	a, _ := ctx.Value(actorCtxKey{}).(*Actor)
	return a
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// AppConfig holds runtime parameters set via CLI flags.
type AppConfig struct {
	BasePath       string        // URL prefix for sub-path deployments
	SecureCookies  bool          // Set Secure flag on cookies (disable for local dev)
	ReplyDelay     time.Duration // How long the counterpart takes to answer
	VisitorIdleTTL time.Duration // Visitors idle longer than this are evicted
}

// NoticeLevel distinguishes confirmations from rejections.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-visible message identified by its translation ID.
type Notice struct {
	Level NoticeLevel
	ID    string
	Data  map[string]any
}

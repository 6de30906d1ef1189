// Package views renders the marketplace screens as templ components.
package views

//go:generate templ generate

import (
	"context"
	"net/url"
	"strconv"

	"github.com/a-h/templ"
	"github.com/shopspring/decimal"

	appI18n "github.com/rentatutor/rentatutor/internal/i18n"
	"github.com/rentatutor/rentatutor/internal/live"
	"github.com/rentatutor/rentatutor/internal/market"
	"github.com/rentatutor/rentatutor/internal/model"
)

// PageData is everything a screen may show. Only the fields of the current
// page are filled in.
type PageData struct {
	Page    model.Page
	Actor   *model.Actor
	Notices []model.Notice

	// Landing and student dashboard
	Roles      []model.Role
	Subjects   []string
	PriceTiers []model.PriceTier
	History    []model.SessionRecord
	Bookings   []model.Booking

	// Booking
	Tutors           []model.Tutor
	TimeSlots        []string
	BookingDurations []int

	// Forum
	Questions []model.Question
	Filters   []market.Filter
	Filter    market.Filter
	Query     string
	Selected  *model.Question
	Answers   []model.Answer

	// Tutor application
	Wizard market.Wizard

	// Live session
	Session *live.Snapshot

	// Tutor desk
	Online      bool
	Requests    []model.SessionRequestCard
	Upcoming    []model.UpcomingBooking
	TotalEarned decimal.Decimal

	// Admin
	AdminTabs       []market.AdminTab
	Tab             market.AdminTab
	Stats           model.PlatformStats
	Applications    []model.TutorApplication
	Flags           []model.FlaggedSession
	FlagActions     []market.FlagAction
	SubjectSessions []model.SubjectCount
	TopEarners      []model.TopEarner
}

// screen picks the body component for the current page.
func screen(data PageData) templ.Component {
	switch data.Page {
	case model.PageLanding:
		return landing(data)
	case model.PageStudentDashboard:
		return studentDashboard(data)
	case model.PageTutorDashboard:
		return tutorDashboard(data)
	case model.PageAdminDashboard:
		return adminDashboard(data)
	case model.PageInstantSession:
		return instantSession(data.Session)
	case model.PageBooking:
		return booking(data)
	case model.PageForum:
		return forum(data)
	case model.PageTutorApplication:
		return tutorApplication(data)
	}
	return templ.NopComponent
}

func lang(ctx context.Context) string { return appI18n.Lang(ctx) }

func t(ctx context.Context, id string) string { return appI18n.T(ctx, id) }

// td translates id with template data given as key, value pairs.
func td(ctx context.Context, id string, kv ...any) string {
	data := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			data[k] = kv[i+1]
		}
	}
	return appI18n.Td(ctx, id, data)
}

func tp(ctx context.Context, id string, n int) string { return appI18n.Tp(ctx, id, n) }

func notice(ctx context.Context, n model.Notice) string { return appI18n.Td(ctx, n.ID, n.Data) }

// path prefixes p with the deployment base path.
func path(ctx context.Context, p string) string {
	return model.BasePathFromContext(ctx) + p
}

func hasRole(a *model.Actor, r model.Role) bool {
	return a != nil && a.Role == r
}

// questionURL opens a question while keeping the forum search in place.
func questionURL(ctx context.Context, id int64, filter market.Filter, query string) string {
	q := url.Values{}
	q.Set("question", strconv.FormatInt(id, 10))
	q.Set("filter", string(filter))
	q.Set("q", query)
	return path(ctx, "/") + "?" + q.Encode()
}

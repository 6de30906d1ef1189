package views

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	appI18n "github.com/rentatutor/rentatutor/internal/i18n"
	"github.com/rentatutor/rentatutor/internal/market"
	"github.com/rentatutor/rentatutor/internal/model"
)

func TestMain(m *testing.M) {
	if err := appI18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func render(t *testing.T, data PageData) string {
	t.Helper()
	ctx := model.ContextWithBasePath(context.Background(), "/app")
	ctx = model.ContextWithCSRFToken(ctx, "tok-123")
	var b strings.Builder
	if err := Page(data).Render(ctx, &b); err != nil {
		t.Fatalf("render %s: %v", data.Page, err)
	}
	return b.String()
}

func TestPageScreens(t *testing.T) {
	balance := decimal.RequireFromString("142.3")
	rating := 4.8
	tutor := &model.Actor{ID: "2", Name: "Ahmad Hassan", Role: model.RoleTutor, Rating: &rating, Balance: &balance}
	student := &model.Actor{ID: "1", Name: "Elias Kallas", Role: model.RoleStudent}

	tests := []struct {
		name    string
		data    PageData
		want    []string
		notWant []string
	}{
		{
			name: "landing",
			data: PageData{
				Page:       model.PageLanding,
				Roles:      []model.Role{model.RoleStudent, model.RoleTutor},
				PriceTiers: model.PriceTiers,
			},
			want: []string{
				"<!doctype html>",
				`<html lang="en">`,
				`action="/app/login"`,
				`<input type="hidden" name="csrf_token" value="tok-123">`,
				"Continue as student",
				"$1.50",
			},
			notWant: []string{"Log out"},
		},
		{
			name: "tutor offline",
			data: PageData{Page: model.PageTutorDashboard, Actor: tutor},
			want: []string{
				"Welcome back, Ahmad Hassan",
				"$142.30",
				"&#9733; 4.8",
				"Go online to see incoming requests.",
				`action="/app/tutor/payout"`,
			},
			notWant: []string{"/tutor/requests/"},
		},
		{
			name: "tutor online",
			data: PageData{
				Page:   model.PageTutorDashboard,
				Actor:  tutor,
				Online: true,
				Requests: []model.SessionRequestCard{
					{ID: 7, Student: "Sarah K.", Subject: "Physics", DurationMinutes: 20, Price: decimal.RequireFromString("2.50")},
				},
			},
			want:    []string{"Sarah K. &middot; Physics &middot; 20 min &middot; $2.50", `action="/app/tutor/requests/7/accept"`},
			notWant: []string{"Go online to see incoming requests."},
		},
		{
			name: "student without history",
			data: PageData{Page: model.PageStudentDashboard, Actor: student, Subjects: []string{"Physics"}, PriceTiers: model.PriceTiers},
			want: []string{
				"Welcome back, Elias Kallas",
				`<option value="Physics">Physics</option>`,
				`value="10" checked>`,
				"Q&amp;A forum",
			},
			notWant: []string{`value="20" checked`, "<table>"},
		},
		{
			name: "notices",
			data: PageData{
				Page:    model.PageLanding,
				Notices: []model.Notice{{Level: model.NoticeError, ID: "NoticeSelectSubject"}},
			},
			want: []string{`<div class="notice error">`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := render(t, tt.data)
			for _, w := range tt.want {
				if !strings.Contains(body, w) {
					t.Errorf("body missing %q", w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(body, w) {
					t.Errorf("body should not contain %q", w)
				}
			}
		})
	}
}

func TestPageEscapesUserText(t *testing.T) {
	q := model.Question{ID: 3, Title: "<script>alert(1)</script>", Content: `"quoted" & more`, Author: "Mona", Subject: "Physics"}
	body := render(t, PageData{
		Page:      model.PageForum,
		Actor:     &model.Actor{ID: "1", Name: "Elias Kallas", Role: model.RoleStudent},
		Filters:   market.Filters,
		Filter:    market.FilterAll,
		Query:     "a&b",
		Questions: []model.Question{q},
		Selected:  &q,
	})
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Fatal("question title rendered unescaped")
	}
	for _, w := range []string{
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		"&#34;quoted&#34; &amp; more",
		`value="a&amp;b"`,
		`href="/app/?filter=all&amp;q=a%26b&amp;question=3"`,
	} {
		if !strings.Contains(body, w) {
			t.Errorf("body missing %q", w)
		}
	}
	// Students ask questions, only tutors answer them.
	if !strings.Contains(body, `action="/app/forum/questions"`) {
		t.Error("student should see the ask form")
	}
	if strings.Contains(body, "/answers") {
		t.Error("student should not see the answer form")
	}
}

func TestPageUnknownRendersLayout(t *testing.T) {
	body := render(t, PageData{Page: model.Page("nowhere")})
	if !strings.Contains(body, "<main></main>") {
		t.Errorf("unknown page should render an empty main, got %q", body)
	}
}

func TestQuestionURL(t *testing.T) {
	ctx := model.ContextWithBasePath(context.Background(), "/tutor")
	got := questionURL(ctx, 12, market.FilterUnanswered, "x y")
	want := "/tutor/?filter=unanswered&q=x+y&question=12"
	if got != want {
		t.Errorf("questionURL = %q, want %q", got, want)
	}
}

package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "AppTitle"); got != "Rent a Tutor" {
		t.Errorf("T(AppTitle) = %q, want 'Rent a Tutor'", got)
	}
	if got := T(ctx, "NoticeSessionAccepted"); got != "Session accepted! Starting video call..." {
		t.Errorf("T(NoticeSessionAccepted) = %q", got)
	}
}

func TestTranslateFrench(t *testing.T) {
	ctx := initLang(t, "fr")

	if got := T(ctx, "AppTitle"); got != "Louer un tuteur" {
		t.Errorf("T(AppTitle) = %q, want 'Louer un tuteur'", got)
	}
	if got := T(ctx, "EndSession"); got != "Terminer la séance" {
		t.Errorf("T(EndSession) = %q, want 'Terminer la séance'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "AnswersCount", 1); got != "1 answer" {
		t.Errorf("Tp(AnswersCount, 1) = %q, want '1 answer'", got)
	}
	if got := Tp(ctx, "AnswersCount", 5); got != "5 answers" {
		t.Errorf("Tp(AnswersCount, 5) = %q, want '5 answers'", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "NoticePayoutMinimum", map[string]any{"Minimum": "50.00"})
	if got != "The minimum payout is $50.00" {
		t.Errorf("Td(NoticePayoutMinimum) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestNegotiate(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	tests := []struct {
		header string
		want   string
	}{
		{"fr-CA,fr;q=0.9,en;q=0.8", "fr"},
		{"en-US,en;q=0.9", "en"},
		{"de-DE", "en"},
		{"", "en"},
		{"not a header;;", "en"},
	}
	for _, tt := range tests {
		if got := Negotiate(tt.header); got != tt.want {
			t.Errorf("Negotiate(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var title, lang string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title = T(r.Context(), "AppTitle")
		lang = Lang(r.Context())
	}))

	tests := []struct {
		name      string
		cookie    string
		header    string
		wantTitle string
		wantLang  string
	}{
		{"default", "", "", "Rent a Tutor", "en"},
		{"accept-language", "", "fr-FR,fr;q=0.9", "Louer un tuteur", "fr"},
		{"cookie wins", "en", "fr-FR", "Rent a Tutor", "en"},
		{"cookie french", "fr", "", "Louer un tuteur", "fr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: LangCookie, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("Accept-Language", tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if lang != tt.wantLang {
				t.Errorf("lang = %q, want %q", lang, tt.wantLang)
			}
		})
	}
}

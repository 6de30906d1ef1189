package i18n

import "net/http"

// LangCookie overrides Accept-Language when set.
const LangCookie = "lang"

// Middleware injects a localizer into every request context. The language
// comes from the lang cookie, then Accept-Language, then defaultLang.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang := defaultLang
			if c, err := r.Cookie(LangCookie); err == nil && c.Value != "" {
				lang = Negotiate(c.Value)
			} else if al := r.Header.Get("Accept-Language"); al != "" {
				lang = Negotiate(al)
			}
			ctx := WithLocalizer(r.Context(), NewLocalizer(lang, defaultLang))
			ctx = WithLang(ctx, lang)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// LangCookieName is the cookie holding a user's explicit language pick.
const LangCookieName = "lang"

var matcher = language.NewMatcher(Supported)

// Middleware resolves each request's language and injects a localizer
// into the request context. An explicit lang cookie wins, then the
// Accept-Language header, then the Spanish default.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lang := Supported[0].String()
		if c, err := r.Cookie(LangCookieName); err == nil && IsSupported(c.Value) {
			lang = c.Value
		} else if accept := r.Header.Get("Accept-Language"); accept != "" {
			if tags, _, err := language.ParseAcceptLanguage(accept); err == nil {
				_, idx, _ := matcher.Match(tags...)
				lang = Supported[idx].String()
			}
		}
		next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), lang)))
	})
}

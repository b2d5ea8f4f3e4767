package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/blogsite/internal/web"
	"github.com/2beens/blogsite/pkg"
)

const csrfHeaderName = "X-CSRF-Token"

// CSRF implements the double submit cookie check: every unsafe request must
// send back the csrf cookie value in the form field or the header.
func CSRF(renderer errorRenderer, secure bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if cookie, err := r.Cookie(web.CSRFCookieName); err == nil && cookie.Value != "" {
				token = cookie.Value
			}

			if !isSafeMethod(r.Method) {
				sent := r.Header.Get(csrfHeaderName)
				if sent == "" {
					sent = r.PostFormValue(web.CSRFFieldName)
				}
				if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(sent)) != 1 {
					ip, _ := pkg.ReadUserIP(r)
					log.Warnf("[csrf] token mismatch: %s %s from %s", r.Method, r.URL.Path, ip)
					renderer.Error(w, r, http.StatusBadRequest)
					return
				}
			}

			if token == "" {
				token = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     web.CSRFCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(web.WithCSRFToken(r.Context(), token)))
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

package middleware

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/blogsite/internal/users"
)

type errorRenderer interface {
	Error(w http.ResponseWriter, r *http.Request, status int)
}

// RequireLogin answers 401 to anonymous requests.
func RequireLogin(renderer errorRenderer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if users.FromContext(r.Context()) == nil {
				log.Tracef("[require login] unauthorized => %s", r.URL.Path)
				renderer.Error(w, r, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly answers 403 to everyone but the admin, anonymous requests included.
func AdminOnly(renderer errorRenderer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user := users.FromContext(r.Context()); !user.IsAdmin() {
				log.Debugf("[admin only] forbidden => %s", r.URL.Path)
				renderer.Error(w, r, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

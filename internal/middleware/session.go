package middleware

import (
	"context"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/blogsite/internal/auth"
	"github.com/2beens/blogsite/internal/telemetry/tracing"
	"github.com/2beens/blogsite/internal/users"
	"github.com/2beens/blogsite/internal/web"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=middleware_test

type sessionResolver interface {
	Session(ctx context.Context, token string) (int, error)
}

type usersGetter interface {
	ByID(ctx context.Context, id int) (*users.User, error)
}

// Session puts the user behind the session cookie into the request context.
// Requests with a missing, invalid or expired session go on anonymously; a bad cookie is cleared.
func Session(sessions sessionResolver, usersRepo usersGetter, signer *web.CookieSigner) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := sessionUser(r, sessions, usersRepo, signer)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(users.WithUser(r.Context(), user)))
				return
			case errors.Is(err, web.ErrNoCookie):
			case errors.Is(err, auth.ErrSessionExpired),
				errors.Is(err, auth.ErrSessionInvalid),
				errors.Is(err, users.ErrUserNotFound),
				errors.Is(err, errBadCookie):
				log.Tracef("[session middleware] dropping session cookie: %s", err)
				signer.Clear(w, auth.SessionCookieName)
			default:
				tracing.RecordError(r.Context(), err)
				log.Errorf("[session middleware] %s: %s", r.URL.Path, err)
			}

			next.ServeHTTP(w, r)
		})
	}
}

var errBadCookie = errors.New("bad session cookie")

func sessionUser(r *http.Request, sessions sessionResolver, usersRepo usersGetter, signer *web.CookieSigner) (*users.User, error) {
	token, err := auth.SessionToken(r, signer)
	if errors.Is(err, web.ErrNoCookie) {
		return nil, err
	} else if err != nil {
		return nil, errors.Join(errBadCookie, err)
	}

	ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.session")
	defer span.End()

	userID, err := sessions.Session(ctx, token)
	if err != nil {
		return nil, err
	}

	return usersRepo.ByID(ctx, userID)
}

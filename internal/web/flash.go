package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
)

const flashCookieName = "flashes"

type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

type flashClaims struct {
	Flashes []Flash `json:"flashes"`
	jwt.RegisteredClaims
}

// flashBag holds the flashes of one request: the ones carried in from the
// cookie plus the ones added while handling it.
type flashBag struct {
	signer     *CookieSigner
	flashes    []Flash
	fromCookie bool
}

type flashCtxKey struct{}

// WithFlashes loads pending flash messages from the cookie for the handlers down the chain.
func WithFlashes(signer *CookieSigner) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bag := &flashBag{signer: signer}

			var claims flashClaims
			if err := signer.Read(r, flashCookieName, &claims); err == nil {
				bag.flashes = claims.Flashes
				bag.fromCookie = true
			} else if !errors.Is(err, ErrNoCookie) {
				log.Debugf("dropping flashes cookie: %s", err)
				signer.Clear(w, flashCookieName)
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), flashCtxKey{}, bag)))
		})
	}
}

func AddFlash(r *http.Request, category, message string) {
	bag, ok := r.Context().Value(flashCtxKey{}).(*flashBag)
	if !ok {
		log.Warnf("flash [%s] %s dropped, no flash bag in context", category, message)
		return
	}
	bag.flashes = append(bag.flashes, Flash{Category: category, Message: message})
}

// popFlashes returns all flashes and forgets them; used when a page is rendered.
func popFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	bag, ok := r.Context().Value(flashCtxKey{}).(*flashBag)
	if !ok {
		return nil
	}

	flashes := bag.flashes
	bag.flashes = nil
	if bag.fromCookie {
		bag.signer.Clear(w, flashCookieName)
		bag.fromCookie = false
	}

	return flashes
}

// saveFlashes carries pending flashes over to the next request.
func saveFlashes(w http.ResponseWriter, r *http.Request) {
	bag, ok := r.Context().Value(flashCtxKey{}).(*flashBag)
	if !ok || len(bag.flashes) == 0 {
		return
	}

	if err := bag.signer.Set(w, flashCookieName, &flashClaims{Flashes: bag.flashes}, 0); err != nil {
		log.Errorf("save flashes: %s", err)
		return
	}
	bag.fromCookie = true
}

// Redirect keeps pending flashes for the page the client is redirected to.
func Redirect(w http.ResponseWriter, r *http.Request, url string, code int) {
	saveFlashes(w, r)
	http.Redirect(w, r, url, code)
}

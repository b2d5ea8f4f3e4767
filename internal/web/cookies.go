package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoCookie = errors.New("cookie not present")

// CookieSigner stores claims in cookies as HS256 JWTs signed with the app secret key.
type CookieSigner struct {
	secret []byte
	secure bool
}

func NewCookieSigner(secretKey string, secure bool) *CookieSigner {
	return &CookieSigner{
		secret: []byte(secretKey),
		secure: secure,
	}
}

func (s *CookieSigner) Set(w http.ResponseWriter, name string, claims jwt.Claims, maxAge time.Duration) error {
	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("sign cookie %s: %w", name, err)
	}

	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		cookie.MaxAge = int(maxAge.Seconds())
		cookie.Expires = time.Now().Add(maxAge)
	}
	http.SetCookie(w, cookie)

	return nil
}

// Read parses the named cookie into claims, verifying the signature and expiry.
func (s *CookieSigner) Read(r *http.Request, name string, claims jwt.Claims) error {
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return ErrNoCookie
	}

	if _, err := jwt.ParseWithClaims(
		cookie.Value,
		claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	); err != nil {
		return fmt.Errorf("parse cookie %s: %w", name, err)
	}

	return nil
}

func (s *CookieSigner) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

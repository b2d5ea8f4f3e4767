package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/2beens/blogsite/internal/web"
)

const SessionCookieName = "session"

// SetSessionCookie hands the session token to the client inside a signed cookie.
func SetSessionCookie(w http.ResponseWriter, signer *web.CookieSigner, token string, ttl time.Duration) error {
	now := time.Now()
	return signer.Set(w, SessionCookieName, &jwt.RegisteredClaims{
		ID:        token,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}, ttl)
}

// SessionToken returns the session token carried by the request cookie.
func SessionToken(r *http.Request, signer *web.CookieSigner) (string, error) {
	var claims jwt.RegisteredClaims
	if err := signer.Read(r, SessionCookieName, &claims); err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", fmt.Errorf("session cookie: %w", ErrSessionInvalid)
	}
	return claims.ID, nil
}

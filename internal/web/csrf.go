package web

import "context"

const (
	CSRFCookieName = "csrf_token"
	CSRFFieldName  = "csrf_token"
)

type csrfCtxKey struct{}

func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

func CSRFToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfCtxKey{}).(string)
	return token
}

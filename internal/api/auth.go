package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/npezzotti/go-chatrooms/internal/types"
)

const tokenCookieKey = "token"

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, principalKey, user)
}

func Principal(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(principalKey).(types.User)

	return user, ok
}

// tokenFromRequest returns the bearer token if present, falling back to the
// token cookie.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if cookie, err := r.Cookie(tokenCookieKey); err == nil {
		return cookie.Value
	}

	return ""
}

// wsToken also accepts the token as a query parameter since browsers cannot
// set headers on a WebSocket handshake.
func wsToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	return tokenFromRequest(r)
}

func createJwtCookie(token string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

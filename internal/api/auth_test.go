package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/go-chatrooms/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestPrincipal(t *testing.T) {
	tcases := []struct {
		name     string
		ctx      context.Context
		expected types.User
		ok       bool
	}{
		{
			name:     "principal present",
			ctx:      WithPrincipal(context.Background(), types.User{Id: 1, Username: "alice"}),
			expected: types.User{Id: 1, Username: "alice"},
			ok:       true,
		},
		{
			name:     "principal missing",
			ctx:      context.Background(),
			expected: types.User{},
			ok:       false,
		},
		{
			name:     "wrong value type",
			ctx:      context.WithValue(context.Background(), principalKey, 1),
			expected: types.User{},
			ok:       false,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			user, ok := Principal(tc.ctx)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expected, user)
		})
	}
}

func Test_tokenFromRequest(t *testing.T) {
	tcases := []struct {
		name     string
		setup    func(r *http.Request)
		expected string
	}{
		{
			name: "bearer header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer abc")
			},
			expected: "abc",
		},
		{
			name: "cookie",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "from-cookie"})
			},
			expected: "from-cookie",
		},
		{
			name: "header wins over cookie",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer abc")
				r.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "from-cookie"})
			},
			expected: "abc",
		},
		{
			name: "non bearer scheme ignored",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
			},
			expected: "",
		},
		{
			name:     "no token",
			setup:    func(r *http.Request) {},
			expected: "",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
			tc.setup(req)
			assert.Equal(t, tc.expected, tokenFromRequest(req))
		})
	}
}

func Test_wsToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/chat/7?token=from-query", nil)
	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-query", wsToken(req), "expected query parameter to take precedence")

	req = httptest.NewRequest(http.MethodGet, "/ws/chat/7", nil)
	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", wsToken(req))
}

func Test_createJwtCookie(t *testing.T) {
	cookie := createJwtCookie("tok", time.Hour)

	assert.Equal(t, tokenCookieKey, cookie.Name)
	assert.Equal(t, "tok", cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.WithinDuration(t, time.Now().Add(time.Hour), cookie.Expires, time.Minute)
}

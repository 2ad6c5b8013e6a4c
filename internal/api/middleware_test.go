package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/go-chatrooms/internal/chat"
	"github.com/npezzotti/go-chatrooms/internal/testutil"
	"github.com/npezzotti/go-chatrooms/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestErrorHandler_PanicRecovery(t *testing.T) {
	app := &ChatApp{
		log: testutil.TestLogger(t),
	}

	// handler that panics
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("test panic"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(panicHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "close", rr.Header().Get("Connection"))
	assert.NotContains(t, rr.Body.String(), "test panic", "expected panic details to stay out of the response")
}

func Test_errorHandler_NoPanic(t *testing.T) {
	app := &ChatApp{log: testutil.TestLogger(t)}

	// simple handler that does not panic
	called := false
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(okHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.True(t, called, "expected handler to be called")
}

func Test_authMiddleware(t *testing.T) {
	t.Run("valid bearer token", func(t *testing.T) {
		ta := newTestApp(t)
		token := ta.tokenFor(t, alice)

		var got types.User
		handler := ta.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			got, _ = Principal(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, alice, got)
		assert.Equal(t, "no-store, no-cache, must-revalidate, private", rr.Header().Get("Cache-Control"))
	})

	t.Run("valid cookie", func(t *testing.T) {
		ta := newTestApp(t)
		token := ta.tokenFor(t, alice)

		handler := ta.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: token})
		handler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	tcases := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "invalid token", token: "not-a-jwt"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			ta := newTestApp(t)
			called := false
			handler := ta.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			handler(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.False(t, called, "expected next handler not to be called")
			ta.svc.AssertNotCalled(t, "Principal", mock.Anything, mock.Anything)
		})
	}

	t.Run("unknown principal", func(t *testing.T) {
		ta := newTestApp(t)
		token, err := ta.tokens.Issue(99, time.Hour)
		assert.NoError(t, err)
		ta.svc.On("Principal", mock.Anything, 99).Return(types.User{}, chat.ErrUnauthenticated).Once()

		rr := ta.do(t, http.MethodGet, "/api/account", token, "")

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestCORS(t *testing.T) {
	tcases := []struct {
		name        string
		origin      string
		allowOrigin string
	}{
		{name: "allowed origin", origin: "http://localhost:3000", allowOrigin: "http://localhost:3000"},
		{name: "disallowed origin", origin: "http://evil.example.com", allowOrigin: ""},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			ta := newTestApp(t)

			req := httptest.NewRequest(http.MethodOptions, "/api/rooms", nil)
			req.Header.Set("Origin", tc.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rr := httptest.NewRecorder()
			ta.Handler().ServeHTTP(rr, req)

			assert.Equal(t, tc.allowOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/npezzotti/go-chatrooms/internal/auth"
	"github.com/npezzotti/go-chatrooms/internal/chat"
	"github.com/npezzotti/go-chatrooms/internal/config"
	"github.com/npezzotti/go-chatrooms/internal/database"
	"github.com/npezzotti/go-chatrooms/internal/server"
	"github.com/npezzotti/go-chatrooms/internal/stats"
	"github.com/npezzotti/go-chatrooms/internal/testutil"
	"github.com/npezzotti/go-chatrooms/internal/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	alice = types.User{Id: 1, Username: "alice", EmailAddress: "alice@example.com"}
	bob   = types.User{Id: 2, Username: "bob", EmailAddress: "bob@example.com"}
)

type mockChatService struct {
	mock.Mock
}

func (m *mockChatService) Principal(ctx context.Context, userId int) (types.User, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *mockChatService) Authorize(ctx context.Context, principal *types.User, roomId int) error {
	args := m.Called(ctx, principal, roomId)
	return args.Error(0)
}

func (m *mockChatService) CreateRoom(ctx context.Context, principal types.User, params chat.CreateRoomParams) (types.Room, error) {
	args := m.Called(ctx, principal, params)
	return args.Get(0).(types.Room), args.Error(1)
}

func (m *mockChatService) GetRoom(ctx context.Context, principal types.User, roomId int) (types.Room, error) {
	args := m.Called(ctx, principal, roomId)
	return args.Get(0).(types.Room), args.Error(1)
}

func (m *mockChatService) ListRooms(ctx context.Context, principal types.User) ([]types.Room, error) {
	args := m.Called(ctx, principal)
	return args.Get(0).([]types.Room), args.Error(1)
}

func (m *mockChatService) DeleteRoom(ctx context.Context, principal types.User, roomId int) error {
	args := m.Called(ctx, principal, roomId)
	return args.Error(0)
}

func (m *mockChatService) JoinRoom(ctx context.Context, principal types.User, roomId int) error {
	args := m.Called(ctx, principal, roomId)
	return args.Error(0)
}

func (m *mockChatService) LeaveRoom(ctx context.Context, principal types.User, roomId int) error {
	args := m.Called(ctx, principal, roomId)
	return args.Error(0)
}

func (m *mockChatService) ListMembers(ctx context.Context, principal types.User, roomId int) ([]types.Member, error) {
	args := m.Called(ctx, principal, roomId)
	return args.Get(0).([]types.Member), args.Error(1)
}

func (m *mockChatService) SendMessage(ctx context.Context, principal types.User, roomId int, params chat.SendParams) (types.Message, error) {
	args := m.Called(ctx, principal, roomId, params)
	return args.Get(0).(types.Message), args.Error(1)
}

func (m *mockChatService) ListMessages(ctx context.Context, principal types.User, roomId, page, pageSize int) (types.MessagePage, error) {
	args := m.Called(ctx, principal, roomId, page, pageSize)
	return args.Get(0).(types.MessagePage), args.Error(1)
}

func (m *mockChatService) SoftDeleteMessage(ctx context.Context, principal types.User, messageId int) (types.Message, error) {
	args := m.Called(ctx, principal, messageId)
	return args.Get(0).(types.Message), args.Error(1)
}

func (m *mockChatService) MarkRead(ctx context.Context, principal types.User, messageId int) error {
	args := m.Called(ctx, principal, messageId)
	return args.Error(0)
}

func (m *mockChatService) ListNotifications(ctx context.Context, principal types.User) ([]types.Notification, error) {
	args := m.Called(ctx, principal)
	return args.Get(0).([]types.Notification), args.Error(1)
}

func (m *mockChatService) MarkNotificationRead(ctx context.Context, principal types.User, notificationId int) error {
	args := m.Called(ctx, principal, notificationId)
	return args.Error(0)
}

// memRevocations is an in-memory auth.RevocationStore.
type memRevocations struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (m *memRevocations) Revoke(_ context.Context, tokenId string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenId] = true
	return nil
}

func (m *memRevocations) IsRevoked(_ context.Context, tokenId string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[tokenId], nil
}

type testApp struct {
	*ChatApp
	repo   *database.MockChatRepository
	svc    *mockChatService
	tokens *auth.JWTManager
	router *server.Router
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := testutil.TestLogger(t)
	repo := &database.MockChatRepository{}
	svc := &mockChatService{}
	tokens := auth.NewJWTManager([]byte("test-signing-key"), &memRevocations{revoked: make(map[string]bool)})
	router := server.NewRouter(logger, stats.NopStats{})
	hub := server.NewHub(logger, tokens, svc, router, stats.NopStats{})

	cfg := &config.Config{
		ServerAddr:     "localhost:0",
		AllowedOrigins: []string{"http://localhost:3000"},
	}

	app := NewChatApp(logger, http.NewServeMux(), repo, svc, hub, tokens, cfg)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		hub.Shutdown(ctx)
		router.Shutdown(ctx)
	})

	return &testApp{
		ChatApp: app,
		repo:    repo,
		svc:     svc,
		tokens:  tokens,
		router:  router,
	}
}

// tokenFor issues a token for user and expects the middleware to resolve it.
func (ta *testApp) tokenFor(t *testing.T, user types.User) string {
	t.Helper()

	token, err := ta.tokens.Issue(user.Id, time.Hour)
	require.NoError(t, err)
	ta.svc.On("Principal", mock.Anything, user.Id).Return(user, nil).Maybe()
	return token
}

// do sends a request through the full handler chain. A non-empty token is
// sent as a bearer token.
func (ta *testApp) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	ta.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeApiError(t *testing.T, rr *httptest.ResponseRecorder) ApiError {
	t.Helper()

	var errResp ApiError
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&errResp))
	return errResp
}

// findCookie returns the named cookie set on the response, or nil.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

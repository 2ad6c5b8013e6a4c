package api

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chatrooms/internal/chat"
	"github.com/npezzotti/go-chatrooms/internal/config"
	"github.com/npezzotti/go-chatrooms/internal/database"
	"github.com/npezzotti/go-chatrooms/internal/server"
	"github.com/npezzotti/go-chatrooms/internal/types"
	"github.com/rs/zerolog"
)

type ChatService interface {
	Principal(ctx context.Context, userId int) (types.User, error)
	CreateRoom(ctx context.Context, principal types.User, params chat.CreateRoomParams) (types.Room, error)
	GetRoom(ctx context.Context, principal types.User, roomId int) (types.Room, error)
	ListRooms(ctx context.Context, principal types.User) ([]types.Room, error)
	DeleteRoom(ctx context.Context, principal types.User, roomId int) error
	JoinRoom(ctx context.Context, principal types.User, roomId int) error
	LeaveRoom(ctx context.Context, principal types.User, roomId int) error
	ListMembers(ctx context.Context, principal types.User, roomId int) ([]types.Member, error)
	SendMessage(ctx context.Context, principal types.User, roomId int, params chat.SendParams) (types.Message, error)
	ListMessages(ctx context.Context, principal types.User, roomId, page, pageSize int) (types.MessagePage, error)
	SoftDeleteMessage(ctx context.Context, principal types.User, messageId int) (types.Message, error)
	MarkRead(ctx context.Context, principal types.User, messageId int) error
	ListNotifications(ctx context.Context, principal types.User) ([]types.Notification, error)
	MarkNotificationRead(ctx context.Context, principal types.User, notificationId int) error
}

type TokenManager interface {
	Issue(userId int, exp time.Duration) (string, error)
	Verify(ctx context.Context, token string) (int, error)
	Revoke(ctx context.Context, token string) error
}

// ConnOpener admits WebSocket connections to a room.
type ConnOpener interface {
	Open(ctx context.Context, token string, roomId int, accept func() (server.Transport, error)) (*server.Client, error)
}

type ChatApp struct {
	log      zerolog.Logger
	db       database.ChatRepository
	svc      ChatService
	hub      ConnOpener
	tokens   TokenManager
	validate *validator.Validate
	upgrader websocket.Upgrader
	srv      *http.Server
}

func NewChatApp(logger zerolog.Logger, mux *http.ServeMux, db database.ChatRepository, svc ChatService, hub ConnOpener, tokens TokenManager, cfg *config.Config) *ChatApp {
	s := &ChatApp{
		log:      logger.With().Str("component", "api").Logger(),
		db:       db,
		svc:      svc,
		hub:      hub,
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(cfg.AllowedOrigins, origin)
			},
		},
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/logout", s.authMiddleware(s.logout))
	mux.HandleFunc("GET /api/account", s.authMiddleware(s.account))
	mux.HandleFunc("GET /api/rooms", s.authMiddleware(s.listRooms))
	mux.HandleFunc("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.HandleFunc("GET /api/rooms/{id}", s.authMiddleware(s.getRoom))
	mux.HandleFunc("DELETE /api/rooms/{id}", s.authMiddleware(s.deleteRoom))
	mux.HandleFunc("POST /api/rooms/{id}/join", s.authMiddleware(s.joinRoom))
	mux.HandleFunc("POST /api/rooms/{id}/leave", s.authMiddleware(s.leaveRoom))
	mux.HandleFunc("GET /api/rooms/{id}/members", s.authMiddleware(s.listMembers))
	mux.HandleFunc("GET /api/rooms/{id}/messages", s.authMiddleware(s.listMessages))
	mux.HandleFunc("POST /api/rooms/{id}/messages", s.authMiddleware(s.sendMessage))
	mux.HandleFunc("POST /api/messages/{id}/read", s.authMiddleware(s.markRead))
	mux.HandleFunc("DELETE /api/messages/{id}", s.authMiddleware(s.deleteMessage))
	mux.HandleFunc("GET /api/notifications", s.authMiddleware(s.listNotifications))
	mux.HandleFunc("POST /api/notifications/{id}/read", s.authMiddleware(s.markNotificationRead))
	mux.HandleFunc("GET /ws/chat/{room_id}", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	s.srv = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *ChatApp) Handler() http.Handler {
	return s.srv.Handler
}

func (s *ChatApp) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("starting server")
	return s.srv.ListenAndServe()
}

func (s *ChatApp) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

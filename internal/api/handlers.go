package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/npezzotti/go-chatrooms/internal/auth"
	"github.com/npezzotti/go-chatrooms/internal/chat"
	"github.com/npezzotti/go-chatrooms/internal/database"
	"github.com/npezzotti/go-chatrooms/internal/server"
	"github.com/npezzotti/go-chatrooms/internal/types"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	// bcrypt ignores input past 72 bytes
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type AuthResponse struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

type CreateRoomRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	RoomType    string `json:"room_type" validate:"omitempty,oneof=public private group"`
	MaxMembers  int    `json:"max_members" validate:"omitempty,min=2,max=1000"`
}

type SendMessageRequest struct {
	Content     string `json:"content" validate:"max=4000"`
	MessageType string `json:"message_type" validate:"omitempty,oneof=text image file system"`
	ReplyTo     *int   `json:"reply_to" validate:"omitempty,min=1"`
}

func (s *ChatApp) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("json encode")
	}
}

func (s *ChatApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.Error().Err(errResp).Int("status", errResp.StatusCode).Msg("request failed")
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

// decodeRequest reads a JSON body into v and validates it.
func (s *ChatApp) decodeRequest(r *http.Request, v any) *ApiError {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		errResp := NewBadRequestError()
		errResp.Err = err
		return errResp
	}

	if err := s.validate.Struct(v); err != nil {
		return NewValidationError(err)
	}

	return nil
}

func pathId(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil || id <= 0 {
		return 0, false
	}

	return id, true
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}

	return strconv.Atoi(raw)
}

func (s *ChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		errResp := NewInternalServerError(err)
		s.writeError(w, errResp)
		return
	}

	w.Write([]byte("OK"))
}

func (s *ChatApp) issueSession(w http.ResponseWriter, status int, user types.User) {
	token, err := s.tokens.Issue(user.Id, auth.DefaultTokenExpiration)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	http.SetCookie(w, createJwtCookie(token, auth.DefaultTokenExpiration))
	s.writeJson(w, status, AuthResponse{User: user, Token: token})
}

func toUser(u database.User) types.User {
	return types.User{
		Id:           u.Id,
		Username:     u.Username,
		EmailAddress: u.EmailAddress,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (s *ChatApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if errResp := s.decodeRequest(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	pwdHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	newUser, err := s.db.CreateAccount(r.Context(), database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
	})
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			s.writeError(w, NewConflictError())
			return
		}
		s.writeError(w, NewServiceUnavailableError(err))
		return
	}

	s.log.Info().Int("user_id", newUser.Id).Msg("account created")
	s.issueSession(w, http.StatusCreated, toUser(newUser))
}

func (s *ChatApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if errResp := s.decodeRequest(r, &lr); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	dbUser, err := s.db.GetAccountByEmail(r.Context(), lr.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewUnauthorizedError())
			return
		}
		s.writeError(w, NewServiceUnavailableError(err))
		return
	}

	if !auth.VerifyPassword(dbUser.PasswordHash, lr.Password) {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	s.issueSession(w, http.StatusOK, toUser(dbUser))
}

func (s *ChatApp) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.tokens.Revoke(r.Context(), tokenFromRequest(r)); err != nil {
		s.writeError(w, NewServiceUnavailableError(err))
		return
	}

	// overwrite the cookie with an expired one so the browser drops it
	cookie := createJwtCookie("", 0)
	cookie.Expires = time.Unix(0, 0)
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
	w.WriteHeader(http.StatusNoContent)
}

func (s *ChatApp) account(w http.ResponseWriter, r *http.Request) {
	user, ok := Principal(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	s.writeJson(w, http.StatusOK, user)
}

func (s *ChatApp) listRooms(w http.ResponseWriter, r *http.Request) {
	user, ok := Principal(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	rooms, err := s.svc.ListRooms(r.Context(), user)
	if err != nil {
		s.writeError(w, chatError(err))
		return
	}
	if rooms == nil {
		rooms = []types.Room{}
	}

	s.writeJson(w, http.StatusOK, rooms)
}

func (s *ChatApp) createRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := Principal(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req CreateRoomRequest
	if errResp := s.decodeRequest(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	room, err := s.svc.CreateRoom(r.Context(), user, chat.CreateRoomParams{
		Name:        req.Name,
		Description: req.Description,
		Type:        types.RoomType(req.RoomType),
		MaxMembers:  req.MaxMembers,
	})
	if err != nil {
		s.writeError(w, chatError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, room)
}

func (s *ChatApp) getRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := Principal(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	roomId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	room, err := s.svc.GetRoom(r.Context(), user, roomId)
	if err != nil {
		s.writeError(w, chatError(err))
		return
	}

	s.writeJson(w, http.StatusOK, room)
}

func (s *ChatApp) deleteRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := Principal(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	roomId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.svc.DeleteRoom(r.Context(), user, roomId); err != nil {
		s.writeError(w, chatError(err))
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatApp) joinRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := Principal(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	roomId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.svc.JoinRoom(r.Context(), user, roomId); err != nil {
		s.writeError(w, chatError(err))
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatApp) leaveRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := Principal(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	roomId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.svc.LeaveRoom(r.Context(), user, roomId); err != nil {
		s.writeError(w, chatError(err))
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatApp) listMembers(w http.ResponseWriter, r *http.Request) {
	user, ok := Principal(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	roomId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	members, err := s.svc.ListMembers(r.Context(), user, roomId)
	if err != nil {
		s.writeError(w, chatError(err))
		return
	}
	if members == nil {
		members = []types.Member{}
	}

	s.writeJson(w, http.StatusOK, members)
}

func (s *ChatApp) listMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := Principal(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	roomId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	page, err := queryInt(r, "page")
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	pageSize, err := queryInt(r, "page_size")
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	result, err := s.svc.ListMessages(r.Context(), user, roomId, page, pageSize)
	if err != nil {
		s.writeError(w, chatError(err))
		return
	}
	if result.Messages == nil {
		result.Messages = []types.Message{}
	}

	s.writeJson(w, http.StatusOK, result)
}

func (s *ChatApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := Principal(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	roomId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	var req SendMessageRequest
	if errResp := s.decodeRequest(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	msg, err := s.svc.SendMessage(r.Context(), user, roomId, chat.SendParams{
		Content: req.Content,
		Type:    types.MessageType(req.MessageType),
		ReplyTo: req.ReplyTo,
	})
	if err != nil {
		s.writeError(w, chatError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *ChatApp) markRead(w http.ResponseWriter, r *http.Request) {
	user, ok := Principal(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	messageId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.svc.MarkRead(r.Context(), user, messageId); err != nil {
		s.writeError(w, chatError(err))
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := Principal(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	messageId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	msg, err := s.svc.SoftDeleteMessage(r.Context(), user, messageId)
	if err != nil {
		s.writeError(w, chatError(err))
		return
	}

	s.writeJson(w, http.StatusOK, msg)
}

func (s *ChatApp) listNotifications(w http.ResponseWriter, r *http.Request) {
	user, ok := Principal(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	notifications, err := s.svc.ListNotifications(r.Context(), user)
	if err != nil {
		s.writeError(w, chatError(err))
		return
	}
	if notifications == nil {
		notifications = []types.Notification{}
	}

	s.writeJson(w, http.StatusOK, notifications)
}

func (s *ChatApp) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	user, ok := Principal(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	notificationId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.svc.MarkNotificationRead(r.Context(), user, notificationId); err != nil {
		s.writeError(w, chatError(err))
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

// serveWs admits a WebSocket connection to a room. The handshake is only
// upgraded once the hub has authorized it, so denied requests get a plain
// HTTP error.
func (s *ChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	roomId, ok := pathId(r, "room_id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	_, err := s.hub.Open(r.Context(), wsToken(r), roomId, func() (server.Transport, error) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
	if err != nil {
		// the upgrader has already replied
		if errors.Is(err, server.ErrAcceptFailed) {
			return
		}
		s.writeError(w, chatError(err))
	}
}

package chat

import (
	"context"
	"errors"

	"github.com/npezzotti/go-chatrooms/internal/database"
	"github.com/npezzotti/go-chatrooms/internal/types"
	"github.com/rs/zerolog"
)

// Broadcaster fans events out to the live connections of a room.
type Broadcaster interface {
	Publish(roomId int, evt *types.Event)
	// Disconnect closes a user's connections to a room once every event
	// already published to it has been delivered.
	Disconnect(roomId, userId int)
	CloseRoom(roomId int)
}

// NotificationSink accepts persisted messages for asynchronous
// notification fan-out.
type NotificationSink interface {
	Enqueue(msg types.Message) bool
}

// Service is the room registry: every persisted chat entity is written
// through it.
type Service struct {
	log         zerolog.Logger
	db          database.ChatRepository
	broadcaster Broadcaster
	notifier    NotificationSink
}

func NewService(logger zerolog.Logger, db database.ChatRepository, b Broadcaster, n NotificationSink) *Service {
	return &Service{
		log:         logger.With().Str("component", "chat").Logger(),
		db:          db,
		broadcaster: b,
		notifier:    n,
	}
}

// Principal resolves a verified user id into the identity used by the rest
// of the service.
func (s *Service) Principal(ctx context.Context, userId int) (types.User, error) {
	if userId <= 0 {
		return types.User{}, ErrUnauthenticated
	}

	u, err := s.db.GetAccountById(ctx, userId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return types.User{}, ErrUnauthenticated
		}
		return types.User{}, storageError("get account", err)
	}

	return types.User{
		Id:           u.Id,
		Username:     u.Username,
		EmailAddress: u.EmailAddress,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}, nil
}

func toRoom(r database.Room) types.Room {
	return types.Room{
		Id:          r.Id,
		Name:        r.Name,
		Description: r.Description,
		Type:        types.RoomType(r.Type),
		CreatedBy:   r.CreatedBy,
		MaxMembers:  r.MaxMembers,
		MemberCount: r.MemberCount,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toMember(m database.Membership) types.Member {
	return types.Member{
		RoomId:   m.RoomId,
		User:     types.User{Id: m.UserId, Username: m.Username},
		Role:     types.Role(m.Role),
		JoinedAt: m.JoinedAt,
		IsMuted:  m.IsMuted,
		IsBanned: m.IsBanned,
	}
}

func toMessage(m database.Message) types.Message {
	return types.Message{
		Id:        m.Id,
		RoomId:    m.RoomId,
		Sender:    types.User{Id: m.SenderId, Username: m.SenderUsername},
		Type:      types.MessageType(m.Type),
		Content:   m.Content,
		ReplyTo:   m.ReplyTo,
		IsEdited:  m.IsEdited,
		IsDeleted: m.IsDeleted,
		CreatedAt: m.CreatedAt,
	}
}

func toNotification(n database.Notification) types.Notification {
	return types.Notification{
		Id:        n.Id,
		UserId:    n.UserId,
		Type:      types.NotificationType(n.Type),
		Title:     n.Title,
		Content:   n.Content,
		RoomId:    n.RoomId,
		MessageId: n.MessageId,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

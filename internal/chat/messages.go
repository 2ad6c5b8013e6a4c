package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/npezzotti/go-chatrooms/internal/database"
	"github.com/npezzotti/go-chatrooms/internal/types"
)

const (
	DeletedMessageMarker = "[message deleted]"

	DefaultPageSize = 50
	MaxPageSize     = 100
)

type SendParams struct {
	Content string
	Type    types.MessageType
	ReplyTo *int
}

// SendMessage persists a message, marks it read for its sender, publishes it
// to the room and queues notifications for the other members. Nothing is
// published unless the message was persisted.
func (s *Service) SendMessage(ctx context.Context, principal types.User, roomId int, params SendParams) (types.Message, error) {
	msgType := params.Type
	if msgType == "" {
		msgType = types.MessageTypeText
	}
	if !msgType.Valid() {
		return types.Message{}, ErrMalformedPayload
	}
	if msgType == types.MessageTypeSystem {
		return types.Message{}, ErrForbidden
	}

	content := params.Content
	if msgType == types.MessageTypeText {
		content = strings.TrimSpace(content)
		if content == "" {
			return types.Message{}, ErrEmptyContent
		}
	}

	if _, err := s.loadActiveRoom(ctx, roomId); err != nil {
		return types.Message{}, err
	}

	member, err := s.membership(ctx, roomId, principal.Id)
	if err != nil {
		return types.Message{}, err
	}
	if member.IsBanned {
		return types.Message{}, ErrForbidden
	}

	if params.ReplyTo != nil {
		target, err := s.db.GetMessage(ctx, *params.ReplyTo)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return types.Message{}, ErrReplyTargetInvalid
			}
			return types.Message{}, storageError("get reply target", err)
		}
		if target.RoomId != roomId {
			return types.Message{}, ErrReplyTargetInvalid
		}
	}

	dbMsg, err := s.db.CreateMessage(ctx, database.CreateMessageParams{
		RoomId:   roomId,
		SenderId: principal.Id,
		Type:     string(msgType),
		Content:  content,
		ReplyTo:  params.ReplyTo,
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) && params.ReplyTo != nil {
			// reply target vanished between the check and the insert
			return types.Message{}, ErrReplyTargetInvalid
		}
		return types.Message{}, storageError("create message", err)
	}

	if err := s.db.UpsertReadMark(ctx, dbMsg.Id, principal.Id); err != nil {
		s.log.Warn().Err(err).Int("message_id", dbMsg.Id).Msg("failed to mark message read for sender")
	}

	msg := toMessage(dbMsg)
	s.broadcaster.Publish(roomId, types.NewChatMessageEvent(msg))

	if !s.notifier.Enqueue(msg) {
		s.log.Warn().Int("message_id", msg.Id).Msg("notification queue rejected message")
	}

	return msg, nil
}

// ListMessages returns a page of a room's non-deleted messages, newest
// first.
func (s *Service) ListMessages(ctx context.Context, principal types.User, roomId, page, pageSize int) (types.MessagePage, error) {
	if _, err := s.loadRoom(ctx, roomId); err != nil {
		return types.MessagePage{}, err
	}

	if _, err := s.membership(ctx, roomId, principal.Id); err != nil {
		return types.MessagePage{}, err
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	dbMessages, total, err := s.db.ListMessages(ctx, roomId, pageSize, (page-1)*pageSize)
	if err != nil {
		return types.MessagePage{}, storageError("list messages", err)
	}

	messages := make([]types.Message, 0, len(dbMessages))
	for _, m := range dbMessages {
		messages = append(messages, toMessage(m))
	}

	return types.MessagePage{
		Messages:    messages,
		Page:        page,
		PageSize:    pageSize,
		Total:       total,
		HasNext:     page*pageSize < total,
		HasPrevious: page > 1,
	}, nil
}

// SoftDeleteMessage replaces a message's content with a deletion marker.
// The row and its id are kept so replies and pagination stay stable.
func (s *Service) SoftDeleteMessage(ctx context.Context, principal types.User, messageId int) (types.Message, error) {
	msg, err := s.db.GetMessage(ctx, messageId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return types.Message{}, ErrMessageNotFound
		}
		return types.Message{}, storageError("get message", err)
	}

	if msg.SenderId != principal.Id {
		return types.Message{}, ErrForbidden
	}

	if msg.IsDeleted {
		return toMessage(msg), nil
	}

	deleted, err := s.db.SoftDeleteMessage(ctx, messageId, DeletedMessageMarker)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return types.Message{}, ErrMessageNotFound
		}
		return types.Message{}, storageError("soft delete message", err)
	}

	out := toMessage(deleted)
	s.broadcaster.Publish(out.RoomId, types.NewMessageDeletedEvent(out))
	return out, nil
}

// MarkRead records that principal has read a message. Repeated calls are
// no-ops.
func (s *Service) MarkRead(ctx context.Context, principal types.User, messageId int) error {
	msg, err := s.db.GetMessage(ctx, messageId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrMessageNotFound
		}
		return storageError("get message", err)
	}

	if _, err := s.membership(ctx, msg.RoomId, principal.Id); err != nil {
		return err
	}

	if err := s.db.UpsertReadMark(ctx, messageId, principal.Id); err != nil {
		return storageError("upsert read mark", err)
	}
	return nil
}

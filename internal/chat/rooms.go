package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/npezzotti/go-chatrooms/internal/database"
	"github.com/npezzotti/go-chatrooms/internal/types"
)

const DefaultMaxMembers = 50

type CreateRoomParams struct {
	Name        string
	Description string
	Type        types.RoomType
	MaxMembers  int
}

// CreateRoom creates a room with principal as its admin member.
func (s *Service) CreateRoom(ctx context.Context, principal types.User, params CreateRoomParams) (types.Room, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return types.Room{}, ErrMalformedPayload
	}

	roomType := params.Type
	switch roomType {
	case "":
		roomType = types.RoomTypePublic
	case types.RoomTypePublic, types.RoomTypePrivate, types.RoomTypeGroup:
	default:
		return types.Room{}, ErrMalformedPayload
	}

	maxMembers := params.MaxMembers
	if maxMembers <= 0 {
		maxMembers = DefaultMaxMembers
	}

	room, err := s.db.CreateRoom(ctx, database.CreateRoomParams{
		Name:        name,
		Description: params.Description,
		Type:        string(roomType),
		CreatedBy:   principal.Id,
		MaxMembers:  maxMembers,
	})
	if err != nil {
		return types.Room{}, storageError("create room", err)
	}

	s.log.Info().Int("room_id", room.Id).Int("user_id", principal.Id).Msg("room created")
	return toRoom(room), nil
}

// GetRoom returns a room its creator or one of its members can see.
func (s *Service) GetRoom(ctx context.Context, principal types.User, roomId int) (types.Room, error) {
	room, err := s.loadRoom(ctx, roomId)
	if err != nil {
		return types.Room{}, err
	}

	if room.CreatedBy != principal.Id {
		if _, err := s.membership(ctx, roomId, principal.Id); err != nil {
			return types.Room{}, err
		}
	}

	return toRoom(room), nil
}

func (s *Service) ListRooms(ctx context.Context, principal types.User) ([]types.Room, error) {
	dbRooms, err := s.db.ListRoomsForUser(ctx, principal.Id)
	if err != nil {
		return nil, storageError("list rooms", err)
	}

	rooms := make([]types.Room, 0, len(dbRooms))
	for _, r := range dbRooms {
		rooms = append(rooms, toRoom(r))
	}
	return rooms, nil
}

// DeleteRoom soft-deletes a room and closes its live connections. Only the
// creator may delete a room.
func (s *Service) DeleteRoom(ctx context.Context, principal types.User, roomId int) error {
	room, err := s.loadRoom(ctx, roomId)
	if err != nil {
		return err
	}

	if room.CreatedBy != principal.Id {
		return ErrForbidden
	}

	if !room.IsActive {
		return nil
	}

	if err := s.db.DeactivateRoom(ctx, roomId); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrRoomNotFound
		}
		return storageError("deactivate room", err)
	}

	s.broadcaster.CloseRoom(roomId)
	s.log.Info().Int("room_id", roomId).Int("user_id", principal.Id).Msg("room deactivated")
	return nil
}

// JoinRoom adds principal to an active room. Joining a room the principal
// already belongs to is a no-op.
func (s *Service) JoinRoom(ctx context.Context, principal types.User, roomId int) error {
	room, err := s.loadActiveRoom(ctx, roomId)
	if err != nil {
		return err
	}

	if _, err := s.membership(ctx, roomId, principal.Id); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotAMember) {
		return err
	}

	_, err = s.db.AddMember(ctx, roomId, principal.Id, string(types.RoleMember))
	switch {
	case errors.Is(err, database.ErrCapacity):
		return ErrRoomFull
	case errors.Is(err, database.ErrConflict):
		// lost a race with a concurrent join for the same user
		return nil
	case errors.Is(err, database.ErrNotFound):
		return ErrRoomNotFound
	case err != nil:
		return storageError("add member", err)
	}

	s.log.Info().Int("room_id", room.Id).Int("user_id", principal.Id).Msg("user joined room")
	s.postSystemMessage(ctx, room.Id, principal, fmt.Sprintf("%s joined the room", principal.Username))
	return nil
}

// LeaveRoom removes principal from a room and disconnects its live
// connections to it. Leaving a room the principal is not in is a no-op.
func (s *Service) LeaveRoom(ctx context.Context, principal types.User, roomId int) error {
	if _, err := s.loadRoom(ctx, roomId); err != nil {
		return err
	}

	if _, err := s.membership(ctx, roomId, principal.Id); err != nil {
		if errors.Is(err, ErrNotAMember) {
			return nil
		}
		return err
	}

	if err := s.db.RemoveMember(ctx, roomId, principal.Id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		return storageError("remove member", err)
	}

	s.log.Info().Int("room_id", roomId).Int("user_id", principal.Id).Msg("user left room")
	s.postSystemMessage(ctx, roomId, principal, fmt.Sprintf("%s left the room", principal.Username))
	s.broadcaster.Disconnect(roomId, principal.Id)
	return nil
}

func (s *Service) ListMembers(ctx context.Context, principal types.User, roomId int) ([]types.Member, error) {
	if _, err := s.loadRoom(ctx, roomId); err != nil {
		return nil, err
	}

	if _, err := s.membership(ctx, roomId, principal.Id); err != nil {
		return nil, err
	}

	dbMembers, err := s.db.ListMembers(ctx, roomId)
	if err != nil {
		return nil, storageError("list members", err)
	}

	members := make([]types.Member, 0, len(dbMembers))
	for _, m := range dbMembers {
		members = append(members, toMember(m))
	}
	return members, nil
}

// postSystemMessage records a membership change in the room's message
// stream. Failures are logged; the membership change itself stands.
func (s *Service) postSystemMessage(ctx context.Context, roomId int, principal types.User, content string) {
	msg, err := s.db.CreateMessage(ctx, database.CreateMessageParams{
		RoomId:   roomId,
		SenderId: principal.Id,
		Type:     string(types.MessageTypeSystem),
		Content:  content,
	})
	if err != nil {
		s.log.Warn().Err(err).Int("room_id", roomId).Msg("failed to persist system message")
		return
	}

	s.broadcaster.Publish(roomId, types.NewChatMessageEvent(toMessage(msg)))
}

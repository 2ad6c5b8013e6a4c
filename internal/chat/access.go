package chat

import (
	"context"
	"errors"

	"github.com/npezzotti/go-chatrooms/internal/database"
	"github.com/npezzotti/go-chatrooms/internal/types"
)

// Authorize decides whether principal may subscribe to roomId's event
// stream. A nil error means allow.
func (s *Service) Authorize(ctx context.Context, principal *types.User, roomId int) error {
	if principal == nil || principal.Id <= 0 {
		return ErrUnauthenticated
	}

	room, err := s.loadRoom(ctx, roomId)
	if err != nil {
		return err
	}

	if !room.IsActive {
		return ErrRoomInactive
	}

	if _, err := s.membership(ctx, roomId, principal.Id); err != nil {
		return err
	}

	return nil
}

func (s *Service) loadRoom(ctx context.Context, roomId int) (database.Room, error) {
	room, err := s.db.GetRoom(ctx, roomId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.Room{}, ErrRoomNotFound
		}
		return database.Room{}, storageError("get room", err)
	}
	return room, nil
}

// loadActiveRoom treats inactive rooms as missing.
func (s *Service) loadActiveRoom(ctx context.Context, roomId int) (database.Room, error) {
	room, err := s.loadRoom(ctx, roomId)
	if err != nil {
		return database.Room{}, err
	}
	if !room.IsActive {
		return database.Room{}, ErrRoomNotFound
	}
	return room, nil
}

func (s *Service) membership(ctx context.Context, roomId, userId int) (database.Membership, error) {
	m, err := s.db.GetMembership(ctx, roomId, userId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.Membership{}, ErrNotAMember
		}
		return database.Membership{}, storageError("get membership", err)
	}
	return m, nil
}

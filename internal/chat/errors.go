package chat

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrNotAMember           = errors.New("not a member of this room")
	ErrRoomInactive         = errors.New("room is inactive")
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomFull             = errors.New("room is full")
	ErrEmptyContent         = errors.New("message content cannot be empty")
	ErrReplyTargetInvalid   = errors.New("reply target is not a message in this room")
	ErrForbidden            = errors.New("forbidden")
	ErrMalformedPayload     = errors.New("invalid message format")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotificationNotFound = errors.New("notification not found")
)

var taxonomy = []error{
	ErrUnauthenticated,
	ErrNotAMember,
	ErrRoomInactive,
	ErrRoomNotFound,
	ErrRoomFull,
	ErrEmptyContent,
	ErrReplyTargetInvalid,
	ErrForbidden,
	ErrMalformedPayload,
	ErrStorageUnavailable,
	ErrMessageNotFound,
	ErrNotificationNotFound,
}

// Kind returns the taxonomy error err wraps. Errors outside the taxonomy are
// reported as ErrStorageUnavailable so internals never reach a client.
func Kind(err error) error {
	for _, kind := range taxonomy {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrStorageUnavailable
}

// IsFatal reports whether err must terminate the connection it occurred on.
func IsFatal(err error) bool {
	switch Kind(err) {
	case ErrUnauthenticated, ErrNotAMember, ErrRoomInactive, ErrRoomNotFound:
		return true
	}
	return false
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

package database

import "context"

// ChatRepository is the data-access interface consumed by the chat service.
// Lookups return ErrNotFound for missing rows, inserts return ErrConflict on
// uniqueness violations.
type ChatRepository interface {
	Ping(ctx context.Context) error

	CreateAccount(ctx context.Context, params CreateAccountParams) (User, error)
	GetAccountById(ctx context.Context, id int) (User, error)
	GetAccountByEmail(ctx context.Context, email string) (User, error)

	CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error)
	GetRoom(ctx context.Context, id int) (Room, error)
	ListRoomsForUser(ctx context.Context, userId int) ([]Room, error)
	DeactivateRoom(ctx context.Context, id int) error

	GetMembership(ctx context.Context, roomId, userId int) (Membership, error)
	ListMembers(ctx context.Context, roomId int) ([]Membership, error)
	// AddMember returns ErrCapacity when the room already holds max_members.
	AddMember(ctx context.Context, roomId, userId int, role string) (Membership, error)
	RemoveMember(ctx context.Context, roomId, userId int) error

	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessage(ctx context.Context, id int) (Message, error)
	ListMessages(ctx context.Context, roomId, limit, offset int) ([]Message, int, error)
	SoftDeleteMessage(ctx context.Context, id int, marker string) (Message, error)
	UpsertReadMark(ctx context.Context, messageId, userId int) error

	CreateNotification(ctx context.Context, params CreateNotificationParams) (Notification, error)
	ListNotifications(ctx context.Context, userId, limit int) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id, userId int) error
}

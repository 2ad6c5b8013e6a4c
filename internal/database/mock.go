package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockChatRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountById(ctx context.Context, id int) (User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountByEmail(ctx context.Context, email string) (User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) GetRoom(ctx context.Context, id int) (Room, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) ListRoomsForUser(ctx context.Context, userId int) ([]Room, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockChatRepository) DeactivateRoom(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockChatRepository) GetMembership(ctx context.Context, roomId, userId int) (Membership, error) {
	args := m.Called(ctx, roomId, userId)
	return args.Get(0).(Membership), args.Error(1)
}
func (m *MockChatRepository) ListMembers(ctx context.Context, roomId int) ([]Membership, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).([]Membership), args.Error(1)
}
func (m *MockChatRepository) AddMember(ctx context.Context, roomId, userId int, role string) (Membership, error) {
	args := m.Called(ctx, roomId, userId, role)
	return args.Get(0).(Membership), args.Error(1)
}
func (m *MockChatRepository) RemoveMember(ctx context.Context, roomId, userId int) error {
	args := m.Called(ctx, roomId, userId)
	return args.Error(0)
}
func (m *MockChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetMessage(ctx context.Context, id int) (Message, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) ListMessages(ctx context.Context, roomId, limit, offset int) ([]Message, int, error) {
	args := m.Called(ctx, roomId, limit, offset)
	return args.Get(0).([]Message), args.Int(1), args.Error(2)
}
func (m *MockChatRepository) SoftDeleteMessage(ctx context.Context, id int, marker string) (Message, error) {
	args := m.Called(ctx, id, marker)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) UpsertReadMark(ctx context.Context, messageId, userId int) error {
	args := m.Called(ctx, messageId, userId)
	return args.Error(0)
}
func (m *MockChatRepository) CreateNotification(ctx context.Context, params CreateNotificationParams) (Notification, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Notification), args.Error(1)
}
func (m *MockChatRepository) ListNotifications(ctx context.Context, userId, limit int) ([]Notification, error) {
	args := m.Called(ctx, userId, limit)
	return args.Get(0).([]Notification), args.Error(1)
}
func (m *MockChatRepository) MarkNotificationRead(ctx context.Context, id, userId int) error {
	args := m.Called(ctx, id, userId)
	return args.Error(0)
}

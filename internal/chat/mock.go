package chat

import (
	"github.com/npezzotti/go-chatrooms/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Publish(roomId int, evt *types.Event) {
	m.Called(roomId, evt)
}
func (m *MockBroadcaster) Disconnect(roomId, userId int) {
	m.Called(roomId, userId)
}
func (m *MockBroadcaster) CloseRoom(roomId int) {
	m.Called(roomId)
}

type MockNotificationSink struct {
	mock.Mock
}

func (m *MockNotificationSink) Enqueue(msg types.Message) bool {
	args := m.Called(msg)
	return args.Bool(0)
}

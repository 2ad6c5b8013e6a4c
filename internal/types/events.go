package types

import "time"

type EventType string

const (
	EventConnectionEstablished EventType = "connection_established"
	EventChatMessage           EventType = "chat_message"
	EventTyping                EventType = "typing"
	EventUserJoin              EventType = "user_join"
	EventUserLeave             EventType = "user_leave"
	EventMessageDeleted        EventType = "message_deleted"
	EventRoomClosed            EventType = "room_closed"
	EventError                 EventType = "error"
)

// InboundEvent is a frame received from a connected client.
type InboundEvent struct {
	Type        EventType   `json:"type"`
	Content     string      `json:"content,omitempty"`
	MessageType MessageType `json:"message_type,omitempty"`
	ReplyTo     *int        `json:"reply_to,omitempty"`
	IsTyping    bool        `json:"is_typing,omitempty"`
}

// Event is a frame sent to connected clients. Events are shared between
// every subscriber of a room and must not be modified once published.
//
// Message holds a *Message for chat_message and message_deleted events and a
// string for connection_established and error events.
type Event struct {
	Type         EventType `json:"type"`
	ConnectionId string    `json:"connection_id,omitempty"`
	RoomId       int       `json:"room_id,omitempty"`
	User         *User     `json:"user,omitempty"`
	IsTyping     *bool     `json:"is_typing,omitempty"`
	Message      any       `json:"message,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewConnectionEstablishedEvent(connId string, roomId int, user User) *Event {
	return &Event{
		Type:         EventConnectionEstablished,
		ConnectionId: connId,
		RoomId:       roomId,
		User:         &user,
		Message:      "connection established",
		Timestamp:    Now(),
	}
}

func NewChatMessageEvent(msg Message) *Event {
	return &Event{
		Type:      EventChatMessage,
		RoomId:    msg.RoomId,
		Message:   &msg,
		Timestamp: Now(),
	}
}

func NewMessageDeletedEvent(msg Message) *Event {
	return &Event{
		Type:      EventMessageDeleted,
		RoomId:    msg.RoomId,
		Message:   &msg,
		Timestamp: Now(),
	}
}

func NewTypingEvent(roomId int, user User, isTyping bool) *Event {
	return &Event{
		Type:      EventTyping,
		RoomId:    roomId,
		User:      &User{Id: user.Id, Username: user.Username},
		IsTyping:  &isTyping,
		Timestamp: Now(),
	}
}

func NewPresenceEvent(t EventType, roomId int, user User) *Event {
	return &Event{
		Type:      t,
		RoomId:    roomId,
		User:      &User{Id: user.Id, Username: user.Username},
		Timestamp: Now(),
	}
}

func NewRoomClosedEvent(roomId int) *Event {
	return &Event{
		Type:      EventRoomClosed,
		RoomId:    roomId,
		Timestamp: Now(),
	}
}

func NewErrorEvent(message string) *Event {
	return &Event{
		Type:      EventError,
		Message:   message,
		Timestamp: Now(),
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

package types

import (
	"time"
)

type RoomType string

const (
	RoomTypePublic  RoomType = "public"
	RoomTypePrivate RoomType = "private"
	RoomTypeGroup   RoomType = "group"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// Valid reports whether mt is one of the known message types.
func (mt MessageType) Valid() bool {
	switch mt {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	}
	return false
}

type NotificationType string

const (
	NotificationTypeMessage    NotificationType = "message"
	NotificationTypeMention    NotificationType = "mention"
	NotificationTypeRoomInvite NotificationType = "room_invite"
	NotificationTypeSystem     NotificationType = "system"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Room struct {
	Id          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        RoomType  `json:"room_type"`
	CreatedBy   int       `json:"created_by"`
	MaxMembers  int       `json:"max_members"`
	MemberCount int       `json:"member_count"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Member struct {
	RoomId   int       `json:"room_id"`
	User     User      `json:"user"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
	IsMuted  bool      `json:"is_muted"`
	IsBanned bool      `json:"is_banned"`
}

type Message struct {
	Id        int         `json:"id"`
	RoomId    int         `json:"room_id"`
	Sender    User        `json:"sender"`
	Type      MessageType `json:"message_type"`
	Content   string      `json:"content"`
	ReplyTo   *int        `json:"reply_to"`
	IsEdited  bool        `json:"is_edited"`
	IsDeleted bool        `json:"is_deleted"`
	CreatedAt time.Time   `json:"created_at"`
}

type MessagePage struct {
	Messages    []Message `json:"messages"`
	Page        int       `json:"page"`
	PageSize    int       `json:"page_size"`
	Total       int       `json:"total"`
	HasNext     bool      `json:"has_next"`
	HasPrevious bool      `json:"has_previous"`
}

type Notification struct {
	Id        int              `json:"id"`
	UserId    int              `json:"user_id"`
	Type      NotificationType `json:"notification_type"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	RoomId    *int             `json:"room_id"`
	MessageId *int             `json:"message_id"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

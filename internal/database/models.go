package database

import "time"

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	Id          int
	Name        string
	Description string
	Type        string
	CreatedBy   int
	MaxMembers  int
	MemberCount int
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Membership struct {
	Id         int
	RoomId     int
	UserId     int
	Username   string
	Role       string
	JoinedAt   time.Time
	LastReadAt time.Time
	IsMuted    bool
	IsBanned   bool
}

type Message struct {
	Id             int
	RoomId         int
	SenderId       int
	SenderUsername string
	Type           string
	Content        string
	ReplyTo        *int
	IsEdited       bool
	IsDeleted      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Notification struct {
	Id        int
	UserId    int
	Type      string
	Title     string
	Content   string
	RoomId    *int
	MessageId *int
	IsRead    bool
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateRoomParams struct {
	Name        string
	Description string
	Type        string
	CreatedBy   int
	MaxMembers  int
}

type CreateMessageParams struct {
	RoomId   int
	SenderId int
	Type     string
	Content  string
	ReplyTo  *int
}

type CreateNotificationParams struct {
	UserId    int
	Type      string
	Title     string
	Content   string
	RoomId    *int
	MessageId *int
}

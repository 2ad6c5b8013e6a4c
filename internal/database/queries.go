package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	roomColumns = "r.id, r.name, r.description, r.room_type, r.created_by, r.max_members, r.is_active, r.created_at, r.updated_at, " +
		"(SELECT count(*) FROM room_members m WHERE m.room_id = r.id)"
	memberColumns       = "m.id, m.room_id, m.user_id, a.username, m.role, m.joined_at, m.last_read_at, m.is_muted, m.is_banned"
	messageColumns      = "m.id, m.room_id, m.sender_id, a.username, m.message_type, m.content, m.reply_to, m.is_edited, m.is_deleted, m.created_at, m.updated_at"
	notificationColumns = "id, user_id, notification_type, title, content, room_id, message_id, is_read, created_at"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(s scanner) (Room, error) {
	var r Room
	err := s.Scan(
		&r.Id,
		&r.Name,
		&r.Description,
		&r.Type,
		&r.CreatedBy,
		&r.MaxMembers,
		&r.IsActive,
		&r.CreatedAt,
		&r.UpdatedAt,
		&r.MemberCount,
	)
	return r, err
}

func scanMembership(s scanner) (Membership, error) {
	var m Membership
	err := s.Scan(
		&m.Id,
		&m.RoomId,
		&m.UserId,
		&m.Username,
		&m.Role,
		&m.JoinedAt,
		&m.LastReadAt,
		&m.IsMuted,
		&m.IsBanned,
	)
	return m, err
}

func scanMessage(s scanner) (Message, error) {
	var (
		m       Message
		replyTo sql.NullInt64
	)
	err := s.Scan(
		&m.Id,
		&m.RoomId,
		&m.SenderId,
		&m.SenderUsername,
		&m.Type,
		&m.Content,
		&replyTo,
		&m.IsEdited,
		&m.IsDeleted,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if replyTo.Valid {
		id := int(replyTo.Int64)
		m.ReplyTo = &id
	}
	return m, err
}

func scanNotification(s scanner) (Notification, error) {
	var (
		n         Notification
		roomId    sql.NullInt64
		messageId sql.NullInt64
	)
	err := s.Scan(
		&n.Id,
		&n.UserId,
		&n.Type,
		&n.Title,
		&n.Content,
		&roomId,
		&messageId,
		&n.IsRead,
		&n.CreatedAt,
	)
	if roomId.Valid {
		id := int(roomId.Int64)
		n.RoomId = &id
	}
	if messageId.Valid {
		id := int(messageId.Int64)
		n.MessageId = &id
	}
	return n, err
}

func (db *PgChatRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO accounts (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, username, email, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		now,
		now,
	)

	var u User
	err := row.Scan(&u.Id, &u.Username, &u.EmailAddress, &u.CreatedAt, &u.UpdatedAt)
	return u, mapError(err)
}

func (db *PgChatRepository) GetAccountById(ctx context.Context, id int) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, email, created_at, updated_at FROM accounts WHERE id = $1",
		id,
	)

	var u User
	err := row.Scan(&u.Id, &u.Username, &u.EmailAddress, &u.CreatedAt, &u.UpdatedAt)
	return u, mapError(err)
}

func (db *PgChatRepository) GetAccountByEmail(ctx context.Context, email string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT id, username, email, password_hash, created_at, updated_at FROM accounts WHERE email = $1",
		email,
	)

	var u User
	err := row.Scan(&u.Id, &u.Username, &u.EmailAddress, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, mapError(err)
}

func (db *PgChatRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (room Room, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx,
		"INSERT INTO rooms (name, description, room_type, created_by, max_members, is_active, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6) "+
			"RETURNING id, name, description, room_type, created_by, max_members, is_active, created_at, updated_at",
		params.Name,
		params.Description,
		params.Type,
		params.CreatedBy,
		params.MaxMembers,
		now,
	).Scan(
		&room.Id,
		&room.Name,
		&room.Description,
		&room.Type,
		&room.CreatedBy,
		&room.MaxMembers,
		&room.IsActive,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return Room{}, mapError(err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO room_members (room_id, user_id, role, joined_at, last_read_at) VALUES ($1, $2, 'admin', $3, $3)",
		room.Id,
		params.CreatedBy,
		now,
	)
	if err != nil {
		return Room{}, mapError(err)
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	room.MemberCount = 1
	return room, nil
}

func (db *PgChatRepository) GetRoom(ctx context.Context, id int) (Room, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms r WHERE r.id = $1",
		id,
	)

	room, err := scanRoom(row)
	return room, mapError(err)
}

func (db *PgChatRepository) ListRoomsForUser(ctx context.Context, userId int) ([]Room, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+roomColumns+" FROM rooms r "+
			"WHERE r.is_active AND (r.created_by = $1 OR EXISTS "+
			"(SELECT 1 FROM room_members rm WHERE rm.room_id = r.id AND rm.user_id = $1)) "+
			"ORDER BY r.id DESC",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

func (db *PgChatRepository) DeactivateRoom(ctx context.Context, id int) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE rooms SET is_active = FALSE, updated_at = $2 WHERE id = $1",
		id,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	return expectAffected(res)
}

func (db *PgChatRepository) GetMembership(ctx context.Context, roomId, userId int) (Membership, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM room_members m JOIN accounts a ON a.id = m.user_id "+
			"WHERE m.room_id = $1 AND m.user_id = $2",
		roomId,
		userId,
	)

	m, err := scanMembership(row)
	return m, mapError(err)
}

func (db *PgChatRepository) ListMembers(ctx context.Context, roomId int) ([]Membership, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+memberColumns+" FROM room_members m JOIN accounts a ON a.id = m.user_id "+
			"WHERE m.room_id = $1 ORDER BY m.joined_at DESC",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		members = append(members, m)
	}

	return members, rows.Err()
}

func (db *PgChatRepository) AddMember(ctx context.Context, roomId, userId int, role string) (m Membership, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Membership{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// lock the room row so concurrent joins observe each other's inserts
	var maxMembers int
	err = tx.QueryRowContext(ctx, "SELECT max_members FROM rooms WHERE id = $1 FOR UPDATE", roomId).Scan(&maxMembers)
	if err != nil {
		return Membership{}, mapError(err)
	}

	var count int
	err = tx.QueryRowContext(ctx, "SELECT count(*) FROM room_members WHERE room_id = $1", roomId).Scan(&count)
	if err != nil {
		return Membership{}, err
	}

	if count >= maxMembers {
		err = ErrCapacity
		return Membership{}, err
	}

	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx,
		"WITH ins AS ("+
			"INSERT INTO room_members (room_id, user_id, role, joined_at, last_read_at) VALUES ($1, $2, $3, $4, $4) "+
			"RETURNING id, room_id, user_id, role, joined_at, last_read_at, is_muted, is_banned) "+
			"SELECT m.id, m.room_id, m.user_id, a.username, m.role, m.joined_at, m.last_read_at, m.is_muted, m.is_banned "+
			"FROM ins m JOIN accounts a ON a.id = m.user_id",
		roomId,
		userId,
		role,
		now,
	).Scan(
		&m.Id,
		&m.RoomId,
		&m.UserId,
		&m.Username,
		&m.Role,
		&m.JoinedAt,
		&m.LastReadAt,
		&m.IsMuted,
		&m.IsBanned,
	)
	if err != nil {
		err = mapError(err)
		return Membership{}, err
	}

	if err = tx.Commit(); err != nil {
		return Membership{}, err
	}

	return m, nil
}

func (db *PgChatRepository) RemoveMember(ctx context.Context, roomId, userId int) error {
	res, err := db.conn.ExecContext(ctx,
		"DELETE FROM room_members WHERE room_id = $1 AND user_id = $2",
		roomId,
		userId,
	)
	if err != nil {
		return err
	}

	return expectAffected(res)
}

func (db *PgChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRowContext(ctx,
		"WITH m AS ("+
			"INSERT INTO messages (room_id, sender_id, message_type, content, reply_to, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING *) "+
			"SELECT "+messageColumns+" FROM m JOIN accounts a ON a.id = m.sender_id",
		params.RoomId,
		params.SenderId,
		params.Type,
		params.Content,
		params.ReplyTo,
		now,
	)

	msg, err := scanMessage(row)
	return msg, mapError(err)
}

func (db *PgChatRepository) GetMessage(ctx context.Context, id int) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages m JOIN accounts a ON a.id = m.sender_id WHERE m.id = $1",
		id,
	)

	msg, err := scanMessage(row)
	return msg, mapError(err)
}

func (db *PgChatRepository) ListMessages(ctx context.Context, roomId, limit, offset int) ([]Message, int, error) {
	var total int
	err := db.conn.QueryRowContext(ctx,
		"SELECT count(*) FROM messages WHERE room_id = $1 AND NOT is_deleted",
		roomId,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages m JOIN accounts a ON a.id = m.sender_id "+
			"WHERE m.room_id = $1 AND NOT m.is_deleted ORDER BY m.created_at DESC, m.id DESC LIMIT $2 OFFSET $3",
		roomId,
		limit,
		offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, total, rows.Err()
}

func (db *PgChatRepository) SoftDeleteMessage(ctx context.Context, id int, marker string) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"WITH m AS ("+
			"UPDATE messages SET is_deleted = TRUE, content = $2, updated_at = $3 WHERE id = $1 RETURNING *) "+
			"SELECT "+messageColumns+" FROM m JOIN accounts a ON a.id = m.sender_id",
		id,
		marker,
		time.Now().UTC(),
	)

	msg, err := scanMessage(row)
	return msg, mapError(err)
}

func (db *PgChatRepository) UpsertReadMark(ctx context.Context, messageId, userId int) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO message_reads (message_id, user_id, read_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (message_id, user_id) DO NOTHING",
		messageId,
		userId,
		time.Now().UTC(),
	)

	return mapError(err)
}

func (db *PgChatRepository) CreateNotification(ctx context.Context, params CreateNotificationParams) (Notification, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO notifications (user_id, notification_type, title, content, room_id, message_id, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING "+notificationColumns,
		params.UserId,
		params.Type,
		params.Title,
		params.Content,
		params.RoomId,
		params.MessageId,
		time.Now().UTC(),
	)

	n, err := scanNotification(row)
	return n, mapError(err)
}

func (db *PgChatRepository) ListNotifications(ctx context.Context, userId, limit int) ([]Notification, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+notificationColumns+" FROM notifications WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2",
		userId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

func (db *PgChatRepository) MarkNotificationRead(ctx context.Context, id, userId int) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2",
		id,
		userId,
	)
	if err != nil {
		return err
	}

	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

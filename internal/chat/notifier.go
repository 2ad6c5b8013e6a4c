package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/npezzotti/go-chatrooms/internal/database"
	"github.com/npezzotti/go-chatrooms/internal/types"
	"github.com/rs/zerolog"
)

const (
	notificationQueueSize = 1024
	notifyTimeout         = 10 * time.Second
	snippetLength         = 100

	NotificationListLimit = 50
)

// Notifier creates notification rows for new messages on its own goroutine,
// off the send path.
type Notifier struct {
	log   zerolog.Logger
	db    database.ChatRepository
	queue chan types.Message
	stop  chan struct{}
	done  chan struct{}
}

func NewNotifier(logger zerolog.Logger, db database.ChatRepository) *Notifier {
	return &Notifier{
		log:   logger.With().Str("component", "notifier").Logger(),
		db:    db,
		queue: make(chan types.Message, notificationQueueSize),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Enqueue schedules msg for notification fan-out. It never blocks and
// reports false when the job was dropped.
func (n *Notifier) Enqueue(msg types.Message) bool {
	select {
	case <-n.stop:
		n.log.Warn().Int("message_id", msg.Id).Msg("notifier stopped, dropping notification job")
		return false
	default:
	}

	select {
	case n.queue <- msg:
		return true
	default:
		n.log.Warn().Int("message_id", msg.Id).Msg("notification queue full, dropping notification job")
		return false
	}
}

func (n *Notifier) Run() {
	defer close(n.done)

	n.log.Info().Msg("starting notifier")
	for {
		select {
		case msg := <-n.queue:
			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			n.Notify(ctx, msg)
			cancel()
		case <-n.stop:
			n.log.Info().Int("pending", len(n.queue)).Msg("stopping notifier")
			return
		}
	}
}

func (n *Notifier) Stop() {
	select {
	case <-n.stop:
	default:
		close(n.stop)
	}
	<-n.done
}

// Notify creates one notification per room member other than the sender and
// returns how many were created. Failures are logged and skipped.
func (n *Notifier) Notify(ctx context.Context, msg types.Message) int {
	members, err := n.db.ListMembers(ctx, msg.RoomId)
	if err != nil {
		n.log.Error().Err(err).Int("room_id", msg.RoomId).Msg("failed to list members for notification")
		return 0
	}

	roomId, messageId := msg.RoomId, msg.Id
	title := fmt.Sprintf("New message from %s", msg.Sender.Username)
	content := snippet(msg.Content, snippetLength)

	var created int
	for _, m := range members {
		if m.UserId == msg.Sender.Id {
			continue
		}

		_, err := n.db.CreateNotification(ctx, database.CreateNotificationParams{
			UserId:    m.UserId,
			Type:      string(types.NotificationTypeMessage),
			Title:     title,
			Content:   content,
			RoomId:    &roomId,
			MessageId: &messageId,
		})
		if err != nil {
			n.log.Error().Err(err).
				Int("user_id", m.UserId).
				Int("message_id", msg.Id).
				Msg("failed to create notification")
			continue
		}
		created++
	}

	n.log.Debug().Int("message_id", msg.Id).Int("notified", created).Msg("notifications created")
	return created
}

func snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func (s *Service) ListNotifications(ctx context.Context, principal types.User) ([]types.Notification, error) {
	dbNotifications, err := s.db.ListNotifications(ctx, principal.Id, NotificationListLimit)
	if err != nil {
		return nil, storageError("list notifications", err)
	}

	notifications := make([]types.Notification, 0, len(dbNotifications))
	for _, n := range dbNotifications {
		notifications = append(notifications, toNotification(n))
	}
	return notifications, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, principal types.User, notificationId int) error {
	if err := s.db.MarkNotificationRead(ctx, notificationId, principal.Id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return storageError("mark notification read", err)
	}
	return nil
}

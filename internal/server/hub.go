package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/npezzotti/go-chatrooms/internal/chat"
	"github.com/npezzotti/go-chatrooms/internal/stats"
	"github.com/npezzotti/go-chatrooms/internal/types"
	"github.com/rs/zerolog"
	"github.com/teris-io/shortid"
)

// ErrAcceptFailed is returned by Open when the transport could not be
// accepted after the connection was authorized.
var ErrAcceptFailed = errors.New("failed to accept transport")

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (int, error)
}

type ChatService interface {
	Principal(ctx context.Context, userId int) (types.User, error)
	Authorize(ctx context.Context, principal *types.User, roomId int) error
	SendMessage(ctx context.Context, principal types.User, roomId int, params chat.SendParams) (types.Message, error)
}

// Hub is the connection manager. It owns every live Client and is the only
// place a connection is opened or closed.
type Hub struct {
	log      zerolog.Logger
	verifier TokenVerifier
	svc      ChatService
	router   *Router
	stats    stats.StatsProvider
	conns    map[string]*Client
	connLock sync.Mutex
	pumps    sync.WaitGroup
}

func NewHub(logger zerolog.Logger, verifier TokenVerifier, svc ChatService, router *Router, sp stats.StatsProvider) *Hub {
	h := &Hub{
		log:      logger.With().Str("component", "hub").Logger(),
		verifier: verifier,
		svc:      svc,
		router:   router,
		stats:    sp,
		conns:    make(map[string]*Client),
	}
	router.closeFn = func(c *Client) { h.Close(c.id) }
	return h
}

// Open authenticates and authorizes a connection to roomId and only then
// calls accept to obtain its transport. On any failure before accept no
// transport exists and nothing is sent.
func (h *Hub) Open(ctx context.Context, token string, roomId int, accept func() (Transport, error)) (*Client, error) {
	c := newClient(newConnectionId(), roomId, h)

	userId, err := h.verifier.Verify(ctx, token)
	if err != nil {
		c.markClosed()
		c.log.Info().Err(err).Msg("connection denied: invalid token")
		return nil, fmt.Errorf("%w: %w", chat.ErrUnauthenticated, err)
	}

	principal, err := h.svc.Principal(ctx, userId)
	if err != nil {
		c.markClosed()
		c.log.Info().Err(err).Int("user_id", userId).Msg("connection denied: unknown principal")
		return nil, err
	}

	c.user = principal
	c.log = c.log.With().Int("user_id", principal.Id).Logger()
	c.transition(StateConnecting, StateAuthorizing)

	if err := h.svc.Authorize(ctx, &principal, roomId); err != nil {
		c.markClosed()
		c.log.Info().Err(err).Msg("connection denied")
		return nil, err
	}

	conn, err := accept()
	if err != nil {
		c.markClosed()
		c.log.Warn().Err(err).Msg("failed to accept transport")
		return nil, fmt.Errorf("%w: %w", ErrAcceptFailed, err)
	}
	c.conn = conn
	c.establishedAt = time.Now()

	// registered and subscribed under connLock so a concurrent Close sees
	// either nothing or a fully subscribed client
	h.connLock.Lock()
	h.conns[c.id] = c
	// queued before subscribing so it precedes any room event
	c.queueMessage(types.NewConnectionEstablishedEvent(c.id, roomId, principal))
	c.transition(StateAuthorizing, StateSubscribed)
	h.router.Subscribe(c)
	h.connLock.Unlock()
	h.stats.Incr(stats.NumActiveConnections)

	h.pumps.Add(2)
	go func() {
		defer h.pumps.Done()
		c.Write()
	}()
	go func() {
		defer h.pumps.Done()
		c.Read()
	}()

	c.log.Info().Msg("connection established")
	return c, nil
}

// Close unsubscribes and stops a connection. Closing an unknown or already
// closed connection is a no-op.
func (h *Hub) Close(connId string) {
	h.connLock.Lock()
	c, ok := h.conns[connId]
	if ok {
		delete(h.conns, connId)
	}
	h.connLock.Unlock()
	if !ok {
		return
	}

	c.markClosed()
	h.router.Unsubscribe(c)
	c.stopClient()
	h.stats.Decr(stats.NumActiveConnections)

	c.log.Info().Dur("duration", time.Since(c.establishedAt)).Msg("connection closed")
}

// Dispatch routes one inbound frame from connId.
func (h *Hub) Dispatch(ctx context.Context, connId string, raw []byte) {
	c := h.getConn(connId)
	if c == nil || c.State() != StateSubscribed {
		return
	}

	var in types.InboundEvent
	if err := json.Unmarshal(raw, &in); err != nil || in.Type == "" {
		c.log.Debug().Err(err).Msg("malformed inbound event")
		c.queueMessage(types.NewErrorEvent(chat.ErrMalformedPayload.Error()))
		return
	}

	switch in.Type {
	case types.EventChatMessage:
		h.handleChatMessage(ctx, c, in)
	case types.EventTyping:
		h.router.Publish(c.roomId, types.NewTypingEvent(c.roomId, c.user, in.IsTyping))
	case types.EventUserJoin, types.EventUserLeave:
		h.router.Publish(c.roomId, types.NewPresenceEvent(in.Type, c.roomId, c.user))
	default:
		c.log.Debug().Str("type", string(in.Type)).Msg("ignoring unknown event type")
	}
}

func (h *Hub) handleChatMessage(ctx context.Context, c *Client, in types.InboundEvent) {
	_, err := h.svc.SendMessage(ctx, c.user, c.roomId, chat.SendParams{
		Content: in.Content,
		Type:    in.MessageType,
		ReplyTo: in.ReplyTo,
	})
	if err == nil {
		return
	}

	kind := chat.Kind(err)
	c.queueMessage(types.NewErrorEvent(kind.Error()))

	if chat.IsFatal(err) {
		c.log.Info().Err(err).Msg("closing connection: no longer authorized")
		h.Close(c.id)
		return
	}

	if kind == chat.ErrStorageUnavailable {
		c.log.Error().Err(err).Msg("failed to send message")
	} else {
		c.log.Debug().Err(err).Msg("message rejected")
	}
}

func (h *Hub) getConn(connId string) *Client {
	h.connLock.Lock()
	defer h.connLock.Unlock()

	return h.conns[connId]
}

func (h *Hub) NumConnections() int {
	h.connLock.Lock()
	defer h.connLock.Unlock()

	return len(h.conns)
}

// Shutdown closes every connection and waits for their pumps to exit.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.connLock.Lock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.connLock.Unlock()

	h.log.Info().Int("connections", len(ids)).Msg("closing connections")
	for _, id := range ids {
		h.Close(id)
	}

	done := make(chan struct{})
	go func() {
		h.pumps.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newConnectionId() string {
	id, err := shortid.Generate()
	if err != nil {
		return fmt.Sprintf("conn-%d", time.Now().UnixNano())
	}
	return id
}

package server

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chatrooms/internal/types"
	"github.com/rs/zerolog"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingInterval    = (pongWait * 9) / 10
	maxMessageSize  = 4096
	sendQueueSize   = 256
	dispatchTimeout = 10 * time.Second
)

// Transport is the subset of *websocket.Conn used by a client.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type ConnState int32

const (
	StateConnecting ConnState = iota
	StateAuthorizing
	StateSubscribed
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthorizing:
		return "authorizing"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Client is one live connection, bound to a single principal and a single
// room for its whole lifetime.
type Client struct {
	id            string
	hub           *Hub
	log           zerolog.Logger
	conn          Transport
	user          types.User
	roomId        int
	state         atomic.Int32
	send          chan *types.Event
	stop          chan struct{}
	stopOnce      sync.Once
	establishedAt time.Time
}

func newClient(id string, roomId int, hub *Hub) *Client {
	return &Client{
		id:     id,
		hub:    hub,
		log:    hub.log.With().Str("conn_id", id).Int("room_id", roomId).Logger(),
		roomId: roomId,
		send:   make(chan *types.Event, sendQueueSize),
		stop:   make(chan struct{}),
	}
}

func (c *Client) Id() string       { return c.id }
func (c *Client) User() types.User { return c.user }
func (c *Client) RoomId() int      { return c.roomId }

func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Client) transition(from, to ConnState) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

// markClosed moves the client to StateClosed and reports whether it was
// subscribed beforehand.
func (c *Client) markClosed() bool {
	return ConnState(c.state.Swap(int32(StateClosed))) == StateSubscribed
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debug().Msg("write pump exiting")
	}()

	for {
		select {
		case evt := <-c.send:
			if !c.writeEvent(evt) {
				return
			}
		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}
		case <-c.stop:
			c.flush()
			c.writeFrame(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes events queued before the client was stopped.
func (c *Client) flush() {
	for {
		select {
		case evt := <-c.send:
			if !c.writeEvent(evt) {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.hub.Close(c.id)
		c.log.Debug().Msg("read pump exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("read")
			}
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		c.hub.Dispatch(ctx, c.id, raw)
		cancel()
	}
}

// queueMessage never blocks. It reports false when the client is stopped or
// its queue is full.
func (c *Client) queueMessage(evt *types.Event) bool {
	select {
	case <-c.stop:
		return false
	default:
	}

	select {
	case c.send <- evt:
		return true
	default:
		c.log.Warn().Str("type", string(evt.Type)).Msg("send queue full")
		return false
	}
}

func (c *Client) writeEvent(evt *types.Event) bool {
	b, err := json.Marshal(evt)
	if err != nil {
		c.log.Error().Err(err).Str("type", string(evt.Type)).Msg("failed to serialize event")
		return true
	}
	return c.writeFrame(websocket.TextMessage, b)
}

func (c *Client) writeFrame(msgType int, data []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(msgType, data); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Warn().Err(err).Msg("write")
		}
		return false
	}
	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

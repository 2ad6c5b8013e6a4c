package server

import (
	"context"
	"sync"
	"time"

	"github.com/npezzotti/go-chatrooms/internal/stats"
	"github.com/npezzotti/go-chatrooms/internal/types"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

// Router fans events out to the live subscribers of each room. It
// implements chat.Broadcaster.
type Router struct {
	log         zerolog.Logger
	stats       stats.StatsProvider
	mu          sync.RWMutex
	rooms       map[int]*Room
	idleTimeout time.Duration
	// closeFn is called for subscribers that must be disconnected
	closeFn func(c *Client)
}

func NewRouter(logger zerolog.Logger, sp stats.StatsProvider) *Router {
	rt := &Router{
		log:         logger.With().Str("component", "router").Logger(),
		stats:       sp,
		rooms:       make(map[int]*Room),
		idleTimeout: idleRoomTimeout,
	}
	rt.closeFn = rt.evict
	return rt
}

// evict is the closeFn used when no Hub owns the router's clients.
func (rt *Router) evict(c *Client) {
	rt.Unsubscribe(c)
	c.stopClient()
}

// Subscribe adds c to the subscriber set of c.roomId, loading the room if
// needed.
func (rt *Router) Subscribe(c *Client) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	r, ok := rt.rooms[c.roomId]
	if !ok {
		r = newRoom(c.roomId, rt)
		rt.rooms[c.roomId] = r
		rt.stats.Incr(stats.NumActiveRooms)
		go r.start()
	}

	r.addClient(c)
}

func (rt *Router) Unsubscribe(c *Client) {
	rt.mu.RLock()
	r, ok := rt.rooms[c.roomId]
	rt.mu.RUnlock()
	if !ok {
		return
	}

	r.removeClient(c)
}

// Publish queues evt for delivery to every subscriber of roomId. Events for
// rooms without subscribers are dropped.
func (rt *Router) Publish(roomId int, evt *types.Event) {
	r := rt.getRoom(roomId)
	if r == nil {
		rt.log.Debug().Int("room_id", roomId).Str("type", string(evt.Type)).Msg("no subscribers, dropping event")
		return
	}

	select {
	case r.jobs <- roomJob{evt: evt}:
		rt.stats.Incr(stats.NumPublishedEvents)
	case <-r.done:
	case <-time.After(publishTimeout):
		rt.log.Error().Int("room_id", roomId).Str("type", string(evt.Type)).Msg("publish queue full, dropping event")
	}
}

// Disconnect closes userId's connections to roomId after every event
// already published to the room has been delivered.
func (rt *Router) Disconnect(roomId, userId int) {
	rt.sendEvict(roomId, evictReq{userId: userId})
}

// CloseRoom announces room_closed to every subscriber of roomId and then
// closes their connections.
func (rt *Router) CloseRoom(roomId int) {
	rt.sendEvict(roomId, evictReq{all: true})
}

func (rt *Router) sendEvict(roomId int, req evictReq) {
	r := rt.getRoom(roomId)
	if r == nil {
		return
	}

	select {
	case r.jobs <- roomJob{evict: &req}:
	case <-r.done:
	case <-time.After(publishTimeout):
		rt.log.Error().Int("room_id", roomId).Msg("evict queue full, dropping request")
	}
}

func (rt *Router) SubscriberCount(roomId int) int {
	r := rt.getRoom(roomId)
	if r == nil {
		return 0
	}
	return r.subscriberCount()
}

func (rt *Router) getRoom(roomId int) *Room {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	return rt.rooms[roomId]
}

// unloadIfIdle removes r from the registry if it still has no subscribers.
// Subscribe holds mu while adding, so a room is never unloaded under a new
// subscriber.
func (rt *Router) unloadIfIdle(r *Room) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if r.subscriberCount() > 0 {
		return false
	}

	if rt.rooms[r.id] == r {
		delete(rt.rooms, r.id)
		rt.stats.Decr(stats.NumActiveRooms)
	}
	return true
}

// Shutdown stops every room goroutine.
func (rt *Router) Shutdown(ctx context.Context) error {
	rt.mu.Lock()
	rooms := make([]*Room, 0, len(rt.rooms))
	for id, r := range rt.rooms {
		rooms = append(rooms, r)
		delete(rt.rooms, id)
		rt.stats.Decr(stats.NumActiveRooms)
	}
	rt.mu.Unlock()

	rt.log.Info().Int("rooms", len(rooms)).Msg("shutting down rooms")
	for _, r := range rooms {
		close(r.exit)
	}

	for _, r := range rooms {
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

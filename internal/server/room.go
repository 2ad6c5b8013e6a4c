package server

import (
	"sync"
	"time"

	"github.com/npezzotti/go-chatrooms/internal/stats"
	"github.com/npezzotti/go-chatrooms/internal/types"
	"github.com/rs/zerolog"
)

const (
	idleRoomTimeout = 5 * time.Second
	roomQueueSize   = 256
)

type evictReq struct {
	userId int
	// all evicts every client after announcing the room closed.
	all bool
}

// roomJob is either an event to deliver or an eviction. Both share one queue
// so evictions observe every event published before them.
type roomJob struct {
	evt   *types.Event
	evict *evictReq
}

// Room owns the subscriber set of one chat room. Subscribers are added and
// removed synchronously under clientLock; events are delivered in order by
// the room's own goroutine.
type Room struct {
	id         int
	router     *Router
	log        zerolog.Logger
	clients    map[*Client]struct{}
	clientLock sync.RWMutex
	jobs       chan roomJob
	idleChan   chan struct{}
	// killTimer unloads the room once it has had no subscribers for a while
	killTimer *time.Timer
	exit      chan struct{}
	done      chan struct{}
}

func newRoom(id int, rt *Router) *Room {
	r := &Room{
		id:        id,
		router:    rt,
		log:       rt.log.With().Int("room_id", id).Logger(),
		clients:   make(map[*Client]struct{}),
		jobs:      make(chan roomJob, roomQueueSize),
		idleChan:  make(chan struct{}, 1),
		killTimer: time.NewTimer(rt.idleTimeout),
		exit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	r.killTimer.Stop()
	return r
}

func (r *Room) start() {
	defer close(r.done)
	r.log.Debug().Msg("starting room")

	for {
		select {
		case job := <-r.jobs:
			if job.evict != nil {
				r.handleEvict(*job.evict)
			} else {
				r.broadcast(job.evt)
			}
		case <-r.idleChan:
			if r.subscriberCount() == 0 {
				r.killTimer.Reset(r.router.idleTimeout)
			}
		case <-r.killTimer.C:
			if r.router.unloadIfIdle(r) {
				r.log.Debug().Msg("room idle, unloaded")
				return
			}
		case <-r.exit:
			r.killTimer.Stop()
			r.log.Debug().Msg("room exiting")
			return
		}
	}
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
}

// removeClient reports whether c was subscribed.
func (r *Room) removeClient(c *Client) bool {
	r.clientLock.Lock()
	_, ok := r.clients[c]
	delete(r.clients, c)
	empty := len(r.clients) == 0
	r.clientLock.Unlock()

	if ok && empty {
		select {
		case r.idleChan <- struct{}{}:
		default:
		}
	}
	return ok
}

func (r *Room) subscriberCount() int {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	return len(r.clients)
}

// broadcast queues evt on every subscriber. Subscribers whose queue is full
// or already stopped are closed after the lock is released.
func (r *Room) broadcast(evt *types.Event) {
	var failed []*Client

	r.clientLock.RLock()
	for c := range r.clients {
		if !c.queueMessage(evt) {
			failed = append(failed, c)
		}
	}
	r.clientLock.RUnlock()

	for _, c := range failed {
		r.log.Warn().Str("conn_id", c.id).Int("user_id", c.user.Id).Msg("dropping slow subscriber")
		r.router.stats.Incr(stats.NumDroppedDeliveries)
		r.router.closeFn(c)
	}
}

func (r *Room) handleEvict(req evictReq) {
	if req.all {
		r.broadcast(types.NewRoomClosedEvent(r.id))
	}

	var evicted []*Client
	r.clientLock.RLock()
	for c := range r.clients {
		if req.all || c.user.Id == req.userId {
			evicted = append(evicted, c)
		}
	}
	r.clientLock.RUnlock()

	for _, c := range evicted {
		r.router.closeFn(c)
	}

	r.log.Debug().Int("user_id", req.userId).Bool("all", req.all).Int("evicted", len(evicted)).Msg("evicted subscribers")
}

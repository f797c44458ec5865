package broadcast

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/careercounsel/cardroom/internal/platform/timeouts"
	"github.com/careercounsel/cardroom/internal/services/game/sessions"
	"golang.org/x/net/websocket"
)

var _ sessions.Publisher = (*Hub)(nil)

// sendQueueSize bounds the updates waiting for one subscriber. A peer whose
// queue is full is dropped instead of stalling the publisher.
const sendQueueSize = 32

// outbound is a queued update frame with the board version it carries.
type outbound struct {
	frame     Frame
	sessionID string
	version   int
}

type peer struct {
	mu       sync.Mutex
	conn     *websocket.Conn
	encoder  *json.Encoder
	playerID string

	send     chan outbound
	done     chan struct{}
	stopOnce sync.Once
}

func newPeer(conn *websocket.Conn, playerID string) *peer {
	return &peer{
		conn:     conn,
		encoder:  json.NewEncoder(conn),
		playerID: playerID,
		send:     make(chan outbound, sendQueueSize),
		done:     make(chan struct{}),
	}
}

func (p *peer) writeFrame(frame Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		_ = p.conn.SetWriteDeadline(time.Now().Add(timeouts.WebsocketWrite))
	}
	return p.encoder.Encode(frame)
}

// enqueue queues an update without blocking and reports whether it fit.
func (p *peer) enqueue(item outbound) bool {
	select {
	case p.send <- item:
		return true
	default:
		return false
	}
}

// writePump drains queued updates until stop. Updates for floor's session
// at or below its version are skipped; the join snapshot already covered
// them.
func (p *peer) writePump(floor sessions.Update) {
	for {
		select {
		case <-p.done:
			return
		case item := <-p.send:
			if floor.SessionID != "" && item.sessionID == floor.SessionID &&
				item.frame.Type == FrameStateUpdated && item.version <= floor.Version {
				continue
			}
			if err := p.writeFrame(item.frame); err != nil {
				p.closeConn()
				return
			}
		}
	}
}

func (p *peer) stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

func (p *peer) closeConn() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

type room struct {
	mu          sync.Mutex
	id          string
	subscribers map[*peer]struct{}
}

func (r *room) join(p *peer) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[p] = struct{}{}
	return len(r.subscribers)
}

func (r *room) leave(p *peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers, p)
	return len(r.subscribers) == 0
}

func (r *room) snapshot() []*peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*peer, 0, len(r.subscribers))
	for p := range r.subscribers {
		out = append(out, p)
	}
	return out
}

// Hub tracks rooms and their websocket subscribers.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*room)}
}

// join adds p to roomID, creating the room on first use, and returns the
// room with its new subscriber count. Lock order is hub then room.
func (h *Hub) join(roomID string, p *peer) (*room, int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{id: roomID, subscribers: make(map[*peer]struct{})}
		h.rooms[roomID] = r
	}
	return r, r.join(p)
}

// leave removes p and drops the room once it is empty.
func (h *Hub) leave(r *room, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r.leave(p) && h.rooms[r.id] == r {
		delete(h.rooms, r.id)
	}
}

// Close disconnects every subscriber. Serve loops return once their
// connection closes.
func (h *Hub) Close() {
	h.mu.Lock()
	rooms := make([]*room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.Unlock()

	for _, r := range rooms {
		for _, p := range r.snapshot() {
			p.closeConn()
		}
	}
}

// Subscribers returns how many peers are in a room.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	return len(r.snapshot())
}

// Publish queues update for every subscriber of roomID and returns without
// waiting on the writes. Peers whose queue is full are dropped from the room.
func (h *Hub) Publish(_ context.Context, roomID string, update sessions.Update) {
	h.mu.Lock()
	r, ok := h.rooms[roomID]
	h.mu.Unlock()
	if !ok {
		return
	}

	item := outbound{
		frame:     Frame{Type: frameTypeFor(update.Type), Payload: mustJSON(update)},
		sessionID: update.SessionID,
		version:   update.Version,
	}
	for _, p := range r.snapshot() {
		if !p.enqueue(item) {
			log.Printf("broadcast: dropping slow subscriber room=%s player=%q", roomID, p.playerID)
			h.leave(r, p)
			p.closeConn()
		}
	}
}

func frameTypeFor(updateType string) string {
	switch updateType {
	case sessions.UpdateSessionCreated:
		return FrameSessionCreated
	case sessions.UpdateSessionCompleted:
		return FrameSessionCompleted
	default:
		return FrameStateUpdated
	}
}

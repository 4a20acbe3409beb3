package session

import (
	"github.com/rs/zerolog"

	"github.com/devroom-sh/devroom/internal/metrics"
)

// Hub routes connections into project rooms and fans events out to
// room members. All joins, leaves, and broadcasts flow through a single
// dispatch goroutine, so no two broadcasts to the same room interleave
// and delivery order matches arrival order at the hub.
type Hub struct {
	logger zerolog.Logger

	register   chan *Conn
	unregister chan *Conn
	broadcast  chan broadcastReq
	quit       chan struct{}
	done       chan struct{}

	// rooms is touched only by the run loop.
	rooms map[string]map[*Conn]struct{}
}

type broadcastReq struct {
	projectID string
	frame     []byte
	exclude   *Conn // nil delivers to every member
}

// NewHub creates a hub. Call Run to start dispatching.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:     logger.With().Str("component", "hub").Logger(),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		broadcast:  make(chan broadcastReq, 64),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Conn]struct{}),
	}
}

// Run is the hub's dispatch loop. It owns the room table; run it in its
// own goroutine for the lifetime of the process.
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			room, ok := h.rooms[c.projectID]
			if !ok {
				room = make(map[*Conn]struct{})
				h.rooms[c.projectID] = room
			}
			room[c] = struct{}{}
			metrics.SessionConnections.Inc()
			h.logger.Info().
				Str("project", c.projectID).
				Str("user", c.identity.ID).
				Int("room_size", len(room)).
				Msg("connection joined room")

		case c := <-h.unregister:
			room, ok := h.rooms[c.projectID]
			if !ok {
				continue
			}
			if _, member := room[c]; !member {
				continue
			}
			delete(room, c)
			c.close()
			metrics.SessionConnections.Dec()
			if len(room) == 0 {
				delete(h.rooms, c.projectID)
			}
			h.logger.Info().
				Str("project", c.projectID).
				Str("user", c.identity.ID).
				Msg("connection left room")

		case req := <-h.broadcast:
			for c := range h.rooms[req.projectID] {
				if c == req.exclude {
					continue
				}
				select {
				case c.send <- req.frame:
				default:
					// Peer cannot keep up; drop it rather than
					// stalling the whole room.
					delete(h.rooms[req.projectID], c)
					c.close()
					metrics.SessionConnections.Dec()
					h.logger.Warn().
						Str("project", req.projectID).
						Str("user", c.identity.ID).
						Msg("dropping slow connection")
				}
			}

		case <-h.quit:
			for _, room := range h.rooms {
				for c := range room {
					c.close()
					metrics.SessionConnections.Dec()
				}
			}
			h.rooms = make(map[string]map[*Conn]struct{})
			return
		}
	}
}

// Join adds a connection to its project's room.
func (h *Hub) Join(c *Conn) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Leave removes a connection from its room. Safe to call for
// connections that were already removed.
func (h *Hub) Leave(c *Conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast delivers an event to every live connection in the project's
// room, skipping exclude when non-nil. Send failures are isolated to
// the failing peer.
func (h *Hub) Broadcast(projectID, event string, payload any, exclude *Conn) {
	frame, err := encodeEnvelope(event, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("encode broadcast")
		return
	}
	select {
	case h.broadcast <- broadcastReq{projectID: projectID, frame: frame, exclude: exclude}:
	case <-h.done:
	}
}

// Shutdown stops the dispatch loop and signals every connection to
// tear down.
func (h *Hub) Shutdown() {
	close(h.quit)
	<-h.done
}

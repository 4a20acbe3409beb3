package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/devroom-sh/devroom/internal/models"
	"github.com/devroom-sh/devroom/internal/runner"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // AI answers and file trees are large
	sendBuffer     = 64
)

// Conn is one authenticated session connection. It belongs to exactly
// one room for its lifetime and owns one sandbox runner.
type Conn struct {
	svc    *Service
	ws     *websocket.Conn
	logger zerolog.Logger

	identity  models.Identity
	projectID string
	joinedAt  time.Time

	// send is never closed: runner sink callbacks write to it from the
	// run goroutine after the hub has forgotten the connection. closed
	// is the teardown signal instead; sendEvent and writePump observe it.
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	runner *runner.Runner
}

func newConn(svc *Service, ws *websocket.Conn, identity models.Identity, projectID string) *Conn {
	return &Conn{
		svc: svc,
		ws:  ws,
		logger: svc.logger.With().
			Str("project", projectID).
			Str("user", identity.ID).
			Logger(),
		identity:  identity,
		projectID: projectID,
		joinedAt:  time.Now(),
		send:      make(chan []byte, sendBuffer),
		closed:    make(chan struct{}),
		runner:    runner.New(svc.logger, svc.workspaceDir, svc.buildTimeout),
	}
}

// serve joins the room and pumps messages until the transport closes.
func (c *Conn) serve() {
	c.svc.hub.Join(c)
	c.svc.sendHistory(c)

	go c.writePump()
	c.readPump()
}

// readPump reads inbound events and dispatches them. It runs on the
// connection's goroutine and exits when the transport closes.
func (c *Conn) readPump() {
	defer func() {
		c.svc.hub.Leave(c)
		c.runner.Close()
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("unexpected close")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			c.logger.Debug().Err(err).Msg("dropping malformed frame")
			continue
		}
		c.dispatch(env)
	}
}

// dispatch routes one inbound event. Long-running work (generation,
// build/run) is handed off so the read loop stays responsive.
func (c *Conn) dispatch(env Envelope) {
	switch env.Event {
	case EventChatMessage:
		var payload ChatPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return
		}
		c.svc.relayChat(c, payload.Message)

	case EventAIPrompt:
		var payload ChatPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return
		}
		c.svc.dispatchPrompt(c, payload.Message)

	case EventRunProject:
		go c.svc.runProject(c)

	case EventStopProject:
		go c.runner.Stop(c)

	default:
		c.logger.Debug().Str("event", env.Event).Msg("unknown event")
	}
}

// close marks the connection as torn down. Idempotent; called by the
// hub on leave, drop, and shutdown.
func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// writePump flushes the send channel to the transport and keeps the
// connection alive with pings. It exits on the close signal, never on
// a channel close.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-c.closed:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendEvent queues an event for this connection only. Returns false if
// the connection is torn down or its buffer is full.
func (c *Conn) sendEvent(event string, payload any) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	frame, err := encodeEnvelope(event, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("encode event")
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Runner sink implementation: build/run output and lifecycle events go
// to the connection that started the run only.

// Output streams one line of process output.
func (c *Conn) Output(line string) {
	c.sendEvent(EventTerminalOutput, TerminalPayload{Data: line})
}

// StateChanged announces a run lifecycle transition.
func (c *Conn) StateChanged(state runner.State) {
	c.sendEvent(EventRunState, RunStatePayload{State: state.String()})
}

// PreviewReady surfaces the preview address once the process listens.
func (c *Conn) PreviewReady(addr string) {
	c.sendEvent(EventPreviewReady, PreviewPayload{URL: addr})
}

// PreviewCleared retracts the preview address after the process exits.
func (c *Conn) PreviewCleared() {
	c.sendEvent(EventPreviewCleared, PreviewPayload{})
}

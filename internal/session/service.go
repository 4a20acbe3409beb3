// Package session implements the real-time collaboration protocol: the
// authenticated websocket handshake, project rooms with fan-out
// broadcast, the AI prompt dispatcher, the file-tree synchronizer, and
// the per-connection sandbox runner wiring.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/devroom-sh/devroom/internal/genai"
	"github.com/devroom-sh/devroom/internal/metrics"
	"github.com/devroom-sh/devroom/internal/models"
	"github.com/devroom-sh/devroom/internal/store"
)

const historyLimit = 50

// History is the optional chat backfill source for joining connections.
type History interface {
	AddMessage(ctx context.Context, msg *models.Message) error
	RecentMessages(ctx context.Context, projectID string, limit int) ([]models.Message, error)
}

// Options configures a session service.
type Options struct {
	Logger          zerolog.Logger
	Hub             *Hub
	Authenticator   *Authenticator
	Store           store.DataStore
	History         History // may be nil
	Generator       genai.Generator
	Synchronizer    *Synchronizer
	GenerateTimeout time.Duration
	WorkspaceDir    string
	BuildTimeout    time.Duration
	CheckOrigin     func(r *http.Request) bool
}

// Service ties the session components together and exposes the
// websocket endpoint.
type Service struct {
	logger zerolog.Logger
	hub    *Hub
	auth   *Authenticator
	store  store.DataStore
	hist   History
	gen    genai.Generator
	sync   *Synchronizer

	generateTimeout time.Duration
	workspaceDir    string
	buildTimeout    time.Duration

	upgrader websocket.Upgrader
}

// NewService creates a session service.
func NewService(opts Options) *Service {
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Service{
		logger:          opts.Logger.With().Str("component", "session").Logger(),
		hub:             opts.Hub,
		auth:            opts.Authenticator,
		store:           opts.Store,
		hist:            opts.History,
		gen:             opts.Generator,
		sync:            opts.Synchronizer,
		generateTimeout: opts.GenerateTimeout,
		workspaceDir:    opts.WorkspaceDir,
		buildTimeout:    opts.BuildTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// HandleWS is the handshake endpoint. The token comes from the
// Authorization header or the "token" query param; the project from the
// "projectId" query param. Rejections close the transport with a
// machine-readable reason before any room join happens.
func (s *Service) HandleWS(w http.ResponseWriter, r *http.Request) {
	tokenString := bearerToken(r)
	projectID := r.URL.Query().Get("projectId")

	identity, project, err := s.auth.Authenticate(r.Context(), tokenString, projectID)
	if err != nil {
		var rej *RejectError
		if errors.As(err, &rej) {
			metrics.SessionRejections.WithLabelValues(rej.Reason).Inc()
			s.logger.Warn().
				Str("reason", rej.Reason).
				Str("project", projectID).
				Msg("handshake rejected")
			writeJSONError(w, rej.Status, rej.Reason)
			return
		}
		s.logger.Error().Err(err).Msg("handshake failed")
		writeJSONError(w, http.StatusInternalServerError, "internal-error")
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.logger.Debug().Err(err).Msg("upgrade failed")
		return
	}

	conn := newConn(s, ws, identity, project.ID.String())
	conn.serve()
}

// relayChat validates and broadcasts a chat message to the sender's
// room. The sender does not receive its own echo; it renders the
// message locally. Empty-after-trim messages are dropped.
func (s *Service) relayChat(c *Conn, message string) {
	if strings.TrimSpace(message) == "" {
		return
	}

	s.hub.Broadcast(c.projectID, EventChatMessage, ChatPayload{
		Message:   message,
		Sender:    &c.identity,
		ProjectID: c.projectID,
	}, c)
	metrics.MessagesRelayed.Inc()

	s.recordMessage(c.projectID, c.identity, message)
}

// dispatchPrompt forwards a prompt to the generation service without
// blocking the caller's read loop. Whatever happens upstream, the room
// always receives exactly one well-formed AI message: the answer text,
// a raw-text fallback for malformed payloads, or a synthesized error.
func (s *Service) dispatchPrompt(c *Conn, prompt string) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return
	}

	go func() {
		ctx := context.Background()
		if s.generateTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.generateTimeout)
			defer cancel()
		}

		raw, err := s.gen.Generate(ctx, prompt)
		if err != nil {
			s.logger.Error().Err(err).Str("project", c.projectID).Msg("generation failed")
			metrics.AIPrompts.WithLabelValues("error").Inc()
			s.broadcastAIError(c.projectID, err.Error())
			return
		}

		resp := genai.ParseResponse(raw)

		if resp.Kind == genai.KindProject {
			// The shared tree must be updated before peers see the
			// chat event, so a fresh joiner observes consistent state.
			pid := uuid.MustParse(c.projectID)
			if _, err := s.sync.Apply(ctx, pid, resp.FileTree, resp.BuildCommand, resp.StartCommand); err != nil {
				s.logger.Error().Err(err).Str("project", c.projectID).Msg("file tree apply failed")
				metrics.AIPrompts.WithLabelValues("error").Inc()
				s.broadcastAIError(c.projectID, err.Error())
				return
			}
		}

		metrics.AIPrompts.WithLabelValues("ok").Inc()

		// Everyone sees the AI's reply, the asker included: asker and
		// sender differ for an AI turn.
		s.hub.Broadcast(c.projectID, EventChatMessage, ChatPayload{
			Message:   resp.Text,
			Sender:    &models.AISender,
			ProjectID: c.projectID,
		}, nil)

		s.recordMessage(c.projectID, models.AISender, resp.Text)
	}()
}

// broadcastAIError synthesizes a deterministic error message so chat
// consumers receive a well-formed AI turn even on upstream failure.
func (s *Service) broadcastAIError(projectID, reason string) {
	body, err := json.Marshal(errorPayload{
		Type:    "text",
		Content: "AI Error: " + reason,
	})
	if err != nil {
		return
	}
	s.hub.Broadcast(projectID, EventChatMessage, ChatPayload{
		Message:   string(body),
		Sender:    &models.AISender,
		ProjectID: projectID,
	}, nil)
}

// runProject fetches the project's current tree and hands it to the
// connection's runner. Output streams back to that connection only.
func (s *Service) runProject(c *Conn) {
	pid, err := uuid.Parse(c.projectID)
	if err != nil {
		return
	}

	ctx := context.Background()
	project, err := s.store.GetProject(ctx, pid)
	if err != nil || project == nil {
		c.Output("Failed to load project for run.")
		return
	}
	if len(project.FileTree) == 0 {
		c.Output("Project has no files to run.")
		return
	}

	if err := c.runner.Run(ctx, project.FileTree, project.BuildCommand, project.StartCommand, c); err != nil {
		s.logger.Debug().Err(err).Str("project", c.projectID).Msg("run ended with error")
	}
}

// sendHistory backfills recent chat for a joining connection.
func (s *Service) sendHistory(c *Conn) {
	if s.hist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	messages, err := s.hist.RecentMessages(ctx, c.projectID, historyLimit)
	if err != nil {
		c.logger.Debug().Err(err).Msg("history backfill failed")
		return
	}
	if len(messages) == 0 {
		return
	}
	c.sendEvent(EventRoomHistory, HistoryPayload{Messages: messages})
}

// recordMessage appends to the room history cache, best effort.
func (s *Service) recordMessage(projectID string, sender models.Identity, body string) {
	if s.hist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := s.hist.AddMessage(ctx, &models.Message{
		ProjectID: projectID,
		Sender:    sender,
		Body:      body,
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("project", projectID).Msg("history record failed")
	}
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func writeJSONError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": reason})
}

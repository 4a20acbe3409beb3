package session

import (
	"encoding/json"

	"github.com/devroom-sh/devroom/internal/models"
)

// Inbound event names.
const (
	EventChatMessage = "chat-message"
	EventAIPrompt    = "ai-prompt"
	EventRunProject  = "run-project"
	EventStopProject = "stop-project"
)

// Outbound event names.
const (
	EventRoomHistory    = "room-history"
	EventTerminalOutput = "terminal-output"
	EventRunState       = "run-state"
	EventPreviewReady   = "preview-ready"
	EventPreviewCleared = "preview-cleared"
)

// Envelope is the wire frame for every session event, in and out.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ChatPayload is the inbound chat/prompt payload and, with sender and
// project attached, the outbound broadcast payload.
type ChatPayload struct {
	Message   string           `json:"message"`
	Sender    *models.Identity `json:"sender,omitempty"`
	ProjectID string           `json:"projectId,omitempty"`
}

// TerminalPayload carries one line of build/run output.
type TerminalPayload struct {
	Data string `json:"data"`
}

// RunStatePayload announces a run lifecycle transition.
type RunStatePayload struct {
	State string `json:"state"`
}

// PreviewPayload carries the preview address of a running project.
type PreviewPayload struct {
	URL string `json:"url"`
}

// HistoryPayload backfills recent chat for a joining connection.
type HistoryPayload struct {
	Messages []models.Message `json:"messages"`
}

// errorPayload is the synthesized message body broadcast when the
// generation service fails; it keeps the chat well-formed on upstream
// errors.
type errorPayload struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func encodeEnvelope(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

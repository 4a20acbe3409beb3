package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered collaborator.
type User struct {
	ID           uuid.UUID   `json:"_id"`
	Name         string      `json:"name"`
	Username     string      `json:"username"`
	Email        string      `json:"email"`
	Age          int         `json:"age,omitempty"`
	PasswordHash string      `json:"-"`
	Projects     []uuid.UUID `json:"projects,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Identity is the claim extracted from a verified token. It is attached
// to a session connection at handshake time and never mutated afterwards.
type Identity struct {
	ID    string `json:"_id"`
	Email string `json:"email"`
}

// AISender is the reserved identity attached to assistant-originated
// messages. No connection ever authenticates as this identity.
var AISender = Identity{ID: "ai", Email: "AI"}

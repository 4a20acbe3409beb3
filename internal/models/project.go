package models

import (
	"time"

	"github.com/google/uuid"
)

// Project represents a shared workspace: a named file tree plus the set
// of users allowed to join its session room.
type Project struct {
	ID           uuid.UUID   `json:"_id"`
	Name         string      `json:"name"`
	OwnerID      uuid.UUID   `json:"owner"`
	Members      []uuid.UUID `json:"users"`
	FileTree     FileTree    `json:"fileTree"`
	BuildCommand *Command    `json:"buildCommand,omitempty"`
	StartCommand *Command    `json:"startCommand,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// HasMember reports whether the given user may join this project's
// session room. The owner has implicit access.
func (p *Project) HasMember(id uuid.UUID) bool {
	if p.OwnerID == id {
		return true
	}
	for _, m := range p.Members {
		if m == id {
			return true
		}
	}
	return false
}

// Command is a build or start invocation attached to a project,
// typically suggested by the assistant alongside a generated file tree.
type Command struct {
	MainItem string   `json:"mainItem"`
	Commands []string `json:"commands"`
}

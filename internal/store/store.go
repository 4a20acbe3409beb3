package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/devroom-sh/devroom/internal/models"
)

// ErrDuplicate is returned when a unique constraint (project name,
// username, email) is violated.
var ErrDuplicate = errors.New("duplicate record")

// DataStore defines the interface for persistent storage of users and
// projects. Both PostgresStore and SQLiteStore implement this interface.
// Lookups return (nil, nil) when the record does not exist.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, name, username, email string, age int, passwordHash string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsersExcept(ctx context.Context, id uuid.UUID) ([]models.User, error)

	// Project operations
	CreateProject(ctx context.Context, name string, ownerID uuid.UUID) (*models.Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListProjectsByMember(ctx context.Context, userID uuid.UUID) ([]models.Project, error)
	AddProjectMembers(ctx context.Context, projectID uuid.UUID, members []uuid.UUID) (*models.Project, error)
	RenameProject(ctx context.Context, projectID, ownerID uuid.UUID, name string) (*models.Project, error)
	DeleteProject(ctx context.Context, projectID, ownerID uuid.UUID) (bool, error)
	ReplaceFileTree(ctx context.Context, projectID uuid.UUID, tree models.FileTree, build, start *models.Command) (*models.Project, error)
}

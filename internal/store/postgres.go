package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devroom-sh/devroom/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		age INTEGER DEFAULT 0,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT now(),
		updated_at TIMESTAMPTZ DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT UNIQUE NOT NULL,
		owner_id UUID NOT NULL REFERENCES users(id),
		file_tree JSONB NOT NULL DEFAULT '{}',
		build_command JSONB,
		start_command JSONB,
		created_at TIMESTAMPTZ DEFAULT now(),
		updated_at TIMESTAMPTZ DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS project_members (
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id),
		PRIMARY KEY (project_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id);
	CREATE INDEX IF NOT EXISTS idx_members_user ON project_members(user_id);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, name, username, email string, age int, passwordHash string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, username, email, age, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, username, email, age, password_hash, created_at, updated_at
	`, name, username, email, age, passwordHash).Scan(
		&user.ID,
		&user.Name,
		&user.Username,
		&user.Email,
		&user.Age,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if isPGUnique(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

// GetUserByEmail retrieves a user by email, including the password hash.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `WHERE email = $1`, email)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, username, email, age, password_hash, created_at, updated_at
		FROM users `+where, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Username,
		&user.Email,
		&user.Age,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// ListUsersExcept returns all users except the given one.
func (s *PostgresStore) ListUsersExcept(ctx context.Context, id uuid.UUID) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, email FROM users WHERE id != $1 ORDER BY username
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateProject creates a new project with the owner as its first member.
func (s *PostgresStore) CreateProject(ctx context.Context, name string, ownerID uuid.UUID) (*models.Project, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO projects (name, owner_id) VALUES ($1, $2) RETURNING id
	`, name, ownerID).Scan(&id)
	if err != nil {
		if isPGUnique(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id) VALUES ($1, $2)
	`, id, ownerID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s.GetProject(ctx, id)
}

// GetProject retrieves a project and its member list by ID.
func (s *PostgresStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project := &models.Project{}
	var treeJSON []byte
	var buildJSON, startJSON []byte

	err := s.pool.QueryRow(ctx, `
		SELECT id, name, owner_id, file_tree, build_command, start_command, created_at, updated_at
		FROM projects WHERE id = $1
	`, id).Scan(
		&project.ID,
		&project.Name,
		&project.OwnerID,
		&treeJSON,
		&buildJSON,
		&startJSON,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(treeJSON, &project.FileTree); err != nil {
		return nil, err
	}
	if len(buildJSON) > 0 {
		project.BuildCommand = &models.Command{}
		if err := json.Unmarshal(buildJSON, project.BuildCommand); err != nil {
			return nil, err
		}
	}
	if len(startJSON) > 0 {
		project.StartCommand = &models.Command{}
		if err := json.Unmarshal(startJSON, project.StartCommand); err != nil {
			return nil, err
		}
	}

	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM project_members WHERE project_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m uuid.UUID
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		project.Members = append(project.Members, m)
	}
	return project, rows.Err()
}

// ListProjectsByMember returns projects the user owns or collaborates on.
func (s *PostgresStore) ListProjectsByMember(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT p.id FROM projects p
		LEFT JOIN project_members m ON m.project_id = p.id
		WHERE p.owner_id = $1 OR m.user_id = $1
		ORDER BY p.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	projects := make([]models.Project, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetProject(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			projects = append(projects, *p)
		}
	}
	return projects, nil
}

// AddProjectMembers adds collaborators to a project, skipping existing ones.
func (s *PostgresStore) AddProjectMembers(ctx context.Context, projectID uuid.UUID, members []uuid.UUID) (*models.Project, error) {
	for _, m := range members {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO project_members (project_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, projectID, m)
		if err != nil {
			return nil, err
		}
	}
	return s.GetProject(ctx, projectID)
}

// RenameProject updates a project's name. Only the owner may rename.
func (s *PostgresStore) RenameProject(ctx context.Context, projectID, ownerID uuid.UUID, name string) (*models.Project, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects SET name = $1, updated_at = now() WHERE id = $2 AND owner_id = $3
	`, name, projectID, ownerID)
	if err != nil {
		if isPGUnique(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return s.GetProject(ctx, projectID)
}

// DeleteProject removes a project. Only the owner may delete.
func (s *PostgresStore) DeleteProject(ctx context.Context, projectID, ownerID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM projects WHERE id = $1 AND owner_id = $2
	`, projectID, ownerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ReplaceFileTree replaces the project's stored file tree wholesale and
// records the assistant-suggested build/start commands when present.
func (s *PostgresStore) ReplaceFileTree(ctx context.Context, projectID uuid.UUID, tree models.FileTree, build, start *models.Command) (*models.Project, error) {
	treeJSON, err := json.Marshal(tree)
	if err != nil {
		return nil, err
	}
	var buildJSON, startJSON []byte
	if build != nil {
		if buildJSON, err = json.Marshal(build); err != nil {
			return nil, err
		}
	}
	if start != nil {
		if startJSON, err = json.Marshal(start); err != nil {
			return nil, err
		}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE projects SET
			file_tree = $1,
			build_command = COALESCE($2, build_command),
			start_command = COALESCE($3, start_command),
			updated_at = now()
		WHERE id = $4
	`, treeJSON, buildJSON, startJSON, projectID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}
	return s.GetProject(ctx, projectID)
}

func isPGUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

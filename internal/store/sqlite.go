package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/devroom-sh/devroom/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the default
// store in development; production deployments use PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/devroom.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/devroom.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		username TEXT UNIQUE NOT NULL,
		email TEXT UNIQUE NOT NULL,
		age INTEGER DEFAULT 0,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		owner_id TEXT NOT NULL REFERENCES users(id),
		file_tree TEXT NOT NULL DEFAULT '{}',
		build_command TEXT,
		start_command TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS project_members (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id),
		PRIMARY KEY (project_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id);
	CREATE INDEX IF NOT EXISTS idx_members_user ON project_members(user_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, username, email string, age int, passwordHash string) (*models.User, error) {
	id := uuid.New().String()
	now := time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, username, email, age, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, name, username, email, age, passwordHash, now, now)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	return s.GetUserByID(ctx, uuid.MustParse(id))
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id.String())
}

// GetUserByEmail retrieves a user by email, including the password hash.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `WHERE email = ?`, email)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	user := &models.User{}
	var idStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, username, email, age, password_hash, created_at, updated_at
		FROM users `+where, arg).Scan(
		&idStr,
		&user.Name,
		&user.Username,
		&user.Email,
		&user.Age,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID = uuid.MustParse(idStr)
	return user, nil
}

// ListUsersExcept returns all users except the given one.
func (s *SQLiteStore) ListUsersExcept(ctx context.Context, id uuid.UUID) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, email FROM users WHERE id != ? ORDER BY username
	`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		var idStr string
		if err := rows.Scan(&idStr, &u.Username, &u.Email); err != nil {
			return nil, err
		}
		u.ID = uuid.MustParse(idStr)
		users = append(users, u)
	}
	return users, rows.Err()
}

// CreateProject creates a new project with the owner as its first member.
func (s *SQLiteStore) CreateProject(ctx context.Context, name string, ownerID uuid.UUID) (*models.Project, error) {
	id := uuid.New().String()
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, owner_id, file_tree, created_at, updated_at)
		VALUES (?, ?, ?, '{}', ?, ?)
	`, id, name, ownerID.String(), now, now)
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id) VALUES (?, ?)
	`, id, ownerID.String())
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetProject(ctx, uuid.MustParse(id))
}

// GetProject retrieves a project and its member list by ID.
func (s *SQLiteStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project := &models.Project{}
	var idStr, ownerStr, treeJSON string
	var buildJSON, startJSON sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, file_tree, build_command, start_command, created_at, updated_at
		FROM projects WHERE id = ?
	`, id.String()).Scan(
		&idStr,
		&project.Name,
		&ownerStr,
		&treeJSON,
		&buildJSON,
		&startJSON,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	project.ID = uuid.MustParse(idStr)
	project.OwnerID = uuid.MustParse(ownerStr)

	if err := json.Unmarshal([]byte(treeJSON), &project.FileTree); err != nil {
		return nil, err
	}
	if project.BuildCommand, err = unmarshalCommand(buildJSON); err != nil {
		return nil, err
	}
	if project.StartCommand, err = unmarshalCommand(startJSON); err != nil {
		return nil, err
	}

	members, err := s.projectMembers(ctx, idStr)
	if err != nil {
		return nil, err
	}
	project.Members = members

	return project, nil
}

func (s *SQLiteStore) projectMembers(ctx context.Context, projectID string) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM project_members WHERE project_id = ?
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, err
		}
		members = append(members, uuid.MustParse(idStr))
	}
	return members, rows.Err()
}

// ListProjectsByMember returns projects the user owns or collaborates on.
func (s *SQLiteStore) ListProjectsByMember(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT p.id FROM projects p
		LEFT JOIN project_members m ON m.project_id = p.id
		WHERE p.owner_id = ? OR m.user_id = ?
		ORDER BY p.id
	`, userID.String(), userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, err
		}
		ids = append(ids, uuid.MustParse(idStr))
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
func (s *SQLiteStore) AddProjectMembers(ctx context.Context, projectID uuid.UUID, members []uuid.UUID) (*models.Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, m := range members {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO project_members (project_id, user_id) VALUES (?, ?)
		`, projectID.String(), m.String())
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetProject(ctx, projectID)
}

// RenameProject updates a project's name. Only the owner may rename;
// returns (nil, nil) when the project does not exist or the caller is
// not the owner.
func (s *SQLiteStore) RenameProject(ctx context.Context, projectID, ownerID uuid.UUID, name string) (*models.Project, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET name = ?, updated_at = ? WHERE id = ? AND owner_id = ?
	`, name, time.Now(), projectID.String(), ownerID.String())
	if err != nil {
		if isSQLiteUnique(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetProject(ctx, projectID)
}

// DeleteProject removes a project. Only the owner may delete.
func (s *SQLiteStore) DeleteProject(ctx context.Context, projectID, ownerID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM projects WHERE id = ? AND owner_id = ?
	`, projectID.String(), ownerID.String())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ReplaceFileTree replaces the project's stored file tree wholesale and
// records the assistant-suggested build/start commands when present.
func (s *SQLiteStore) ReplaceFileTree(ctx context.Context, projectID uuid.UUID, tree models.FileTree, build, start *models.Command) (*models.Project, error) {
	treeJSON, err := json.Marshal(tree)
	if err != nil {
		return nil, err
	}
	buildJSON, err := marshalCommand(build)
	if err != nil {
		return nil, err
	}
	startJSON, err := marshalCommand(start)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET
			file_tree = ?,
			build_command = COALESCE(?, build_command),
			start_command = COALESCE(?, start_command),
			updated_at = ?
		WHERE id = ?
	`, string(treeJSON), buildJSON, startJSON, time.Now(), projectID.String())
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetProject(ctx, projectID)
}

func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func marshalCommand(c *models.Command) (*string, error) {
	if c == nil {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func unmarshalCommand(v sql.NullString) (*models.Command, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var c models.Command
	if err := json.Unmarshal([]byte(v.String), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

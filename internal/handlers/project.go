package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/devroom-sh/devroom/internal/api/middleware"
	"github.com/devroom-sh/devroom/internal/metrics"
	"github.com/devroom-sh/devroom/internal/models"
	"github.com/devroom-sh/devroom/internal/store"
)

// CreateProjectRequest represents the project creation request.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// AddUsersRequest represents the add-collaborators request.
type AddUsersRequest struct {
	ProjectID string   `json:"projectId"`
	Users     []string `json:"users"`
}

// UpdateFileTreeRequest represents the manual file-tree update request.
type UpdateFileTreeRequest struct {
	ProjectID string          `json:"projectId"`
	FileTree  models.FileTree `json:"fileTree"`
}

// RenameProjectRequest represents the rename request.
type RenameProjectRequest struct {
	Name string `json:"name"`
}

// callerID extracts the authenticated user's UUID, or writes an error.
func (h *Handler) callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(identity.ID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID")
		return uuid.Nil, false
	}
	return id, true
}

// CreateProject handles project creation.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Name = strings.ToLower(strings.TrimSpace(req.Name))
	if req.Name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	project, err := h.db.CreateProject(r.Context(), req.Name, userID)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			h.Error(w, http.StatusConflict, "project name already exists")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	metrics.ProjectsCreated.Inc()
	h.JSON(w, http.StatusCreated, project)
}

// AllProjects lists projects the caller owns or collaborates on.
func (h *Handler) AllProjects(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	projects, err := h.db.ListProjectsByMember(r.Context(), userID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch projects")
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}

	h.JSON(w, http.StatusOK, map[string][]models.Project{"projects": projects})
}

// AddUsers adds collaborators to a project. The caller must already be
// a member (owner or collaborator).
func (h *Handler) AddUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req AddUsersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid projectId")
		return
	}
	if len(req.Users) == 0 {
		h.Error(w, http.StatusBadRequest, "users array is required and must not be empty")
		return
	}

	members := make([]uuid.UUID, 0, len(req.Users))
	for _, u := range req.Users {
		id, err := uuid.Parse(u)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid userId in users array")
			return
		}
		members = append(members, id)
	}

	project, err := h.db.GetProject(r.Context(), projectID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if project == nil || !project.HasMember(userID) {
		h.Error(w, http.StatusForbidden, "project not found or user not authorized to modify it")
		return
	}

	updated, err := h.db.AddProjectMembers(r.Context(), projectID, members)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to add collaborators")
		return
	}

	h.JSON(w, http.StatusOK, map[string]*models.Project{"project": updated})
}

// GetProject returns a project by ID.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectId"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid projectId")
		return
	}

	project, err := h.db.GetProject(r.Context(), projectID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if project == nil {
		h.Error(w, http.StatusNotFound, "project not found")
		return
	}

	h.JSON(w, http.StatusOK, map[string]*models.Project{"project": project})
}

// UpdateFileTree replaces a project's file tree from a manual edit.
func (h *Handler) UpdateFileTree(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req UpdateFileTreeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid projectId")
		return
	}
	if err := req.FileTree.Validate(); err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	project, err := h.db.GetProject(r.Context(), projectID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if project == nil || !project.HasMember(userID) {
		h.Error(w, http.StatusForbidden, "project not found or user not authorized to modify it")
		return
	}

	// Serialized with AI applies for the same project.
	updated, err := h.sync.Apply(r.Context(), projectID, req.FileTree, nil, nil)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to update file tree")
		return
	}

	h.JSON(w, http.StatusOK, map[string]*models.Project{"project": updated})
}

// RenameProject updates a project's name. Owner only.
func (h *Handler) RenameProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(chi.URLParam(r, "projectId"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid projectId")
		return
	}

	var req RenameProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Name = strings.ToLower(strings.TrimSpace(req.Name))
	if req.Name == "" {
		h.Error(w, http.StatusBadRequest, "project name is required")
		return
	}

	project, err := h.db.RenameProject(r.Context(), projectID, userID, req.Name)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			h.Error(w, http.StatusConflict, "project name already exists")
			return
		}
		h.Error(w, http.StatusInternalServerError, "failed to update project")
		return
	}
	if project == nil {
		h.Error(w, http.StatusNotFound, "project not found or user unauthorized to update")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{
		"message": "Project updated successfully!",
		"project": project,
	})
}

// DeleteProject removes a project. Owner only.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(chi.URLParam(r, "projectId"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid projectId")
		return
	}

	deleted, err := h.db.DeleteProject(r.Context(), projectID, userID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to delete project")
		return
	}
	if !deleted {
		h.Error(w, http.StatusNotFound, "project not found or user unauthorized to delete")
		return
	}

	h.JSON(w, http.StatusOK, map[string]string{"message": "Project deleted successfully!"})
}

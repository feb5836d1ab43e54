package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dbi-software/hive/database"
	"github.com/dbi-software/hive/services"
)

// ProjectsHandler handles project and sprint endpoints.
type ProjectsHandler struct {
	store      *database.Store
	visibility *services.VisibilityResolver
	logger     *slog.Logger
}

func NewProjectsHandler(store *database.Store, visibility *services.VisibilityResolver, logger *slog.Logger) *ProjectsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectsHandler{
		store:      store,
		visibility: visibility,
		logger:     logger,
	}
}

// List returns every project visible to the caller.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	projects, err := h.visibility.VisibleProjects(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if projects == nil {
		projects = []database.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Color       string `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	project := &database.Project{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Color:       req.Color,
		OwnerID:     userID,
		MemberIDs:   []string{},
		MemberRoles: map[string]string{},
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.CreateProject(r.Context(), project); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, _, ok := h.visibleProject(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	project, _, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Color       *string `json:"color"`
		IsArchived  *bool   `json:"isArchived"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		project.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Color != nil {
		project.Color = *req.Color
	}
	if req.IsArchived != nil {
		project.IsArchived = *req.IsArchived
	}

	now := time.Now().UTC()
	project.UpdatedAt = &now
	if err := h.store.UpdateProject(r.Context(), project); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project, _, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteProject(r.Context(), project.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AddMember adds or updates a member on a project.
func (h *ProjectsHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	project, _, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	var req struct {
		UserID string `json:"userId"`
		Role   string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if req.Role == "" {
		req.Role = database.RoleMember
	}
	if req.Role != database.RoleManager && req.Role != database.RoleMember {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}

	if _, err := h.store.GetUser(r.Context(), req.UserID); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.store.AddProjectMember(r.Context(), project.ID, req.UserID, req.Role); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

func (h *ProjectsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	project, _, ok := h.ownedProject(w, r)
	if !ok {
		return
	}

	memberID := mux.Vars(r)["userId"]
	if err := h.store.RemoveProjectMember(r.Context(), project.ID, memberID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ListSprints returns a project's sprints.
func (h *ProjectsHandler) ListSprints(w http.ResponseWriter, r *http.Request) {
	project, _, ok := h.visibleProject(w, r)
	if !ok {
		return
	}

	sprints, err := h.store.ListSprints(r.Context(), project.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if sprints == nil {
		sprints = []database.Sprint{}
	}
	writeJSON(w, http.StatusOK, sprints)
}

func (h *ProjectsHandler) CreateSprint(w http.ResponseWriter, r *http.Request) {
	project, _, ok := h.visibleProject(w, r)
	if !ok {
		return
	}

	var req struct {
		Name      string    `json:"name"`
		StartDate time.Time `json:"startDate"`
		EndDate   time.Time `json:"endDate"`
		IsActive  bool      `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !req.EndDate.After(req.StartDate) {
		writeError(w, http.StatusBadRequest, "end date must be after start date")
		return
	}

	sprint := &database.Sprint{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		Name:      strings.TrimSpace(req.Name),
		StartDate: req.StartDate.UTC(),
		EndDate:   req.EndDate.UTC(),
		IsActive:  req.IsActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateSprint(r.Context(), sprint); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sprint)
}

// visibleProject loads the project in the route and checks the caller can
// see it.
func (h *ProjectsHandler) visibleProject(w http.ResponseWriter, r *http.Request) (*database.Project, string, bool) {
	userID, ok := UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return nil, "", false
	}

	project, err := h.store.GetProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return nil, "", false
	}
	if !services.CanSee(*project, userID) {
		// Hide existence of projects the caller cannot see.
		writeError(w, http.StatusNotFound, "not found")
		return nil, "", false
	}
	return project, userID, true
}

// ownedProject is visibleProject plus a mutation permission check: the owner
// may mutate, and legacy unowned projects are mutable by anyone who can see
// them.
func (h *ProjectsHandler) ownedProject(w http.ResponseWriter, r *http.Request) (*database.Project, string, bool) {
	project, userID, ok := h.visibleProject(w, r)
	if !ok {
		return nil, "", false
	}
	if project.OwnerID != "" && project.OwnerID != userID {
		writeError(w, http.StatusForbidden, "only the project owner can do this")
		return nil, "", false
	}
	return project, userID, true
}

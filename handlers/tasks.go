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

// TasksHandler handles task and comment endpoints.
type TasksHandler struct {
	store      *database.Store
	tasks      *services.TaskService
	visibility *services.VisibilityResolver
	logger     *slog.Logger
}

func NewTasksHandler(store *database.Store, tasks *services.TaskService, visibility *services.VisibilityResolver, logger *slog.Logger) *TasksHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TasksHandler{
		store:      store,
		tasks:      tasks,
		visibility: visibility,
		logger:     logger,
	}
}

// List returns tasks scoped to the caller's visible projects, filtered by
// query parameters.
func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	q := r.URL.Query()
	f := database.TaskFilter{
		Search:  q.Get("search"),
		OrderBy: database.OrderByOrderIndex,
	}

	if projectID := q.Get("projectId"); projectID != "" {
		project, err := h.store.GetProject(r.Context(), projectID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if !services.CanSee(*project, userID) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		f.ProjectID = &project.ID
	} else {
		ids, err := h.visibility.VisibleProjectIDs(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		f.ProjectIDs = ids
	}

	if sprintID := q.Get("sprintId"); sprintID != "" {
		f.SprintID = &sprintID
	}
	if assignedTo := q.Get("assignedToId"); assignedTo != "" {
		f.AssignedToID = &assignedTo
	}
	if status := q.Get("status"); status != "" {
		st := database.TaskStatus(status)
		f.Status = &st
	}
	if priority := q.Get("priority"); priority != "" {
		p := database.Priority(priority)
		f.Priority = &p
	}
	// Backlog tasks stay off the board unless explicitly requested.
	if f.Status == nil && q.Get("includeBacklog") != "true" {
		backlog := database.StatusBacklog
		f.NotStatus = &backlog
	}

	tasks, err := h.store.FindTasks(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if tasks == nil {
		tasks = []database.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type taskRequest struct {
	Title        *string              `json:"title"`
	Description  *string              `json:"description"`
	Status       *database.TaskStatus `json:"status"`
	Priority     *database.Priority   `json:"priority"`
	ProjectID    *string              `json:"projectId"`
	SprintID     *string              `json:"sprintId"`
	AssignedToID *string              `json:"assignedToId"`
	StartDate    *time.Time           `json:"startDate"`
	Deadline     *time.Time           `json:"deadline"`
	OrderIndex   *int                 `json:"orderIndex"`
}

func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.ProjectID == nil || *req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "projectId is required")
		return
	}

	if ok := h.checkProjectAccess(w, r, *req.ProjectID, userID); !ok {
		return
	}

	in := services.TaskCreateInput{
		Title:        *req.Title,
		ProjectID:    *req.ProjectID,
		SprintID:     req.SprintID,
		AssignedToID: req.AssignedToID,
		StartDate:    req.StartDate,
		Deadline:     req.Deadline,
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Priority != nil {
		in.Priority = *req.Priority
	}

	task, err := h.tasks.Create(r.Context(), in, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, ok := h.visibleTask(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}
	task, ok := h.visibleTask(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	updated, err := h.tasks.Update(r.Context(), task.ID, services.TaskUpdateInput{
		Title:        req.Title,
		Description:  req.Description,
		Status:       req.Status,
		Priority:     req.Priority,
		SprintID:     req.SprintID,
		AssignedToID: req.AssignedToID,
		StartDate:    req.StartDate,
		Deadline:     req.Deadline,
		OrderIndex:   req.OrderIndex,
	}, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *TasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	task, ok := h.visibleTask(w, r)
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), task.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListComments returns a task's comments.
func (h *TasksHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	task, ok := h.visibleTask(w, r)
	if !ok {
		return
	}

	comments, err := h.store.ListComments(r.Context(), task.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if comments == nil {
		comments = []database.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *TasksHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r)
	task, ok := h.visibleTask(w, r)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	comment := &database.Comment{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		UserID:    user.ID,
		UserName:  user.FullName,
		Content:   strings.TrimSpace(req.Content),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateComment(r.Context(), comment); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// DeleteComment removes a comment authored by the caller.
func (h *TasksHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	if err := h.store.DeleteComment(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// visibleTask loads the task in the route and checks the caller can see its
// project.
func (h *TasksHandler) visibleTask(w http.ResponseWriter, r *http.Request) (*database.Task, bool) {
	userID, ok := UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return nil, false
	}

	task, err := h.store.GetTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	if ok := h.checkProjectAccess(w, r, task.ProjectID, userID); !ok {
		return nil, false
	}
	return task, true
}

func (h *TasksHandler) checkProjectAccess(w http.ResponseWriter, r *http.Request, projectID, userID string) bool {
	project, err := h.store.GetProject(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, err)
		return false
	}
	if !services.CanSee(*project, userID) {
		writeError(w, http.StatusNotFound, "not found")
		return false
	}
	return true
}

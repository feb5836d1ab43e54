package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dbi-software/hive/database"
)

// ErrInvalidInput marks caller mistakes (blank title, unknown status).
var ErrInvalidInput = errors.New("invalid input")

// TaskStore is the slice of the store the task service works through.
type TaskStore interface {
	CreateTask(ctx context.Context, t *database.Task) error
	GetTask(ctx context.Context, id string) (*database.Task, error)
	UpdateTask(ctx context.Context, t *database.Task) error
	DeleteTask(ctx context.Context, id string) error
	MaxOrderIndex(ctx context.Context, projectID string, status database.TaskStatus) (int, error)
	GetProject(ctx context.Context, id string) (*database.Project, error)
	GetSprint(ctx context.Context, id string) (*database.Sprint, error)
	GetUser(ctx context.Context, id string) (*database.User, error)
}

// AssignmentEmailSender delivers the "task assigned" email, best-effort.
type AssignmentEmailSender interface {
	SendTaskAssigned(to, taskTitle, assignedBy string) error
}

type TaskCreateInput struct {
	Title        string
	Description  string
	ProjectID    string
	SprintID     *string
	AssignedToID *string
	Priority     database.Priority
	StartDate    *time.Time
	Deadline     *time.Time
}

// TaskUpdateInput carries optional field updates. For SprintID and
// AssignedToID an empty string clears the reference.
type TaskUpdateInput struct {
	Title        *string
	Description  *string
	Status       *database.TaskStatus
	Priority     *database.Priority
	SprintID     *string
	AssignedToID *string
	StartDate    *time.Time
	Deadline     *time.Time
	OrderIndex   *int
}

// TaskService owns task mutations and their side effects: denormalized name
// caching, Kanban order indexes, completion timestamps, and assignment
// notifications.
type TaskService struct {
	store         TaskStore
	notifications *NotificationService
	email         AssignmentEmailSender
	clock         Clock
	logger        *slog.Logger
}

func NewTaskService(store TaskStore, notifications *NotificationService, email AssignmentEmailSender, clock Clock, logger *slog.Logger) *TaskService {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{
		store:         store,
		notifications: notifications,
		email:         email,
		clock:         clock,
		logger:        logger,
	}
}

// Create inserts a new task at the end of the project's todo column and
// notifies the assignee, if any.
func (s *TaskService) Create(ctx context.Context, in TaskCreateInput, creatorID string) (*database.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.Priority == "" {
		in.Priority = database.PriorityMedium
	}
	if _, ok := database.ValidPriorities[in.Priority]; !ok {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, in.Priority)
	}

	project, err := s.store.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	task := &database.Task{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Status:      database.StatusTodo,
		Priority:    in.Priority,
		ProjectID:   project.ID,
		ProjectName: project.Name,
		StartDate:   in.StartDate,
		Deadline:    in.Deadline,
		CreatedAt:   now,
	}

	if in.SprintID != nil && *in.SprintID != "" {
		sprint, err := s.store.GetSprint(ctx, *in.SprintID)
		if err != nil {
			return nil, err
		}
		task.SprintID = &sprint.ID
		task.SprintName = &sprint.Name
	}
	if in.AssignedToID != nil && *in.AssignedToID != "" {
		assignee, err := s.store.GetUser(ctx, *in.AssignedToID)
		if err != nil {
			return nil, err
		}
		task.AssignedToID = &assignee.ID
		task.AssignedToName = &assignee.FullName
	}

	maxOrder, err := s.store.MaxOrderIndex(ctx, task.ProjectID, task.Status)
	if err != nil {
		return nil, err
	}
	task.OrderIndex = maxOrder + 1

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	if task.AssignedToID != nil {
		s.notifyAssigned(ctx, task, creatorID)
	}
	return task, nil
}

// Update applies a partial update. Denormalized project, sprint and assignee
// names are refreshed on every write; between writes they may drift from the
// referenced records.
func (s *TaskService) Update(ctx context.Context, id string, in TaskUpdateInput, updaterID string) (*database.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	assigneeChanged := false
	now := s.clock.Now()

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
		}
		task.Title = title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Status != nil && *in.Status != task.Status {
		if _, ok := database.ValidTaskStatuses[*in.Status]; !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *in.Status)
		}
		task.Status = *in.Status
		// CompletedAt is stamped on entry to done and intentionally kept if
		// the task is later reopened.
		if *in.Status == database.StatusDone {
			task.CompletedAt = &now
		}
	}
	if in.Priority != nil {
		if _, ok := database.ValidPriorities[*in.Priority]; !ok {
			return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, *in.Priority)
		}
		task.Priority = *in.Priority
	}
	if in.SprintID != nil {
		if *in.SprintID == "" {
			task.SprintID = nil
			task.SprintName = nil
		} else {
			sid := *in.SprintID
			task.SprintID = &sid
		}
	}
	if in.AssignedToID != nil {
		if *in.AssignedToID == "" {
			task.AssignedToID = nil
			task.AssignedToName = nil
		} else if task.AssignedToID == nil || *task.AssignedToID != *in.AssignedToID {
			uid := *in.AssignedToID
			task.AssignedToID = &uid
			assigneeChanged = true
		}
	}
	if in.StartDate != nil {
		task.StartDate = in.StartDate
	}
	if in.Deadline != nil {
		task.Deadline = in.Deadline
	}
	if in.OrderIndex != nil {
		task.OrderIndex = *in.OrderIndex
	}

	if err := s.refreshNames(ctx, task); err != nil {
		return nil, err
	}

	task.UpdatedAt = &now
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	if assigneeChanged && task.AssignedToID != nil {
		s.notifyAssigned(ctx, task, updaterID)
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteTask(ctx, id)
}

// refreshNames re-resolves the cached project, sprint and assignee names
// from their source records.
func (s *TaskService) refreshNames(ctx context.Context, task *database.Task) error {
	project, err := s.store.GetProject(ctx, task.ProjectID)
	if err != nil {
		return err
	}
	task.ProjectName = project.Name

	if task.SprintID != nil {
		sprint, err := s.store.GetSprint(ctx, *task.SprintID)
		if err != nil {
			return err
		}
		task.SprintName = &sprint.Name
	}
	if task.AssignedToID != nil {
		assignee, err := s.store.GetUser(ctx, *task.AssignedToID)
		if err != nil {
			return err
		}
		task.AssignedToName = &assignee.FullName
	}
	return nil
}

// notifyAssigned creates the in-app notification and best-effort email for a
// new assignee. Failures are logged; the task write already succeeded.
func (s *TaskService) notifyAssigned(ctx context.Context, task *database.Task, byUserID string) {
	assignee, err := s.store.GetUser(ctx, *task.AssignedToID)
	if err != nil {
		s.logger.Warn("failed to load assignee for notification",
			slog.String("task", task.ID), slog.String("error", err.Error()))
		return
	}

	assignedBy := "Someone"
	if creator, err := s.store.GetUser(ctx, byUserID); err == nil {
		assignedBy = creator.FullName
	}

	message := fmt.Sprintf("%s assigned you a task: %s", assignedBy, task.Title)
	if _, err := s.notifications.Notify(ctx, assignee.ID, "New Task Assigned", message,
		database.NotificationTaskAssigned, &task.ID); err != nil {
		s.logger.Warn("failed to create assignment notification",
			slog.String("task", task.ID), slog.String("error", err.Error()))
	}

	if s.email != nil {
		if err := s.email.SendTaskAssigned(assignee.Email, task.Title, assignedBy); err != nil {
			s.logger.Warn("failed to send assignment email",
				slog.String("task", task.ID), slog.String("error", err.Error()))
		}
	}
}

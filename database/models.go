package database

import "time"

// TaskStatus is the Kanban column a task currently lives in.
type TaskStatus string

const (
	StatusBacklog    TaskStatus = "backlog"
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
)

// ValidTaskStatuses enumerates the statuses supported by the board columns.
var ValidTaskStatuses = map[TaskStatus]struct{}{
	StatusBacklog:    {},
	StatusTodo:       {},
	StatusInProgress: {},
	StatusReview:     {},
	StatusDone:       {},
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var ValidPriorities = map[Priority]struct{}{
	PriorityLow:      {},
	PriorityMedium:   {},
	PriorityHigh:     {},
	PriorityCritical: {},
}

// Task is a single card on a project board. ProjectName, SprintName and
// AssignedToName are denormalized copies refreshed only when the task itself
// is written; they may be stale if the referenced project, sprint or user is
// renamed later.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         TaskStatus `json:"status"`
	Priority       Priority   `json:"priority"`
	ProjectID      string     `json:"projectId"`
	ProjectName    string     `json:"projectName"`
	SprintID       *string    `json:"sprintId,omitempty"`
	SprintName     *string    `json:"sprintName,omitempty"`
	AssignedToID   *string    `json:"assignedToId,omitempty"`
	AssignedToName *string    `json:"assignedToName,omitempty"`
	StartDate      *time.Time `json:"startDate,omitempty"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	OrderIndex     int        `json:"orderIndex"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

// Project groups tasks and sprints. A project whose OwnerID is empty predates
// ownership tracking and is visible to every user.
type Project struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Color       string            `json:"color,omitempty"`
	OwnerID     string            `json:"ownerId"`
	IsArchived  bool              `json:"isArchived"`
	MemberIDs   []string          `json:"memberIds"`
	MemberRoles map[string]string `json:"memberRoles"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   *time.Time        `json:"updatedAt,omitempty"`
}

// Member roles within a project.
const (
	RoleManager = "Manager"
	RoleMember  = "Member"
)

type Sprint struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification is an in-app message owned by its recipient. TaskID is a weak
// reference; the task may have been deleted since.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	TaskID    *string   `json:"taskId,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notification type tags.
const (
	NotificationGeneral          = "general"
	NotificationDeadlineReminder = "deadline_reminder"
	NotificationOverdue          = "overdue"
	NotificationTaskAssigned     = "task_assigned"
)

type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Username            string     `json:"username,omitempty"`
	FullName            string     `json:"fullName"`
	AvatarURL           string     `json:"avatarUrl,omitempty"`
	Role                string     `json:"role"`
	Theme               string     `json:"theme,omitempty"`
	Language            string     `json:"language,omitempty"`
	PasswordHash        string     `json:"-"`
	RefreshToken        string     `json:"-"`
	RefreshTokenExpires *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"createdAt"`
	LastLoginAt         *time.Time `json:"lastLoginAt,omitempty"`
}

type Comment struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"taskId"`
	UserID    string     `json:"userId"`
	UserName  string     `json:"userName"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

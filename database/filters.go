package database

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidFilter is returned when a filter combines fields incoherently.
var ErrInvalidFilter = errors.New("invalid filter")

// Task result ordering.
type TaskOrder string

const (
	OrderByOrderIndex  TaskOrder = "order_index ASC"
	OrderByCreatedDesc TaskOrder = "created_at DESC"
	OrderByDeadlineAsc TaskOrder = "deadline ASC"
	OrderByCreatedAsc  TaskOrder = "created_at ASC"
)

// TaskFilter is the single predicate type every task query in the API is
// built from. Nil fields are unconstrained. A non-nil empty ProjectIDs slice
// matches nothing (a user with no visible projects sees no tasks).
type TaskFilter struct {
	ProjectIDs   []string
	ProjectID    *string
	SprintID     *string
	AssignedToID *string
	Assigned     *bool
	Status       *TaskStatus
	NotStatus    *TaskStatus
	Priority     *Priority

	HasDeadline       *bool
	DeadlineAfter     *time.Time // strictly after
	DeadlineOnOrAfter *time.Time
	DeadlineBefore    *time.Time // strictly before

	// Search matches title or description, case-insensitive substring.
	Search string

	OrderBy TaskOrder
	Limit   int
}

func (f TaskFilter) Validate() error {
	if f.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidFilter)
	}
	if f.Status != nil {
		if _, ok := ValidTaskStatuses[*f.Status]; !ok {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, *f.Status)
		}
	}
	if f.NotStatus != nil {
		if _, ok := ValidTaskStatuses[*f.NotStatus]; !ok {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, *f.NotStatus)
		}
	}
	if f.Priority != nil {
		if _, ok := ValidPriorities[*f.Priority]; !ok {
			return fmt.Errorf("%w: unknown priority %q", ErrInvalidFilter, *f.Priority)
		}
	}
	if f.ProjectIDs != nil && f.ProjectID != nil {
		return fmt.Errorf("%w: ProjectID and ProjectIDs are mutually exclusive", ErrInvalidFilter)
	}
	if f.Assigned != nil && f.AssignedToID != nil {
		return fmt.Errorf("%w: Assigned and AssignedToID are mutually exclusive", ErrInvalidFilter)
	}
	if f.HasDeadline != nil && !*f.HasDeadline &&
		(f.DeadlineAfter != nil || f.DeadlineOnOrAfter != nil || f.DeadlineBefore != nil) {
		return fmt.Errorf("%w: deadline range on a no-deadline filter", ErrInvalidFilter)
	}
	return nil
}

// whereSQL compiles the filter into a WHERE clause and its arguments.
func (f TaskFilter) whereSQL() (string, []any) {
	conds := []string{"1=1"}
	var args []any

	if f.ProjectIDs != nil {
		if len(f.ProjectIDs) == 0 {
			conds = append(conds, "1=0")
		} else {
			ph := strings.TrimSuffix(strings.Repeat("?,", len(f.ProjectIDs)), ",")
			conds = append(conds, "project_id IN ("+ph+")")
			for _, id := range f.ProjectIDs {
				args = append(args, id)
			}
		}
	}
	if f.ProjectID != nil {
		conds = append(conds, "project_id = ?")
		args = append(args, *f.ProjectID)
	}
	if f.SprintID != nil {
		conds = append(conds, "sprint_id = ?")
		args = append(args, *f.SprintID)
	}
	if f.AssignedToID != nil {
		conds = append(conds, "assigned_to_id = ?")
		args = append(args, *f.AssignedToID)
	}
	if f.Assigned != nil {
		if *f.Assigned {
			conds = append(conds, "assigned_to_id IS NOT NULL")
		} else {
			conds = append(conds, "assigned_to_id IS NULL")
		}
	}
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*f.Status))
	}
	if f.NotStatus != nil {
		conds = append(conds, "status != ?")
		args = append(args, string(*f.NotStatus))
	}
	if f.Priority != nil {
		conds = append(conds, "priority = ?")
		args = append(args, string(*f.Priority))
	}
	if f.HasDeadline != nil {
		if *f.HasDeadline {
			conds = append(conds, "deadline IS NOT NULL")
		} else {
			conds = append(conds, "deadline IS NULL")
		}
	}
	if f.DeadlineAfter != nil {
		conds = append(conds, "deadline > ?")
		args = append(args, f.DeadlineAfter.UTC())
	}
	if f.DeadlineOnOrAfter != nil {
		conds = append(conds, "deadline >= ?")
		args = append(args, f.DeadlineOnOrAfter.UTC())
	}
	if f.DeadlineBefore != nil {
		conds = append(conds, "deadline < ?")
		args = append(args, f.DeadlineBefore.UTC())
	}
	if f.Search != "" {
		pattern := "%" + escapeLike(f.Search) + "%"
		conds = append(conds, "(title LIKE ? ESCAPE '\\' OR description LIKE ? ESCAPE '\\')")
		args = append(args, pattern, pattern)
	}

	return strings.Join(conds, " AND "), args
}

// tailSQL renders ORDER BY / LIMIT for find queries.
func (f TaskFilter) tailSQL() string {
	var sb strings.Builder
	if f.OrderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(string(f.OrderBy))
	}
	if f.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", f.Limit)
	}
	return sb.String()
}

// Matches reports whether a task satisfies the filter. It is the in-memory
// twin of whereSQL and lets callers classify already-loaded tasks.
func (f TaskFilter) Matches(t Task) bool {
	if f.ProjectIDs != nil {
		found := false
		for _, id := range f.ProjectIDs {
			if t.ProjectID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ProjectID != nil && t.ProjectID != *f.ProjectID {
		return false
	}
	if f.SprintID != nil && (t.SprintID == nil || *t.SprintID != *f.SprintID) {
		return false
	}
	if f.AssignedToID != nil && (t.AssignedToID == nil || *t.AssignedToID != *f.AssignedToID) {
		return false
	}
	if f.Assigned != nil && *f.Assigned != (t.AssignedToID != nil) {
		return false
	}
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.NotStatus != nil && t.Status == *f.NotStatus {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.HasDeadline != nil && *f.HasDeadline != (t.Deadline != nil) {
		return false
	}
	if f.DeadlineAfter != nil && (t.Deadline == nil || !t.Deadline.After(*f.DeadlineAfter)) {
		return false
	}
	if f.DeadlineOnOrAfter != nil && (t.Deadline == nil || t.Deadline.Before(*f.DeadlineOnOrAfter)) {
		return false
	}
	if f.DeadlineBefore != nil && (t.Deadline == nil || !t.Deadline.Before(*f.DeadlineBefore)) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	return true
}

// NotificationFilter selects notifications for feed reads and the scheduler's
// dedup lookups.
type NotificationFilter struct {
	UserID          *string
	TaskID          *string
	Type            *string
	Unread          *bool
	CreatedAfter    *time.Time
	MessageContains string

	NewestFirst bool
	Limit       int
}

func (f NotificationFilter) Validate() error {
	if f.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidFilter)
	}
	return nil
}

func (f NotificationFilter) whereSQL() (string, []any) {
	conds := []string{"1=1"}
	var args []any

	if f.UserID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.TaskID != nil {
		conds = append(conds, "task_id = ?")
		args = append(args, *f.TaskID)
	}
	if f.Type != nil {
		conds = append(conds, "type = ?")
		args = append(args, *f.Type)
	}
	if f.Unread != nil {
		if *f.Unread {
			conds = append(conds, "is_read = 0")
		} else {
			conds = append(conds, "is_read = 1")
		}
	}
	if f.CreatedAfter != nil {
		conds = append(conds, "created_at > ?")
		args = append(args, f.CreatedAfter.UTC())
	}
	if f.MessageContains != "" {
		conds = append(conds, "message LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(f.MessageContains)+"%")
	}

	return strings.Join(conds, " AND "), args
}

func (f NotificationFilter) Matches(n Notification) bool {
	if f.UserID != nil && n.UserID != *f.UserID {
		return false
	}
	if f.TaskID != nil && (n.TaskID == nil || *n.TaskID != *f.TaskID) {
		return false
	}
	if f.Type != nil && n.Type != *f.Type {
		return false
	}
	if f.Unread != nil && *f.Unread != !n.IsRead {
		return false
	}
	if f.CreatedAfter != nil && !n.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if f.MessageContains != "" &&
		!strings.Contains(strings.ToLower(n.Message), strings.ToLower(f.MessageContains)) {
		return false
	}
	return true
}

// ProjectFilter selects projects. VisibleToUserID applies the access rule:
// owner, member, or legacy project with no owner.
type ProjectFilter struct {
	OwnerID         *string
	VisibleToUserID *string
	Archived        *bool
}

func (f ProjectFilter) whereSQL() (string, []any) {
	conds := []string{"1=1"}
	var args []any

	if f.OwnerID != nil {
		conds = append(conds, "owner_id = ?")
		args = append(args, *f.OwnerID)
	}
	if f.VisibleToUserID != nil {
		conds = append(conds, `(owner_id = ? OR owner_id = '' OR
			id IN (SELECT project_id FROM project_members WHERE user_id = ?))`)
		args = append(args, *f.VisibleToUserID, *f.VisibleToUserID)
	}
	if f.Archived != nil {
		if *f.Archived {
			conds = append(conds, "is_archived = 1")
		} else {
			conds = append(conds, "is_archived = 0")
		}
	}

	return strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

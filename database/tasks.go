package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const taskColumns = `id, title, description, status, priority, project_id, project_name,
	sprint_id, sprint_name, assigned_to_id, assigned_to_name,
	start_date, deadline, completed_at, order_index, created_at, updated_at`

// CreateTask inserts a new task row.
func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority),
		t.ProjectID, t.ProjectName,
		nullString(t.SprintID), nullString(t.SprintName),
		nullString(t.AssignedToID), nullString(t.AssignedToName),
		t.StartDate, t.Deadline, t.CompletedAt,
		t.OrderIndex, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// GetTask fetches a single task by id.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return t, nil
}

// FindTasks returns all tasks matching the filter.
func (s *Store) FindTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	where, args := f.whereSQL()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE `+where+f.tailSQL(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}
	return tasks, nil
}

// CountTasks returns the number of tasks matching the filter.
func (s *Store) CountTasks(ctx context.Context, f TaskFilter) (int, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	where, args := f.whereSQL()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE `+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return n, nil
}

// UpdateTask writes the full task row back.
func (s *Store) UpdateTask(ctx context.Context, t *Task) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?,
			project_id = ?, project_name = ?, sprint_id = ?, sprint_name = ?,
			assigned_to_id = ?, assigned_to_name = ?, start_date = ?, deadline = ?,
			completed_at = ?, order_index = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Description, string(t.Status), string(t.Priority),
		t.ProjectID, t.ProjectName,
		nullString(t.SprintID), nullString(t.SprintName),
		nullString(t.AssignedToID), nullString(t.AssignedToName),
		t.StartDate, t.Deadline, t.CompletedAt, t.OrderIndex, t.UpdatedAt,
		t.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask removes a task. Notifications referencing it are left in place;
// readers tolerate the stale reference.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MaxOrderIndex returns the highest order index in a project's status column,
// or 0 when the column is empty.
func (s *Store) MaxOrderIndex(ctx context.Context, projectID string, status TaskStatus) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(order_index) FROM tasks WHERE project_id = ? AND status = ?`,
		projectID, string(status)).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to query max order index: %w", err)
	}
	return int(max.Int64), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (*Task, error) {
	var (
		task                             Task
		status, priority                 string
		sprintID, sprintName             sql.NullString
		assignedID, assignedName         sql.NullString
		startDate, deadline, completedAt sql.NullTime
		updatedAt                        sql.NullTime
	)
	err := r.Scan(&task.ID, &task.Title, &task.Description, &status, &priority,
		&task.ProjectID, &task.ProjectName,
		&sprintID, &sprintName, &assignedID, &assignedName,
		&startDate, &deadline, &completedAt,
		&task.OrderIndex, &task.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	task.Status = TaskStatus(status)
	task.Priority = Priority(priority)
	task.SprintID = stringPtr(sprintID)
	task.SprintName = stringPtr(sprintName)
	task.AssignedToID = stringPtr(assignedID)
	task.AssignedToName = stringPtr(assignedName)
	task.StartDate = timePtr(startDate)
	task.Deadline = timePtr(deadline)
	task.CompletedAt = timePtr(completedAt)
	task.UpdatedAt = timePtr(updatedAt)
	task.CreatedAt = task.CreatedAt.UTC()
	return &task, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const sprintColumns = `id, project_id, name, start_date, end_date, is_active, created_at`

func (s *Store) CreateSprint(ctx context.Context, sp *Sprint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sprints (`+sprintColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.ProjectID, sp.Name, sp.StartDate, sp.EndDate, sp.IsActive, sp.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert sprint: %w", err)
	}
	return nil
}

func (s *Store) GetSprint(ctx context.Context, id string) (*Sprint, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id = ?`, id)
	sp := &Sprint{}
	err := row.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.StartDate, &sp.EndDate,
		&sp.IsActive, &sp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sprint: %w", err)
	}
	sp.StartDate = sp.StartDate.UTC()
	sp.EndDate = sp.EndDate.UTC()
	sp.CreatedAt = sp.CreatedAt.UTC()
	return sp, nil
}

// ListSprints returns a project's sprints, newest start date first.
func (s *Store) ListSprints(ctx context.Context, projectID string) ([]Sprint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sprintColumns+` FROM sprints WHERE project_id = ? ORDER BY start_date DESC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sprints: %w", err)
	}
	defer rows.Close()

	var sprints []Sprint
	for rows.Next() {
		var sp Sprint
		if err := rows.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.StartDate, &sp.EndDate,
			&sp.IsActive, &sp.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sprint: %w", err)
		}
		sp.StartDate = sp.StartDate.UTC()
		sp.EndDate = sp.EndDate.UTC()
		sp.CreatedAt = sp.CreatedAt.UTC()
		sprints = append(sprints, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sprints: %w", err)
	}
	return sprints, nil
}

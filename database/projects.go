package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const projectColumns = `id, name, description, color, owner_id, is_archived, created_at, updated_at`

func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Color, p.OwnerID, p.IsArchived, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}

	for _, uid := range p.MemberIDs {
		role := p.MemberRoles[uid]
		if role == "" {
			role = RoleMember
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO project_members (project_id, user_id, role) VALUES (?, ?, ?)`,
			p.ID, uid, role); err != nil {
			return fmt.Errorf("failed to insert project member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	if err := s.loadMembers(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// FindProjects returns projects matching the filter, members included,
// oldest first.
func (s *Store) FindProjects(ctx context.Context, f ProjectFilter) ([]Project, error) {
	where, args := f.whereSQL()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE `+where+` ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read projects: %w", err)
	}

	for i := range projects {
		if err := s.loadMembers(ctx, &projects[i]); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

func (s *Store) UpdateProject(ctx context.Context, p *Project) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE projects SET name = ?, description = ?, color = ?, owner_id = ?,
			is_archived = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Description, p.Color, p.OwnerID, p.IsArchived, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) AddProjectMember(ctx context.Context, projectID, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id, role) VALUES (?, ?, ?)
		ON CONFLICT(project_id, user_id) DO UPDATE SET role = ?`,
		projectID, userID, role, role)
	if err != nil {
		return fmt.Errorf("failed to upsert project member: %w", err)
	}
	return nil
}

func (s *Store) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete project member: %w", err)
	}
	return nil
}

func (s *Store) loadMembers(ctx context.Context, p *Project) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, role FROM project_members WHERE project_id = ? ORDER BY user_id`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to query project members: %w", err)
	}
	defer rows.Close()

	p.MemberIDs = []string{}
	p.MemberRoles = map[string]string{}
	for rows.Next() {
		var uid, role string
		if err := rows.Scan(&uid, &role); err != nil {
			return fmt.Errorf("failed to scan project member: %w", err)
		}
		p.MemberIDs = append(p.MemberIDs, uid)
		p.MemberRoles[uid] = role
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read project members: %w", err)
	}
	return nil
}

func scanProject(r rowScanner) (*Project, error) {
	var (
		p         Project
		updatedAt sql.NullTime
	)
	err := r.Scan(&p.ID, &p.Name, &p.Description, &p.Color, &p.OwnerID,
		&p.IsArchived, &p.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.UpdatedAt = timePtr(updatedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

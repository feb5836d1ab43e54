package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const userColumns = `id, email, username, full_name, avatar_url, role, theme, language,
	password_hash, refresh_token, refresh_token_expires, created_at, last_login_at`

func (s *Store) CreateUser(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Username, u.FullName, u.AvatarURL, u.Role, u.Theme, u.Language,
		u.PasswordHash, u.RefreshToken, u.RefreshTokenExpires, u.CreatedAt, u.LastLoginAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUserRow(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUserRow(row)
}

// ListUsers returns every user, for member pickers. Password hashes stay out
// of JSON via struct tags.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY full_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET email = ?, username = ?, full_name = ?, avatar_url = ?,
			role = ?, theme = ?, language = ?, password_hash = ?,
			refresh_token = ?, refresh_token_expires = ?, last_login_at = ?
		WHERE id = ?`,
		u.Email, u.Username, u.FullName, u.AvatarURL, u.Role, u.Theme, u.Language,
		u.PasswordHash, u.RefreshToken, u.RefreshTokenExpires, u.LastLoginAt, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUserRow(row *sql.Row) (*User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func scanUser(r rowScanner) (*User, error) {
	var (
		u                           User
		refreshExpires, lastLoginAt sql.NullTime
	)
	err := r.Scan(&u.ID, &u.Email, &u.Username, &u.FullName, &u.AvatarURL, &u.Role,
		&u.Theme, &u.Language, &u.PasswordHash, &u.RefreshToken,
		&refreshExpires, &u.CreatedAt, &lastLoginAt)
	if err != nil {
		return nil, err
	}
	u.RefreshTokenExpires = timePtr(refreshExpires)
	u.LastLoginAt = timePtr(lastLoginAt)
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

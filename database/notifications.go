package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const notificationColumns = `id, user_id, title, message, type, task_id, is_read, created_at`

func (s *Store) CreateNotification(ctx context.Context, n *Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, nullString(n.TaskID), n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// FindNotifications returns notifications matching the filter.
func (s *Store) FindNotifications(ctx context.Context, f NotificationFilter) ([]Notification, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	where, args := f.whereSQL()

	var tail strings.Builder
	if f.NewestFirst {
		tail.WriteString(" ORDER BY created_at DESC")
	}
	if f.Limit > 0 {
		fmt.Fprintf(&tail, " LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE `+where+tail.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}
	return out, nil
}

// FindOneNotification returns the first match or nil when nothing matches.
func (s *Store) FindOneNotification(ctx context.Context, f NotificationFilter) (*Notification, error) {
	f.Limit = 1
	found, err := s.FindNotifications(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// MarkNotificationRead flips the read flag for a single notification owned by
// userID.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification for the user.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func (s *Store) DeleteNotification(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUnreadNotifications returns the badge count for a user.
func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}

func scanNotification(r rowScanner) (*Notification, error) {
	var (
		n      Notification
		taskID sql.NullString
	)
	err := r.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &taskID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.TaskID = stringPtr(taskID)
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}

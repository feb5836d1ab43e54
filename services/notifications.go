package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dbi-software/hive/database"
)

// feedLimit caps how many notifications a single feed read returns.
const feedLimit = 50

// NotificationStore is the slice of the store the notification service
// writes and reads through.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *database.Notification) error
	FindNotifications(ctx context.Context, f database.NotificationFilter) ([]database.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, id, userID string) error
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
}

// NotificationPusher delivers a message to a user's live connections.
type NotificationPusher interface {
	Push(userID string, message WebSocketMessage)
}

// NotificationService persists in-app notifications and pushes them to the
// recipient's open websockets. The persisted record is authoritative; the
// push is best-effort.
type NotificationService struct {
	store  NotificationStore
	pusher NotificationPusher
	clock  Clock
	logger *slog.Logger
}

func NewNotificationService(store NotificationStore, pusher NotificationPusher, clock Clock, logger *slog.Logger) *NotificationService {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		store:  store,
		pusher: pusher,
		clock:  clock,
		logger: logger,
	}
}

// Notify creates a notification for a user and pushes it to their open
// connections.
func (s *NotificationService) Notify(ctx context.Context, userID, title, message, ntype string, taskID *string) (*database.Notification, error) {
	if ntype == "" {
		ntype = database.NotificationGeneral
	}

	n := &database.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      ntype,
		TaskID:    taskID,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	if s.pusher != nil {
		s.pusher.Push(userID, WebSocketMessage{Type: "notification", Data: n})
	}
	return n, nil
}

// Feed returns the user's notifications, newest first, optionally unread
// only.
func (s *NotificationService) Feed(ctx context.Context, userID string, unreadOnly bool) ([]database.Notification, error) {
	f := database.NotificationFilter{
		UserID:      &userID,
		NewestFirst: true,
		Limit:       feedLimit,
	}
	if unreadOnly {
		unread := true
		f.Unread = &unread
	}
	return s.store.FindNotifications(ctx, f)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	return s.store.MarkNotificationRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.store.MarkAllNotificationsRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, id, userID string) error {
	return s.store.DeleteNotification(ctx, id, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnreadNotifications(ctx, userID)
}

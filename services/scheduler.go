package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dbi-software/hive/database"
)

// SchedulerStore is the slice of the store the scheduler reads through.
type SchedulerStore interface {
	FindTasks(ctx context.Context, f database.TaskFilter) ([]database.Task, error)
	FindOneNotification(ctx context.Context, f database.NotificationFilter) (*database.Notification, error)
	GetUser(ctx context.Context, id string) (*database.User, error)
}

// ReminderEmailSender delivers the deadline reminder email. Failures never
// block notification persistence.
type ReminderEmailSender interface {
	SendTaskDeadlineReminder(to, taskTitle string, deadline time.Time) error
}

// ReminderScheduler periodically scans tasks for approaching and overdue
// deadlines and fans out notifications to assignees. Each tick is
// independent; the only cross-tick state is what the notification store
// already holds, which doubles as the dedup record.
//
// The scheduler assumes a single live instance. The dedup window is the only
// protection against duplicate sends, so horizontally scaled deployments need
// external leader election before running more than one.
type ReminderScheduler struct {
	store         SchedulerStore
	notifications *NotificationService
	email         ReminderEmailSender
	clock         Clock
	logger        *slog.Logger

	interval time.Duration
	horizon  time.Duration
	// dedupWindow is deliberately shorter than horizon (23h vs 24h) so tick
	// jitter neither double-sends nor silently skips a day.
	dedupWindow time.Duration

	ticking atomic.Bool
}

func NewReminderScheduler(store SchedulerStore, notifications *NotificationService, email ReminderEmailSender, clock Clock, logger *slog.Logger, cfg Config) *ReminderScheduler {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderScheduler{
		store:         store,
		notifications: notifications,
		email:         email,
		clock:         clock,
		logger:        logger,
		interval:      cfg.SchedulerInterval,
		horizon:       cfg.ReminderHorizon,
		dedupWindow:   cfg.DedupWindow,
	}
}

// Run executes ticks on the configured interval until ctx is cancelled. The
// delay between ticks is interrupted promptly on shutdown, but an in-flight
// tick is allowed to finish so no notification is half-written.
func (s *ReminderScheduler) Run(ctx context.Context) {
	s.logger.Info("deadline notification scheduler started",
		slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.RunTick(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("scheduler tick failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("deadline notification scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunTick performs one scan-and-dispatch pass. Ticks are not reentrant: if a
// previous tick is still running the call is a no-op. A failure while
// processing one candidate is logged and does not abort the rest of the
// tick; only a failed scan aborts.
func (s *ReminderScheduler) RunTick(ctx context.Context) error {
	if !s.ticking.CompareAndSwap(false, true) {
		s.logger.Warn("previous scheduler tick still running, skipping")
		return nil
	}
	defer s.ticking.Store(false)

	now := s.clock.Now().UTC()

	if err := s.remindUpcoming(ctx, now); err != nil {
		return err
	}
	return s.remindOverdue(ctx, now)
}

// remindUpcoming notifies assignees of tasks due within the reminder
// horizon: in-app notification plus a best-effort email.
func (s *ReminderScheduler) remindUpcoming(ctx context.Context, now time.Time) error {
	assigned := true
	done := database.StatusDone
	horizonEnd := now.Add(s.horizon)

	candidates, err := s.store.FindTasks(ctx, database.TaskFilter{
		Assigned:       &assigned,
		NotStatus:      &done,
		DeadlineAfter:  &now,
		DeadlineBefore: &horizonEnd,
	})
	if err != nil {
		return fmt.Errorf("failed to scan for reminder candidates: %w", err)
	}

	for _, task := range candidates {
		if err := s.sendReminder(ctx, task, now); err != nil {
			s.logger.Error("failed to process reminder candidate",
				slog.String("task", task.ID), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *ReminderScheduler) sendReminder(ctx context.Context, task database.Task, now time.Time) error {
	if task.AssignedToID == nil || task.Deadline == nil {
		return nil
	}
	userID := *task.AssignedToID

	// Any notification for this task and user inside the dedup window
	// suppresses the reminder, overdue notices included.
	cutoff := now.Add(-s.dedupWindow)
	existing, err := s.store.FindOneNotification(ctx, database.NotificationFilter{
		TaskID:       &task.ID,
		UserID:       &userID,
		CreatedAfter: &cutoff,
	})
	if err != nil {
		return fmt.Errorf("failed dedup lookup: %w", err)
	}
	if existing != nil {
		return nil
	}

	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		// Assignee was deleted since; skip this task, keep the tick going.
		s.logger.Warn("reminder candidate has missing assignee",
			slog.String("task", task.ID), slog.String("user", userID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load assignee: %w", err)
	}

	message := fmt.Sprintf("Task '%s' is due on %s",
		task.Title, task.Deadline.UTC().Format("2006-01-02 15:04"))
	if _, err := s.notifications.Notify(ctx, user.ID, "Task Deadline Reminder", message,
		database.NotificationDeadlineReminder, &task.ID); err != nil {
		return err
	}

	// Email is best-effort. The persisted notification is authoritative.
	if s.email != nil {
		if err := s.email.SendTaskDeadlineReminder(user.Email, task.Title, *task.Deadline); err != nil {
			s.logger.Warn("failed to send reminder email",
				slog.String("task", task.ID), slog.String("error", err.Error()))
		}
	}

	s.logger.Info("sent deadline reminder",
		slog.String("task", task.ID), slog.String("user", user.Email))
	return nil
}

// remindOverdue creates in-app "Task Overdue" notifications. This path sends
// no email, so long-overdue tasks do not spam inboxes every day.
func (s *ReminderScheduler) remindOverdue(ctx context.Context, now time.Time) error {
	assigned := true
	done := database.StatusDone

	overdue, err := s.store.FindTasks(ctx, database.TaskFilter{
		Assigned:       &assigned,
		NotStatus:      &done,
		DeadlineBefore: &now,
	})
	if err != nil {
		return fmt.Errorf("failed to scan for overdue tasks: %w", err)
	}

	for _, task := range overdue {
		if err := s.sendOverdue(ctx, task, now); err != nil {
			s.logger.Error("failed to process overdue task",
				slog.String("task", task.ID), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *ReminderScheduler) sendOverdue(ctx context.Context, task database.Task, now time.Time) error {
	if task.AssignedToID == nil || task.Deadline == nil {
		return nil
	}
	userID := *task.AssignedToID

	// Only a prior overdue notice suppresses this one; an earlier deadline
	// reminder for the same task does not.
	cutoff := now.Add(-s.dedupWindow)
	existing, err := s.store.FindOneNotification(ctx, database.NotificationFilter{
		TaskID:          &task.ID,
		UserID:          &userID,
		MessageContains: "overdue",
		CreatedAfter:    &cutoff,
	})
	if err != nil {
		return fmt.Errorf("failed dedup lookup: %w", err)
	}
	if existing != nil {
		return nil
	}

	message := fmt.Sprintf("Task '%s' is overdue (was due %s)",
		task.Title, task.Deadline.UTC().Format("2006-01-02 15:04"))
	if _, err := s.notifications.Notify(ctx, userID, "Task Overdue", message,
		database.NotificationOverdue, &task.ID); err != nil {
		return err
	}

	s.logger.Info("created overdue notification", slog.String("task", task.ID))
	return nil
}

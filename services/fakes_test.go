package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dbi-software/hive/database"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeStore is an in-memory stand-in for database.Store. Filtering reuses the
// filters' Matches methods so fake reads classify tasks the same way SQL does.
type fakeStore struct {
	mu            sync.Mutex
	tasks         map[string]database.Task
	projects      map[string]database.Project
	sprints       map[string]database.Sprint
	users         map[string]database.User
	notifications []database.Notification
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:    map[string]database.Task{},
		projects: map[string]database.Project{},
		sprints:  map[string]database.Sprint{},
		users:    map[string]database.User{},
	}
}

func (s *fakeStore) addTask(t database.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
}

func (s *fakeStore) addProject(p database.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p
}

func (s *fakeStore) addSprint(sp database.Sprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sprints[sp.ID] = sp
}

func (s *fakeStore) addUser(u database.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *fakeStore) addNotification(n database.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
}

func (s *fakeStore) notificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}

func (s *fakeStore) allNotifications() []database.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]database.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

func (s *fakeStore) CreateTask(ctx context.Context, t *database.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = *t
	return nil
}

func (s *fakeStore) GetTask(ctx context.Context, id string) (*database.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &t, nil
}

func (s *fakeStore) UpdateTask(ctx context.Context, t *database.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return database.ErrNotFound
	}
	s.tasks[t.ID] = *t
	return nil
}

func (s *fakeStore) DeleteTask(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return database.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *fakeStore) MaxOrderIndex(ctx context.Context, projectID string, status database.TaskStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, t := range s.tasks {
		if t.ProjectID == projectID && t.Status == status && t.OrderIndex > max {
			max = t.OrderIndex
		}
	}
	return max, nil
}

func (s *fakeStore) FindTasks(ctx context.Context, f database.TaskFilter) ([]database.Task, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	var out []database.Task
	for _, t := range s.tasks {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	s.mu.Unlock()

	switch f.OrderBy {
	case database.OrderByCreatedDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	case database.OrderByCreatedAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	case database.OrderByDeadlineAsc:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Deadline == nil {
				return true
			}
			if out[j].Deadline == nil {
				return false
			}
			return out[i].Deadline.Before(*out[j].Deadline)
		})
	case database.OrderByOrderIndex:
		sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *fakeStore) CountTasks(ctx context.Context, f database.TaskFilter) (int, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if f.Matches(t) {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) GetProject(ctx context.Context, id string) (*database.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

func (s *fakeStore) FindProjects(ctx context.Context, f database.ProjectFilter) ([]database.Project, error) {
	s.mu.Lock()
	var out []database.Project
	for _, p := range s.projects {
		if f.OwnerID != nil && p.OwnerID != *f.OwnerID {
			continue
		}
		if f.VisibleToUserID != nil && !CanSee(p, *f.VisibleToUserID) {
			continue
		}
		if f.Archived != nil && p.IsArchived != *f.Archived {
			continue
		}
		out = append(out, p)
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) GetSprint(ctx context.Context, id string) (*database.Sprint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp, ok := s.sprints[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &sp, nil
}

func (s *fakeStore) GetUser(ctx context.Context, id string) (*database.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &u, nil
}

func (s *fakeStore) CreateNotification(ctx context.Context, n *database.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *fakeStore) FindNotifications(ctx context.Context, f database.NotificationFilter) ([]database.Notification, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	var out []database.Notification
	for _, n := range s.notifications {
		if f.Matches(n) {
			out = append(out, n)
		}
	}
	s.mu.Unlock()

	if f.NewestFirst {
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *fakeStore) FindOneNotification(ctx context.Context, f database.NotificationFilter) (*database.Notification, error) {
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

func (s *fakeStore) MarkNotificationRead(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notifications {
		if n.ID == id && n.UserID == userID {
			s.notifications[i].IsRead = true
			return nil
		}
	}
	return database.ErrNotFound
}

func (s *fakeStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notifications {
		if n.UserID == userID {
			s.notifications[i].IsRead = true
		}
	}
	return nil
}

func (s *fakeStore) DeleteNotification(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notifications {
		if n.ID == id && n.UserID == userID {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return nil
		}
	}
	return database.ErrNotFound
}

func (s *fakeStore) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, notif := range s.notifications {
		if notif.UserID == userID && !notif.IsRead {
			n++
		}
	}
	return n, nil
}

// fakeEmailSender records outgoing mail instead of dialing SMTP.
type fakeEmailSender struct {
	mu        sync.Mutex
	reminders []string
	assigned  []string
}

func (e *fakeEmailSender) SendTaskDeadlineReminder(to, taskTitle string, deadline time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reminders = append(e.reminders, to+": "+taskTitle)
	return nil
}

func (e *fakeEmailSender) SendTaskAssigned(to, taskTitle, assignedBy string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.assigned = append(e.assigned, to+": "+taskTitle)
	return nil
}

func (e *fakeEmailSender) reminderCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.reminders)
}

func (e *fakeEmailSender) assignedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.assigned)
}

// fakePusher records websocket pushes.
type fakePusher struct {
	mu     sync.Mutex
	pushed []WebSocketMessage
}

func (p *fakePusher) Push(userID string, message WebSocketMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, message)
}

func (p *fakePusher) pushCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pushed)
}

func strPtr(s string) *string { return &s }

func timeRef(t time.Time) *time.Time { return &t }

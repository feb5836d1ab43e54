package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dbi-software/hive/database"
)

var taskTestTime = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestTaskService(store *fakeStore, clock *fakeClock, email *fakeEmailSender) *TaskService {
	logger := discardLogger()
	notifications := NewNotificationService(store, nil, clock, logger)
	return NewTaskService(store, notifications, email, clock, logger)
}

func seedTaskFixtures(store *fakeStore) {
	store.addProject(database.Project{ID: "p1", Name: "Hive Core", OwnerID: "u1", CreatedAt: taskTestTime})
	store.addSprint(database.Sprint{ID: "s1", ProjectID: "p1", Name: "Sprint 1"})
	store.addUser(database.User{ID: "u1", Email: "alice@example.com", FullName: "Alice"})
	store.addUser(database.User{ID: "u2", Email: "bob@example.com", FullName: "Bob"})
}

func TestTaskCreateDefaults(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedTaskFixtures(store)
	store.addTask(database.Task{ID: "existing", ProjectID: "p1", Status: database.StatusTodo, OrderIndex: 3})

	svc := newTestTaskService(store, newFakeClock(taskTestTime), &fakeEmailSender{})

	task, err := svc.Create(context.Background(), TaskCreateInput{
		Title:     "  Write docs  ",
		ProjectID: "p1",
		SprintID:  strPtr("s1"),
	}, "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if task.Title != "Write docs" {
		t.Errorf("title = %q", task.Title)
	}
	if task.Status != database.StatusTodo {
		t.Errorf("status = %q, want todo", task.Status)
	}
	if task.Priority != database.PriorityMedium {
		t.Errorf("priority = %q, want medium", task.Priority)
	}
	if task.ProjectName != "Hive Core" {
		t.Errorf("project name = %q", task.ProjectName)
	}
	if task.SprintName == nil || *task.SprintName != "Sprint 1" {
		t.Errorf("sprint name = %v", task.SprintName)
	}
	if task.OrderIndex != 4 {
		t.Errorf("order index = %d, want 4", task.OrderIndex)
	}
}

func TestTaskCreateValidation(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedTaskFixtures(store)
	svc := newTestTaskService(store, newFakeClock(taskTestTime), &fakeEmailSender{})

	_, err := svc.Create(context.Background(), TaskCreateInput{Title: "   ", ProjectID: "p1"}, "u1")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank title: got %v, want ErrInvalidInput", err)
	}

	_, err = svc.Create(context.Background(), TaskCreateInput{
		Title: "ok", ProjectID: "p1", Priority: "urgent-ish",
	}, "u1")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("bad priority: got %v, want ErrInvalidInput", err)
	}

	_, err = svc.Create(context.Background(), TaskCreateInput{Title: "ok", ProjectID: "missing"}, "u1")
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("missing project: got %v, want ErrNotFound", err)
	}
}

func TestTaskCreateNotifiesAssignee(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedTaskFixtures(store)
	email := &fakeEmailSender{}
	svc := newTestTaskService(store, newFakeClock(taskTestTime), email)

	task, err := svc.Create(context.Background(), TaskCreateInput{
		Title:        "Review PR",
		ProjectID:    "p1",
		AssignedToID: strPtr("u2"),
	}, "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.AssignedToName == nil || *task.AssignedToName != "Bob" {
		t.Errorf("assignee name = %v", task.AssignedToName)
	}

	got := store.allNotifications()
	if len(got) != 1 {
		t.Fatalf("got %d notifications, want 1", len(got))
	}
	n := got[0]
	if n.UserID != "u2" {
		t.Errorf("notification went to %q, want u2", n.UserID)
	}
	if n.Type != database.NotificationTaskAssigned {
		t.Errorf("notification type = %q", n.Type)
	}
	if n.Message != "Alice assigned you a task: Review PR" {
		t.Errorf("message = %q", n.Message)
	}
	if email.assignedCount() != 1 {
		t.Errorf("sent %d assignment emails, want 1", email.assignedCount())
	}
}

func TestTaskUpdateCompletionTimestamp(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedTaskFixtures(store)
	clock := newFakeClock(taskTestTime)
	svc := newTestTaskService(store, clock, &fakeEmailSender{})

	task, err := svc.Create(context.Background(), TaskCreateInput{Title: "Finish it", ProjectID: "p1"}, "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	done := database.StatusDone
	updated, err := svc.Update(context.Background(), task.ID, TaskUpdateInput{Status: &done}, "u1")
	if err != nil {
		t.Fatalf("Update to done: %v", err)
	}
	if updated.CompletedAt == nil || !updated.CompletedAt.Equal(taskTestTime) {
		t.Fatalf("CompletedAt = %v, want %v", updated.CompletedAt, taskTestTime)
	}

	// Reopening keeps the original completion timestamp.
	clock.Advance(time.Hour)
	todo := database.StatusTodo
	reopened, err := svc.Update(context.Background(), task.ID, TaskUpdateInput{Status: &todo}, "u1")
	if err != nil {
		t.Fatalf("Update to todo: %v", err)
	}
	if reopened.CompletedAt == nil || !reopened.CompletedAt.Equal(taskTestTime) {
		t.Errorf("CompletedAt after reopen = %v, want %v", reopened.CompletedAt, taskTestTime)
	}
	if reopened.Status != database.StatusTodo {
		t.Errorf("status = %q, want todo", reopened.Status)
	}
}

func TestTaskUpdateAssigneeChange(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedTaskFixtures(store)
	email := &fakeEmailSender{}
	svc := newTestTaskService(store, newFakeClock(taskTestTime), email)

	task, err := svc.Create(context.Background(), TaskCreateInput{Title: "Handoff", ProjectID: "p1"}, "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := svc.Update(context.Background(), task.ID, TaskUpdateInput{AssignedToID: strPtr("u2")}, "u1")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.AssignedToName == nil || *updated.AssignedToName != "Bob" {
		t.Errorf("assignee name = %v", updated.AssignedToName)
	}
	if n := store.notificationCount(); n != 1 {
		t.Fatalf("got %d notifications, want 1", n)
	}

	// Re-saving with the same assignee does not notify again.
	if _, err := svc.Update(context.Background(), task.ID, TaskUpdateInput{AssignedToID: strPtr("u2")}, "u1"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n := store.notificationCount(); n != 1 {
		t.Fatalf("got %d notifications after no-op reassign, want 1", n)
	}

	// Empty string clears the assignment.
	cleared, err := svc.Update(context.Background(), task.ID, TaskUpdateInput{AssignedToID: strPtr("")}, "u1")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if cleared.AssignedToID != nil || cleared.AssignedToName != nil {
		t.Errorf("assignment not cleared: %v %v", cleared.AssignedToID, cleared.AssignedToName)
	}
}

func TestTaskUpdateRefreshesNames(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedTaskFixtures(store)
	svc := newTestTaskService(store, newFakeClock(taskTestTime), &fakeEmailSender{})

	task, err := svc.Create(context.Background(), TaskCreateInput{Title: "Rename me", ProjectID: "p1"}, "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Rename the project; the cached name stays stale until the next write.
	store.addProject(database.Project{ID: "p1", Name: "Hive Renamed", OwnerID: "u1", CreatedAt: taskTestTime})

	stored, err := store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if stored.ProjectName != "Hive Core" {
		t.Errorf("stored project name = %q, want stale Hive Core", stored.ProjectName)
	}

	title := "Renamed"
	updated, err := svc.Update(context.Background(), task.ID, TaskUpdateInput{Title: &title}, "u1")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.ProjectName != "Hive Renamed" {
		t.Errorf("project name = %q, want Hive Renamed", updated.ProjectName)
	}
}

func TestTaskDelete(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	seedTaskFixtures(store)
	svc := newTestTaskService(store, newFakeClock(taskTestTime), &fakeEmailSender{})

	task, err := svc.Create(context.Background(), TaskCreateInput{Title: "Ephemeral", ProjectID: "p1"}, "u1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(context.Background(), task.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.GetTask(context.Background(), task.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("GetTask after delete: %v, want ErrNotFound", err)
	}
	if err := svc.Delete(context.Background(), task.ID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("second delete: %v, want ErrNotFound", err)
	}
}

package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dbi-software/hive/database"
)

const (
	recentTasksLimit     = 5
	overdueListLimit     = 10
	projectProgressLimit = 10
)

// DashboardStore is the slice of the store the aggregator reads through.
type DashboardStore interface {
	FindTasks(ctx context.Context, f database.TaskFilter) ([]database.Task, error)
	CountTasks(ctx context.Context, f database.TaskFilter) (int, error)
}

// ProjectProgress summarizes completion for a single project.
type ProjectProgress struct {
	ProjectID          string  `json:"projectId"`
	ProjectName        string  `json:"projectName"`
	TotalTasks         int     `json:"totalTasks"`
	CompletedTasks     int     `json:"completedTasks"`
	ProgressPercentage float64 `json:"progressPercentage"`
}

// DashboardSnapshot is the aggregate payload the client's dashboard renders.
type DashboardSnapshot struct {
	TotalProjects    int `json:"totalProjects"`
	ActiveProjects   int `json:"activeProjects"`
	TotalTasks       int `json:"totalTasks"`
	CompletedTasks   int `json:"completedTasks"`
	OverdueTasks     int `json:"overdueTasks"`
	DueTodayTasks    int `json:"dueTodayTasks"`
	DueThisWeekTasks int `json:"dueThisWeekTasks"`
	MyTasks          int `json:"myTasks"`

	RecentTasks      []database.Task   `json:"recentTasks"`
	OverdueTasksList []database.Task   `json:"overdueTasksList"`
	ProjectProgress  []ProjectProgress `json:"projectProgress"`

	// Deadline buckets for the smart task display. The buckets are disjoint:
	// a task due today is never repeated in the this-week list.
	TodayTasks      []database.Task `json:"todayTasks"`
	ThisWeekTasks   []database.Task `json:"thisWeekTasks"`
	LaterTasks      []database.Task `json:"laterTasks"`
	NoDeadlineTasks []database.Task `json:"noDeadlineTasks"`

	// GanttTasks carries every visible task with a deadline, Done included.
	GanttTasks []database.Task `json:"ganttTasks"`
}

// DashboardService aggregates task statistics scoped to what the requesting
// user is allowed to see. Day boundaries are UTC midnight; there is no
// per-user timezone handling, which is a known limitation.
type DashboardService struct {
	store      DashboardStore
	visibility *VisibilityResolver
	clock      Clock
}

func NewDashboardService(store DashboardStore, visibility *VisibilityResolver, clock Clock) *DashboardService {
	if clock == nil {
		clock = SystemClock()
	}
	return &DashboardService{
		store:      store,
		visibility: visibility,
		clock:      clock,
	}
}

// ComputeDashboard assembles the full snapshot for a user. Any store failure
// aborts the whole computation; a partial dashboard is never returned.
func (s *DashboardService) ComputeDashboard(ctx context.Context, userID string, myTasksOnly bool) (*DashboardSnapshot, error) {
	now := s.clock.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)
	// Deadlines falling anywhere on day today+7 still count as "this week".
	weekEnd := today.AddDate(0, 0, 8)

	projects, err := s.visibility.VisibleActiveProjects(ctx, userID)
	if err != nil {
		return nil, err
	}
	projectIDs := make([]string, 0, len(projects))
	for _, p := range projects {
		projectIDs = append(projectIDs, p.ID)
	}

	base := database.TaskFilter{ProjectIDs: projectIDs}
	if myTasksOnly {
		base.AssignedToID = &userID
	}

	done := database.StatusDone

	snapshot := &DashboardSnapshot{
		TotalProjects:  len(projects),
		ActiveProjects: len(projects),
	}

	if snapshot.TotalTasks, err = s.store.CountTasks(ctx, base); err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	f := base
	f.Status = &done
	if snapshot.CompletedTasks, err = s.store.CountTasks(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to count completed tasks: %w", err)
	}

	f = base
	f.NotStatus = &done
	f.DeadlineBefore = &today
	if snapshot.OverdueTasks, err = s.store.CountTasks(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to count overdue tasks: %w", err)
	}

	f = base
	f.NotStatus = &done
	f.DeadlineOnOrAfter = &today
	f.DeadlineBefore = &tomorrow
	if snapshot.DueTodayTasks, err = s.store.CountTasks(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to count due-today tasks: %w", err)
	}

	f = base
	f.NotStatus = &done
	f.DeadlineOnOrAfter = &today
	f.DeadlineBefore = &weekEnd
	if snapshot.DueThisWeekTasks, err = s.store.CountTasks(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to count due-this-week tasks: %w", err)
	}

	f = database.TaskFilter{ProjectIDs: projectIDs, AssignedToID: &userID}
	if snapshot.MyTasks, err = s.store.CountTasks(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to count my tasks: %w", err)
	}

	f = base
	f.OrderBy = database.OrderByCreatedDesc
	f.Limit = recentTasksLimit
	if snapshot.RecentTasks, err = s.store.FindTasks(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to list recent tasks: %w", err)
	}

	f = base
	f.NotStatus = &done
	f.DeadlineBefore = &today
	f.OrderBy = database.OrderByDeadlineAsc
	f.Limit = overdueListLimit
	if snapshot.OverdueTasksList, err = s.store.FindTasks(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to list overdue tasks: %w", err)
	}

	f = base
	f.NotStatus = &done
	f.DeadlineOnOrAfter = &today
	f.DeadlineBefore = &tomorrow
	f.OrderBy = database.OrderByDeadlineAsc
	if snapshot.TodayTasks, err = s.store.FindTasks(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to list today tasks: %w", err)
	}

	f = base
	f.NotStatus = &done
	f.DeadlineOnOrAfter = &tomorrow
	f.DeadlineBefore = &weekEnd
	f.OrderBy = database.OrderByDeadlineAsc
	if snapshot.ThisWeekTasks, err = s.store.FindTasks(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to list this-week tasks: %w", err)
	}

	f = base
	f.NotStatus = &done
	f.DeadlineOnOrAfter = &weekEnd
	f.OrderBy = database.OrderByDeadlineAsc
	if snapshot.LaterTasks, err = s.store.FindTasks(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to list later tasks: %w", err)
	}

	noDeadline := false
	f = base
	f.NotStatus = &done
	f.HasDeadline = &noDeadline
	f.OrderBy = database.OrderByCreatedDesc
	if snapshot.NoDeadlineTasks, err = s.store.FindTasks(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to list no-deadline tasks: %w", err)
	}

	hasDeadline := true
	f = base
	f.HasDeadline = &hasDeadline
	f.OrderBy = database.OrderByDeadlineAsc
	if snapshot.GanttTasks, err = s.store.FindTasks(ctx, f); err != nil {
		return nil, fmt.Errorf("failed to list gantt tasks: %w", err)
	}

	snapshot.ProjectProgress, err = s.projectProgress(ctx, projects)
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// projectProgress computes per-project completion for up to ten visible
// projects. Progress covers the whole project regardless of assignee.
func (s *DashboardService) projectProgress(ctx context.Context, projects []database.Project) ([]ProjectProgress, error) {
	done := database.StatusDone

	progress := make([]ProjectProgress, 0, len(projects))
	for _, p := range projects {
		if len(progress) >= projectProgressLimit {
			break
		}
		projectID := p.ID

		total, err := s.store.CountTasks(ctx, database.TaskFilter{ProjectID: &projectID})
		if err != nil {
			return nil, fmt.Errorf("failed to count project tasks: %w", err)
		}
		completed, err := s.store.CountTasks(ctx, database.TaskFilter{ProjectID: &projectID, Status: &done})
		if err != nil {
			return nil, fmt.Errorf("failed to count completed project tasks: %w", err)
		}

		var pct float64
		if total > 0 {
			pct = math.Round(float64(completed)/float64(total)*1000) / 10
		}
		progress = append(progress, ProjectProgress{
			ProjectID:          p.ID,
			ProjectName:        p.Name,
			TotalTasks:         total,
			CompletedTasks:     completed,
			ProgressPercentage: pct,
		})
	}
	return progress, nil
}

package services

import (
	"context"
	"fmt"

	"github.com/dbi-software/hive/database"
)

// ProjectFinder is the slice of the store the resolver reads through.
type ProjectFinder interface {
	FindProjects(ctx context.Context, f database.ProjectFilter) ([]database.Project, error)
}

// VisibilityResolver computes the set of projects a user may see: projects
// they own, projects they are a member of, and legacy projects that predate
// ownership tracking (empty owner id). Membership can change between requests,
// so the result is recomputed on every call and never cached.
type VisibilityResolver struct {
	projects ProjectFinder
}

func NewVisibilityResolver(projects ProjectFinder) *VisibilityResolver {
	return &VisibilityResolver{projects: projects}
}

// VisibleProjects returns every project visible to the user, archived
// included.
func (r *VisibilityResolver) VisibleProjects(ctx context.Context, userID string) ([]database.Project, error) {
	projects, err := r.projects.FindProjects(ctx, database.ProjectFilter{
		VisibleToUserID: &userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve visible projects: %w", err)
	}
	return projects, nil
}

// VisibleActiveProjects returns visible projects that are not archived.
func (r *VisibilityResolver) VisibleActiveProjects(ctx context.Context, userID string) ([]database.Project, error) {
	archived := false
	projects, err := r.projects.FindProjects(ctx, database.ProjectFilter{
		VisibleToUserID: &userID,
		Archived:        &archived,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve visible projects: %w", err)
	}
	return projects, nil
}

// VisibleProjectIDs returns the id set used to scope task queries.
func (r *VisibilityResolver) VisibleProjectIDs(ctx context.Context, userID string) ([]string, error) {
	projects, err := r.VisibleProjects(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// CanSee reports whether a single already-loaded project is visible to the
// user.
func CanSee(p database.Project, userID string) bool {
	if p.OwnerID == "" || p.OwnerID == userID {
		return true
	}
	for _, id := range p.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

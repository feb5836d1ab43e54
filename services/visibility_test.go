package services

import (
	"context"
	"testing"
	"time"

	"github.com/dbi-software/hive/database"
)

func TestCanSee(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		project database.Project
		userID  string
		want    bool
	}{
		{"owner", database.Project{OwnerID: "u1"}, "u1", true},
		{"member", database.Project{OwnerID: "u2", MemberIDs: []string{"u3", "u1"}}, "u1", true},
		{"legacy without owner", database.Project{OwnerID: ""}, "u1", true},
		{"stranger", database.Project{OwnerID: "u2", MemberIDs: []string{"u3"}}, "u1", false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := CanSee(tc.project, tc.userID); got != tc.want {
				t.Errorf("CanSee = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestVisibilityResolver(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.addProject(database.Project{ID: "owned", OwnerID: "u1", CreatedAt: now.Add(-4 * time.Hour)})
	store.addProject(database.Project{ID: "member", OwnerID: "u2", MemberIDs: []string{"u1"}, CreatedAt: now.Add(-3 * time.Hour)})
	store.addProject(database.Project{ID: "legacy", OwnerID: "", CreatedAt: now.Add(-2 * time.Hour)})
	store.addProject(database.Project{ID: "archived", OwnerID: "u1", IsArchived: true, CreatedAt: now.Add(-1 * time.Hour)})
	store.addProject(database.Project{ID: "foreign", OwnerID: "u2", CreatedAt: now})

	r := NewVisibilityResolver(store)

	ids, err := r.VisibleProjectIDs(context.Background(), "u1")
	if err != nil {
		t.Fatalf("VisibleProjectIDs: %v", err)
	}
	want := []string{"owned", "member", "legacy", "archived"}
	if len(ids) != len(want) {
		t.Fatalf("VisibleProjectIDs = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("VisibleProjectIDs = %v, want %v", ids, want)
		}
	}

	active, err := r.VisibleActiveProjects(context.Background(), "u1")
	if err != nil {
		t.Fatalf("VisibleActiveProjects: %v", err)
	}
	for _, p := range active {
		if p.IsArchived {
			t.Errorf("active list contains archived project %s", p.ID)
		}
		if p.ID == "foreign" {
			t.Errorf("active list contains invisible project %s", p.ID)
		}
	}
	if len(active) != 3 {
		t.Errorf("got %d active projects, want 3", len(active))
	}
}

func TestVisibilityReflectsMembershipChanges(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.addProject(database.Project{ID: "p1", OwnerID: "u2", CreatedAt: now})

	r := NewVisibilityResolver(store)

	ids, err := r.VisibleProjectIDs(context.Background(), "u1")
	if err != nil {
		t.Fatalf("VisibleProjectIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no visible projects, got %v", ids)
	}

	// Membership granted between requests is picked up immediately.
	store.addProject(database.Project{ID: "p1", OwnerID: "u2", MemberIDs: []string{"u1"}, CreatedAt: now})

	ids, err = r.VisibleProjectIDs(context.Background(), "u1")
	if err != nil {
		t.Fatalf("VisibleProjectIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != "p1" {
		t.Fatalf("VisibleProjectIDs = %v, want [p1]", ids)
	}
}

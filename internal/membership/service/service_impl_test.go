package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/observetask/identity/internal/authorization"
	"github.com/observetask/identity/internal/membership/domain"
	"github.com/observetask/identity/internal/membership/repository"
	"github.com/observetask/identity/internal/role"
	dbpkg "github.com/observetask/identity/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  domain.Service
	repo domain.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := dbpkg.NewTest()
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Membership{}); err != nil {
		t.Fatalf("failed to migrate memberships: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create id generator: %v", err)
	}

	repo := repository.New(db)
	svc := New(zap.NewNop(), db, repo, authorization.NewService(), node)

	return &fixture{db: db, node: node, svc: svc, repo: repo}
}

func (f *fixture) seed(t *testing.T, userID, orgID snowflake.ID, r role.Role) {
	t.Helper()
	m := &domain.Membership{
		ID:     f.node.Generate(),
		OrgID:  orgID,
		UserID: userID,
		Role:   r.Code,
	}
	if err := f.repo.Create(context.Background(), m); err != nil {
		t.Fatalf("failed to seed membership: %v", err)
	}
}

func TestAssignRoleCreatesMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org := f.node.Generate()
	admin := f.node.Generate()
	target := f.node.Generate()
	f.seed(t, admin, org, role.OrgAdmin)

	m, err := f.svc.AssignRole(ctx, admin, domain.AssignRoleRequest{
		OrgID:        org,
		TargetUserID: target,
		Role:         "TEAM_MEMBER",
	})
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if m.Role != role.TeamMember.Code {
		t.Fatalf("expected role %q, got %q", role.TeamMember.Code, m.Role)
	}

	stored, err := f.repo.Find(ctx, target, org)
	if err != nil {
		t.Fatalf("failed to load membership: %v", err)
	}
	if stored.Role != role.TeamMember.Code {
		t.Fatalf("expected stored role %q, got %q", role.TeamMember.Code, stored.Role)
	}
}

func TestAssignRoleUpdatesExistingMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org := f.node.Generate()
	admin := f.node.Generate()
	target := f.node.Generate()
	f.seed(t, admin, org, role.OrgAdmin)
	f.seed(t, target, org, role.TeamMember)

	if _, err := f.svc.AssignRole(ctx, admin, domain.AssignRoleRequest{
		OrgID:        org,
		TargetUserID: target,
		Role:         "TEAM_ADMIN",
	}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	stored, err := f.repo.Find(ctx, target, org)
	if err != nil {
		t.Fatalf("failed to load membership: %v", err)
	}
	if stored.Role != role.TeamAdmin.Code {
		t.Fatalf("expected role %q, got %q", role.TeamAdmin.Code, stored.Role)
	}

	var count int64
	if err := f.db.Model(&domain.Membership{}).Where("user_id = ? AND org_id = ?", target, org).Count(&count).Error; err != nil {
		t.Fatalf("failed to count memberships: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single membership row, got %d", count)
	}
}

func TestAssignRoleDeniedForEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org := f.node.Generate()
	admin := f.node.Generate()
	target := f.node.Generate()
	f.seed(t, admin, org, role.OrgAdmin)

	_, err := f.svc.AssignRole(ctx, admin, domain.AssignRoleRequest{
		OrgID:        org,
		TargetUserID: target,
		Role:         "SUPER_ADMIN",
	})
	if !errors.Is(err, authorization.ErrDenied) {
		t.Fatalf("expected denial, got %v", err)
	}
}

func TestAssignRoleRejectsUnknownRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org := f.node.Generate()
	admin := f.node.Generate()
	f.seed(t, admin, org, role.OrgAdmin)

	_, err := f.svc.AssignRole(ctx, admin, domain.AssignRoleRequest{
		OrgID:        org,
		TargetUserID: f.node.Generate(),
		Role:         "WIZARD",
	})
	if !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestAssignRoleRequiresActorMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AssignRole(ctx, f.node.Generate(), domain.AssignRoleRequest{
		OrgID:        f.node.Generate(),
		TargetUserID: f.node.Generate(),
		Role:         "TEAM_MEMBER",
	})
	if !errors.Is(err, domain.ErrActorNotMember) {
		t.Fatalf("expected ErrActorNotMember, got %v", err)
	}
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org := f.node.Generate()
	admin := f.node.Generate()
	target := f.node.Generate()
	f.seed(t, admin, org, role.OrgAdmin)
	f.seed(t, target, org, role.TeamMember)

	if err := f.svc.RemoveMember(ctx, admin, org, target); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if _, err := f.repo.Find(ctx, target, org); !errors.Is(err, domain.ErrMembershipNotFound) {
		t.Fatalf("expected membership gone, got %v", err)
	}
}

func TestRemoveMemberDeniedForTeamAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org := f.node.Generate()
	teamAdmin := f.node.Generate()
	target := f.node.Generate()
	f.seed(t, teamAdmin, org, role.TeamAdmin)
	f.seed(t, target, org, role.TeamMember)

	err := f.svc.RemoveMember(ctx, teamAdmin, org, target)
	if !errors.Is(err, authorization.ErrDenied) {
		t.Fatalf("expected denial, got %v", err)
	}
}

func TestRemoveAllForUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.node.Generate()
	f.seed(t, user, f.node.Generate(), role.TeamMember)
	f.seed(t, user, f.node.Generate(), role.TeamAdmin)

	removed, err := f.svc.RemoveAllForUser(ctx, user)
	if err != nil {
		t.Fatalf("remove all failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}

	remaining, err := f.svc.ListByUser(ctx, user)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no memberships, got %d", len(remaining))
	}
}

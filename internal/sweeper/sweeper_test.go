package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/observetask/identity/internal/authorization"
	"github.com/observetask/identity/internal/clock"
	"github.com/observetask/identity/internal/config"
	invitationdomain "github.com/observetask/identity/internal/invitation/domain"
	invitationrepo "github.com/observetask/identity/internal/invitation/repository"
	invitationsvc "github.com/observetask/identity/internal/invitation/service"
	membershipdomain "github.com/observetask/identity/internal/membership/domain"
	membershiprepo "github.com/observetask/identity/internal/membership/repository"
	membershipsvc "github.com/observetask/identity/internal/membership/service"
	"github.com/observetask/identity/internal/role"
	sessiondomain "github.com/observetask/identity/internal/session/domain"
	sessionrepo "github.com/observetask/identity/internal/session/repository"
	sessionsvc "github.com/observetask/identity/internal/session/service"
	dbpkg "github.com/observetask/identity/pkg/db"
	"go.uber.org/zap"
)

func TestRunOnceSweepsBothTables(t *testing.T) {
	db, err := dbpkg.NewTest()
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	err = db.AutoMigrate(&sessiondomain.Session{}, &invitationdomain.Invitation{}, &membershipdomain.Membership{})
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create id generator: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	cfg := config.Config{
		SessionTTL:        30 * 24 * time.Hour,
		SessionMaxPerUser: 5,
		InvitationTTL:     7 * 24 * time.Hour,
	}

	log := zap.NewNop()
	authz := authorization.NewService()
	mrepo := membershiprepo.New(db)
	memberships := membershipsvc.New(log, db, mrepo, authz, node)
	sessions := sessionsvc.New(log, db, sessionrepo.New(db), memberships, authz, nil, node, clk, cfg)
	invitations := invitationsvc.New(log, db, invitationrepo.New(db), memberships, mrepo, authz, nil, node, clk, cfg)

	ctx := context.Background()
	org := node.Generate()
	admin := node.Generate()
	err = mrepo.Create(ctx, &membershipdomain.Membership{
		ID: node.Generate(), OrgID: org, UserID: admin, Role: role.OrgAdmin.Code,
	})
	if err != nil {
		t.Fatalf("failed to seed membership: %v", err)
	}

	if _, err := sessions.Issue(ctx, sessiondomain.IssueRequest{UserID: admin, OrgID: org}); err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := invitations.Invite(ctx, admin, invitationdomain.InviteRequest{OrgID: org, Email: "a@example.com", Role: "TEAM_MEMBER"}); err != nil {
		t.Fatalf("invite failed: %v", err)
	}

	sweeper, err := New(Params{Log: log, SessionSvc: sessions, InvitationSvc: invitations})
	if err != nil {
		t.Fatalf("failed to create sweeper: %v", err)
	}

	clk.Advance(31 * 24 * time.Hour)

	if err := sweeper.RunOnce(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	var sessionCount int64
	if err := db.Model(&sessiondomain.Session{}).Count(&sessionCount).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if sessionCount != 0 {
		t.Fatalf("expected sessions deleted, got %d", sessionCount)
	}

	var expired int64
	err = db.Model(&invitationdomain.Invitation{}).
		Where("status = ?", invitationdomain.StatusExpired).
		Count(&expired).Error
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired invitation, got %d", expired)
	}
}

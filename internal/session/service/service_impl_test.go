package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/observetask/identity/internal/authorization"
	"github.com/observetask/identity/internal/clock"
	"github.com/observetask/identity/internal/config"
	membershipdomain "github.com/observetask/identity/internal/membership/domain"
	membershiprepo "github.com/observetask/identity/internal/membership/repository"
	membershipsvc "github.com/observetask/identity/internal/membership/service"
	"github.com/observetask/identity/internal/observability/metrics"
	"github.com/observetask/identity/internal/role"
	"github.com/observetask/identity/internal/session/domain"
	"github.com/observetask/identity/internal/session/repository"
	dbpkg "github.com/observetask/identity/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   domain.Service
	mrepo membershipdomain.Repository
}

func newFixture(t *testing.T, maxPerUser int) *fixture {
	t.Helper()

	db, err := dbpkg.NewTest()
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	if err := db.AutoMigrate(&domain.Session{}, &membershipdomain.Membership{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create id generator: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	cfg := config.Config{
		SessionTTL:        30 * 24 * time.Hour,
		SessionMaxPerUser: maxPerUser,
	}

	authz := authorization.NewService()
	mrepo := membershiprepo.New(db)
	memberships := membershipsvc.New(zap.NewNop(), db, mrepo, authz, node)

	var m *metrics.Metrics
	svc := New(zap.NewNop(), db, repository.New(db), memberships, authz, m, node, clk, cfg)

	return &fixture{db: db, node: node, clock: clk, svc: svc, mrepo: mrepo}
}

func (f *fixture) member(t *testing.T, userID, orgID snowflake.ID, r role.Role) {
	t.Helper()
	err := f.mrepo.Create(context.Background(), &membershipdomain.Membership{
		ID:     f.node.Generate(),
		OrgID:  orgID,
		UserID: userID,
		Role:   r.Code,
	})
	if err != nil {
		t.Fatalf("failed to seed membership: %v", err)
	}
}

func TestIssueAndValidate(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	user := f.node.Generate()
	org := f.node.Generate()

	issued, err := f.svc.Issue(ctx, domain.IssueRequest{UserID: user, OrgID: org, DeviceInfo: "cli"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if issued.RawToken == "" {
		t.Fatal("expected a raw token")
	}

	session, err := f.svc.Validate(ctx, issued.RawToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if session.UserID != user || session.OrgID != org {
		t.Fatalf("unexpected session identity: %+v", session)
	}
	if session.DeviceInfo != "cli" {
		t.Fatalf("expected device info preserved, got %q", session.DeviceInfo)
	}
}

func TestValidateRejectsUnknownToken(t *testing.T) {
	f := newFixture(t, 5)

	if _, err := f.svc.Validate(context.Background(), "not-a-real-token"); !errors.Is(err, domain.ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if _, err := f.svc.Validate(context.Background(), ""); !errors.Is(err, domain.ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for empty token, got %v", err)
	}
}

func TestValidateExpiredSession(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, domain.IssueRequest{UserID: f.node.Generate(), OrgID: f.node.Generate()})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	f.clock.Advance(30*24*time.Hour + time.Second)

	if _, err := f.svc.Validate(ctx, issued.RawToken); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestRotateInvalidatesOldToken(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, domain.IssueRequest{UserID: f.node.Generate(), OrgID: f.node.Generate()})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	rotated, err := f.svc.Rotate(ctx, issued.RawToken)
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if rotated.RawToken == issued.RawToken {
		t.Fatal("expected a fresh token")
	}

	if _, err := f.svc.Validate(ctx, issued.RawToken); !errors.Is(err, domain.ErrInvalidSession) {
		t.Fatalf("expected old token invalid, got %v", err)
	}
	if _, err := f.svc.Validate(ctx, rotated.RawToken); err != nil {
		t.Fatalf("expected new token valid, got %v", err)
	}
}

func TestRotateSingleWinner(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	issued, err := f.svc.Issue(ctx, domain.IssueRequest{UserID: f.node.Generate(), OrgID: f.node.Generate()})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := f.svc.Rotate(ctx, issued.RawToken); err != nil {
		t.Fatalf("first rotation failed: %v", err)
	}

	_, err = f.svc.Rotate(ctx, issued.RawToken)
	if !errors.Is(err, domain.ErrInvalidSession) && !errors.Is(err, domain.ErrSessionConsumed) {
		t.Fatalf("expected second rotation to lose, got %v", err)
	}
}

func TestIssueEvictsOldestAtCap(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	user := f.node.Generate()
	org := f.node.Generate()

	var tokens []string
	for i := 0; i < 3; i++ {
		issued, err := f.svc.Issue(ctx, domain.IssueRequest{UserID: user, OrgID: org})
		if err != nil {
			t.Fatalf("issue %d failed: %v", i, err)
		}
		tokens = append(tokens, issued.RawToken)
		f.clock.Advance(time.Minute)
	}

	issued, err := f.svc.Issue(ctx, domain.IssueRequest{UserID: user, OrgID: org})
	if err != nil {
		t.Fatalf("issue over cap failed: %v", err)
	}

	if _, err := f.svc.Validate(ctx, tokens[0]); !errors.Is(err, domain.ErrInvalidSession) {
		t.Fatalf("expected oldest session evicted, got %v", err)
	}
	for _, raw := range append(tokens[1:], issued.RawToken) {
		if _, err := f.svc.Validate(ctx, raw); err != nil {
			t.Fatalf("expected session still valid, got %v", err)
		}
	}

	active, err := f.svc.ListActive(ctx, user)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("expected 3 active sessions, got %d", len(active))
	}
}

func TestRevokeOwnSession(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	user := f.node.Generate()
	issued, err := f.svc.Issue(ctx, domain.IssueRequest{UserID: user, OrgID: f.node.Generate()})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if err := f.svc.Revoke(ctx, user, issued.RawToken); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := f.svc.Validate(ctx, issued.RawToken); !errors.Is(err, domain.ErrInvalidSession) {
		t.Fatalf("expected revoked token invalid, got %v", err)
	}
}

func TestRevokeByIDRequiresAuthority(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	org := f.node.Generate()
	owner := f.node.Generate()
	peer := f.node.Generate()
	admin := f.node.Generate()

	f.member(t, owner, org, role.TeamMember)
	f.member(t, peer, org, role.TeamMember)
	f.member(t, admin, org, role.OrgAdmin)

	issued, err := f.svc.Issue(ctx, domain.IssueRequest{UserID: owner, OrgID: org})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if err := f.svc.RevokeByID(ctx, peer, issued.Session.ID); !errors.Is(err, authorization.ErrDenied) {
		t.Fatalf("expected peer denied, got %v", err)
	}
	if _, err := f.svc.Validate(ctx, issued.RawToken); err != nil {
		t.Fatalf("expected session untouched after denial, got %v", err)
	}

	if err := f.svc.RevokeByID(ctx, admin, issued.Session.ID); err != nil {
		t.Fatalf("expected admin revoke to succeed, got %v", err)
	}
	if _, err := f.svc.Validate(ctx, issued.RawToken); !errors.Is(err, domain.ErrInvalidSession) {
		t.Fatalf("expected session revoked, got %v", err)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	user := f.node.Generate()
	org := f.node.Generate()
	for i := 0; i < 3; i++ {
		if _, err := f.svc.Issue(ctx, domain.IssueRequest{UserID: user, OrgID: org}); err != nil {
			t.Fatalf("issue failed: %v", err)
		}
	}

	revoked, err := f.svc.RevokeAllForUser(ctx, user)
	if err != nil {
		t.Fatalf("revoke all failed: %v", err)
	}
	if revoked != 3 {
		t.Fatalf("expected 3 revoked, got %d", revoked)
	}

	active, err := f.svc.ListActive(ctx, user)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active sessions, got %d", len(active))
	}
}

func TestSweepExpiredIsIdempotent(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	user := f.node.Generate()
	org := f.node.Generate()
	if _, err := f.svc.Issue(ctx, domain.IssueRequest{UserID: user, OrgID: org}); err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	removed, err := f.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected nothing swept before expiry, got %d", removed)
	}

	f.clock.Advance(30*24*time.Hour + time.Second)

	removed, err = f.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 swept, got %d", removed)
	}

	removed, err = f.svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected second sweep to remove nothing, got %d", removed)
	}
}

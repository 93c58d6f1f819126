package token

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/observetask/identity/internal/clock"
	"github.com/observetask/identity/internal/config"
	"github.com/observetask/identity/internal/role"
)

func newIssuer(t *testing.T) (*Issuer, *clock.FakeClock, *snowflake.Node) {
	t.Helper()

	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	issuer, err := NewIssuer(config.Config{
		AppName:       "identity",
		AuthJWTSecret: "test-secret-not-for-production",
	}, clk)
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create id generator: %v", err)
	}
	return issuer, clk, node
}

func TestIssueAndVerify(t *testing.T) {
	issuer, _, node := newIssuer(t)

	in := Claims{
		UserID: node.Generate(),
		OrgID:  node.Generate(),
		Role:   role.OrgAdmin,
		Email:  "admin@example.com",
	}

	signed, err := issuer.Issue(in)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	out, err := issuer.Verify(signed)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if out.UserID != in.UserID || out.OrgID != in.OrgID {
		t.Fatalf("claims mismatch: %+v", out)
	}
	if out.Role != role.OrgAdmin {
		t.Fatalf("expected role %s, got %s", role.OrgAdmin, out.Role)
	}
	if out.Email != in.Email {
		t.Fatalf("expected email %q, got %q", in.Email, out.Email)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	issuer, clk, node := newIssuer(t)

	signed, err := issuer.Issue(Claims{UserID: node.Generate(), OrgID: node.Generate(), Role: role.TeamMember})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	clk.Advance(16 * time.Minute)

	if _, err := issuer.Verify(signed); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyTamperedToken(t *testing.T) {
	issuer, _, node := newIssuer(t)

	signed, err := issuer.Issue(Claims{UserID: node.Generate(), OrgID: node.Generate(), Role: role.TeamMember})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	tampered := signed[:len(signed)-2] + "xx"
	if _, err := issuer.Verify(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	if _, err := NewIssuer(config.Config{}, clk); err == nil {
		t.Fatal("expected error without secret")
	}
}

package authorization

import (
	"errors"
	"testing"

	"github.com/observetask/identity/internal/role"
)

const (
	orgA = 1001
	orgB = 1002
)

func TestAssignRoleScope(t *testing.T) {
	svc := NewService()
	actor := Actor{UserID: 1, OrgID: orgA, Role: role.OrgAdmin}

	d := svc.Authorize(actor, AssignRole(orgA, role.TeamMember))
	if !d.Allowed {
		t.Fatalf("expected allow, got %s", d.Reason)
	}

	d = svc.Authorize(actor, AssignRole(orgB, role.TeamMember))
	if d.Allowed || d.Reason != ReasonCrossTenant {
		t.Fatalf("expected cross_tenant denial, got %+v", d)
	}

	d = svc.Authorize(actor, AssignRole(orgA, role.SuperAdmin))
	if d.Allowed || d.Reason != ReasonRoleNotAssignable {
		t.Fatalf("expected role_not_assignable denial, got %+v", d)
	}
}

func TestManageScopes(t *testing.T) {
	svc := NewService()

	teamAdmin := Actor{UserID: 2, OrgID: orgA, Role: role.TeamAdmin}
	if d := svc.Authorize(teamAdmin, ManageTeam(orgA)); !d.Allowed {
		t.Fatalf("expected team admin to manage team, got %s", d.Reason)
	}
	if d := svc.Authorize(teamAdmin, ManageOrg(orgA)); d.Allowed {
		t.Fatal("expected team admin to be denied org management")
	}
	if d := svc.Authorize(teamAdmin, ManageInvitation(orgA)); d.Allowed {
		t.Fatal("expected team admin to be denied invitation management")
	}

	orgAdmin := Actor{UserID: 3, OrgID: orgA, Role: role.OrgAdmin}
	if d := svc.Authorize(orgAdmin, ManageInvitation(orgA)); !d.Allowed {
		t.Fatalf("expected org admin to manage invitations, got %s", d.Reason)
	}
	if d := svc.Authorize(orgAdmin, ManageOrg(orgB)); d.Allowed {
		t.Fatal("expected cross-tenant org management to be denied")
	}
}

func TestRevokeSession(t *testing.T) {
	svc := NewService()

	owner := Actor{UserID: 7, OrgID: orgA, Role: role.TeamMember}
	if d := svc.Authorize(owner, RevokeSession(7, orgA)); !d.Allowed {
		t.Fatalf("expected owner to revoke own session, got %s", d.Reason)
	}

	peer := Actor{UserID: 8, OrgID: orgA, Role: role.TeamMember}
	if d := svc.Authorize(peer, RevokeSession(7, orgA)); d.Allowed {
		t.Fatal("expected peer revocation to be denied")
	}

	admin := Actor{UserID: 9, OrgID: orgA, Role: role.OrgAdmin}
	if d := svc.Authorize(admin, RevokeSession(7, orgA)); !d.Allowed {
		t.Fatalf("expected org admin to revoke member session, got %s", d.Reason)
	}
}

func TestSelfScope(t *testing.T) {
	svc := NewService()
	actor := Actor{UserID: 4, OrgID: orgA, Role: role.TeamMember}

	if d := svc.Authorize(actor, Self(4)); !d.Allowed {
		t.Fatalf("expected self scope to be allowed, got %s", d.Reason)
	}
	d := svc.Authorize(actor, Self(5))
	if d.Allowed {
		t.Fatal("expected other-user self scope to be denied")
	}
	if !errors.Is(d.Err(), ErrDenied) {
		t.Fatal("expected denial error to match ErrDenied")
	}
}

// Package authorization decides whether an actor may perform an action.
// Decisions are pure: all effects happen in the calling service after an
// allowed result.
package authorization

import (
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/observetask/identity/internal/role"
)

// ErrDenied is the sentinel all authorization failures match.
var ErrDenied = errors.New("denied")

// DeniedError carries a machine-readable denial reason.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string { return "denied: " + e.Reason }

func (e *DeniedError) Is(target error) bool { return target == ErrDenied }

// Denial reasons.
const (
	ReasonCrossTenant           = "cross_tenant"
	ReasonRoleNotAssignable     = "role_not_assignable"
	ReasonInsufficientAuthority = "insufficient_authority"
	ReasonNotSelf               = "not_self"
)

// Actor is the authenticated principal's membership in one organization.
type Actor struct {
	UserID snowflake.ID
	OrgID  snowflake.ID
	Role   role.Role
}

// ActionKind discriminates the Action union.
type ActionKind string

const (
	KindAssignRole       ActionKind = "assign_role"
	KindManageOrg        ActionKind = "manage_org"
	KindManageTeam       ActionKind = "manage_team"
	KindRevokeSession    ActionKind = "revoke_session"
	KindManageInvitation ActionKind = "manage_invitation"
	KindSelf             ActionKind = "self"
)

// Action is one gated operation with its scope.
type Action struct {
	Kind       ActionKind
	OrgID      snowflake.ID
	TargetRole role.Role
	OwnerID    snowflake.ID
}

func AssignRole(orgID snowflake.ID, target role.Role) Action {
	return Action{Kind: KindAssignRole, OrgID: orgID, TargetRole: target}
}

func ManageOrg(orgID snowflake.ID) Action {
	return Action{Kind: KindManageOrg, OrgID: orgID}
}

func ManageTeam(orgID snowflake.ID) Action {
	return Action{Kind: KindManageTeam, OrgID: orgID}
}

// RevokeSession targets the session owner; ownerOrgID is the organization the
// owner belongs to, resolved by the caller.
func RevokeSession(ownerID, ownerOrgID snowflake.ID) Action {
	return Action{Kind: KindRevokeSession, OwnerID: ownerID, OrgID: ownerOrgID}
}

func ManageInvitation(orgID snowflake.ID) Action {
	return Action{Kind: KindManageInvitation, OrgID: orgID}
}

// Self covers a user managing their own non-privileged profile fields.
func Self(userID snowflake.ID) Action {
	return Action{Kind: KindSelf, OwnerID: userID}
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Err returns nil for an allowed decision and a DeniedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Reason: d.Reason}
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Service answers authorization questions.
type Service interface {
	Authorize(actor Actor, action Action) Decision
}

type service struct{}

func NewService() Service { return service{} }

func (service) Authorize(actor Actor, action Action) Decision {
	switch action.Kind {
	case KindAssignRole:
		if actor.OrgID != action.OrgID {
			return deny(ReasonCrossTenant)
		}
		if !role.CanAssign(actor.Role, action.TargetRole) {
			return deny(ReasonRoleNotAssignable)
		}
		return allow()

	case KindManageOrg, KindManageInvitation:
		return scoped(actor, action.OrgID, role.CapabilityOrgManagement)

	case KindManageTeam:
		return scoped(actor, action.OrgID, role.CapabilityTeamManagement)

	case KindRevokeSession:
		if actor.UserID == action.OwnerID {
			return allow()
		}
		return scoped(actor, action.OrgID, role.CapabilityOrgManagement)

	case KindSelf:
		if actor.UserID == action.OwnerID {
			return allow()
		}
		return deny(ReasonNotSelf)

	default:
		return deny(ReasonInsufficientAuthority)
	}
}

func scoped(actor Actor, orgID snowflake.ID, capability role.Capability) Decision {
	if actor.OrgID != orgID {
		return deny(ReasonCrossTenant)
	}
	if !actor.Role.AuthorityAtLeast(role.MinimumRoleFor(capability)) {
		return deny(ReasonInsufficientAuthority)
	}
	return allow()
}

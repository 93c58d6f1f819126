// Package role encodes the role hierarchy and delegation rules.
package role

import (
	"fmt"
	"strings"
)

// Role is an organization-scoped authority level. Rank is a total order:
// lower rank means higher authority.
type Role struct {
	Code string
	Rank int
}

var (
	SuperAdmin = Role{Code: "SUPER_ADMIN", Rank: 0}
	OrgAdmin   = Role{Code: "ORG_ADMIN", Rank: 1}
	TeamAdmin  = Role{Code: "TEAM_ADMIN", Rank: 2}
	TeamMember = Role{Code: "TEAM_MEMBER", Rank: 3}
)

var byCode = map[string]Role{
	SuperAdmin.Code: SuperAdmin,
	OrgAdmin.Code:   OrgAdmin,
	TeamAdmin.Code:  TeamAdmin,
	TeamMember.Code: TeamMember,
}

// All lists every role in descending authority.
func All() []Role {
	return []Role{SuperAdmin, OrgAdmin, TeamAdmin, TeamMember}
}

// Parse resolves a role code to its Role value.
func Parse(code string) (Role, error) {
	r, ok := byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Role{}, fmt.Errorf("unknown role %q", code)
	}
	return r, nil
}

func (r Role) String() string { return r.Code }

// AuthorityAtLeast reports whether r's authority is greater than or equal
// to other's.
func (r Role) AuthorityAtLeast(other Role) bool {
	return r.Rank <= other.Rank
}

// assignable is the delegation policy. It is a fixed table rather than a
// rank comparison: ORG_ADMIN may not assign SUPER_ADMIN even though the
// ordering alone would allow a peer assignment.
var assignable = map[string][]string{
	SuperAdmin.Code: {SuperAdmin.Code, OrgAdmin.Code, TeamAdmin.Code, TeamMember.Code},
	OrgAdmin.Code:   {OrgAdmin.Code, TeamAdmin.Code, TeamMember.Code},
	TeamAdmin.Code:  {TeamMember.Code},
	TeamMember.Code: {},
}

// CanAssign reports whether actor may grant target to another user.
func CanAssign(actor, target Role) bool {
	for _, code := range assignable[actor.Code] {
		if code == target.Code {
			return true
		}
	}
	return false
}

// Capability names a class of privileged operations.
type Capability string

const (
	CapabilityOrgManagement  Capability = "org_management"
	CapabilityTeamManagement Capability = "team_management"
)

// MinimumRoleFor returns the least-authoritative role allowed to exercise
// the capability.
func MinimumRoleFor(c Capability) Role {
	switch c {
	case CapabilityOrgManagement:
		return OrgAdmin
	case CapabilityTeamManagement:
		return TeamAdmin
	default:
		return SuperAdmin
	}
}

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/observetask/identity/internal/authorization"
)

type Service interface {
	// Actor resolves a user's membership in an organization into an
	// authorization actor.
	Actor(ctx context.Context, userID, orgID snowflake.ID) (authorization.Actor, error)

	AssignRole(ctx context.Context, actorUserID snowflake.ID, req AssignRoleRequest) (*Membership, error)
	RemoveMember(ctx context.Context, actorUserID, orgID, targetUserID snowflake.ID) error
	ListByOrganization(ctx context.Context, actorUserID, orgID snowflake.ID) ([]Membership, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]Membership, error)

	// RemoveAllForUser deletes every membership a user holds. Callers are
	// expected to have authorized the operation already.
	RemoveAllForUser(ctx context.Context, userID snowflake.ID) (int64, error)
}

type AssignRoleRequest struct {
	OrgID        snowflake.ID
	TargetUserID snowflake.ID
	Role         string
}

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, m *Membership) error
	Find(ctx context.Context, userID, orgID snowflake.ID) (*Membership, error)
	ListByOrganization(ctx context.Context, orgID snowflake.ID) ([]Membership, error)
	ListByUser(ctx context.Context, userID snowflake.ID) ([]Membership, error)
	UpdateRole(ctx context.Context, userID, orgID snowflake.ID, role string) error
	Delete(ctx context.Context, userID, orgID snowflake.ID) error
	DeleteAllForUser(ctx context.Context, userID snowflake.ID) (int64, error)
}

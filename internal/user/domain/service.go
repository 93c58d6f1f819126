package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateUserRequest) (*User, error)
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	VerifyLocalCredential(ctx context.Context, userID snowflake.ID, presented string) (bool, error)
	ChangePassword(ctx context.Context, userID snowflake.ID, newPassword string) error
	Deactivate(ctx context.Context, userID snowflake.ID) error
	MarkEmailVerified(ctx context.Context, userID snowflake.ID) error
}

type CreateUserRequest struct {
	Email         string
	Password      string
	Provider      AuthProvider
	ExternalID    string
	FirstName     string
	LastName      string
	EmailVerified bool
}

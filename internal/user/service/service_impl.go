package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/observetask/identity/internal/clock"
	"github.com/observetask/identity/internal/user/domain"
	"github.com/observetask/identity/internal/user/password"
	"github.com/observetask/identity/pkg/db"
	"go.uber.org/zap"
)

const minPasswordLength = 8

type Service struct {
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(log *zap.Logger, repo domain.Repository, genID *snowflake.Node, clk clock.Clock) domain.Service {
	return &Service{
		log:   log.Named("user.service"),
		repo:  repo,
		genID: genID,
		clock: clk,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	provider := req.Provider
	if provider == "" {
		provider = domain.ProviderLocal
	}

	externalID := strings.TrimSpace(req.ExternalID)
	if !provider.ValidExternalID(externalID) {
		return nil, domain.ErrInvalidExternalID
	}

	var passwordHash *string
	if provider == domain.ProviderLocal {
		trimmed := strings.TrimSpace(req.Password)
		if len(trimmed) < minPasswordLength {
			return nil, domain.ErrInvalidCredentials
		}
		hashed, err := password.Hash(trimmed)
		if err != nil {
			return nil, err
		}
		passwordHash = &hashed
	}

	user := &domain.User{
		ID:            s.genID.Generate(),
		Email:         email,
		PasswordHash:  passwordHash,
		Provider:      provider,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		EmailVerified: req.EmailVerified,
		IsActive:      true,
		CreatedAt:     s.clock.Now(),
		UpdatedAt:     s.clock.Now(),
	}
	if externalID != "" {
		user.ExternalID = &externalID
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUserExists
		}
		return nil, err
	}

	s.log.Info("user created",
		zap.String("user_id", user.ID.String()),
		zap.String("provider", string(user.Provider)),
	)
	return user, nil
}

func (s *Service) FindByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.FindByEmail(ctx, normalized)
}

func (s *Service) VerifyLocalCredential(ctx context.Context, userID snowflake.ID, presented string) (bool, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if !user.CanLoginWithPassword() {
		return false, nil
	}
	return password.Verify(presented, *user.PasswordHash), nil
}

func (s *Service) ChangePassword(ctx context.Context, userID snowflake.ID, newPassword string) error {
	trimmed := strings.TrimSpace(newPassword)
	if len(trimmed) < minPasswordLength {
		return domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Provider != domain.ProviderLocal {
		return domain.ErrInvalidCredentials
	}

	hashed, err := password.Hash(trimmed)
	if err != nil {
		return err
	}

	return s.repo.UpdateFields(ctx, userID, map[string]any{
		"password_hash": hashed,
		"updated_at":    s.clock.Now(),
	})
}

func (s *Service) Deactivate(ctx context.Context, userID snowflake.ID) error {
	err := s.repo.UpdateFields(ctx, userID, map[string]any{
		"is_active":  false,
		"updated_at": s.clock.Now(),
	})
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}
	if err == nil {
		s.log.Info("user deactivated", zap.String("user_id", userID.String()))
	}
	return err
}

func (s *Service) MarkEmailVerified(ctx context.Context, userID snowflake.ID) error {
	return s.repo.UpdateFields(ctx, userID, map[string]any{
		"email_verified": true,
		"updated_at":     s.clock.Now(),
	})
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

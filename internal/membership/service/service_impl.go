package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/observetask/identity/internal/authorization"
	"github.com/observetask/identity/internal/membership/domain"
	"github.com/observetask/identity/internal/role"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	log   *zap.Logger
	db    *gorm.DB
	repo  domain.Repository
	authz authorization.Service
	genID *snowflake.Node
}

func New(log *zap.Logger, db *gorm.DB, repo domain.Repository, authz authorization.Service, genID *snowflake.Node) domain.Service {
	return &Service{
		log:   log.Named("membership.service"),
		db:    db,
		repo:  repo,
		authz: authz,
		genID: genID,
	}
}

func (s *Service) Actor(ctx context.Context, userID, orgID snowflake.ID) (authorization.Actor, error) {
	m, err := s.repo.Find(ctx, userID, orgID)
	if errors.Is(err, domain.ErrMembershipNotFound) {
		return authorization.Actor{}, domain.ErrActorNotMember
	}
	if err != nil {
		return authorization.Actor{}, err
	}

	r, err := role.Parse(m.Role)
	if err != nil {
		return authorization.Actor{}, err
	}

	return authorization.Actor{UserID: userID, OrgID: orgID, Role: r}, nil
}

func (s *Service) AssignRole(ctx context.Context, actorUserID snowflake.ID, req domain.AssignRoleRequest) (*domain.Membership, error) {
	target, err := role.Parse(req.Role)
	if err != nil {
		return nil, domain.ErrInvalidRole
	}

	actor, err := s.Actor(ctx, actorUserID, req.OrgID)
	if err != nil {
		return nil, err
	}

	if err := s.authz.Authorize(actor, authorization.AssignRole(req.OrgID, target)).Err(); err != nil {
		return nil, err
	}

	var out *domain.Membership
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.Find(ctx, req.TargetUserID, req.OrgID)
		switch {
		case err == nil:
			if existing.Role == target.Code {
				out = existing
				return nil
			}
			if err := repo.UpdateRole(ctx, req.TargetUserID, req.OrgID, target.Code); err != nil {
				return err
			}
			existing.Role = target.Code
			out = existing
			return nil

		case errors.Is(err, domain.ErrMembershipNotFound):
			m := &domain.Membership{
				ID:     s.genID.Generate(),
				OrgID:  req.OrgID,
				UserID: req.TargetUserID,
				Role:   target.Code,
			}
			if err := repo.Create(ctx, m); err != nil {
				return err
			}
			out = m
			return nil

		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("role assigned",
		zap.String("org_id", req.OrgID.String()),
		zap.String("actor_id", actorUserID.String()),
		zap.String("target_id", req.TargetUserID.String()),
		zap.String("role", target.Code),
	)
	return out, nil
}

func (s *Service) RemoveMember(ctx context.Context, actorUserID, orgID, targetUserID snowflake.ID) error {
	actor, err := s.Actor(ctx, actorUserID, orgID)
	if err != nil {
		return err
	}

	if err := s.authz.Authorize(actor, authorization.ManageOrg(orgID)).Err(); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, targetUserID, orgID); err != nil {
		return err
	}

	s.log.Info("member removed",
		zap.String("org_id", orgID.String()),
		zap.String("actor_id", actorUserID.String()),
		zap.String("target_id", targetUserID.String()),
	)
	return nil
}

func (s *Service) ListByOrganization(ctx context.Context, actorUserID, orgID snowflake.ID) ([]domain.Membership, error) {
	actor, err := s.Actor(ctx, actorUserID, orgID)
	if err != nil {
		return nil, err
	}

	if err := s.authz.Authorize(actor, authorization.ManageTeam(orgID)).Err(); err != nil {
		return nil, err
	}

	return s.repo.ListByOrganization(ctx, orgID)
}

func (s *Service) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.Membership, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) RemoveAllForUser(ctx context.Context, userID snowflake.ID) (int64, error) {
	removed, err := s.repo.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Info("memberships removed", zap.String("user_id", userID.String()), zap.Int64("count", removed))
	}
	return removed, nil
}

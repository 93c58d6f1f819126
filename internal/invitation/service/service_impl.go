package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/observetask/identity/internal/authorization"
	"github.com/observetask/identity/internal/clock"
	"github.com/observetask/identity/internal/config"
	"github.com/observetask/identity/internal/invitation/domain"
	membershipdomain "github.com/observetask/identity/internal/membership/domain"
	"github.com/observetask/identity/internal/observability/metrics"
	"github.com/observetask/identity/internal/role"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const inviteTokenBytes = 32

type Service struct {
	log         *zap.Logger
	db          *gorm.DB
	repo        domain.Repository
	memberships membershipdomain.Service
	memberRepo  membershipdomain.Repository
	authz       authorization.Service
	metrics     *metrics.Metrics
	genID       *snowflake.Node
	clock       clock.Clock
	cfg         config.Config
}

func New(
	log *zap.Logger,
	db *gorm.DB,
	repo domain.Repository,
	memberships membershipdomain.Service,
	memberRepo membershipdomain.Repository,
	authz authorization.Service,
	m *metrics.Metrics,
	genID *snowflake.Node,
	clk clock.Clock,
	cfg config.Config,
) domain.Service {
	return &Service{
		log:         log.Named("invitation.service"),
		db:          db,
		repo:        repo,
		memberships: memberships,
		memberRepo:  memberRepo,
		authz:       authz,
		metrics:     m,
		genID:       genID,
		clock:       clk,
		cfg:         cfg,
	}
}

func (s *Service) Invite(ctx context.Context, actorUserID snowflake.ID, req domain.InviteRequest) (*domain.Invitation, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, domain.ErrInvalidInvitation
	}

	target, err := role.Parse(req.Role)
	if err != nil {
		return nil, membershipdomain.ErrInvalidRole
	}

	actor, err := s.memberships.Actor(ctx, actorUserID, req.OrgID)
	if err != nil {
		return nil, err
	}
	decision := s.authz.Authorize(actor, authorization.AssignRole(req.OrgID, target))
	if err := decision.Err(); err != nil {
		s.metrics.RecordAuthzDenied(ctx, decision.Reason)
		return nil, err
	}

	now := s.clock.Now()
	exists, err := s.repo.ExistsPending(ctx, email, req.OrgID, now)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrDuplicateInvitation
	}

	token, err := newInviteToken()
	if err != nil {
		return nil, err
	}

	inv := &domain.Invitation{
		ID:        s.genID.Generate(),
		OrgID:     req.OrgID,
		Email:     email,
		Role:      target.Code,
		Token:     token,
		Status:    domain.StatusPending,
		InvitedBy: actorUserID,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		ExpiresAt: now.Add(s.cfg.InvitationTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.metrics.RecordInvitationCreated(ctx)
	s.log.Info("invitation created",
		zap.String("org_id", req.OrgID.String()),
		zap.String("invited_by", actorUserID.String()),
		zap.String("role", target.Code),
	)
	return inv, nil
}

// markAccepted flips the row to ACCEPTED. Losing the flip to a concurrent
// sweep means the invitation expired, not that someone already accepted it.
func markAccepted(ctx context.Context, repo domain.Repository, id snowflake.ID, at time.Time) error {
	err := repo.MarkAccepted(ctx, id, at)
	if errors.Is(err, domain.ErrAlreadyProcessed) {
		if current, ferr := repo.FindByID(ctx, id); ferr == nil && current.Status == domain.StatusExpired {
			return domain.ErrInvitationExpired
		}
	}
	return err
}

// actionable rejects tokens that can no longer be accepted. The stored
// timestamp decides expiry, not the sweep.
func actionable(inv *domain.Invitation, now time.Time) error {
	if inv.Status == domain.StatusExpired {
		return domain.ErrInvitationExpired
	}
	if inv.Status.Terminal() {
		return domain.ErrAlreadyProcessed
	}
	if !now.Before(inv.ExpiresAt) {
		return domain.ErrInvitationExpired
	}
	return nil
}

func (s *Service) Preview(ctx context.Context, token string) (*domain.Invitation, error) {
	if token == "" {
		return nil, domain.ErrInvalidInvitation
	}

	inv, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := actionable(inv, s.clock.Now()); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) Accept(ctx context.Context, token string, userID snowflake.ID, userEmail string) (*membershipdomain.Membership, error) {
	if token == "" {
		return nil, domain.ErrInvalidInvitation
	}

	inv, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := actionable(inv, now); err != nil {
		return nil, err
	}
	// The token is bound to the invited address. Someone else holding it
	// gets the same answer as an unknown token.
	if !strings.EqualFold(strings.TrimSpace(userEmail), inv.Email) {
		return nil, domain.ErrInvitationNotFound
	}

	var membership *membershipdomain.Membership
	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := markAccepted(ctx, repo, inv.ID, now); err != nil {
			return err
		}

		memberRepo := s.memberRepo.WithTx(tx)
		existing, err := memberRepo.Find(ctx, userID, inv.OrgID)
		switch {
		case err == nil:
			if existing.Role != inv.Role {
				if err := memberRepo.UpdateRole(ctx, userID, inv.OrgID, inv.Role); err != nil {
					return err
				}
				existing.Role = inv.Role
			}
			membership = existing
			return nil

		case errors.Is(err, membershipdomain.ErrMembershipNotFound):
			m := &membershipdomain.Membership{
				ID:     s.genID.Generate(),
				OrgID:  inv.OrgID,
				UserID: userID,
				Role:   inv.Role,
			}
			if err := memberRepo.Create(ctx, m); err != nil {
				return err
			}
			membership = m
			return nil

		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvitationClosed(ctx, "accepted")
	s.log.Info("invitation accepted",
		zap.String("org_id", inv.OrgID.String()),
		zap.String("user_id", userID.String()),
		zap.String("role", inv.Role),
	)
	return membership, nil
}

func (s *Service) Revoke(ctx context.Context, actorUserID, invitationID snowflake.ID) error {
	inv, err := s.repo.FindByID(ctx, invitationID)
	if err != nil {
		return err
	}

	actor, err := s.memberships.Actor(ctx, actorUserID, inv.OrgID)
	if err != nil {
		return err
	}
	decision := s.authz.Authorize(actor, authorization.ManageInvitation(inv.OrgID))
	if err := decision.Err(); err != nil {
		s.metrics.RecordAuthzDenied(ctx, decision.Reason)
		return err
	}

	if err := s.repo.MarkRevoked(ctx, inv.ID, s.clock.Now()); err != nil {
		// Withdrawing an invitation that already reached a terminal state
		// is a no-op success, not a conflict.
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			return nil
		}
		return err
	}

	s.metrics.RecordInvitationClosed(ctx, "revoked")
	s.log.Info("invitation revoked",
		zap.String("org_id", inv.OrgID.String()),
		zap.String("actor_id", actorUserID.String()),
	)
	return nil
}

func (s *Service) FindActionable(ctx context.Context, email string) ([]domain.Invitation, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return s.repo.ListActionableByEmail(ctx, normalized, s.clock.Now())
}

func (s *Service) ListPending(ctx context.Context, actorUserID, orgID snowflake.ID) ([]domain.Invitation, error) {
	actor, err := s.memberships.Actor(ctx, actorUserID, orgID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(actor, authorization.ManageInvitation(orgID)).Err(); err != nil {
		return nil, err
	}
	return s.repo.ListPendingByOrganization(ctx, orgID, s.clock.Now())
}

func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now()
	expired, err := s.repo.ExpireOutdated(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.metrics.RecordSweep(ctx, "invitations", expired)
		s.log.Info("expired invitations swept", zap.Int64("count", expired))
	}
	return expired, nil
}

func newInviteToken() (string, error) {
	buf := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/observetask/identity/internal/authorization"
	"github.com/observetask/identity/internal/clock"
	"github.com/observetask/identity/internal/config"
	membershipdomain "github.com/observetask/identity/internal/membership/domain"
	"github.com/observetask/identity/internal/observability/metrics"
	"github.com/observetask/identity/internal/session/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sessionTokenBytes = 32

type Service struct {
	log         *zap.Logger
	db          *gorm.DB
	repo        domain.Repository
	memberships membershipdomain.Service
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
	authz authorization.Service,
	m *metrics.Metrics,
	genID *snowflake.Node,
	clk clock.Clock,
	cfg config.Config,
) domain.Service {
	return &Service{
		log:         log.Named("session.service"),
		db:          db,
		repo:        repo,
		memberships: memberships,
		authz:       authz,
		metrics:     m,
		genID:       genID,
		clock:       clk,
		cfg:         cfg,
	}
}

func (s *Service) Issue(ctx context.Context, req domain.IssueRequest) (*domain.Issued, error) {
	raw, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &domain.Session{
		ID:         s.genID.Generate(),
		UserID:     req.UserID,
		OrgID:      req.OrgID,
		TokenHash:  hashToken(raw),
		DeviceInfo: req.DeviceInfo,
		IPAddress:  req.IPAddress,
		ExpiresAt:  now.Add(s.cfg.SessionTTL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if max := s.cfg.SessionMaxPerUser; max > 0 {
			count, err := repo.CountActiveByUser(ctx, req.UserID, now)
			if err != nil {
				return err
			}
			for count >= int64(max) {
				oldest, err := repo.OldestActiveByUser(ctx, req.UserID, now)
				if err != nil {
					return err
				}
				if err := repo.Revoke(ctx, oldest.ID, now); err != nil {
					return err
				}
				s.metrics.RecordSessionEvicted(ctx)
				s.log.Info("session evicted",
					zap.String("user_id", req.UserID.String()),
					zap.String("session_id", oldest.ID.String()),
				)
				count--
			}
		}

		return repo.Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSessionIssued(ctx)
	return &domain.Issued{Session: session, RawToken: raw}, nil
}

func (s *Service) Validate(ctx context.Context, rawToken string) (*domain.Session, error) {
	if rawToken == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.repo.FindByTokenHash(ctx, hashToken(rawToken))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if session.RevokedAt != nil || session.RotatedAt != nil {
		return nil, domain.ErrInvalidSession
	}
	if !now.Before(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

func (s *Service) Rotate(ctx context.Context, rawToken string) (*domain.Issued, error) {
	current, err := s.Validate(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	raw, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	next := &domain.Session{
		ID:         s.genID.Generate(),
		UserID:     current.UserID,
		OrgID:      current.OrgID,
		TokenHash:  hashToken(raw),
		DeviceInfo: current.DeviceInfo,
		IPAddress:  current.IPAddress,
		ExpiresAt:  now.Add(s.cfg.SessionTTL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.MarkRotated(ctx, current.ID, now); err != nil {
			return err
		}
		return repo.Create(ctx, next)
	})
	if errors.Is(err, domain.ErrSessionConsumed) {
		s.metrics.RecordSessionRotated(ctx, "lost_race")
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSessionRotated(ctx, "ok")
	return &domain.Issued{Session: next, RawToken: raw}, nil
}

func (s *Service) Revoke(ctx context.Context, actorUserID snowflake.ID, rawToken string) error {
	session, err := s.Validate(ctx, rawToken)
	if err != nil {
		return err
	}
	return s.revoke(ctx, actorUserID, session)
}

func (s *Service) RevokeByID(ctx context.Context, actorUserID, sessionID snowflake.ID) error {
	var session domain.Session
	err := s.db.WithContext(ctx).Where("id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrSessionNotFound
	}
	if err != nil {
		return err
	}
	return s.revoke(ctx, actorUserID, &session)
}

func (s *Service) revoke(ctx context.Context, actorUserID snowflake.ID, session *domain.Session) error {
	if actorUserID != session.UserID {
		actor, err := s.memberships.Actor(ctx, actorUserID, session.OrgID)
		if err != nil {
			return err
		}
		decision := s.authz.Authorize(actor, authorization.RevokeSession(session.UserID, session.OrgID))
		if err := decision.Err(); err != nil {
			s.metrics.RecordAuthzDenied(ctx, decision.Reason)
			return err
		}
	}

	if err := s.repo.Revoke(ctx, session.ID, s.clock.Now()); err != nil {
		return err
	}

	s.metrics.RecordSessionRevoked(ctx, "single")
	s.log.Info("session revoked",
		zap.String("session_id", session.ID.String()),
		zap.String("user_id", session.UserID.String()),
		zap.String("actor_id", actorUserID.String()),
	)
	return nil
}

func (s *Service) RevokeAllForUser(ctx context.Context, userID snowflake.ID) (int64, error) {
	revoked, err := s.repo.RevokeAllForUser(ctx, userID, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if revoked > 0 {
		s.metrics.RecordSessionRevoked(ctx, "all")
		s.log.Info("sessions revoked", zap.String("user_id", userID.String()), zap.Int64("count", revoked))
	}
	return revoked, nil
}

func (s *Service) ListActive(ctx context.Context, userID snowflake.ID) ([]domain.Session, error) {
	return s.repo.ListActiveByUser(ctx, userID, s.clock.Now())
}

func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	// Cutoff is captured once so sessions expiring mid-sweep wait for the
	// next pass.
	cutoff := s.clock.Now()
	removed, err := s.repo.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.metrics.RecordSweep(ctx, "sessions", removed)
		s.log.Info("expired sessions swept", zap.Int64("count", removed))
	}
	return removed, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

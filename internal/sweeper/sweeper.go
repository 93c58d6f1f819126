// Package sweeper periodically removes expired sessions and relabels
// expired invitations.
package sweeper

import (
	"context"
	"errors"
	"time"

	invitationdomain "github.com/observetask/identity/internal/invitation/domain"
	sessiondomain "github.com/observetask/identity/internal/session/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config controls sweep cadence.
type Config struct {
	RunInterval time.Duration
}

func DefaultConfig() Config {
	return Config{RunInterval: 5 * time.Minute}
}

func (c Config) withDefaults() Config {
	if c.RunInterval <= 0 {
		c.RunInterval = DefaultConfig().RunInterval
	}
	return c
}

type Params struct {
	fx.In

	Log           *zap.Logger
	SessionSvc    sessiondomain.Service
	InvitationSvc invitationdomain.Service
	Config        Config `optional:"true"`
}

type Sweeper struct {
	log           *zap.Logger
	cfg           Config
	sessionSvc    sessiondomain.Service
	invitationSvc invitationdomain.Service
}

func New(p Params) (*Sweeper, error) {
	if p.Log == nil || p.SessionSvc == nil || p.InvitationSvc == nil {
		return nil, errors.New("sweeper: missing dependencies")
	}
	return &Sweeper{
		log:           p.Log.Named("sweeper"),
		cfg:           p.Config.withDefaults(),
		sessionSvc:    p.SessionSvc,
		invitationSvc: p.InvitationSvc,
	}, nil
}

// RunOnce executes a single sweep over both tables. Each sweep captures its
// own cutoff; records expiring after the run started wait for the next pass.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	var errs []error

	if _, err := s.sessionSvc.SweepExpired(ctx); err != nil {
		s.log.Warn("session sweep failed", zap.Error(err))
		errs = append(errs, err)
	}
	if _, err := s.invitationSvc.SweepExpired(ctx); err != nil {
		s.log.Warn("invitation sweep failed", zap.Error(err))
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (s *Sweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sweep run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

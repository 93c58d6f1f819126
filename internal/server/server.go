package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/observetask/identity/internal/config"
	invitationdomain "github.com/observetask/identity/internal/invitation/domain"
	membershipdomain "github.com/observetask/identity/internal/membership/domain"
	"github.com/observetask/identity/internal/observability"
	obsmiddleware "github.com/observetask/identity/internal/observability/logger"
	obsmetrics "github.com/observetask/identity/internal/observability/metrics"
	obstracing "github.com/observetask/identity/internal/observability/tracing"
	sessiondomain "github.com/observetask/identity/internal/session/domain"
	"github.com/observetask/identity/internal/token"
	userdomain "github.com/observetask/identity/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewCookies),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	cookies       *Cookies
	genID         *snowflake.Node
	usersvc       userdomain.Service
	membershipSvc membershipdomain.Service
	sessionSvc    sessiondomain.Service
	invitationSvc invitationdomain.Service
	tokens        *token.Issuer
	metrics       *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Cookies       *Cookies
	GenID         *snowflake.Node
	Usersvc       userdomain.Service
	MembershipSvc membershipdomain.Service
	SessionSvc    sessiondomain.Service
	InvitationSvc invitationdomain.Service
	Tokens        *token.Issuer
	Metrics       *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		cookies:       p.Cookies,
		genID:         p.GenID,
		usersvc:       p.Usersvc,
		membershipSvc: p.MembershipSvc,
		sessionSvc:    p.SessionSvc,
		invitationSvc: p.InvitationSvc,
		tokens:        p.Tokens,
		metrics:       p.Metrics,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.Login)
	auth.POST("/register", s.Register)
	auth.POST("/refresh", s.Refresh)
	auth.POST("/logout", s.Logout)
	auth.POST("/logout-all", s.AuthRequired(), s.LogoutAll)
	auth.POST("/change-password", s.AuthRequired(), s.ChangePassword)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1", s.AuthRequired())

	api.GET("/me", s.Me)
	api.GET("/me/memberships", s.MyMemberships)
	api.GET("/me/sessions", s.MySessions)
	api.DELETE("/me", s.DeactivateMe)

	api.GET("/orgs/:org_id/members", s.ListMembers)
	api.PUT("/orgs/:org_id/members/:user_id/role", s.AssignRole)
	api.DELETE("/orgs/:org_id/members/:user_id", s.RemoveMember)

	api.POST("/orgs/:org_id/invitations", s.Invite)
	api.GET("/orgs/:org_id/invitations", s.ListPendingInvitations)
	api.DELETE("/invitations/:invitation_id", s.RevokeInvitation)
	api.GET("/invitations", s.MyInvitations)
	api.POST("/invitations/accept", s.AcceptInvitation)

	api.DELETE("/sessions/:session_id", s.RevokeSession)
}

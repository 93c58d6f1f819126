package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	membershipdomain "github.com/observetask/identity/internal/membership/domain"
	"github.com/observetask/identity/internal/role"
	sessiondomain "github.com/observetask/identity/internal/session/domain"
	"github.com/observetask/identity/internal/token"
	userdomain "github.com/observetask/identity/internal/user/domain"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	OrgID    string `json:"org_id,omitempty"`
}

type RegisterRequest struct {
	Token     string `json:"token"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"session_expires_at"`
	User        UserResponse `json:"user"`
	OrgID       string       `json:"org_id"`
	Role        string       `json:"role"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	email := strings.TrimSpace(req.Email)

	user, err := s.usersvc.FindByEmail(ctx, email)
	if err != nil {
		s.metrics.RecordLogin(ctx, "failure")
		if errors.Is(err, userdomain.ErrUserNotFound) {
			AbortWithError(c, userdomain.ErrInvalidCredentials)
			return
		}
		AbortWithError(c, err)
		return
	}

	ok, err := s.usersvc.VerifyLocalCredential(ctx, user.ID, req.Password)
	if err != nil {
		s.metrics.RecordLogin(ctx, "failure")
		AbortWithError(c, err)
		return
	}
	if !ok {
		s.metrics.RecordLogin(ctx, "failure")
		AbortWithError(c, userdomain.ErrInvalidCredentials)
		return
	}

	membership, err := s.resolveLoginMembership(c, user.ID, req.OrgID)
	if err != nil {
		s.metrics.RecordLogin(ctx, "failure")
		AbortWithError(c, err)
		return
	}

	r, err := role.Parse(membership.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	issued, err := s.sessionSvc.Issue(ctx, sessiondomain.IssueRequest{
		UserID:     user.ID,
		OrgID:      membership.OrgID,
		DeviceInfo: c.Request.UserAgent(),
		IPAddress:  c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	access, err := s.tokens.Issue(token.Claims{
		UserID: user.ID,
		OrgID:  membership.OrgID,
		Role:   r,
		Email:  user.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.cookies.Set(c, issued.RawToken, issued.Session.ExpiresAt)
	s.metrics.RecordLogin(ctx, "success")

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresAt:   issued.Session.ExpiresAt,
		User:        toUserResponse(user),
		OrgID:       membership.OrgID.String(),
		Role:        membership.Role,
	})
}

// Register creates an account from an invitation token and accepts the
// invitation in the same call. The invited email is the account email, so a
// mailbox that received the token is a verified one. Existing accounts accept
// through the authenticated endpoint instead.
func (s *Server) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()

	inv, err := s.invitationSvc.Preview(ctx, req.Token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	firstName := strings.TrimSpace(req.FirstName)
	if firstName == "" {
		firstName = inv.FirstName
	}
	lastName := strings.TrimSpace(req.LastName)
	if lastName == "" {
		lastName = inv.LastName
	}

	user, err := s.usersvc.Create(ctx, userdomain.CreateUserRequest{
		Email:         inv.Email,
		Password:      req.Password,
		Provider:      userdomain.ProviderLocal,
		FirstName:     firstName,
		LastName:      lastName,
		EmailVerified: true,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	membership, err := s.invitationSvc.Accept(ctx, req.Token, user.ID, user.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	r, err := role.Parse(membership.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	issued, err := s.sessionSvc.Issue(ctx, sessiondomain.IssueRequest{
		UserID:     user.ID,
		OrgID:      membership.OrgID,
		DeviceInfo: c.Request.UserAgent(),
		IPAddress:  c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	access, err := s.tokens.Issue(token.Claims{
		UserID: user.ID,
		OrgID:  membership.OrgID,
		Role:   r,
		Email:  user.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.cookies.Set(c, issued.RawToken, issued.Session.ExpiresAt)
	s.metrics.RecordLogin(ctx, "success")

	c.JSON(http.StatusCreated, TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresAt:   issued.Session.ExpiresAt,
		User:        toUserResponse(user),
		OrgID:       membership.OrgID.String(),
		Role:        membership.Role,
	})
}

// resolveLoginMembership picks the organization a login binds to. A user in
// several organizations must name one; a user in exactly one gets it by
// default.
func (s *Server) resolveLoginMembership(c *gin.Context, userID snowflake.ID, rawOrgID string) (*membershipdomain.Membership, error) {
	ctx := c.Request.Context()

	memberships, err := s.membershipSvc.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, membershipdomain.ErrActorNotMember
	}

	if strings.TrimSpace(rawOrgID) == "" {
		if len(memberships) == 1 {
			return &memberships[0], nil
		}
		return nil, newValidationError("org_id", "org_required", "user belongs to multiple organizations")
	}

	orgID, err := snowflake.ParseString(strings.TrimSpace(rawOrgID))
	if err != nil {
		return nil, newValidationError("org_id", "invalid_org_id", "invalid organization id")
	}
	for i := range memberships {
		if memberships[i].OrgID == orgID {
			return &memberships[i], nil
		}
	}
	return nil, membershipdomain.ErrActorNotMember
}

func (s *Server) Refresh(c *gin.Context) {
	raw, ok := s.cookies.ReadToken(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	ctx := c.Request.Context()
	rotated, err := s.sessionSvc.Rotate(ctx, raw)
	if err != nil {
		s.cookies.Clear(c)
		AbortWithError(c, err)
		return
	}

	user, err := s.usersvc.FindByID(ctx, rotated.Session.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	actor, err := s.membershipSvc.Actor(ctx, rotated.Session.UserID, rotated.Session.OrgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	access, err := s.tokens.Issue(token.Claims{
		UserID: user.ID,
		OrgID:  rotated.Session.OrgID,
		Role:   actor.Role,
		Email:  user.Email,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.cookies.Set(c, rotated.RawToken, rotated.Session.ExpiresAt)

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresAt:   rotated.Session.ExpiresAt,
		User:        toUserResponse(user),
		OrgID:       rotated.Session.OrgID.String(),
		Role:        actor.Role.Code,
	})
}

func (s *Server) Logout(c *gin.Context) {
	raw, ok := s.cookies.ReadToken(c)
	if ok {
		if session, err := s.sessionSvc.Validate(c.Request.Context(), raw); err == nil {
			_ = s.sessionSvc.Revoke(c.Request.Context(), session.UserID, raw)
		}
	}
	s.cookies.Clear(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) LogoutAll(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	revoked, err := s.sessionSvc.RevokeAllForUser(c.Request.Context(), claims.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.cookies.Clear(c)
	c.JSON(http.StatusOK, gin.H{"revoked": revoked})
}

func (s *Server) ChangePassword(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	ok, err := s.usersvc.VerifyLocalCredential(ctx, claims.UserID, req.CurrentPassword)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !ok {
		AbortWithError(c, userdomain.ErrInvalidCredentials)
		return
	}

	if err := s.usersvc.ChangePassword(ctx, claims.UserID, req.NewPassword); err != nil {
		AbortWithError(c, err)
		return
	}

	// A password change invalidates every open session.
	if _, err := s.sessionSvc.RevokeAllForUser(ctx, claims.UserID); err != nil {
		AbortWithError(c, err)
		return
	}
	s.cookies.Clear(c)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Me(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	user, err := s.usersvc.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":   toUserResponse(user),
		"org_id": claims.OrgID.String(),
		"role":   claims.Role.Code,
	})
}

func (s *Server) DeactivateMe(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	ctx := c.Request.Context()
	if err := s.usersvc.Deactivate(ctx, claims.UserID); err != nil {
		AbortWithError(c, err)
		return
	}
	if _, err := s.sessionSvc.RevokeAllForUser(ctx, claims.UserID); err != nil {
		AbortWithError(c, err)
		return
	}
	if _, err := s.membershipSvc.RemoveAllForUser(ctx, claims.UserID); err != nil {
		AbortWithError(c, err)
		return
	}
	s.cookies.Clear(c)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func toUserResponse(u *userdomain.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

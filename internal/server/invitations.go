package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	invitationdomain "github.com/observetask/identity/internal/invitation/domain"
)

type InviteRequest struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type AcceptInvitationRequest struct {
	Token string `json:"token"`
}

type InvitationResponse struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	InvitedBy string    `json:"invited_by"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) Invite(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID, err := pathID(c, "org_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inv, err := s.invitationSvc.Invite(c.Request.Context(), claims.UserID, invitationdomain.InviteRequest{
		OrgID:     orgID,
		Email:     req.Email,
		Role:      req.Role,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// The raw token goes out once, in the creation response; listings
	// never include it.
	c.JSON(http.StatusCreated, gin.H{
		"invitation": toInvitationResponse(inv),
		"token":      inv.Token,
	})
}

func (s *Server) AcceptInvitation(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req AcceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	membership, err := s.invitationSvc.Accept(c.Request.Context(), req.Token, claims.UserID, claims.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toMembershipResponse(membership))
}

func (s *Server) RevokeInvitation(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	invitationID, err := pathID(c, "invitation_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.invitationSvc.Revoke(c.Request.Context(), claims.UserID, invitationID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListPendingInvitations(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID, err := pathID(c, "org_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invitations, err := s.invitationSvc.ListPending(c.Request.Context(), claims.UserID, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]InvitationResponse, 0, len(invitations))
	for i := range invitations {
		out = append(out, toInvitationResponse(&invitations[i]))
	}
	c.JSON(http.StatusOK, gin.H{"invitations": out})
}

func (s *Server) MyInvitations(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	invitations, err := s.invitationSvc.FindActionable(c.Request.Context(), claims.Email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]InvitationResponse, 0, len(invitations))
	for i := range invitations {
		out = append(out, toInvitationResponse(&invitations[i]))
	}
	c.JSON(http.StatusOK, gin.H{"invitations": out})
}

func toInvitationResponse(inv *invitationdomain.Invitation) InvitationResponse {
	return InvitationResponse{
		ID:        inv.ID.String(),
		OrgID:     inv.OrgID.String(),
		Email:     inv.Email,
		Role:      inv.Role,
		Status:    string(inv.Status),
		InvitedBy: inv.InvitedBy.String(),
		FirstName: inv.FirstName,
		LastName:  inv.LastName,
		ExpiresAt: inv.ExpiresAt,
		CreatedAt: inv.CreatedAt,
	}
}

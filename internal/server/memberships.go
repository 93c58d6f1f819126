package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	membershipdomain "github.com/observetask/identity/internal/membership/domain"
)

type AssignRoleRequest struct {
	Role string `json:"role"`
}

type MembershipResponse struct {
	ID     string `json:"id"`
	OrgID  string `json:"org_id"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (s *Server) AssignRole(c *gin.Context) {
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
	targetID, err := pathID(c, "user_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	membership, err := s.membershipSvc.AssignRole(c.Request.Context(), claims.UserID, membershipdomain.AssignRoleRequest{
		OrgID:        orgID,
		TargetUserID: targetID,
		Role:         req.Role,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toMembershipResponse(membership))
}

func (s *Server) RemoveMember(c *gin.Context) {
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
	targetID, err := pathID(c, "user_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.membershipSvc.RemoveMember(c.Request.Context(), claims.UserID, orgID, targetID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListMembers(c *gin.Context) {
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

	members, err := s.membershipSvc.ListByOrganization(c.Request.Context(), claims.UserID, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]MembershipResponse, 0, len(members))
	for i := range members {
		out = append(out, toMembershipResponse(&members[i]))
	}
	c.JSON(http.StatusOK, gin.H{"members": out})
}

func (s *Server) MyMemberships(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	memberships, err := s.membershipSvc.ListByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]MembershipResponse, 0, len(memberships))
	for i := range memberships {
		out = append(out, toMembershipResponse(&memberships[i]))
	}
	c.JSON(http.StatusOK, gin.H{"memberships": out})
}

func toMembershipResponse(m *membershipdomain.Membership) MembershipResponse {
	return MembershipResponse{
		ID:     m.ID.String(),
		OrgID:  m.OrgID.String(),
		UserID: m.UserID.String(),
		Role:   m.Role,
	}
}

func pathID(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(c.Param(name))
	if err != nil {
		return 0, newValidationError(name, "invalid_"+name, "invalid identifier")
	}
	return id, nil
}

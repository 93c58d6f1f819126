package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	sessiondomain "github.com/observetask/identity/internal/session/domain"
)

type SessionResponse struct {
	ID         string    `json:"id"`
	OrgID      string    `json:"org_id"`
	DeviceInfo string    `json:"device_info,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (s *Server) MySessions(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	sessions, err := s.sessionSvc.ListActive(c.Request.Context(), claims.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionResponse(&sessions[i]))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (s *Server) RevokeSession(c *gin.Context) {
	claims, ok := currentClaims(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	sessionID, err := pathID(c, "session_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.sessionSvc.RevokeByID(c.Request.Context(), claims.UserID, sessionID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func toSessionResponse(sess *sessiondomain.Session) SessionResponse {
	return SessionResponse{
		ID:         sess.ID.String(),
		OrgID:      sess.OrgID.String(),
		DeviceInfo: sess.DeviceInfo,
		IPAddress:  sess.IPAddress,
		CreatedAt:  sess.CreatedAt,
		ExpiresAt:  sess.ExpiresAt,
	}
}

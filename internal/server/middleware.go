package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/observetask/identity/internal/observability/context"
	"github.com/observetask/identity/internal/token"
)

const contextClaimsKey = "auth_claims"

// AuthRequired authenticates requests by their bearer access token.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims, err := s.tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextClaimsKey, claims)
		ctx := obscontext.WithActorID(c.Request.Context(), claims.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func currentClaims(c *gin.Context) (*token.Claims, bool) {
	v, ok := c.Get(contextClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*token.Claims)
	return claims, ok
}

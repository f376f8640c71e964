package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	invitedomain "github.com/soundrift/soundrift/internal/invite/domain"
	"github.com/soundrift/soundrift/internal/obscontext"
)

const actorContextKey = "actor"

// AuthRequired resolves the bearer token into an actor. The role always
// comes from the store, so a grant from a redeemed invite takes effect on
// the very next request.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.identitySvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		id, err := user.SnowflakeID()
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor := invitedomain.Actor{
			ID:    id,
			Email: user.Email,
			Role:  user.Role,
		}
		c.Set(actorContextKey, actor)

		ctx := obscontext.WithActor(c.Request.Context(), "user", user.ID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RedeemRateLimit throttles redemption attempts per client IP.
func (s *Server) RedeemRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.redeemLimiter.Allow(c.Request.Context(), c.ClientIP()) {
			s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), "invites.redeem")
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func (s *Server) actor(c *gin.Context) (invitedomain.Actor, bool) {
	value, ok := c.Get(actorContextKey)
	if !ok {
		return invitedomain.Actor{}, false
	}
	actor, ok := value.(invitedomain.Actor)
	return actor, ok
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

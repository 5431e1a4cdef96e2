package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"casanova-portal/internal/domains/payment/model"
	"casanova-portal/internal/shared/response"
	"casanova-portal/pkg/jwtauth"
)

const actorContextKey = "actor"

// Auth requires a valid Bearer token and stores the resulting Actor on the
// request context. Client linkage is checked downstream, not here: an
// unlinked account is authenticated but cannot pay.
func Auth(jwtManager *jwtauth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "Missing authorization header")
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "Invalid authorization header")
			c.Abort()
			return
		}

		claims, err := jwtManager.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(actorContextKey, model.Actor{
			UserID:   claims.UserID,
			ClientID: claims.ClientID,
		})
		c.Next()
	}
}

// ActorFromContext returns the authenticated Actor set by Auth.
func ActorFromContext(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

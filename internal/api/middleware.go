// internal/api/middleware.go
package api

import (
	"net/http"

	"inspection-notifications/internal/auth"
	apperrors "inspection-notifications/internal/common/errors"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// RequireAuth verifies the bearer token and stores the identity on the
// request context.
func RequireAuth(authCtx auth.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		identity, err := authCtx.Verify(header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireAdmin gates privileged operations. Must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentIdentity(c).IsAdmin() {
			forbidden := apperrors.NewForbiddenError("admin role required")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": forbidden.Message,
				"code":  forbidden.Code,
			})
			return
		}
		c.Next()
	}
}

func currentIdentity(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*auth.Identity)
	return identity
}

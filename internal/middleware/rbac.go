package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/medcampus/sims-api/internal/models"
	appErrors "github.com/medcampus/sims-api/pkg/errors"
	"github.com/medcampus/sims-api/pkg/response"
)

// AllowSelf is the RBAC marker that lets a caller through when the :id path
// parameter equals their own user id.
const AllowSelf = "SELF"

// RBAC enforces role-based access control for routes. Users carry a role set;
// any overlap with the allowed set passes.
func RBAC(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		allowSelf := false
		allowedRoles := make(map[models.Role]struct{})
		for _, a := range allowed {
			if a == AllowSelf {
				allowSelf = true
				continue
			}
			allowedRoles[models.Role(a)] = struct{}{}
		}

		for _, role := range claims.Roles {
			if _, ok := allowedRoles[role]; ok {
				c.Next()
				return
			}
		}

		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == claims.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/medcampus/sims-api/pkg/errors"
	"github.com/medcampus/sims-api/pkg/response"
)

// LegacyWriteGuard rejects mutating requests on the legacy route tree once
// the cutover has flipped writes off. Reads keep working for the transition
// period.
func LegacyWriteGuard(writesEnabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if writesEnabled {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
		default:
			response.Error(c, appErrors.ErrLegacyWriteBlocked)
			c.Abort()
		}
	}
}

package rbac

import (
	"ledger-platform/internal/apperror"
	"ledger-platform/internal/auth"
	"ledger-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// RequireAnyRole rejects callers whose verified role is not in the
// allow list. It assumes auth.RequireAccessToken ran first.
func RequireAnyRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil {
			httpapi.Fail(c, apperror.Unauthorized("identity required"))
			c.Abort()
			return
		}
		if _, ok := allowed[role]; !ok {
			httpapi.Fail(c, apperror.Forbidden("insufficient role"))
			c.Abort()
			return
		}
		c.Next()
	}
}

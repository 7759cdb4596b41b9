// README: Actor middleware: reads the caller's role from the gateway-set header.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ordertrack/internal/modules/order"
)

// RoleHeader is set by the upstream gateway once it has authenticated the caller.
const RoleHeader = "X-Actor-Role"

const ctxKeyRole = "actor_role"

// Actor stores the caller's role on the context. Requests without the header act as customers.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := order.Role(strings.ToLower(strings.TrimSpace(c.GetHeader(RoleHeader))))
		if role == "" {
			role = order.RoleCustomer
		}
		c.Set(ctxKeyRole, role)
		c.Next()
	}
}

// ActorRole returns the role stored by Actor, or customer when Actor did not run.
func ActorRole(c *gin.Context) order.Role {
	if v, ok := c.Get(ctxKeyRole); ok {
		if r, ok := v.(order.Role); ok {
			return r
		}
	}
	return order.RoleCustomer
}

// RequirePrivileged rejects callers that may not watch every order.
func RequirePrivileged() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ActorRole(c).Privileged() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "admin or staff role required",
			})
			return
		}
		c.Next()
	}
}

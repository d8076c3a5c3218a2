// Package middleware (rbac.go) implements route-level authorization.
//
// Only checks that can be decided from the token and the path live here. Rules
// that need the target row (project ownership, cross-tenant object references)
// are enforced by the services, which answer 404 for objects in other tenants.

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/respond"
	"github.com/projecthub/projecthub/internal/auth"
)

// RequireRoles allows the request only when the caller's role is in the allow-list.
func RequireRoles(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			respond.Abort(c, http.StatusUnauthorized, "Token required")
			return
		}

		if !auth.HasRole(id.Role, roles...) {
			respond.Abort(c, http.StatusForbidden, "Insufficient permissions")
			return
		}

		c.Next()
	}
}

// RequireOrganizationAccess checks that the organization named by the path
// parameter is the caller's own. Super admins pass for any organization.
func RequireOrganizationAccess(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			respond.Abort(c, http.StatusUnauthorized, "Token required")
			return
		}

		if !auth.CanAccessOrganization(id, c.Param(param)) {
			respond.Abort(c, http.StatusForbidden, "Unauthorized access")
			return
		}

		c.Next()
	}
}

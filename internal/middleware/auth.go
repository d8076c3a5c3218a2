// Package middleware provides Gin HTTP middleware for authentication, authorization,
// rate limiting, request logging and security headers.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Recovery → RequestID → Metrics → Logger → CORS → Security → RateLimit → Auth → RBAC → Handler
//
// Security headers run early so they appear on all responses including errors.
// The auth-tier rate limit guards login and registration before any DB work;
// the general limit runs after Auth so authenticated callers are keyed by user.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/respond"
	"github.com/projecthub/projecthub/internal/auth"
)

// IdentityKey is the gin.Context key holding the caller's auth.Identity.
const IdentityKey = "identity"

// TokenValidator is the part of auth.TokenService the gate needs.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// AuthMiddleware requires a valid bearer token. The token is the only source
// of identity: no database lookup happens here, so a deactivated user keeps
// access until the token expires.
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			respond.Abort(c, http.StatusUnauthorized, "Token required")
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			respond.Abort(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		id := claims.Identity()
		c.Set(IdentityKey, id)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))

		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// GetIdentity returns the identity stored by AuthMiddleware.
func GetIdentity(c *gin.Context) (auth.Identity, bool) {
	v, exists := c.Get(IdentityKey)
	if !exists {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

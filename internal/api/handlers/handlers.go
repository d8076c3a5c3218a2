// Package handlers adapts HTTP requests to the services. A handler binds and
// validates the request, reads the caller's identity, calls one service
// operation and renders the result through package respond. Handlers hold no
// business rules of their own.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/projecthub/projecthub/internal/api/respond"
	"github.com/projecthub/projecthub/internal/apierr"
	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/middleware"
)

// identity returns the authenticated caller, answering 401 when the route was
// registered without AuthMiddleware.
func identity(c *gin.Context) (auth.Identity, bool) {
	id, ok := middleware.GetIdentity(c)
	if !ok {
		respond.Abort(c, http.StatusUnauthorized, "Token required")
	}
	return id, ok
}

// pathID returns the path parameter name when it is a UUID. Anything else
// cannot name a stored row, so it is answered with notFound.
func pathID(c *gin.Context, name, notFound string) (string, bool) {
	raw := c.Param(name)
	if _, err := uuid.Parse(raw); err != nil {
		respond.Error(c, apierr.NotFound(notFound))
		return "", false
	}
	return raw, true
}

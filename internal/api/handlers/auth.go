// auth.go implements registration, login and session endpoints.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/respond"
	"github.com/projecthub/projecthub/internal/services"
	"github.com/projecthub/projecthub/internal/validation"
)

// AuthHandlers handles the /api/auth endpoints
type AuthHandlers struct {
	auth *services.AuthService
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(svc *services.AuthService) *AuthHandlers {
	return &AuthHandlers{auth: svc}
}

// @Summary      Register organization
// @Description  Creates an organization on the default tier together with its first org_admin.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  services.RegisterInput  true  "Organization and admin"
// @Success      201  {object}  map[string]interface{}  "organizationId, adminUser"
// @Failure      400  {object}  map[string]interface{}  "Validation failed"
// @Failure      409  {object}  map[string]interface{}  "Subdomain already exists"
// @Router       /api/auth/register-organization [post]
// RegisterOrganizationHandler creates an organization together with its first admin.
// POST /api/auth/register-organization
func (h *AuthHandlers) RegisterOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.RegisterInput
		if err := validation.BindJSON(c, &in); err != nil {
			respond.Error(c, err)
			return
		}

		result, err := h.auth.RegisterOrganization(c.Request.Context(), in, c.ClientIP())
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.Created(c, "Organization registered", result)
	}
}

// @Summary      Log in
// @Description  Exchanges email, password and organization subdomain for a bearer token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  services.LoginInput  true  "Credentials"
// @Success      200  {object}  map[string]interface{}  "token, expiresIn, user"
// @Failure      400  {object}  map[string]interface{}  "Validation failed"
// @Failure      401  {object}  map[string]interface{}  "Invalid credentials"
// @Failure      403  {object}  map[string]interface{}  "Organization is not active"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Router       /api/auth/login [post]
// LoginHandler exchanges credentials for a bearer token.
// POST /api/auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.LoginInput
		if err := validation.BindJSON(c, &in); err != nil {
			respond.Error(c, err)
			return
		}

		result, err := h.auth.Login(c.Request.Context(), in, c.ClientIP())
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "Login successful", result)
	}
}

// @Summary      Current user
// @Description  Returns the profile of the token holder.
// @Tags         Auth
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "User profile"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Router       /api/auth/me [get]
// MeHandler returns the caller's profile.
// GET /api/auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		profile, err := h.auth.Me(c.Request.Context(), id)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "", profile)
	}
}

// @Summary      Log out
// @Description  Records the logout. The token stays valid until it expires.
// @Tags         Auth
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "Logged out successfully"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Router       /api/auth/logout [post]
// LogoutHandler records the logout. Tokens are not revoked; the client drops its copy.
// POST /api/auth/logout
func (h *AuthHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		h.auth.Logout(c.Request.Context(), id, c.ClientIP())
		respond.OK(c, "Logged out successfully", nil)
	}
}

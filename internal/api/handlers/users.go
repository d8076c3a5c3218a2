// users.go implements handlers for managing the members of an organization.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/respond"
	"github.com/projecthub/projecthub/internal/services"
	"github.com/projecthub/projecthub/internal/validation"
)

// UserHandlers handles user management endpoints
type UserHandlers struct {
	users *services.UserService
}

// NewUserHandlers creates a new UserHandlers instance
func NewUserHandlers(users *services.UserService) *UserHandlers {
	return &UserHandlers{users: users}
}

// @Summary      Add user
// @Description  Adds a member to an organization within its user ceiling. Requires org_admin.
// @Tags         Users
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        organizationId  path  string  true  "Organization ID"
// @Param        body  body  services.CreateUserInput  true  "User"
// @Success      201  {object}  map[string]interface{}  "User created"
// @Failure      400  {object}  map[string]interface{}  "Validation failed"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Failure      403  {object}  map[string]interface{}  "User limit reached"
// @Failure      409  {object}  map[string]interface{}  "Email already exists in this organization"
// @Router       /api/organizations/{organizationId}/users [post]
// CreateUserHandler adds a member to an organization.
// POST /api/organizations/:organizationId/users
func (h *UserHandlers) CreateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		var in services.CreateUserInput
		if err := validation.BindJSON(c, &in); err != nil {
			respond.Error(c, err)
			return
		}
		orgID, ok := pathID(c, "organizationId", "Organization not found")
		if !ok {
			return
		}

		user, err := h.users.Create(c.Request.Context(), id, orgID, in, c.ClientIP())
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.Created(c, "User created", user)
	}
}

// @Summary      List users
// @Description  Lists the members of an organization. Requires org_admin.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        organizationId  path  string  true  "Organization ID"
// @Param        role    query  string  false  "Role filter"
// @Param        search  query  string  false  "Matches name or email"
// @Param        page   query  int  false  "Page number (default 1)"
// @Param        limit  query  int  false  "Items per page, max 100"
// @Success      200  {object}  map[string]interface{}  "users, pagination"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Router       /api/organizations/{organizationId}/users [get]
// ListUsersHandler lists the members of an organization.
// GET /api/organizations/:organizationId/users?role=user&search=ann&page=1&limit=50
func (h *UserHandlers) ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		var q services.ListUsersQuery
		if err := validation.BindQuery(c, &q); err != nil {
			respond.Error(c, err)
			return
		}
		orgID, ok := pathID(c, "organizationId", "Organization not found")
		if !ok {
			return
		}

		list, err := h.users.List(c.Request.Context(), id, orgID, q)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "", list)
	}
}

// @Summary      Update user
// @Description  Changes a member's name, role or active flag. Requires org_admin.
// @Tags         Users
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        userId  path  string  true  "User ID"
// @Param        body  body  services.UpdateUserInput  true  "Fields to change"
// @Success      200  {object}  map[string]interface{}  "User updated"
// @Failure      400  {object}  map[string]interface{}  "Validation failed"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Router       /api/users/{userId} [put]
// UpdateUserHandler changes a member's name, role or active flag.
// PUT /api/users/:userId
func (h *UserHandlers) UpdateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		var in services.UpdateUserInput
		if err := validation.BindJSON(c, &in); err != nil {
			respond.Error(c, err)
			return
		}
		userID, ok := pathID(c, "userId", "User not found")
		if !ok {
			return
		}

		user, err := h.users.Update(c.Request.Context(), id, userID, in, c.ClientIP())
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "User updated", user)
	}
}

// @Summary      Delete user
// @Description  Removes a member and unassigns their tasks. Requires org_admin.
// @Tags         Users
// @Security     Bearer
// @Produce      json
// @Param        userId  path  string  true  "User ID"
// @Success      200  {object}  map[string]interface{}  "User deleted"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Failure      403  {object}  map[string]interface{}  "Cannot delete yourself"
// @Failure      404  {object}  map[string]interface{}  "User not found"
// @Router       /api/users/{userId} [delete]
// DeleteUserHandler removes a member.
// DELETE /api/users/:userId
func (h *UserHandlers) DeleteUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		userID, ok := pathID(c, "userId", "User not found")
		if !ok {
			return
		}

		if err := h.users.Delete(c.Request.Context(), id, userID, c.ClientIP()); err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "User deleted", nil)
	}
}

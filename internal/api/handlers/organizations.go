// organizations.go implements handlers for reading and updating organizations,
// and for the organization's audit trail.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/respond"
	"github.com/projecthub/projecthub/internal/services"
	"github.com/projecthub/projecthub/internal/validation"
)

// OrganizationHandlers handles organization management endpoints
type OrganizationHandlers struct {
	orgs  *services.OrganizationService
	audit *services.AuditService
}

// NewOrganizationHandlers creates a new OrganizationHandlers instance
func NewOrganizationHandlers(orgs *services.OrganizationService, audit *services.AuditService) *OrganizationHandlers {
	return &OrganizationHandlers{orgs: orgs, audit: audit}
}

// @Summary      List organizations
// @Description  Lists every organization. Requires super_admin.
// @Tags         Organizations
// @Security     Bearer
// @Produce      json
// @Param        status            query  string  false  "active, suspended or inactive"
// @Param        subscriptionTier  query  string  false  "free, basic, pro or enterprise"
// @Param        page   query  int  false  "Page number (default 1)"
// @Param        limit  query  int  false  "Items per page, max 100"
// @Success      200  {object}  map[string]interface{}  "organizations, pagination"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Router       /api/organizations [get]
// ListOrganizationsHandler lists all organizations. Super admin only.
// GET /api/organizations?status=active&subscriptionTier=pro&page=1&limit=10
func (h *OrganizationHandlers) ListOrganizationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		var q services.ListOrganizationsQuery
		if err := validation.BindQuery(c, &q); err != nil {
			respond.Error(c, err)
			return
		}

		list, err := h.orgs.List(c.Request.Context(), id, q)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "", list)
	}
}

// @Summary      Get organization
// @Description  Returns an organization with its user and project counts.
// @Tags         Organizations
// @Security     Bearer
// @Produce      json
// @Param        organizationId  path  string  true  "Organization ID"
// @Success      200  {object}  map[string]interface{}  "Organization with stats"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Failure      403  {object}  map[string]interface{}  "Unauthorized access"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Router       /api/organizations/{organizationId} [get]
// GetOrganizationHandler returns one organization with its usage stats.
// GET /api/organizations/:organizationId
func (h *OrganizationHandlers) GetOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		orgID, ok := pathID(c, "organizationId", "Organization not found")
		if !ok {
			return
		}

		org, err := h.orgs.Get(c.Request.Context(), id, orgID)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "", org)
	}
}

// @Summary      Update organization
// @Description  Updates an organization. Only super admins may change status, tier or ceilings.
// @Tags         Organizations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        organizationId  path  string  true  "Organization ID"
// @Param        body  body  services.UpdateOrganizationInput  true  "Fields to change"
// @Success      200  {object}  map[string]interface{}  "Organization updated"
// @Failure      400  {object}  map[string]interface{}  "Validation failed"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "Organization not found"
// @Router       /api/organizations/{organizationId} [put]
// UpdateOrganizationHandler updates an organization.
// PUT /api/organizations/:organizationId
func (h *OrganizationHandlers) UpdateOrganizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		var in services.UpdateOrganizationInput
		if err := validation.BindJSON(c, &in); err != nil {
			respond.Error(c, err)
			return
		}
		orgID, ok := pathID(c, "organizationId", "Organization not found")
		if !ok {
			return
		}

		org, err := h.orgs.Update(c.Request.Context(), id, orgID, in, c.ClientIP())
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "Organization updated", org)
	}
}

// @Summary      List audit logs
// @Description  Returns the organization's audit trail, newest first. Requires org_admin.
// @Tags         Organizations
// @Security     Bearer
// @Produce      json
// @Param        organizationId  path  string  true  "Organization ID"
// @Param        action     query  string  false  "Action filter"
// @Param        userId     query  string  false  "Actor filter"
// @Param        startDate  query  string  false  "YYYY-MM-DD"
// @Param        endDate    query  string  false  "YYYY-MM-DD, inclusive"
// @Param        page   query  int  false  "Page number (default 1)"
// @Param        limit  query  int  false  "Items per page, max 100"
// @Success      200  {object}  map[string]interface{}  "logs, pagination"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Router       /api/organizations/{organizationId}/audit-logs [get]
// ListAuditLogsHandler returns the organization's audit trail, newest first.
// GET /api/organizations/:organizationId/audit-logs?action=LOGIN&startDate=2026-01-01
func (h *OrganizationHandlers) ListAuditLogsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		var q services.ListAuditLogsQuery
		if err := validation.BindQuery(c, &q); err != nil {
			respond.Error(c, err)
			return
		}
		orgID, ok := pathID(c, "organizationId", "Organization not found")
		if !ok {
			return
		}

		logs, err := h.audit.List(c.Request.Context(), id, orgID, q)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "", logs)
	}
}

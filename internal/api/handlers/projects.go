// projects.go implements handlers for the projects of the caller's organization.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/respond"
	"github.com/projecthub/projecthub/internal/services"
	"github.com/projecthub/projecthub/internal/validation"
)

const projectNotFound = "Project not found"

// ProjectHandlers handles project endpoints
type ProjectHandlers struct {
	projects *services.ProjectService
}

// NewProjectHandlers creates a new ProjectHandlers instance
func NewProjectHandlers(projects *services.ProjectService) *ProjectHandlers {
	return &ProjectHandlers{projects: projects}
}

// @Summary      Create project
// @Description  Creates a project in the caller's organization, within the tier's project ceiling.
// @Tags         Projects
// @Accept       json
// @Produce      json
// @Security     Bearer
// @Param        body  body  services.CreateProjectInput  true  "Project"
// @Success      201  {object}  models.Project
// @Failure      400  {object}  map[string]interface{}  "Validation failed"
// @Failure      403  {object}  map[string]interface{}  "Project limit reached"
// @Router       /api/organizations/projects [post]
// CreateProjectHandler creates a project in the caller's organization.
// POST /api/organizations/projects
func (h *ProjectHandlers) CreateProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		var in services.CreateProjectInput
		if err := validation.BindJSON(c, &in); err != nil {
			respond.Error(c, err)
			return
		}

		project, err := h.projects.Create(c.Request.Context(), id, in, c.ClientIP())
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.Created(c, "Project created", project)
	}
}

// @Summary      List projects
// @Description  Lists the caller's projects with task counts.
// @Tags         Projects
// @Security     Bearer
// @Produce      json
// @Param        status    query  string  false  "active, archived or completed"
// @Param        priority  query  string  false  "low, medium or high"
// @Param        search    query  string  false  "Matches name or description"
// @Param        page   query  int  false  "Page number (default 1)"
// @Param        limit  query  int  false  "Items per page, max 100"
// @Success      200  {object}  map[string]interface{}  "projects, pagination"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Router       /api/organizations/projects [get]
// ListProjectsHandler lists projects with task counts.
// GET /api/organizations/projects?status=active&priority=high&search=web
func (h *ProjectHandlers) ListProjectsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		var q services.ListProjectsQuery
		if err := validation.BindQuery(c, &q); err != nil {
			respond.Error(c, err)
			return
		}

		list, err := h.projects.List(c.Request.Context(), id, q)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "", list)
	}
}

// @Summary      Get project
// @Description  Returns one project of the caller's organization.
// @Tags         Projects
// @Security     Bearer
// @Produce      json
// @Param        projectId  path  string  true  "Project ID"
// @Success      200  {object}  map[string]interface{}  "Project"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Failure      404  {object}  map[string]interface{}  "Project not found"
// @Router       /api/organizations/projects/{projectId} [get]
// GetProjectHandler returns one project.
// GET /api/organizations/projects/:projectId
func (h *ProjectHandlers) GetProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		projectID, ok := pathID(c, "projectId", projectNotFound)
		if !ok {
			return
		}

		project, err := h.projects.Get(c.Request.Context(), id, projectID)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "", project)
	}
}

// @Summary      Update project
// @Description  Updates a project. Requires the creator or an org_admin.
// @Tags         Projects
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        projectId  path  string  true  "Project ID"
// @Param        body  body  services.UpdateProjectInput  true  "Fields to change"
// @Success      200  {object}  map[string]interface{}  "Project updated"
// @Failure      400  {object}  map[string]interface{}  "Validation failed"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "Project not found"
// @Router       /api/organizations/projects/{projectId} [put]
// UpdateProjectHandler updates a project. Only its creator and org admins may do so.
// PUT /api/organizations/projects/:projectId
func (h *ProjectHandlers) UpdateProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		var in services.UpdateProjectInput
		if err := validation.BindJSON(c, &in); err != nil {
			respond.Error(c, err)
			return
		}
		projectID, ok := pathID(c, "projectId", projectNotFound)
		if !ok {
			return
		}

		project, err := h.projects.Update(c.Request.Context(), id, projectID, in, c.ClientIP())
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "Project updated", project)
	}
}

// @Summary      Delete project
// @Description  Deletes a project and its tasks. Requires the creator or an org_admin.
// @Tags         Projects
// @Security     Bearer
// @Produce      json
// @Param        projectId  path  string  true  "Project ID"
// @Success      200  {object}  map[string]interface{}  "Project deleted"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Failure      403  {object}  map[string]interface{}  "Insufficient permissions"
// @Failure      404  {object}  map[string]interface{}  "Project not found"
// @Router       /api/organizations/projects/{projectId} [delete]
// DeleteProjectHandler deletes a project and its tasks.
// DELETE /api/organizations/projects/:projectId
func (h *ProjectHandlers) DeleteProjectHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		projectID, ok := pathID(c, "projectId", projectNotFound)
		if !ok {
			return
		}

		if err := h.projects.Delete(c.Request.Context(), id, projectID, c.ClientIP()); err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "Project deleted", nil)
	}
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/respond"
	"github.com/projecthub/projecthub/internal/services"
	"github.com/projecthub/projecthub/internal/validation"
)

// TaskHandlers handles the task endpoints nested under a project
type TaskHandlers struct {
	tasks *services.TaskService
}

// NewTaskHandlers creates a new TaskHandlers instance
func NewTaskHandlers(tasks *services.TaskService) *TaskHandlers {
	return &TaskHandlers{tasks: tasks}
}

// @Summary      Create task
// @Description  Adds a task in the todo state to a project.
// @Tags         Tasks
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        projectId  path  string  true  "Project ID"
// @Param        body  body  services.CreateTaskInput  true  "Task"
// @Success      201  {object}  map[string]interface{}  "Task created"
// @Failure      400  {object}  map[string]interface{}  "Validation failed"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Failure      404  {object}  map[string]interface{}  "Project not found"
// @Router       /api/organizations/projects/{projectId}/tasks [post]
// CreateTaskHandler adds a task to a project.
// POST /api/organizations/projects/:projectId/tasks
func (h *TaskHandlers) CreateTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		var in services.CreateTaskInput
		if err := validation.BindJSON(c, &in); err != nil {
			respond.Error(c, err)
			return
		}
		projectID, ok := pathID(c, "projectId", projectNotFound)
		if !ok {
			return
		}

		task, err := h.tasks.Create(c.Request.Context(), id, projectID, in, c.ClientIP())
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.Created(c, "Task created", task)
	}
}

// @Summary      List tasks
// @Description  Lists a project's tasks by priority, then due date.
// @Tags         Tasks
// @Security     Bearer
// @Produce      json
// @Param        projectId  path  string  true  "Project ID"
// @Param        status      query  string  false  "todo, in_progress or completed"
// @Param        priority    query  string  false  "low, medium or high"
// @Param        assignedTo  query  string  false  "Assignee user ID"
// @Param        page   query  int  false  "Page number (default 1)"
// @Param        limit  query  int  false  "Items per page, max 100"
// @Success      200  {object}  map[string]interface{}  "tasks, pagination"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Failure      404  {object}  map[string]interface{}  "Project not found"
// @Router       /api/organizations/projects/{projectId}/tasks [get]
// ListTasksHandler lists a project's tasks.
// GET /api/organizations/projects/:projectId/tasks?status=todo&assignedTo=<uuid>
func (h *TaskHandlers) ListTasksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		var q services.ListTasksQuery
		if err := validation.BindQuery(c, &q); err != nil {
			respond.Error(c, err)
			return
		}
		projectID, ok := pathID(c, "projectId", projectNotFound)
		if !ok {
			return
		}

		list, err := h.tasks.List(c.Request.Context(), id, projectID, q)
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "", list)
	}
}

// @Summary      Update task
// @Description  Updates a task. A null description, assignedTo or dueDate clears it.
// @Tags         Tasks
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        projectId  path  string  true  "Project ID"
// @Param        taskId  path  string  true  "Task ID"
// @Param        body  body  services.UpdateTaskInput  true  "Fields to change"
// @Success      200  {object}  map[string]interface{}  "Task updated"
// @Failure      400  {object}  map[string]interface{}  "Validation failed"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Failure      404  {object}  map[string]interface{}  "Task not found"
// @Router       /api/organizations/projects/{projectId}/tasks/{taskId} [put]
// UpdateTaskHandler updates a task of a project.
// PUT /api/organizations/projects/:projectId/tasks/:taskId
func (h *TaskHandlers) UpdateTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}

		var in services.UpdateTaskInput
		if err := validation.BindJSON(c, &in); err != nil {
			respond.Error(c, err)
			return
		}
		projectID, ok := pathID(c, "projectId", projectNotFound)
		if !ok {
			return
		}
		taskID, ok := pathID(c, "taskId", "Task not found")
		if !ok {
			return
		}

		task, err := h.tasks.Update(c.Request.Context(), id, projectID, taskID, in, c.ClientIP())
		if err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "Task updated", task)
	}
}

// @Summary      Delete task
// @Description  Deletes a task of a project.
// @Tags         Tasks
// @Security     Bearer
// @Produce      json
// @Param        projectId  path  string  true  "Project ID"
// @Param        taskId  path  string  true  "Task ID"
// @Success      200  {object}  map[string]interface{}  "Task deleted"
// @Failure      401  {object}  map[string]interface{}  "Token required"
// @Failure      404  {object}  map[string]interface{}  "Task not found"
// @Router       /api/organizations/projects/{projectId}/tasks/{taskId} [delete]
// DeleteTaskHandler deletes a task of a project.
// DELETE /api/organizations/projects/:projectId/tasks/:taskId
func (h *TaskHandlers) DeleteTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		projectID, ok := pathID(c, "projectId", projectNotFound)
		if !ok {
			return
		}
		taskID, ok := pathID(c, "taskId", "Task not found")
		if !ok {
			return
		}

		if err := h.tasks.Delete(c.Request.Context(), id, projectID, taskID, c.ClientIP()); err != nil {
			respond.Error(c, err)
			return
		}
		respond.OK(c, "Task deleted", nil)
	}
}

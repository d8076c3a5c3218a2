package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/projecthub/projecthub/internal/apierr"
	"github.com/projecthub/projecthub/internal/audit"
	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
)

// DateLayout is the wire format of task due dates.
const DateLayout = "2006-01-02"

const msgInvalidAssignee = "Invalid assignee"

// CreateTaskInput is the request to add a task to a project
type CreateTaskInput struct {
	Title       string  `json:"title" binding:"required,max=255"`
	Description *string `json:"description" binding:"omitempty,max=5000"`
	AssignedTo  *string `json:"assignedTo" binding:"omitempty,uuid"`
	Priority    string  `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *string `json:"dueDate" binding:"omitempty,datetime=2006-01-02"`
}

// UpdateTaskInput holds the updatable task fields. Description, assignedTo and
// dueDate are cleared by an explicit null.
type UpdateTaskInput struct {
	Title       *string                 `json:"title" binding:"omitempty,min=1,max=255"`
	Description models.Nullable[string] `json:"description" binding:"omitempty,max=5000"`
	Status      *string                 `json:"status" binding:"omitempty,oneof=todo in_progress completed"`
	Priority    *string                 `json:"priority" binding:"omitempty,oneof=low medium high"`
	AssignedTo  models.Nullable[string] `json:"assignedTo" binding:"omitempty,uuid"`
	DueDate     models.Nullable[string] `json:"dueDate" binding:"omitempty,datetime=2006-01-02"`
}

// ListTasksQuery is the query string of the task listing
type ListTasksQuery struct {
	PageQuery
	Status     string `form:"status" binding:"omitempty,oneof=todo in_progress completed"`
	Priority   string `form:"priority" binding:"omitempty,oneof=low medium high"`
	AssignedTo string `form:"assignedTo" binding:"omitempty,uuid"`
}

// TaskAssignee identifies the user a task is assigned to
type TaskAssignee struct {
	ID       string  `json:"id"`
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
}

// TaskView is the API representation of a task
type TaskView struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"projectId"`
	Title       string        `json:"title"`
	Description *string       `json:"description"`
	Status      string        `json:"status"`
	Priority    string        `json:"priority"`
	AssignedTo  *string       `json:"assignedTo"`
	Assignee    *TaskAssignee `json:"assignee,omitempty"`
	DueDate     *string       `json:"dueDate"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func taskView(t *models.Task) *TaskView {
	v := &TaskView{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		AssignedTo:  t.AssignedTo,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.DueDate != nil {
		v.DueDate = stringPtr(t.DueDate.Format(DateLayout))
	}
	return v
}

// TaskList is a page of tasks
type TaskList struct {
	Tasks      []*TaskView `json:"tasks"`
	Pagination Pagination  `json:"pagination"`
}

// TaskService manages the tasks of projects in the caller's organization
type TaskService struct {
	projects ProjectStore
	tasks    TaskStore
	users    UserStore
	audit    Auditor
}

// NewTaskService creates a new task service
func NewTaskService(projects ProjectStore, tasks TaskStore, users UserStore, auditor Auditor) *TaskService {
	return &TaskService{projects: projects, tasks: tasks, users: users, audit: auditor}
}

func (s *TaskService) project(ctx context.Context, id auth.Identity, projectID string) (*models.Project, error) {
	orgID, err := tenantOf(id)
	if err != nil {
		return nil, err
	}
	p, err := s.projects.GetInOrganization(ctx, orgID, projectID)
	if err != nil {
		return nil, internal("get project", err)
	}
	if p == nil {
		return nil, apierr.NotFound(msgProjectNotFound)
	}
	return p, nil
}

// checkAssignee verifies the assignee is a member of orgID.
func (s *TaskService) checkAssignee(ctx context.Context, orgID, userID string) error {
	u, err := s.users.GetInOrganization(ctx, orgID, userID)
	if err != nil {
		return internal("get assignee", err)
	}
	if u == nil {
		return apierr.BadRequest(msgInvalidAssignee)
	}
	return nil
}

// Create adds a task in the todo state to a project of the caller's organization.
func (s *TaskService) Create(ctx context.Context, id auth.Identity, projectID string, in CreateTaskInput, ip string) (*TaskView, error) {
	p, err := s.project(ctx, id, projectID)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ProjectID:      p.ID,
		OrganizationID: p.OrganizationID,
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		Status:         models.TaskTodo,
		Priority:       derefOr(&in.Priority, models.PriorityMedium),
	}
	if in.AssignedTo != nil && *in.AssignedTo != "" {
		if err := s.checkAssignee(ctx, p.OrganizationID, *in.AssignedTo); err != nil {
			return nil, err
		}
		task.AssignedTo = in.AssignedTo
	}
	if in.DueDate != nil && *in.DueDate != "" {
		due, err := time.Parse(DateLayout, *in.DueDate)
		if err != nil {
			return nil, apierr.Validation(map[string]string{"dueDate": "dueDate must be a date (YYYY-MM-DD)"})
		}
		task.DueDate = &due
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, internal("create task", err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:         audit.ActionCreateTask,
		EntityType:     audit.EntityTask,
		EntityID:       task.ID,
		OrganizationID: task.OrganizationID,
		UserID:         id.UserID,
		IPAddress:      ip,
		Details:        map[string]interface{}{"projectId": p.ID, "title": task.Title},
	})
	return taskView(task), nil
}

// List returns the tasks of a project, highest priority and earliest due first.
func (s *TaskService) List(ctx context.Context, id auth.Identity, projectID string, q ListTasksQuery) (*TaskList, error) {
	p, err := s.project(ctx, id, projectID)
	if err != nil {
		return nil, err
	}

	page := q.page(DefaultTaskPageSize)
	rows, total, err := s.tasks.List(ctx, repositories.TaskFilter{
		OrganizationID: p.OrganizationID,
		ProjectID:      p.ID,
		Status:         q.Status,
		Priority:       q.Priority,
		AssignedTo:     q.AssignedTo,
		Page:           page,
	})
	if err != nil {
		return nil, internal("list tasks", err)
	}

	tasks := make([]*TaskView, 0, len(rows))
	for _, row := range rows {
		v := taskView(&row.Task)
		if row.AssignedTo != nil {
			v.Assignee = &TaskAssignee{ID: *row.AssignedTo, FullName: row.AssigneeName, Email: row.AssigneeEmail}
		}
		tasks = append(tasks, v)
	}
	return &TaskList{Tasks: tasks, Pagination: newPagination(page, total, "totalTasks")}, nil
}

// taskUpdate validates the nullable fields and converts the input to a store update.
func taskUpdate(in UpdateTaskInput) (repositories.TaskUpdate, []string, error) {
	upd := repositories.TaskUpdate{Description: in.Description}
	changed := []string{}
	fields := map[string]string{}

	if in.Title != nil && strings.TrimSpace(*in.Title) != "" {
		upd.Title = stringPtr(strings.TrimSpace(*in.Title))
		changed = append(changed, "title")
	}
	if in.Description.Set {
		changed = append(changed, "description")
	}
	if in.Status != nil {
		upd.Status = in.Status
		changed = append(changed, "status")
	}
	if in.Priority != nil {
		upd.Priority = in.Priority
		changed = append(changed, "priority")
	}
	if in.AssignedTo.Set {
		if v := in.AssignedTo.Value; v != nil {
			if _, err := uuid.Parse(*v); err != nil {
				fields["assignedTo"] = "assignedTo must be a valid UUID"
			}
		}
		upd.AssignedTo = in.AssignedTo
		changed = append(changed, "assignedTo")
	}
	if in.DueDate.Set {
		upd.DueDate = models.Null[time.Time]()
		if v := in.DueDate.Value; v != nil {
			due, err := time.Parse(DateLayout, *v)
			if err != nil {
				fields["dueDate"] = "dueDate must be a date (YYYY-MM-DD)"
			} else {
				upd.DueDate = models.Some(due)
			}
		}
		changed = append(changed, "dueDate")
	}

	if len(fields) > 0 {
		return upd, nil, apierr.Validation(fields)
	}
	if len(changed) == 0 {
		return upd, nil, apierr.BadRequest(msgNoFields)
	}
	return upd, changed, nil
}

// Update changes a task of a project in the caller's organization. Status may
// move between any two values.
func (s *TaskService) Update(ctx context.Context, id auth.Identity, projectID, taskID string, in UpdateTaskInput, ip string) (*TaskView, error) {
	upd, changed, err := taskUpdate(in)
	if err != nil {
		return nil, err
	}

	orgID, err := tenantOf(id)
	if err != nil {
		return nil, err
	}
	existing, err := s.tasks.GetInProject(ctx, orgID, projectID, taskID)
	if err != nil {
		return nil, internal("get task", err)
	}
	if existing == nil {
		return nil, apierr.NotFound(msgTaskNotFound)
	}

	if v := upd.AssignedTo.Value; upd.AssignedTo.Set && v != nil {
		if err := s.checkAssignee(ctx, orgID, *v); err != nil {
			return nil, err
		}
	}

	task, err := s.tasks.Update(ctx, orgID, projectID, taskID, upd)
	if err != nil {
		return nil, internal("update task", err)
	}
	if task == nil {
		return nil, apierr.NotFound(msgTaskNotFound)
	}

	s.audit.Record(ctx, audit.Event{
		Action:         audit.ActionUpdateTask,
		EntityType:     audit.EntityTask,
		EntityID:       taskID,
		OrganizationID: orgID,
		UserID:         id.UserID,
		IPAddress:      ip,
		Details:        map[string]interface{}{"projectId": projectID, "fields": changed},
	})
	return taskView(task), nil
}

// Delete removes a task of a project in the caller's organization.
func (s *TaskService) Delete(ctx context.Context, id auth.Identity, projectID, taskID, ip string) error {
	orgID, err := tenantOf(id)
	if err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, orgID, projectID, taskID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apierr.NotFound(msgTaskNotFound)
		}
		return internal("delete task", err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:         audit.ActionDeleteTask,
		EntityType:     audit.EntityTask,
		EntityID:       taskID,
		OrganizationID: orgID,
		UserID:         id.UserID,
		IPAddress:      ip,
		Details:        map[string]interface{}{"projectId": projectID},
	})
	return nil
}

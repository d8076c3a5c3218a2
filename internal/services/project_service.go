package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/projecthub/projecthub/internal/apierr"
	"github.com/projecthub/projecthub/internal/audit"
	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
	"github.com/projecthub/projecthub/internal/telemetry"
)

// CreateProjectInput is the request to create a project
type CreateProjectInput struct {
	Name        string  `json:"name" binding:"required,max=255"`
	Description *string `json:"description" binding:"omitempty,max=5000"`
	Status      string  `json:"status" binding:"omitempty,oneof=active archived completed"`
	Priority    string  `json:"priority" binding:"omitempty,oneof=low medium high"`
}

// UpdateProjectInput holds the updatable project fields. A null description
// clears it.
type UpdateProjectInput struct {
	Name        *string                 `json:"name" binding:"omitempty,min=1,max=255"`
	Description models.Nullable[string] `json:"description" binding:"omitempty,max=5000"`
	Status      *string                 `json:"status" binding:"omitempty,oneof=active archived completed"`
	Priority    *string                 `json:"priority" binding:"omitempty,oneof=low medium high"`
}

// ListProjectsQuery is the query string of the project listing
type ListProjectsQuery struct {
	PageQuery
	Status   string `form:"status" binding:"omitempty,oneof=active archived completed"`
	Priority string `form:"priority" binding:"omitempty,oneof=low medium high"`
	Search   string `form:"search" binding:"omitempty,max=255"`
}

// ProjectCreator identifies who created a project
type ProjectCreator struct {
	ID       string  `json:"id"`
	FullName *string `json:"fullName"`
}

// ProjectSummary is a row of the project listing
type ProjectSummary struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Description        *string         `json:"description"`
	Status             string          `json:"status"`
	Priority           string          `json:"priority"`
	CreatedBy          *ProjectCreator `json:"createdBy"`
	TaskCount          int             `json:"taskCount"`
	CompletedTaskCount int             `json:"completedTaskCount"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

func projectSummary(p *models.ProjectListItem) *ProjectSummary {
	out := &ProjectSummary{
		ID:                 p.ID,
		Name:               p.Name,
		Description:        p.Description,
		Status:             p.Status,
		Priority:           p.Priority,
		TaskCount:          p.TaskCount,
		CompletedTaskCount: p.CompletedTaskCount,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if p.CreatedBy != nil {
		out.CreatedBy = &ProjectCreator{ID: *p.CreatedBy, FullName: p.CreatorName}
	}
	return out
}

// ProjectList is a page of projects
type ProjectList struct {
	Projects   []*ProjectSummary `json:"projects"`
	Pagination Pagination        `json:"pagination"`
}

// ProjectService manages the projects of the caller's organization
type ProjectService struct {
	projects ProjectStore
	audit    Auditor
}

// NewProjectService creates a new project service
func NewProjectService(projects ProjectStore, auditor Auditor) *ProjectService {
	return &ProjectService{projects: projects, audit: auditor}
}

// Create adds a project to the caller's organization within its project ceiling.
func (s *ProjectService) Create(ctx context.Context, id auth.Identity, in CreateProjectInput, ip string) (*models.Project, error) {
	orgID, err := tenantOf(id)
	if err != nil {
		return nil, err
	}

	p := &models.Project{
		OrganizationID: orgID,
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		Status:         derefOr(&in.Status, models.ProjectActive),
		Priority:       derefOr(&in.Priority, models.PriorityMedium),
		CreatedBy:      stringPtr(id.UserID),
	}

	if err := s.projects.CreateWithinCapacity(ctx, p); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return nil, apierr.NotFound(msgOrganizationNotFound)
		case errors.Is(err, repositories.ErrCapacityExceeded):
			telemetry.CapacityRejectionsTotal.WithLabelValues("projects").Inc()
			return nil, apierr.Capacity("Project limit reached")
		}
		return nil, internal("create project", err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:         audit.ActionCreateProject,
		EntityType:     audit.EntityProject,
		EntityID:       p.ID,
		OrganizationID: orgID,
		UserID:         id.UserID,
		IPAddress:      ip,
		Details:        map[string]interface{}{"name": p.Name},
	})
	return p, nil
}

// List returns the projects of the caller's organization, newest first.
func (s *ProjectService) List(ctx context.Context, id auth.Identity, q ListProjectsQuery) (*ProjectList, error) {
	orgID, err := tenantOf(id)
	if err != nil {
		return nil, err
	}

	page := q.page(DefaultProjectPageSize)
	rows, total, err := s.projects.List(ctx, repositories.ProjectFilter{
		OrganizationID: orgID,
		Status:         q.Status,
		Priority:       q.Priority,
		Search:         strings.TrimSpace(q.Search),
		Page:           page,
	})
	if err != nil {
		return nil, internal("list projects", err)
	}

	projects := make([]*ProjectSummary, 0, len(rows))
	for _, row := range rows {
		projects = append(projects, projectSummary(row))
	}
	return &ProjectList{Projects: projects, Pagination: newPagination(page, total, "totalProjects")}, nil
}

// Get returns a project of the caller's organization. Projects of other
// organizations are reported as not found.
func (s *ProjectService) Get(ctx context.Context, id auth.Identity, projectID string) (*models.Project, error) {
	orgID, err := tenantOf(id)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, orgID, projectID)
}

func (s *ProjectService) find(ctx context.Context, orgID, projectID string) (*models.Project, error) {
	p, err := s.projects.GetInOrganization(ctx, orgID, projectID)
	if err != nil {
		return nil, internal("get project", err)
	}
	if p == nil {
		return nil, apierr.NotFound(msgProjectNotFound)
	}
	return p, nil
}

// mutable loads a project and checks the caller may change it.
func (s *ProjectService) mutable(ctx context.Context, id auth.Identity, projectID string) (*models.Project, error) {
	orgID, err := tenantOf(id)
	if err != nil {
		return nil, err
	}
	p, err := s.find(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	if !auth.CanMutateProject(id, p.CreatedBy) {
		return nil, apierr.Forbidden(msgInsufficientPermissions)
	}
	return p, nil
}

// Update changes a project. Only its creator or an org admin may do so.
func (s *ProjectService) Update(ctx context.Context, id auth.Identity, projectID string, in UpdateProjectInput, ip string) (*models.Project, error) {
	existing, err := s.mutable(ctx, id, projectID)
	if err != nil {
		return nil, err
	}

	upd := repositories.ProjectUpdate{Description: in.Description}
	changed := []string{}
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		upd.Name = stringPtr(strings.TrimSpace(*in.Name))
		changed = append(changed, "name")
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
	if len(changed) == 0 {
		return nil, apierr.BadRequest(msgNoFields)
	}

	p, err := s.projects.Update(ctx, existing.OrganizationID, projectID, upd)
	if err != nil {
		return nil, internal("update project", err)
	}
	if p == nil {
		return nil, apierr.NotFound(msgProjectNotFound)
	}

	s.audit.Record(ctx, audit.Event{
		Action:         audit.ActionUpdateProject,
		EntityType:     audit.EntityProject,
		EntityID:       projectID,
		OrganizationID: existing.OrganizationID,
		UserID:         id.UserID,
		IPAddress:      ip,
		Details:        map[string]interface{}{"fields": changed},
	})
	return p, nil
}

// Delete removes a project and, through the schema, all of its tasks.
func (s *ProjectService) Delete(ctx context.Context, id auth.Identity, projectID, ip string) error {
	existing, err := s.mutable(ctx, id, projectID)
	if err != nil {
		return err
	}

	if err := s.projects.Delete(ctx, existing.OrganizationID, projectID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apierr.NotFound(msgProjectNotFound)
		}
		return internal("delete project", err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:         audit.ActionDeleteProject,
		EntityType:     audit.EntityProject,
		EntityID:       projectID,
		OrganizationID: existing.OrganizationID,
		UserID:         id.UserID,
		IPAddress:      ip,
		Details:        map[string]interface{}{"name": existing.Name},
	})
	return nil
}

// Package services implements the tenant-scoped business operations behind the
// HTTP API. Every operation validates its input, resolves the tenant scope of the
// entities it touches, authorizes the caller, mutates through a repository and
// finally records an audit event. Errors leave this package as *apierr.Error.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/projecthub/projecthub/internal/apierr"
	"github.com/projecthub/projecthub/internal/audit"
	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
)

// Default page sizes per listing
const (
	DefaultOrganizationPageSize = 10
	DefaultUserPageSize         = 50
	DefaultProjectPageSize      = 20
	DefaultTaskPageSize         = 50
	DefaultAuditPageSize        = 50
)

// Messages shared by several services
const (
	msgInsufficientPermissions = "Insufficient permissions"
	msgUnauthorizedAccess      = "Unauthorized access"
	msgNoFields                = "No valid fields to update"
	msgOrganizationRequired    = "Organization context required"
	msgOrganizationNotFound    = "Organization not found"
	msgUserNotFound            = "User not found"
	msgProjectNotFound         = "Project not found"
	msgTaskNotFound            = "Task not found"
)

// OrganizationStore is the persistence used for organizations.
type OrganizationStore interface {
	GetByID(ctx context.Context, id string) (*models.Organization, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Organization, error)
	CreateWithAdmin(ctx context.Context, org *models.Organization, admin *models.User) error
	Update(ctx context.Context, id string, upd repositories.OrganizationUpdate) (*models.Organization, error)
	List(ctx context.Context, filter repositories.OrganizationFilter) ([]*models.OrganizationWithCounts, int, error)
	CountUsers(ctx context.Context, orgID string) (int, error)
	CountProjects(ctx context.Context, orgID string) (int, error)
	CountTasks(ctx context.Context, orgID string) (int, error)
}

// UserStore is the persistence used for users.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetInOrganization(ctx context.Context, orgID, id string) (*models.User, error)
	GetByEmailInOrganization(ctx context.Context, orgID, email string) (*models.User, error)
	GetSuperAdminByEmail(ctx context.Context, email string) (*models.User, error)
	CreateInOrganization(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter repositories.UserFilter) ([]*models.User, int, error)
	Update(ctx context.Context, orgID, id string, upd repositories.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, orgID, id string) error
	UpdateLastLogin(ctx context.Context, id string) error
}

// ProjectStore is the persistence used for projects.
type ProjectStore interface {
	CreateWithinCapacity(ctx context.Context, p *models.Project) error
	GetInOrganization(ctx context.Context, orgID, id string) (*models.Project, error)
	List(ctx context.Context, filter repositories.ProjectFilter) ([]*models.ProjectListItem, int, error)
	Update(ctx context.Context, orgID, id string, upd repositories.ProjectUpdate) (*models.Project, error)
	Delete(ctx context.Context, orgID, id string) error
}

// TaskStore is the persistence used for tasks.
type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	GetInProject(ctx context.Context, orgID, projectID, id string) (*models.Task, error)
	List(ctx context.Context, filter repositories.TaskFilter) ([]*models.TaskListItem, int, error)
	Update(ctx context.Context, orgID, projectID, id string, upd repositories.TaskUpdate) (*models.Task, error)
	Delete(ctx context.Context, orgID, projectID, id string) error
}

// AuditLogStore reads persisted audit events.
type AuditLogStore interface {
	List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditLog, int, error)
}

// Auditor records audit events. *audit.Recorder satisfies it.
type Auditor interface {
	Record(ctx context.Context, ev audit.Event)
}

// Pagination is the paging metadata returned with every listing. The total is
// serialized under a resource specific key such as totalProjects.
type Pagination struct {
	CurrentPage int
	TotalPages  int
	Total       int
	Limit       int
	totalKey    string
}

func newPagination(page repositories.Page, total int, totalKey string) Pagination {
	return Pagination{
		CurrentPage: page.Number,
		TotalPages:  page.TotalPages(total),
		Total:       total,
		Limit:       page.Size,
		totalKey:    totalKey,
	}
}

// MarshalJSON implements json.Marshaler.
func (p Pagination) MarshalJSON() ([]byte, error) {
	key := p.totalKey
	if key == "" {
		key = "total"
	}
	return json.Marshal(map[string]int{
		"currentPage": p.CurrentPage,
		"totalPages":  p.TotalPages,
		key:           p.Total,
		"limit":       p.Limit,
	})
}

// PageQuery is embedded in every list query.
type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

func (q PageQuery) page(defaultSize int) repositories.Page {
	return repositories.NewPage(q.Page, q.Limit, defaultSize)
}

// tenantOf returns the caller's organization for tenant-scoped routes. Callers
// outside any organization have nothing to operate on.
func tenantOf(id auth.Identity) (string, error) {
	orgID := id.OrgID()
	if orgID == "" {
		return "", apierr.Forbidden(msgOrganizationRequired)
	}
	return orgID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func internal(op string, err error) error {
	return apierr.Internal(fmt.Errorf("%s: %w", op, err))
}

func stringPtr(s string) *string {
	return &s
}

func derefOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

package services

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/projecthub/projecthub/internal/apierr"
	"github.com/projecthub/projecthub/internal/audit"
	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
)

// OrganizationDetails is an organization with its aggregate counts
type OrganizationDetails struct {
	*models.Organization
	Stats models.OrganizationStats `json:"stats"`
}

// UpdateOrganizationInput holds the updatable organization fields. Only super
// admins may change status, tier and ceilings; for anyone else those fields
// are ignored.
type UpdateOrganizationInput struct {
	Name             *string `json:"name" binding:"omitempty,min=1,max=255"`
	Status           *string `json:"status" binding:"omitempty,oneof=active inactive"`
	SubscriptionTier *string `json:"subscriptionTier" binding:"omitempty,oneof=free pro enterprise"`
	MaxUsers         *int    `json:"maxUsers" binding:"omitempty,min=1"`
	MaxProjects      *int    `json:"maxProjects" binding:"omitempty,min=1"`
}

// ListOrganizationsQuery is the query string of the organization listing
type ListOrganizationsQuery struct {
	PageQuery
	Status           string `form:"status" binding:"omitempty,oneof=active inactive"`
	SubscriptionTier string `form:"subscriptionTier" binding:"omitempty,oneof=free pro enterprise"`
}

// OrganizationList is a page of organizations
type OrganizationList struct {
	Organizations []*models.OrganizationWithCounts `json:"organizations"`
	Pagination    Pagination                       `json:"pagination"`
}

// OrganizationService reads and updates organizations
type OrganizationService struct {
	orgs  OrganizationStore
	audit Auditor
}

// NewOrganizationService creates a new organization service
func NewOrganizationService(orgs OrganizationStore, auditor Auditor) *OrganizationService {
	return &OrganizationService{orgs: orgs, audit: auditor}
}

// Get returns an organization and its user, project and task counts.
func (s *OrganizationService) Get(ctx context.Context, id auth.Identity, orgID string) (*OrganizationDetails, error) {
	if !auth.CanAccessOrganization(id, orgID) {
		return nil, apierr.Forbidden(msgUnauthorizedAccess)
	}

	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, internal("get organization", err)
	}
	if org == nil {
		return nil, apierr.NotFound(msgOrganizationNotFound)
	}

	var stats models.OrganizationStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalUsers, err = s.orgs.CountUsers(gctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalProjects, err = s.orgs.CountProjects(gctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalTasks, err = s.orgs.CountTasks(gctx, orgID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internal("count organization stats", err)
	}

	return &OrganizationDetails{Organization: org, Stats: stats}, nil
}

// Update changes an organization. Org admins may rename their own
// organization; super admins may change everything.
func (s *OrganizationService) Update(ctx context.Context, id auth.Identity, orgID string, in UpdateOrganizationInput, ip string) (*models.Organization, error) {
	if !auth.CanAccessOrganization(id, orgID) {
		return nil, apierr.Forbidden(msgUnauthorizedAccess)
	}
	if !id.IsSuperAdmin() && id.Role != auth.RoleOrgAdmin {
		return nil, apierr.Forbidden(msgInsufficientPermissions)
	}

	existing, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, internal("get organization", err)
	}
	if existing == nil {
		return nil, apierr.NotFound(msgOrganizationNotFound)
	}

	var upd repositories.OrganizationUpdate
	changed := []string{}
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		upd.Name = stringPtr(strings.TrimSpace(*in.Name))
		changed = append(changed, "name")
	}
	if id.IsSuperAdmin() {
		if in.Status != nil {
			upd.Status = in.Status
			changed = append(changed, "status")
		}
		if in.SubscriptionTier != nil {
			upd.SubscriptionTier = in.SubscriptionTier
			changed = append(changed, "subscriptionTier")
		}
		if in.MaxUsers != nil {
			upd.MaxUsers = in.MaxUsers
			changed = append(changed, "maxUsers")
		}
		if in.MaxProjects != nil {
			upd.MaxProjects = in.MaxProjects
			changed = append(changed, "maxProjects")
		}
	}
	if len(changed) == 0 {
		return nil, apierr.BadRequest(msgNoFields)
	}

	org, err := s.orgs.Update(ctx, orgID, upd)
	if err != nil {
		return nil, internal("update organization", err)
	}
	if org == nil {
		return nil, apierr.NotFound(msgOrganizationNotFound)
	}

	s.audit.Record(ctx, audit.Event{
		Action:         audit.ActionUpdateOrganization,
		EntityType:     audit.EntityOrganization,
		EntityID:       orgID,
		OrganizationID: orgID,
		UserID:         id.UserID,
		IPAddress:      ip,
		Details:        map[string]interface{}{"fields": changed},
	})
	return org, nil
}

// List returns every organization, newest first. Callers must be super admins.
func (s *OrganizationService) List(ctx context.Context, id auth.Identity, q ListOrganizationsQuery) (*OrganizationList, error) {
	if !id.IsSuperAdmin() {
		return nil, apierr.Forbidden(msgInsufficientPermissions)
	}

	page := q.page(DefaultOrganizationPageSize)
	orgs, total, err := s.orgs.List(ctx, repositories.OrganizationFilter{
		Status:           q.Status,
		SubscriptionTier: q.SubscriptionTier,
		Page:             page,
	})
	if err != nil {
		return nil, internal("list organizations", err)
	}
	if orgs == nil {
		orgs = []*models.OrganizationWithCounts{}
	}

	return &OrganizationList{
		Organizations: orgs,
		Pagination:    newPagination(page, total, "totalOrganizations"),
	}, nil
}

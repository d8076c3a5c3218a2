package services

import (
	"context"
	"time"

	"github.com/projecthub/projecthub/internal/apierr"
	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
)

// ListAuditLogsQuery is the query string of the audit log listing
type ListAuditLogsQuery struct {
	PageQuery
	Action     string     `form:"action" binding:"omitempty,max=64"`
	EntityType string     `form:"entityType" binding:"omitempty,oneof=organization user project task"`
	UserID     string     `form:"userId" binding:"omitempty,uuid"`
	StartDate  *time.Time `form:"startDate" time_format:"2006-01-02"`
	EndDate    *time.Time `form:"endDate" time_format:"2006-01-02"`
}

// AuditLogList is a page of audit entries
type AuditLogList struct {
	Logs       []*models.AuditLog `json:"logs"`
	Pagination Pagination         `json:"pagination"`
}

// AuditService reads the audit trail of an organization
type AuditService struct {
	logs AuditLogStore
}

// NewAuditService creates a new audit service
func NewAuditService(logs AuditLogStore) *AuditService {
	return &AuditService{logs: logs}
}

// List returns audit entries of orgID, newest first. Only org admins of the
// organization and super admins may read them.
func (s *AuditService) List(ctx context.Context, id auth.Identity, orgID string, q ListAuditLogsQuery) (*AuditLogList, error) {
	if !auth.CanAccessOrganization(id, orgID) {
		return nil, apierr.Forbidden(msgUnauthorizedAccess)
	}
	if !auth.CanManageUsers(id, orgID) {
		return nil, apierr.Forbidden(msgInsufficientPermissions)
	}

	filter := repositories.AuditFilter{
		OrganizationID: orgID,
		UserID:         q.UserID,
		Action:         q.Action,
		EntityType:     q.EntityType,
		StartDate:      q.StartDate,
		Page:           q.page(DefaultAuditPageSize),
	}
	if q.EndDate != nil {
		// inclusive of the whole end day
		end := q.EndDate.Add(24*time.Hour - time.Nanosecond)
		filter.EndDate = &end
	}

	logs, total, err := s.logs.List(ctx, filter)
	if err != nil {
		return nil, internal("list audit logs", err)
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}
	return &AuditLogList{Logs: logs, Pagination: newPagination(filter.Page, total, "totalLogs")}, nil
}

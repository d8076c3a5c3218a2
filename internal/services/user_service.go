package services

import (
	"context"
	"errors"
	"strings"

	"github.com/projecthub/projecthub/internal/apierr"
	"github.com/projecthub/projecthub/internal/audit"
	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
	"github.com/projecthub/projecthub/internal/telemetry"
)

// CreateUserInput is the request to add a member to an organization
type CreateUserInput struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	FullName string `json:"fullName" binding:"required,max=255"`
	Role     string `json:"role" binding:"omitempty,oneof=org_admin project_lead user"`
}

// UpdateUserInput holds the updatable member fields
type UpdateUserInput struct {
	FullName *string `json:"fullName" binding:"omitempty,min=1,max=255"`
	Role     *string `json:"role" binding:"omitempty,oneof=org_admin project_lead user"`
	IsActive *bool   `json:"isActive"`
}

// ListUsersQuery is the query string of the member listing
type ListUsersQuery struct {
	PageQuery
	Role   string `form:"role" binding:"omitempty,oneof=org_admin project_lead user"`
	Search string `form:"search" binding:"omitempty,max=255"`
}

// UserList is a page of members
type UserList struct {
	Users      []*models.User `json:"users"`
	Pagination Pagination     `json:"pagination"`
}

// UserService manages the members of an organization
type UserService struct {
	orgs   OrganizationStore
	users  UserStore
	hasher *auth.PasswordHasher
	audit  Auditor
}

// NewUserService creates a new user service
func NewUserService(orgs OrganizationStore, users UserStore, hasher *auth.PasswordHasher, auditor Auditor) *UserService {
	return &UserService{orgs: orgs, users: users, hasher: hasher, audit: auditor}
}

// Create adds a member to orgID within the organization's user ceiling.
func (s *UserService) Create(ctx context.Context, id auth.Identity, orgID string, in CreateUserInput, ip string) (*models.User, error) {
	if !auth.CanManageUsers(id, orgID) {
		return nil, apierr.Forbidden(msgInsufficientPermissions)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, internal("hash password", err)
	}

	user := &models.User{
		OrganizationID: stringPtr(orgID),
		Email:          normalizeEmail(in.Email),
		PasswordHash:   hash,
		FullName:       strings.TrimSpace(in.FullName),
		Role:           derefOr(&in.Role, string(auth.RoleUser)),
		IsActive:       true,
	}

	if err := s.users.CreateInOrganization(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return nil, apierr.NotFound(msgOrganizationNotFound)
		case errors.Is(err, repositories.ErrCapacityExceeded):
			telemetry.CapacityRejectionsTotal.WithLabelValues("users").Inc()
			return nil, apierr.Capacity("User limit reached")
		case errors.Is(err, repositories.ErrEmailTaken):
			return nil, apierr.Conflict("Email already exists in this organization")
		}
		return nil, internal("create user", err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:         audit.ActionCreateUser,
		EntityType:     audit.EntityUser,
		EntityID:       user.ID,
		OrganizationID: orgID,
		UserID:         id.UserID,
		IPAddress:      ip,
		Details:        map[string]interface{}{"email": user.Email, "role": user.Role},
	})
	return user, nil
}

// List returns the members of orgID, newest first. Only admins of orgID and
// super admins may list members.
func (s *UserService) List(ctx context.Context, id auth.Identity, orgID string, q ListUsersQuery) (*UserList, error) {
	if !auth.CanAccessOrganization(id, orgID) {
		return nil, apierr.Forbidden(msgUnauthorizedAccess)
	}
	if !auth.CanManageUsers(id, orgID) {
		return nil, apierr.Forbidden(msgInsufficientPermissions)
	}

	page := q.page(DefaultUserPageSize)
	users, total, err := s.users.List(ctx, repositories.UserFilter{
		OrganizationID: orgID,
		Role:           q.Role,
		Search:         strings.TrimSpace(q.Search),
		Page:           page,
	})
	if err != nil {
		return nil, internal("list users", err)
	}
	if users == nil {
		users = []*models.User{}
	}
	return &UserList{Users: users, Pagination: newPagination(page, total, "totalUsers")}, nil
}

// resolveMember finds userID within the caller's organization. Super admins
// may reach members of any organization.
func (s *UserService) resolveMember(ctx context.Context, id auth.Identity, userID string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if id.IsSuperAdmin() {
		user, err = s.users.GetByID(ctx, userID)
	} else {
		user, err = s.users.GetInOrganization(ctx, id.OrgID(), userID)
	}
	if err != nil {
		return nil, internal("get user", err)
	}
	if user == nil || user.OrgID() == "" {
		return nil, apierr.NotFound(msgUserNotFound)
	}
	return user, nil
}

func (s *UserService) requireManager(id auth.Identity) error {
	if id.IsSuperAdmin() || (id.Role == auth.RoleOrgAdmin && id.OrgID() != "") {
		return nil
	}
	return apierr.Forbidden(msgInsufficientPermissions)
}

// Update changes a member's name, role or active flag. An org admin cannot
// demote or deactivate themself.
func (s *UserService) Update(ctx context.Context, id auth.Identity, userID string, in UpdateUserInput, ip string) (*models.User, error) {
	if err := s.requireManager(id); err != nil {
		return nil, err
	}
	target, err := s.resolveMember(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if target.ID == id.UserID {
		if (in.Role != nil && *in.Role != string(auth.RoleOrgAdmin)) || (in.IsActive != nil && !*in.IsActive) {
			return nil, apierr.Forbidden("Cannot demote or deactivate yourself")
		}
	}

	var upd repositories.UserUpdate
	changed := []string{}
	if in.FullName != nil && strings.TrimSpace(*in.FullName) != "" {
		upd.FullName = stringPtr(strings.TrimSpace(*in.FullName))
		changed = append(changed, "fullName")
	}
	if in.Role != nil {
		upd.Role = in.Role
		changed = append(changed, "role")
	}
	if in.IsActive != nil {
		upd.IsActive = in.IsActive
		changed = append(changed, "isActive")
	}
	if len(changed) == 0 {
		return nil, apierr.BadRequest(msgNoFields)
	}

	orgID := target.OrgID()
	user, err := s.users.Update(ctx, orgID, userID, upd)
	if err != nil {
		return nil, internal("update user", err)
	}
	if user == nil {
		return nil, apierr.NotFound(msgUserNotFound)
	}

	s.audit.Record(ctx, audit.Event{
		Action:         audit.ActionUpdateUser,
		EntityType:     audit.EntityUser,
		EntityID:       userID,
		OrganizationID: orgID,
		UserID:         id.UserID,
		IPAddress:      ip,
		Details:        map[string]interface{}{"fields": changed},
	})
	return user, nil
}

// Delete removes a member and clears their task assignments.
func (s *UserService) Delete(ctx context.Context, id auth.Identity, userID, ip string) error {
	if err := s.requireManager(id); err != nil {
		return err
	}
	if !auth.CanDeleteUser(id, userID) {
		return apierr.Forbidden("Cannot delete yourself")
	}
	target, err := s.resolveMember(ctx, id, userID)
	if err != nil {
		return err
	}

	orgID := target.OrgID()
	if err := s.users.Delete(ctx, orgID, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apierr.NotFound(msgUserNotFound)
		}
		return internal("delete user", err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:         audit.ActionDeleteUser,
		EntityType:     audit.EntityUser,
		EntityID:       userID,
		OrganizationID: orgID,
		UserID:         id.UserID,
		IPAddress:      ip,
		Details:        map[string]interface{}{"email": target.Email},
	})
	return nil
}

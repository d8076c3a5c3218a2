// Package auth - policy.go holds the request identity and the pure authorization
// decisions shared by middleware and services.
package auth

import "context"

// Identity is the authenticated caller bound to a request.
type Identity struct {
	UserID         string
	OrganizationID *string
	Role           Role
}

// OrgID returns the caller's organization id, or "" for users outside any organization.
func (i Identity) OrgID() string {
	if i.OrganizationID == nil {
		return ""
	}
	return *i.OrganizationID
}

// IsSuperAdmin reports whether the caller has cross-tenant access.
func (i Identity) IsSuperAdmin() bool {
	return i.Role == RoleSuperAdmin
}

// BelongsTo reports whether the caller is a member of the organization.
func (i Identity) BelongsTo(orgID string) bool {
	return orgID != "" && i.OrgID() == orgID
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext extracts the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// CanAccessOrganization is the organization-scope check: super admins see every
// organization, everyone else only their own.
func CanAccessOrganization(id Identity, orgID string) bool {
	return id.IsSuperAdmin() || id.BelongsTo(orgID)
}

// CanManageUsers reports whether the caller may create, update or delete users of orgID.
func CanManageUsers(id Identity, orgID string) bool {
	if id.IsSuperAdmin() {
		return true
	}
	return id.Role == RoleOrgAdmin && id.BelongsTo(orgID)
}

// CanDeleteUser reports whether the caller may delete targetUserID. Nobody deletes themself.
func CanDeleteUser(id Identity, targetUserID string) bool {
	return id.UserID != targetUserID
}

// CanMutateProject reports whether the caller may update or delete a project.
// The organization check is done by the caller; this only covers ownership.
func CanMutateProject(id Identity, createdBy *string) bool {
	if id.Role == RoleOrgAdmin || id.IsSuperAdmin() {
		return true
	}
	return createdBy != nil && *createdBy == id.UserID
}

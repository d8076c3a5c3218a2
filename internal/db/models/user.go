// Package models - user.go defines the User model. Every user except the single
// system-wide super admin belongs to exactly one organization.
package models

import "time"

// User represents an account
type User struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID *string    `db:"organization_id" json:"organizationId"`
	Email          string     `db:"email" json:"email"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	FullName       string     `db:"full_name" json:"fullName"`
	Role           string     `db:"role" json:"role"`
	IsActive       bool       `db:"is_active" json:"isActive"`
	LastLogin      *time.Time `db:"last_login" json:"lastLogin"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// OrgID returns the owning organization id, or "" for the super admin.
func (u *User) OrgID() string {
	if u.OrganizationID == nil {
		return ""
	}
	return *u.OrganizationID
}

// Package models defines the database model types for ProjectHub.
// Each type corresponds to a database table and uses struct tags for both JSON
// serialization and sqlx row scanning. Models are plain data; business rules live
// in the services and query logic in the repositories.
//
// organization.go defines the Organization model, the tenant that owns users,
// projects and tasks, together with its capacity ceilings.
package models

import "time"

// Organization status values
const (
	OrganizationActive   = "active"
	OrganizationInactive = "inactive"
)

// Subscription tiers
const (
	TierFree       = "free"
	TierPro        = "pro"
	TierEnterprise = "enterprise"
)

// Organization represents a tenant
type Organization struct {
	ID               string    `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Subdomain        string    `db:"subdomain" json:"subdomain"`
	Status           string    `db:"status" json:"status"`
	SubscriptionTier string    `db:"subscription_tier" json:"subscriptionTier"`
	MaxUsers         int       `db:"max_users" json:"maxUsers"`
	MaxProjects      int       `db:"max_projects" json:"maxProjects"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// IsActive reports whether members of the organization may log in.
func (o *Organization) IsActive() bool {
	return o.Status == OrganizationActive
}

// OrganizationStats holds the aggregate counts shown on the organization details page
type OrganizationStats struct {
	TotalUsers    int `json:"totalUsers"`
	TotalProjects int `json:"totalProjects"`
	TotalTasks    int `json:"totalTasks"`
}

// OrganizationWithCounts is a row of the super-admin organization listing
type OrganizationWithCounts struct {
	Organization
	TotalUsers    int `db:"total_users" json:"totalUsers"`
	TotalProjects int `db:"total_projects" json:"totalProjects"`
}

// Package models - audit_log.go defines the AuditLog model, an append-only record
// of a mutating action: actor, organization, affected entity, client IP and details.
package models

import (
	"encoding/json"
	"time"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID             string          `db:"id" json:"id"`
	OrganizationID *string         `db:"organization_id" json:"organizationId"`
	UserID         *string         `db:"user_id" json:"userId"`
	Action         string          `db:"action" json:"action"`
	EntityType     string          `db:"entity_type" json:"entityType"`
	EntityID       *string         `db:"entity_id" json:"entityId"`
	Details        json.RawMessage `db:"details" json:"details"`
	IPAddress      *string         `db:"ip_address" json:"ipAddress"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}

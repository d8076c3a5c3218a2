// Package audit records mutating actions. Every event is persisted to the
// audit_logs table and then forwarded to any configured external shippers.
// Recording is asynchronous and best-effort: a failure is logged and counted
// but never changes the outcome of the request that produced the event.
package audit

import (
	"encoding/json"
	"time"

	"github.com/projecthub/projecthub/internal/db/models"
)

// Actions
const (
	ActionRegisterOrganization = "REGISTER_ORGANIZATION"
	ActionUpdateOrganization   = "UPDATE_ORGANIZATION"
	ActionLogin                = "LOGIN"
	ActionLogout               = "LOGOUT"
	ActionCreateUser           = "CREATE_USER"
	ActionUpdateUser           = "UPDATE_USER"
	ActionDeleteUser           = "DELETE_USER"
	ActionCreateProject        = "CREATE_PROJECT"
	ActionUpdateProject        = "UPDATE_PROJECT"
	ActionDeleteProject        = "DELETE_PROJECT"
	ActionCreateTask           = "CREATE_TASK"
	ActionUpdateTask           = "UPDATE_TASK"
	ActionDeleteTask           = "DELETE_TASK"
)

// Entity types
const (
	EntityOrganization = "organization"
	EntityUser         = "user"
	EntityProject      = "project"
	EntityTask         = "task"
)

// Event is a single auditable action. Empty ids are stored as NULL.
type Event struct {
	Action         string
	EntityType     string
	EntityID       string
	OrganizationID string
	UserID         string
	IPAddress      string
	Details        map[string]interface{}
}

// Entry is the wire form sent to shippers
type Entry struct {
	ID             string                 `json:"id"`
	Timestamp      time.Time              `json:"timestamp"`
	Action         string                 `json:"action"`
	EntityType     string                 `json:"entity_type"`
	EntityID       string                 `json:"entity_id,omitempty"`
	OrganizationID string                 `json:"organization_id,omitempty"`
	UserID         string                 `json:"user_id,omitempty"`
	IPAddress      string                 `json:"ip_address,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// row converts the event into an audit_logs row.
func (e Event) row() (*models.AuditLog, error) {
	details := json.RawMessage("{}")
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return nil, err
		}
		details = b
	}
	return &models.AuditLog{
		OrganizationID: optional(e.OrganizationID),
		UserID:         optional(e.UserID),
		Action:         e.Action,
		EntityType:     e.EntityType,
		EntityID:       optional(e.EntityID),
		Details:        details,
		IPAddress:      optional(e.IPAddress),
	}, nil
}

// entry builds the shipper payload from a persisted row.
func (e Event) entry(row *models.AuditLog) *Entry {
	return &Entry{
		ID:             row.ID,
		Timestamp:      row.CreatedAt,
		Action:         e.Action,
		EntityType:     e.EntityType,
		EntityID:       e.EntityID,
		OrganizationID: e.OrganizationID,
		UserID:         e.UserID,
		IPAddress:      e.IPAddress,
		Details:        e.Details,
	}
}

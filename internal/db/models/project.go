package models

import "time"

// Project status values
const (
	ProjectActive    = "active"
	ProjectArchived  = "archived"
	ProjectCompleted = "completed"
)

// Priority values shared by projects and tasks
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Project is a container of tasks inside one organization
type Project struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organizationId"`
	Name           string    `db:"name" json:"name"`
	Description    *string   `db:"description" json:"description"`
	Status         string    `db:"status" json:"status"`
	Priority       string    `db:"priority" json:"priority"`
	CreatedBy      *string   `db:"created_by" json:"createdBy"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// ProjectListItem is a project row with creator name and task counters
type ProjectListItem struct {
	Project
	CreatorName        *string `db:"creator_name" json:"creatorName"`
	TaskCount          int     `db:"task_count" json:"taskCount"`
	CompletedTaskCount int     `db:"completed_task_count" json:"completedTaskCount"`
}

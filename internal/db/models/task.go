package models

import "time"

// Task status values. Any value may be set directly; transitions are not ordered.
const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
)

// Task is a unit of work inside a project. OrganizationID always equals the
// owning project's organization.
type Task struct {
	ID             string     `db:"id" json:"id"`
	ProjectID      string     `db:"project_id" json:"projectId"`
	OrganizationID string     `db:"organization_id" json:"organizationId"`
	Title          string     `db:"title" json:"title"`
	Description    *string    `db:"description" json:"description"`
	Status         string     `db:"status" json:"status"`
	Priority       string     `db:"priority" json:"priority"`
	AssignedTo     *string    `db:"assigned_to" json:"assignedTo"`
	DueDate        *time.Time `db:"due_date" json:"dueDate"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// TaskListItem is a task row with the assignee's name and email
type TaskListItem struct {
	Task
	AssigneeName  *string `db:"assignee_name" json:"assigneeName"`
	AssigneeEmail *string `db:"assignee_email" json:"assigneeEmail"`
}

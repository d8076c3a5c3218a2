// task_repository.go implements TaskRepository. Tasks are always addressed through
// their organization and project so cross-tenant ids never match.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/projecthub/projecthub/internal/db/models"
)

const taskColumns = `id, project_id, organization_id, title, description, status, priority, assigned_to, due_date, created_at, updated_at`

// taskPriorityOrder sorts high before medium before low.
const taskPriorityOrder = "CASE t.priority WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END"

// TaskRepository handles database operations for tasks
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// TaskFilter narrows the task listing of one project
type TaskFilter struct {
	OrganizationID string
	ProjectID      string
	Status         string
	Priority       string
	AssignedTo     string
	Page           Page
}

// TaskUpdate carries the fields a task update may change. Description, AssignedTo
// and DueDate may be cleared with an explicit null.
type TaskUpdate struct {
	Title       *string
	Description models.Nullable[string]
	Status      *string
	Priority    *string
	AssignedTo  models.Nullable[string]
	DueDate     models.Nullable[time.Time]
}

func (u TaskUpdate) setMap() map[string]interface{} {
	m := map[string]interface{}{}
	if u.Title != nil {
		m["title"] = *u.Title
	}
	if u.Description.Set {
		m["description"] = u.Description.SQLValue()
	}
	if u.Status != nil {
		m["status"] = *u.Status
	}
	if u.Priority != nil {
		m["priority"] = *u.Priority
	}
	if u.AssignedTo.Set {
		m["assigned_to"] = u.AssignedTo.SQLValue()
	}
	if u.DueDate.Set {
		m["due_date"] = u.DueDate.SQLValue()
	}
	return m
}

// Create inserts a task. The caller has already resolved the project inside the
// task's organization.
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	task.CreatedAt, task.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, organization_id, title, description, status, priority, assigned_to, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		task.ID, task.ProjectID, task.OrganizationID, task.Title, task.Description,
		task.Status, task.Priority, task.AssignedTo, task.DueDate, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetInProject retrieves a task only if it belongs to projectID within orgID
func (r *TaskRepository) GetInProject(ctx context.Context, orgID, projectID, id string) (*models.Task, error) {
	var task models.Task
	err := r.db.GetContext(ctx, &task,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND project_id = $2 AND organization_id = $3`,
		id, projectID, orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// List returns one page of a project's tasks ordered by priority, then due date
// with undated tasks last, then newest first.
func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]*models.TaskListItem, int, error) {
	where := sq.And{
		sq.Eq{"t.organization_id": filter.OrganizationID},
		sq.Eq{"t.project_id": filter.ProjectID},
	}
	if filter.Status != "" {
		where = append(where, sq.Eq{"t.status": filter.Status})
	}
	if filter.Priority != "" {
		where = append(where, sq.Eq{"t.priority": filter.Priority})
	}
	if filter.AssignedTo != "" {
		where = append(where, sq.Eq{"t.assigned_to": filter.AssignedTo})
	}

	total, err := countRows(ctx, r.db, psql.Select("COUNT(*)").From("tasks t").Where(where))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	query, args, err := psql.Select(
		"t.id", "t.project_id", "t.organization_id", "t.title", "t.description", "t.status",
		"t.priority", "t.assigned_to", "t.due_date", "t.created_at", "t.updated_at",
		"u.full_name AS assignee_name",
		"u.email AS assignee_email",
	).
		From("tasks t").
		LeftJoin("users u ON u.id = t.assigned_to").
		Where(where).
		OrderBy(taskPriorityOrder, "t.due_date ASC NULLS LAST", "t.created_at DESC").
		Limit(filter.Page.limit()).
		Offset(filter.Page.offset()).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build task list: %w", err)
	}

	tasks := []*models.TaskListItem{}
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// Update applies upd to a task of projectID within orgID. Returns (nil, nil)
// when no such task exists.
func (r *TaskRepository) Update(ctx context.Context, orgID, projectID, id string, upd TaskUpdate) (*models.Task, error) {
	fields := upd.setMap()
	if len(fields) == 0 {
		return r.GetInProject(ctx, orgID, projectID, id)
	}

	query, args, err := psql.Update("tasks").
		SetMap(fields).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "project_id": projectID, "organization_id": orgID}).
		Suffix("RETURNING " + taskColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build task update: %w", err)
	}

	var task models.Task
	if err := r.db.GetContext(ctx, &task, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return &task, nil
}

// Delete removes a task of projectID within orgID. Returns ErrNotFound when no
// such task exists.
func (r *TaskRepository) Delete(ctx context.Context, orgID, projectID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND project_id = $2 AND organization_id = $3`, id, projectID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

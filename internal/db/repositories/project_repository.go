// project_repository.go implements ProjectRepository. Every query is scoped by
// organization so a project id from another tenant behaves as if it did not exist.
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

const projectColumns = `id, organization_id, name, description, status, priority, created_by, created_at, updated_at`

// ProjectRepository handles database operations for projects
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// ProjectFilter narrows the project listing
type ProjectFilter struct {
	OrganizationID string
	Status         string
	Priority       string
	Search         string
	Page           Page
}

// ProjectUpdate carries the fields a project update may change
type ProjectUpdate struct {
	Name        *string
	Description models.Nullable[string]
	Status      *string
	Priority    *string
}

func (u ProjectUpdate) setMap() map[string]interface{} {
	m := map[string]interface{}{}
	if u.Name != nil {
		m["name"] = *u.Name
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
	return m
}

// CreateWithinCapacity inserts a project after reserving room under the
// organization's max_projects ceiling. Returns ErrNotFound or ErrCapacityExceeded.
func (r *ProjectRepository) CreateWithinCapacity(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := reserveCapacity(ctx, tx, p.OrganizationID, lockOrganizationMaxProjectsQuery, countOrganizationProjectsQuery); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, organization_id, name, description, status, priority, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.OrganizationID, p.Name, p.Description, p.Status, p.Priority, p.CreatedBy, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit project creation: %w", err)
	}
	return nil
}

// GetInOrganization retrieves a project only if it belongs to orgID
func (r *ProjectRepository) GetInOrganization(ctx context.Context, orgID, id string) (*models.Project, error) {
	var p models.Project
	err := r.db.GetContext(ctx, &p,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// List returns one page of an organization's projects, newest first, with the
// creator's name and task counters.
func (r *ProjectRepository) List(ctx context.Context, filter ProjectFilter) ([]*models.ProjectListItem, int, error) {
	where := sq.And{sq.Eq{"p.organization_id": filter.OrganizationID}}
	if filter.Status != "" {
		where = append(where, sq.Eq{"p.status": filter.Status})
	}
	if filter.Priority != "" {
		where = append(where, sq.Eq{"p.priority": filter.Priority})
	}
	if filter.Search != "" {
		pattern := containsPattern(filter.Search)
		where = append(where, sq.Or{
			sq.ILike{"p.name": pattern},
			sq.ILike{"p.description": pattern},
		})
	}

	total, err := countRows(ctx, r.db, psql.Select("COUNT(*)").From("projects p").Where(where))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	query, args, err := psql.Select(
		"p.id", "p.organization_id", "p.name", "p.description", "p.status", "p.priority",
		"p.created_by", "p.created_at", "p.updated_at",
		"u.full_name AS creator_name",
		"COUNT(t.id) AS task_count",
		"COUNT(t.id) FILTER (WHERE t.status = 'completed') AS completed_task_count",
	).
		From("projects p").
		LeftJoin("users u ON u.id = p.created_by").
		LeftJoin("tasks t ON t.project_id = p.id").
		Where(where).
		GroupBy("p.id", "u.full_name").
		OrderBy("p.created_at DESC").
		Limit(filter.Page.limit()).
		Offset(filter.Page.offset()).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build project list: %w", err)
	}

	projects := []*models.ProjectListItem{}
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, total, nil
}

// Update applies upd to a project of orgID. Returns (nil, nil) when no such
// project exists.
func (r *ProjectRepository) Update(ctx context.Context, orgID, id string, upd ProjectUpdate) (*models.Project, error) {
	fields := upd.setMap()
	if len(fields) == 0 {
		return r.GetInOrganization(ctx, orgID, id)
	}

	query, args, err := psql.Update("projects").
		SetMap(fields).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "organization_id": orgID}).
		Suffix("RETURNING " + projectColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build project update: %w", err)
	}

	var p models.Project
	if err := r.db.GetContext(ctx, &p, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return &p, nil
}

// Delete removes a project of orgID; its tasks go with it through the cascading
// foreign key. Returns ErrNotFound when no such project exists.
func (r *ProjectRepository) Delete(ctx context.Context, orgID, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
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

// organization_repository.go implements OrganizationRepository, providing database queries
// for tenant registration, lookup, updates, the super-admin listing and per-tenant counts.
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

const organizationColumns = `id, name, subdomain, status, subscription_tier, max_users, max_projects, created_at, updated_at`

// OrganizationRepository handles database operations for organizations
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// OrganizationFilter narrows the organization listing
type OrganizationFilter struct {
	Status           string
	SubscriptionTier string
	Page             Page
}

// OrganizationUpdate carries the fields an organization update may change.
// Nil fields are left untouched.
type OrganizationUpdate struct {
	Name             *string
	Status           *string
	SubscriptionTier *string
	MaxUsers         *int
	MaxProjects      *int
}

func (u OrganizationUpdate) setMap() map[string]interface{} {
	m := map[string]interface{}{}
	if u.Name != nil {
		m["name"] = *u.Name
	}
	if u.Status != nil {
		m["status"] = *u.Status
	}
	if u.SubscriptionTier != nil {
		m["subscription_tier"] = *u.SubscriptionTier
	}
	if u.MaxUsers != nil {
		m["max_users"] = *u.MaxUsers
	}
	if u.MaxProjects != nil {
		m["max_projects"] = *u.MaxProjects
	}
	return m
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.GetContext(ctx, &org, `SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// GetBySubdomain retrieves an organization by its subdomain
func (r *OrganizationRepository) GetBySubdomain(ctx context.Context, subdomain string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.GetContext(ctx, &org, `SELECT `+organizationColumns+` FROM organizations WHERE subdomain = $1`, subdomain)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get organization by subdomain: %w", err)
	}
	return &org, nil
}

// CreateWithAdmin registers a new organization and its first org_admin in one
// transaction. The subdomain must be unused and the admin email must not exist in
// any organization. IDs and timestamps are assigned when empty.
func (r *OrganizationRepository) CreateWithAdmin(ctx context.Context, org *models.Organization, admin *models.User) error {
	now := time.Now().UTC()
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	if admin.ID == "" {
		admin.ID = uuid.New().String()
	}
	org.CreatedAt, org.UpdatedAt = now, now
	admin.CreatedAt, admin.UpdatedAt = now, now
	admin.OrganizationID = &org.ID

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM organizations WHERE subdomain = $1)`, org.Subdomain); err != nil {
		return fmt.Errorf("failed to check subdomain: %w", err)
	}
	if exists {
		return ErrSubdomainTaken
	}

	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, admin.Email); err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return ErrEmailTaken
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organizations (id, name, subdomain, status, subscription_tier, max_users, max_projects, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		org.ID, org.Name, org.Subdomain, org.Status, org.SubscriptionTier,
		org.MaxUsers, org.MaxProjects, org.CreatedAt, org.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "organizations_subdomain_key" {
			return ErrSubdomainTaken
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}

	if err := insertUser(ctx, tx, admin); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit organization registration: %w", err)
	}
	return nil
}

// Update applies the non-nil fields of upd and returns the updated row, or
// (nil, nil) when the organization does not exist.
func (r *OrganizationRepository) Update(ctx context.Context, id string, upd OrganizationUpdate) (*models.Organization, error) {
	fields := upd.setMap()
	if len(fields) == 0 {
		return r.GetByID(ctx, id)
	}

	query, args, err := psql.Update("organizations").
		SetMap(fields).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + organizationColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build organization update: %w", err)
	}

	var org models.Organization
	if err := r.db.GetContext(ctx, &org, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
	return &org, nil
}

// List returns one page of organizations, newest first, with user and project
// counts, plus the total number of matching organizations.
func (r *OrganizationRepository) List(ctx context.Context, filter OrganizationFilter) ([]*models.OrganizationWithCounts, int, error) {
	where := sq.And{}
	if filter.Status != "" {
		where = append(where, sq.Eq{"o.status": filter.Status})
	}
	if filter.SubscriptionTier != "" {
		where = append(where, sq.Eq{"o.subscription_tier": filter.SubscriptionTier})
	}

	total, err := countRows(ctx, r.db, psql.Select("COUNT(*)").From("organizations o").Where(where))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count organizations: %w", err)
	}

	query, args, err := psql.Select(
		"o.id", "o.name", "o.subdomain", "o.status", "o.subscription_tier",
		"o.max_users", "o.max_projects", "o.created_at", "o.updated_at",
		"(SELECT COUNT(*) FROM users u WHERE u.organization_id = o.id) AS total_users",
		"(SELECT COUNT(*) FROM projects p WHERE p.organization_id = o.id) AS total_projects",
	).
		From("organizations o").
		Where(where).
		OrderBy("o.created_at DESC").
		Limit(filter.Page.limit()).
		Offset(filter.Page.offset()).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build organization list: %w", err)
	}

	orgs := []*models.OrganizationWithCounts{}
	if err := r.db.SelectContext(ctx, &orgs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, total, nil
}

// CountUsers returns the number of users in an organization
func (r *OrganizationRepository) CountUsers(ctx context.Context, orgID string) (int, error) {
	return r.count(ctx, countOrganizationUsersQuery, orgID)
}

// CountProjects returns the number of projects in an organization
func (r *OrganizationRepository) CountProjects(ctx context.Context, orgID string) (int, error) {
	return r.count(ctx, countOrganizationProjectsQuery, orgID)
}

// CountTasks returns the number of tasks in an organization
func (r *OrganizationRepository) CountTasks(ctx context.Context, orgID string) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM tasks WHERE organization_id = $1`, orgID)
}

func (r *OrganizationRepository) count(ctx context.Context, query, orgID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, query, orgID); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}

// insertUser writes a fully populated user row inside tx.
func insertUser(ctx context.Context, tx *sqlx.Tx, u *models.User) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, organization_id, email, password_hash, full_name, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.OrganizationID, u.Email, u.PasswordHash, u.FullName, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return classifyUserInsert(err)
	}
	return nil
}

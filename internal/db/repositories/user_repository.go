// user_repository.go implements UserRepository, providing database queries for
// organization members and the system-wide super admin.
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

const userColumns = `id, organization_id, email, password_hash, full_name, role, is_active, last_login, created_at, updated_at`

// UserRepository handles database operations for users
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UserFilter narrows the member listing of one organization
type UserFilter struct {
	OrganizationID string
	Role           string
	Search         string
	Page           Page
}

// UserUpdate carries the fields a member update may change
type UserUpdate struct {
	FullName *string
	Role     *string
	IsActive *bool
}

func (u UserUpdate) setMap() map[string]interface{} {
	m := map[string]interface{}{}
	if u.FullName != nil {
		m["full_name"] = *u.FullName
	}
	if u.Role != nil {
		m["role"] = *u.Role
	}
	if u.IsActive != nil {
		m["is_active"] = *u.IsActive
	}
	return m
}

func (r *UserRepository) get(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a user by ID regardless of organization
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetInOrganization retrieves a user only if it belongs to orgID
func (r *UserRepository) GetInOrganization(ctx context.Context, orgID, id string) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 AND organization_id = $2`, id, orgID)
}

// GetByEmailInOrganization retrieves the member of orgID with the given email
func (r *UserRepository) GetByEmailInOrganization(ctx context.Context, orgID, email string) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE organization_id = $1 AND email = $2`, orgID, email)
}

// GetSuperAdminByEmail retrieves an organization-less super admin
func (r *UserRepository) GetSuperAdminByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE organization_id IS NULL AND email = $1`, email)
}

// CreateInOrganization adds a member to an organization. The organization row is
// locked for the duration of the transaction so the max_users ceiling holds under
// concurrent creates. Returns ErrNotFound, ErrCapacityExceeded or ErrEmailTaken.
func (r *UserRepository) CreateInOrganization(ctx context.Context, user *models.User) error {
	if user.OrganizationID == nil {
		return fmt.Errorf("failed to create user: organization is required")
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := reserveCapacity(ctx, tx, *user.OrganizationID, lockOrganizationMaxUsersQuery, countOrganizationUsersQuery); err != nil {
		return err
	}

	var exists bool
	err = tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM users WHERE organization_id = $1 AND email = $2)`,
		*user.OrganizationID, user.Email)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return ErrEmailTaken
	}

	if err := insertUser(ctx, tx, user); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user creation: %w", err)
	}
	return nil
}

// CreateSuperAdmin inserts the organization-less super admin account
func (r *UserRepository) CreateSuperAdmin(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	user.OrganizationID = nil

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, organization_id, email, password_hash, full_name, role, is_active, created_at, updated_at)
		VALUES ($1, NULL, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Email, user.PasswordHash, user.FullName, user.Role, user.IsActive, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return classifyUserInsert(err)
	}
	return nil
}

// List returns one page of an organization's members, newest first
func (r *UserRepository) List(ctx context.Context, filter UserFilter) ([]*models.User, int, error) {
	where := sq.And{sq.Eq{"organization_id": filter.OrganizationID}}
	if filter.Role != "" {
		where = append(where, sq.Eq{"role": filter.Role})
	}
	if filter.Search != "" {
		pattern := containsPattern(filter.Search)
		where = append(where, sq.Or{
			sq.ILike{"full_name": pattern},
			sq.ILike{"email": pattern},
		})
	}

	total, err := countRows(ctx, r.db, psql.Select("COUNT(*)").From("users").Where(where))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query, args, err := psql.Select(userColumns).
		From("users").
		Where(where).
		OrderBy("created_at DESC").
		Limit(filter.Page.limit()).
		Offset(filter.Page.offset()).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build user list: %w", err)
	}

	users := []*models.User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// Update applies the non-nil fields of upd to a member of orgID. Returns
// (nil, nil) when no such member exists.
func (r *UserRepository) Update(ctx context.Context, orgID, id string, upd UserUpdate) (*models.User, error) {
	fields := upd.setMap()
	if len(fields) == 0 {
		return r.GetInOrganization(ctx, orgID, id)
	}

	query, args, err := psql.Update("users").
		SetMap(fields).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "organization_id": orgID}).
		Suffix("RETURNING " + userColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user update: %w", err)
	}

	var user models.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &user, nil
}

// Delete removes a member of orgID, clearing it from any task assignment first.
// Returns ErrNotFound when no such member exists.
func (r *UserRepository) Delete(ctx context.Context, orgID, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE tasks SET assigned_to = NULL, updated_at = NOW() WHERE assigned_to = $1 AND organization_id = $2`,
		id, orgID); err != nil {
		return fmt.Errorf("failed to unassign tasks: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1 AND organization_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user deletion: %w", err)
	}
	return nil
}

// UpdateLastLogin stamps the user's last successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

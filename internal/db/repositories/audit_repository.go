// audit_repository.go implements AuditRepository, providing database queries for writing
// and retrieving audit log entries scoped to an organization.
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

const auditColumns = `id, organization_id, user_id, action, entity_type, entity_id, details, ip_address, created_at`

// AuditRepository handles audit log database operations
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// AuditFilter contains filters for querying audit logs
type AuditFilter struct {
	OrganizationID string
	UserID         string
	Action         string
	EntityType     string
	StartDate      *time.Time
	EndDate        *time.Time
	Page           Page
}

// Create writes an audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	details := []byte(log.Details)
	if len(details) == 0 {
		details = []byte("{}")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, organization_id, user_id, action, entity_type, entity_id, details, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		log.ID, log.OrganizationID, log.UserID, log.Action, log.EntityType,
		log.EntityID, details, log.IPAddress, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// List retrieves one page of audit logs, newest first
func (r *AuditRepository) List(ctx context.Context, filter AuditFilter) ([]*models.AuditLog, int, error) {
	where := sq.And{sq.Eq{"organization_id": filter.OrganizationID}}
	if filter.UserID != "" {
		where = append(where, sq.Eq{"user_id": filter.UserID})
	}
	if filter.Action != "" {
		where = append(where, sq.Eq{"action": filter.Action})
	}
	if filter.EntityType != "" {
		where = append(where, sq.Eq{"entity_type": filter.EntityType})
	}
	if filter.StartDate != nil {
		where = append(where, sq.GtOrEq{"created_at": *filter.StartDate})
	}
	if filter.EndDate != nil {
		where = append(where, sq.LtOrEq{"created_at": *filter.EndDate})
	}

	total, err := countRows(ctx, r.db, psql.Select("COUNT(*)").From("audit_logs").Where(where))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query, args, err := psql.Select(auditColumns).
		From("audit_logs").
		Where(where).
		OrderBy("created_at DESC").
		Limit(filter.Page.limit()).
		Offset(filter.Page.offset()).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build audit log list: %w", err)
	}

	logs := []*models.AuditLog{}
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, total, nil
}

// GetByID retrieves a single audit log entry by ID
func (r *AuditRepository) GetByID(ctx context.Context, id string) (*models.AuditLog, error) {
	var log models.AuditLog
	if err := r.db.GetContext(ctx, &log, `SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}
	return &log, nil
}

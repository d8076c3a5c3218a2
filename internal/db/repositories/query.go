// query.go holds the shared statement builder, pagination and capacity helpers.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// MaxPageSize caps every list endpoint.
const MaxPageSize = 100

// psql builds PostgreSQL statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// NewPage normalizes a page request: page < 1 becomes 1, a missing size falls back
// to defaultSize and sizes above MaxPageSize are clamped.
func NewPage(number, size, defaultSize int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = defaultSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) limit() uint64 {
	if p.Size < 1 {
		return MaxPageSize
	}
	return uint64(p.Size)
}

func (p Page) offset() uint64 {
	if p.Number < 1 {
		return 0
	}
	return uint64(p.Number-1) * p.limit()
}

// TotalPages returns ceil(total / size).
func (p Page) TotalPages(total int) int {
	size := int(p.limit())
	return (total + size - 1) / size
}

// containsPattern builds an ILIKE pattern matching s anywhere, with LIKE
// metacharacters in s escaped.
func containsPattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// countRows runs a COUNT(*) query built by squirrel.
func countRows(ctx context.Context, db *sqlx.DB, b sq.SelectBuilder) (int, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, err
	}
	return total, nil
}

const (
	lockOrganizationMaxUsersQuery    = `SELECT max_users FROM organizations WHERE id = $1 FOR UPDATE`
	lockOrganizationMaxProjectsQuery = `SELECT max_projects FROM organizations WHERE id = $1 FOR UPDATE`
	countOrganizationUsersQuery      = `SELECT COUNT(*) FROM users WHERE organization_id = $1`
	countOrganizationProjectsQuery   = `SELECT COUNT(*) FROM projects WHERE organization_id = $1`
)

// reserveCapacity locks the organization row for the rest of tx and fails with
// ErrCapacityExceeded when the current count has reached the ceiling. Concurrent
// creates in the same organization queue on the row lock, so the count they see
// includes every insert committed before them.
func reserveCapacity(ctx context.Context, tx *sqlx.Tx, orgID, lockQuery, countQuery string) error {
	var ceiling int
	if err := tx.GetContext(ctx, &ceiling, lockQuery, orgID); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("failed to lock organization: %w", err)
	}

	var current int
	if err := tx.GetContext(ctx, &current, countQuery, orgID); err != nil {
		return fmt.Errorf("failed to count organization resources: %w", err)
	}
	if current >= ceiling {
		return ErrCapacityExceeded
	}
	return nil
}

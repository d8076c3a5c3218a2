// errors.go defines the sentinel errors returned by repositories and the helpers
// that classify PostgreSQL failures into them.
package repositories

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned by write paths whose target row does not exist.
	// Read paths return (nil, nil) instead.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a uniqueness rule is violated.
	ErrDuplicate = errors.New("duplicate record")

	// ErrSubdomainTaken and ErrEmailTaken wrap ErrDuplicate.
	ErrSubdomainTaken = fmt.Errorf("%w: subdomain already exists", ErrDuplicate)
	ErrEmailTaken     = fmt.Errorf("%w: email already exists", ErrDuplicate)

	// ErrCapacityExceeded is returned when an organization is at its user or project ceiling.
	ErrCapacityExceeded = errors.New("organization capacity exceeded")
)

// uniqueViolation reports whether err is a PostgreSQL unique_violation and which
// constraint raised it.
func uniqueViolation(err error) (constraint string, ok bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgerrcode.UniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// classifyUserInsert maps a unique violation on the users table to ErrEmailTaken.
func classifyUserInsert(err error) error {
	if _, ok := uniqueViolation(err); ok {
		return ErrEmailTaken
	}
	return fmt.Errorf("failed to create user: %w", err)
}

package repository

import (
	"context"
	"errors"
	"strings"

	"clipvault/internal/domain"
)

// ErrNotFound is returned when no user matches the lookup key.
var ErrNotFound = errors.New("user not found")

// DuplicateError reports which identity fields collided with an existing
// record. Returned both by the advisory pre-check and by Create when the
// store's unique index rejects the write.
type DuplicateError struct {
	Fields []string
}

func (e *DuplicateError) Error() string {
	return "identity already taken: " + strings.Join(e.Fields, ", ")
}

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	// FindIdentityConflicts reports which of username/email already exist in
	// the store. Matching is case-insensitive on both fields, the same rule
	// the unique index enforces. Advisory only: Create remains the
	// authoritative guard under concurrency.
	FindIdentityConflicts(ctx context.Context, username, email string) ([]string, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hamhub/internal/models"
)

// ErrUserNotFound is returned by lookups that match no user.
var ErrUserNotFound = errors.New("user not found")

// DuplicateKeyError reports a unique constraint violation on a user field
// ("email" or "username").
type DuplicateKeyError struct {
	Field string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate user %s", e.Field)
}

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

// UserRepository defines the interface for user data access.
// Email and username arguments are matched case-insensitively.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLoginMeta(ctx context.Context, id string, at time.Time) error
}

package repositories_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hamhub/internal/database"
	"hamhub/internal/models"
	"hamhub/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func newGORMRepo(t *testing.T) repositories.UserRepository {
	t.Helper()
	conn := database.NewConnection(database.Open(database.Config{
		Driver: database.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
	}))
	t.Cleanup(func() { _ = conn.Close() })
	return repositories.NewGORMUserRepository(conn)
}

// Both implementations must honour the same contract.
var implementations = map[string]func(t *testing.T) repositories.UserRepository{
	"gorm":   newGORMRepo,
	"memory": func(*testing.T) repositories.UserRepository { return repositories.NewMockUserRepository() },
}

func newUser(username, email string) *models.User {
	return &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$04$hash",
		Role:         models.RoleUser,
		Status:       models.StatusActive,
	}
}

func TestUserRepository_CreateAndFind(t *testing.T) {
	for name, newRepo := range implementations {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			user := newUser("Alice1", "Alice@Example.com")
			require.NoError(t, repo.Create(ctx, user))
			assert.NotEmpty(t, user.ID)
			assert.Equal(t, "alice1", user.Username)
			assert.Equal(t, "alice@example.com", user.Email)

			byEmail, err := repo.FindByEmail(ctx, "ALICE@example.COM")
			require.NoError(t, err)
			assert.Equal(t, user.ID, byEmail.ID)
			assert.Equal(t, "$2a$04$hash", byEmail.PasswordHash)

			byID, err := repo.FindByID(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, "alice1", byID.Username)
			assert.Equal(t, models.RoleUser, byID.Role)
			assert.Equal(t, 0, byID.LoginCount)
			assert.Nil(t, byID.LastLogin)

			either, err := repo.FindByEmailOrUsername(ctx, "nobody@example.com", "ALICE1")
			require.NoError(t, err)
			assert.Equal(t, user.ID, either.ID)

			_, err = repo.FindByEmailOrUsername(ctx, "nobody@example.com", "nobody")
			assert.ErrorIs(t, err, repositories.ErrUserNotFound)
			_, err = repo.FindByEmail(ctx, "nobody@example.com")
			assert.ErrorIs(t, err, repositories.ErrUserNotFound)
			_, err = repo.FindByID(ctx, uuid.New().String())
			assert.ErrorIs(t, err, repositories.ErrUserNotFound)
		})
	}
}

func TestUserRepository_DuplicateKeys(t *testing.T) {
	for name, newRepo := range implementations {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()
			require.NoError(t, repo.Create(ctx, newUser("alice1", "a@b.com")))

			var dup *repositories.DuplicateKeyError

			err := repo.Create(ctx, newUser("someone", "A@B.com"))
			require.True(t, errors.As(err, &dup), "got %v", err)
			assert.Equal(t, "email", dup.Field)

			err = repo.Create(ctx, newUser("ALICE1", "other@b.com"))
			require.True(t, errors.As(err, &dup), "got %v", err)
			assert.Equal(t, "username", dup.Field)
		})
	}
}

func TestUserRepository_ConcurrentDuplicateCreate(t *testing.T) {
	for name, newRepo := range implementations {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			const n = 8
			errs := make([]error, n)
			var g errgroup.Group
			for i := 0; i < n; i++ {
				i := i
				g.Go(func() error {
					errs[i] = repo.Create(ctx, newUser(fmt.Sprintf("racer%d", i), "race@b.com"))
					return nil
				})
			}
			require.NoError(t, g.Wait())

			created := 0
			for _, err := range errs {
				if err == nil {
					created++
					continue
				}
				var dup *repositories.DuplicateKeyError
				require.True(t, errors.As(err, &dup), "got %v", err)
				assert.Equal(t, "email", dup.Field)
			}
			assert.Equal(t, 1, created)
		})
	}
}

func TestUserRepository_UpdateLoginMeta(t *testing.T) {
	for name, newRepo := range implementations {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()
			user := newUser("alice1", "a@b.com")
			require.NoError(t, repo.Create(ctx, user))

			first := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
			second := first.Add(time.Hour)
			require.NoError(t, repo.UpdateLoginMeta(ctx, user.ID, first))
			require.NoError(t, repo.UpdateLoginMeta(ctx, user.ID, second))

			got, err := repo.FindByID(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, got.LoginCount)
			require.NotNil(t, got.LastLogin)
			assert.True(t, second.Equal(*got.LastLogin), "lastLogin = %v", got.LastLogin)

			err = repo.UpdateLoginMeta(ctx, uuid.New().String(), second)
			assert.ErrorIs(t, err, repositories.ErrUserNotFound)
		})
	}
}

func TestGORMUserRepository_ConnectionFailure(t *testing.T) {
	conn := database.NewConnection(func(context.Context) (*gorm.DB, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	repo := repositories.NewGORMUserRepository(conn)

	_, err := repo.FindByEmail(context.Background(), "a@b.com")
	assert.ErrorContains(t, err, "connection refused")
	assert.NotErrorIs(t, err, repositories.ErrUserNotFound)
}

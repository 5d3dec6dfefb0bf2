package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hamhub/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// Connector hands out the shared database handle, opening it on first use.
type Connector interface {
	DB(ctx context.Context) (*gorm.DB, error)
}

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	conn Connector
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(conn Connector) *GORMUserRepository {
	return &GORMUserRepository{
		conn: conn,
	}
}

func (r *GORMUserRepository) db(ctx context.Context) (*gorm.DB, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to user store: %w", err)
	}
	return db.WithContext(ctx), nil
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.Username = strings.ToLower(user.Username)
	user.Email = strings.ToLower(user.Email)
	if err := db.Create(user).Error; err != nil {
		if field, ok := duplicateField(err); ok {
			return &DuplicateKeyError{Field: field, Err: err}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByEmailOrUsername retrieves the first user whose email or username matches.
func (r *GORMUserRepository) FindByEmailOrUsername(ctx context.Context, email, username string) (*models.User, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var user models.User
	err = db.Where("email = ? OR username = ?", strings.ToLower(email), strings.ToLower(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email %s or username %s: %w", email, username, err)
	}
	return &user, nil
}

// FindByEmail retrieves a user, password hash included, by email.
func (r *GORMUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := db.First(&user, "email = ?", strings.ToLower(email)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email %s: %w", email, err)
	}
	return &user, nil
}

// FindByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID %s: %w", id, err)
	}
	return &user, nil
}

// UpdateLoginMeta stamps the last login time and bumps the login counter.
func (r *GORMUserRepository) UpdateLoginMeta(ctx context.Context, id string, at time.Time) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}
	res := db.Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_login":  at,
		"login_count": gorm.Expr("login_count + ?", 1),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update login meta for user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// duplicateField classifies unique violations from postgres and sqlite and
// names the offending column.
func duplicateField(err error) (string, bool) {
	var detail string

	var pgErr *pgconn.PgError
	var sqliteErr sqlite3.Error
	switch {
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		detail = pgErr.ConstraintName + " " + pgErr.Detail
	case errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
		detail = sqliteErr.Error()
	case errors.Is(err, gorm.ErrDuplicatedKey):
		detail = err.Error()
	default:
		return "", false
	}

	if strings.Contains(strings.ToLower(detail), "email") {
		return "email", true
	}
	return "username", true
}

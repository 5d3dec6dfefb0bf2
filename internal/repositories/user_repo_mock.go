package repositories

import (
	"context"
	"strings"
	"sync"
	"time"

	"hamhub/internal/models"

	"github.com/google/uuid"
)

// MockUserRepository is an in-memory implementation of UserRepository.
// It keeps lowercase email and username indexes so uniqueness behaves like
// the database's unique indexes.
type MockUserRepository struct {
	users      map[string]models.User
	byEmail    map[string]string
	byUsername map[string]string
	mu         sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:      make(map[string]models.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

// Create adds a new user.
func (r *MockUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	user.Username = strings.ToLower(user.Username)
	if _, ok := r.byEmail[user.Email]; ok {
		return &DuplicateKeyError{Field: "email"}
	}
	if _, ok := r.byUsername[user.Username]; ok {
		return &DuplicateKeyError{Field: "username"}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Status == "" {
		user.Status = models.StatusActive
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	r.users[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	r.byUsername[user.Username] = user.ID
	return nil
}

// FindByEmailOrUsername returns the user matching either key, email first.
func (r *MockUserRepository) FindByEmailOrUsername(_ context.Context, email, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.byEmail[strings.ToLower(email)]; ok {
		user := r.users[id]
		return &user, nil
	}
	if id, ok := r.byUsername[strings.ToLower(username)]; ok {
		user := r.users[id]
		return &user, nil
	}
	return nil, ErrUserNotFound
}

// FindByEmail returns a user by email.
func (r *MockUserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	user := r.users[id]
	return &user, nil
}

// FindByID returns a user by its ID.
func (r *MockUserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

// UpdateLoginMeta records a successful login.
func (r *MockUserRepository) UpdateLoginMeta(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.LastLogin = &at
	user.LoginCount++
	user.UpdatedAt = time.Now()
	r.users[id] = user
	return nil
}

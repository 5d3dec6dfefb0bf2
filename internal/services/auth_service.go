package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hamhub/internal/models"
	"hamhub/internal/repositories"

	"github.com/sirupsen/logrus"
)

// Auth event types published after successful registration and login.
const (
	EventUserRegistered = "user.registered"
	EventUserLoggedIn   = "user.logged_in"
)

// EventPublisher delivers auth events to interested consumers.
type EventPublisher interface {
	PublishEvent(eventType string, payload interface{}) error
}

// ProfileCache is a read-through cache of user profiles keyed by user ID.
type ProfileCache interface {
	GetProfile(ctx context.Context, userID string) (*models.User, bool, error)
	SetProfile(ctx context.Context, user *models.User) error
	DeleteProfile(ctx context.Context, userID string) error
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo repositories.UserRepository
	hasher   *PasswordHasher
	tokens   *TokenService
	events   EventPublisher
	cache    ProfileCache
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, hasher *PasswordHasher, tokens *TokenService, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		log:      log,
		now:      time.Now,
	}
}

// WithEvents makes the service publish auth events to p.
func (s *AuthService) WithEvents(p EventPublisher) *AuthService {
	s.events = p
	return s
}

// WithProfileCache makes profile lookups go through c.
func (s *AuthService) WithProfileCache(c ProfileCache) *AuthService {
	s.cache = c
	return s
}

// RegisterInput carries an already validated registration payload.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// AuthResult is a freshly issued session for a user.
type AuthResult struct {
	Token string
	User  *models.User
}

// RegisterUser creates a user with the default role and returns a session for it.
func (s *AuthService) RegisterUser(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	existing, err := s.userRepo.FindByEmailOrUsername(ctx, in.Email, in.Username)
	switch {
	case err == nil:
		field := "username"
		if strings.EqualFold(existing.Email, in.Email) {
			field = "email"
		}
		return nil, &ConflictError{Field: field}
	case !errors.Is(err, repositories.ErrUserNotFound):
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	// Refuse before writing anything: a user without a session is useless here.
	if !s.tokens.Configured() {
		return nil, ErrMissingSecret
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     strings.ToLower(in.Username),
		Email:        strings.ToLower(in.Email),
		PasswordHash: hashed,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         models.RoleUser,
		Status:       models.StatusActive,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		var dup *repositories.DuplicateKeyError
		if errors.As(err, &dup) {
			return nil, &ConflictError{Field: dup.Field}
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	token, err := s.tokens.Issue(ClaimsFor(user))
	if err != nil {
		return nil, fmt.Errorf("failed to issue token for user %s: %w", user.ID, err)
	}

	s.publish(EventUserRegistered, user)
	return &AuthResult{Token: token, User: user}, nil
}

// LoginUser authenticates by email and password and returns a new session.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			s.hasher.SimulateVerify(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if user.IsInactive() {
		return nil, ErrAccountInactive
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(ClaimsFor(user))
	if err != nil {
		return nil, fmt.Errorf("failed to issue token for user %s: %w", user.ID, err)
	}

	now := s.now()
	if err := s.userRepo.UpdateLoginMeta(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLogin = &now
	user.LoginCount++

	s.invalidateProfile(ctx, user.ID)
	s.publish(EventUserLoggedIn, user)
	return &AuthResult{Token: token, User: user}, nil
}

// GetProfile returns the user with the given ID, consulting the profile cache first.
func (s *AuthService) GetProfile(ctx context.Context, id string) (*models.User, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.GetProfile(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("user_id", id).Warn("profile cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetProfile(ctx, user); err != nil {
			s.log.WithError(err).WithField("user_id", id).Warn("profile cache write failed")
		}
	}
	return user, nil
}

// ValidateToken verifies a session token and returns its claims.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, bool) {
	return s.tokens.Verify(tokenString)
}

func (s *AuthService) invalidateProfile(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteProfile(ctx, id); err != nil {
		s.log.WithError(err).WithField("user_id", id).Warn("profile cache invalidation failed")
	}
}

func (s *AuthService) publish(eventType string, user *models.User) {
	if s.events == nil {
		return
	}
	payload := map[string]interface{}{
		"userID":   user.ID,
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
		"at":       s.now().UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishEvent(eventType, payload); err != nil {
		s.log.WithError(err).WithField("event", eventType).Warn("failed to publish auth event")
	}
}

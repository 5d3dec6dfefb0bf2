package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountInactive is returned when an inactive user tries to log in.
	ErrAccountInactive = errors.New("account is inactive")
	// ErrUserNotFound is returned when a looked-up user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrMissingSecret means no token signing secret is configured.
	ErrMissingSecret = errors.New("token signing secret is not configured")
)

// ConflictError reports that a user with the same email or username already exists.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("User with this %s already exists", e.Field)
}

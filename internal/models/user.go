package models

import "time"

// Role is the authorization level carried in a user's session token.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Status controls whether a user may log in.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// User represents a registered customer or administrator of the store.
// Username and Email are stored lowercased; the unique indexes on them give
// case-insensitive uniqueness.
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username     string     `json:"username" gorm:"uniqueIndex;type:varchar(20);not null"`
	Email        string     `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	PasswordHash string     `json:"-" gorm:"column:password;type:varchar(255);not null"` // never serialized
	FirstName    string     `json:"firstName,omitempty" gorm:"type:varchar(100)"`
	LastName     string     `json:"lastName,omitempty" gorm:"type:varchar(100)"`
	Role         Role       `json:"role" gorm:"type:varchar(16);not null;default:user"`
	Status       Status     `json:"status" gorm:"type:varchar(16);not null;default:active"`
	LoginCount   int        `json:"loginCount" gorm:"not null;default:0"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsInactive reports whether the account has been disabled.
func (u *User) IsInactive() bool {
	return u.Status == StatusInactive
}

// PublicUser is the view of a user sent to clients in auth responses and in
// the readable "user" cookie.
type PublicUser struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	FirstName string     `json:"firstName,omitempty"`
	LastName  string     `json:"lastName,omitempty"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Public returns the client-facing view of u.
func (u *User) Public() PublicUser {
	role := u.Role
	if role == "" {
		role = RoleUser
	}
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

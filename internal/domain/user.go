// Package domain contains the core business entities for Castellan.
// These are pure Go structs with no external dependencies, representing
// the fundamental concepts of the user administration system.
package domain

import (
	"time"
)

// User represents a registered user in the system.
type User struct {
	// ID is the unique identifier for the user (auto-generated).
	// IDs are never reused, even after deletion.
	ID int64 `json:"id"`

	// Name is the display name. Constraints: non-empty, at most 100 characters.
	Name string `json:"name"`

	// Email is the user's email address, unique case-insensitively
	// across all users.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This must never be exposed in API responses.
	PasswordHash string `json:"-"`

	// IsBlocked indicates whether the account has been blocked by an admin.
	// Blocked users cannot log in or call authenticated endpoints.
	IsBlocked bool `json:"isBlocked"`

	// LastLogin is the timestamp of the last successful login, nil if the
	// user has never logged in.
	LastLogin *time.Time `json:"lastLogin"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUser creates a new User with default values.
func NewUser(name, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		IsBlocked:    false,
		LastLogin:    nil,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Block marks the user as blocked.
func (u *User) Block() {
	u.IsBlocked = true
	u.UpdatedAt = time.Now().UTC()
}

// Unblock clears the blocked flag.
func (u *User) Unblock() {
	u.IsBlocked = false
	u.UpdatedAt = time.Now().UTC()
}

// StampLastLogin records a successful login at the given time.
func (u *User) StampLastLogin(t time.Time) {
	utc := t.UTC()
	u.LastLogin = &utc
	u.UpdatedAt = utc
}

// CanAuthenticate returns true if the user is allowed to authenticate.
func (u *User) CanAuthenticate() bool {
	return !u.IsBlocked
}

// Profile is the outward representation of a user. It carries everything a
// client may see and nothing it may not (no password hash).
type Profile struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	IsBlocked bool       `json:"isBlocked"`
	LastLogin *time.Time `json:"lastLogin"`
}

// ToProfile converts the user to its public profile.
func (u *User) ToProfile() Profile {
	return Profile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		IsBlocked: u.IsBlocked,
		LastLogin: u.LastLogin,
	}
}

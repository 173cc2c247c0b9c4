// Package crypto provides cryptographic utilities for Castellan.
package crypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies passwords using bcrypt. bcrypt embeds a
// per-call random salt in the hash and its comparison routine is constant
// time, so the hasher carries no state beyond the cost.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher with the given cost. A cost outside
// bcrypt's supported range falls back to the library default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash produces a salted bcrypt hash of the password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether the candidate password matches the hash.
func (h *PasswordHasher) Verify(hash, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}

// IsHash reports whether s looks like a bcrypt hash. Useful as a guard
// against accidentally storing a plaintext password.
func IsHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return !errors.Is(err, bcrypt.ErrHashTooShort) && err == nil
}

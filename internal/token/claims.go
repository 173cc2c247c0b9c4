// Package token issues and verifies the signed bearer tokens that carry
// user identity between requests.
package token

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the fixed, typed payload of a Castellan token. Custom fields are
// string claims on the wire; accessors expose them with proper types.
type Claims struct {
	jwt.RegisteredClaims

	// Name is the user's display name at issuance time.
	Name string `json:"name"`

	// Email is the user's email at issuance time.
	Email string `json:"email"`

	// Blocked is the user's blocked flag at issuance time, as "true" or
	// "false". It is a snapshot for client-side UX only: the access gate
	// re-checks the store and never trusts this claim on its own.
	Blocked string `json:"blocked"`
}

// UserID returns the subject parsed as the numeric user ID.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.RegisteredClaims.Subject, 10, 64)
}

// IsBlocked reports the blocked snapshot embedded at issuance.
func (c *Claims) IsBlocked() bool {
	return c.Blocked == "true"
}

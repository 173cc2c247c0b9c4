// Package repository defines data access interfaces for Castellan.
// These interfaces abstract database operations, allowing for different
// implementations (PostgreSQL, SQLite, in-memory for testing) while keeping
// the service layer clean.
package repository

import (
	"context"

	"github.com/prn-tf/castellan/internal/domain"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user and assigns its ID.
	// Returns ErrConflict if the email is already taken (case-insensitive);
	// the unique index is the final authority, so a pre-check race still
	// surfaces as ErrConflict here.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail retrieves a user by email, matched case-insensitively.
	// Returns ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update updates an existing user. Returns ErrNotFound if absent and
	// ErrConflict on an email collision.
	Update(ctx context.Context, user *domain.User) error

	// Delete permanently removes a user by ID. Returns ErrNotFound if absent.
	Delete(ctx context.Context, id int64) error

	// List returns users matching the options with the total count before
	// pagination. An out-of-range page yields empty items, not an error.
	List(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error)

	// ExistsByEmail checks if a user with the given email exists
	// (case-insensitive).
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// Sort keys accepted by ListOptions.SortBy. Anything else falls back to ID.
const (
	SortByID        = "id"
	SortByName      = "name"
	SortByEmail     = "email"
	SortByLastLogin = "lastlogin"
)

// ListOptions contains filtering, sorting, and pagination options for
// listing users. Filtering and sorting happen in the store's query layer.
type ListOptions struct {
	// Page is the 1-based page number.
	Page int

	// PageSize is the number of items per page.
	PageSize int

	// SortBy is one of the SortBy* keys; empty or unknown means SortByID.
	// Ties are always broken by id ascending so the sort is stable.
	SortBy string

	// Descending sorts in descending order if true.
	Descending bool

	// SearchTerm, when non-empty, keeps only users whose name or email
	// contains it case-insensitively.
	SearchTerm string

	// IsBlocked, when non-nil, keeps only users with a matching blocked flag.
	IsBlocked *bool
}

// Offset returns the number of rows to skip for the configured page.
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.PageSize
}

// ListResult is a generic paginated list result.
type ListResult[T any] struct {
	// Items is the page of items.
	Items []*T

	// Total is the number of matching items before pagination.
	Total int64

	// Page is the 1-based page number.
	Page int

	// PageSize is the page size used.
	PageSize int
}

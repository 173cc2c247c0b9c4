package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/castellan/internal/domain"
	"github.com/prn-tf/castellan/internal/repository"
)

// Pagination bounds for listing users.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// UsersService handles administrative user management.
type UsersService struct {
	userRepo repository.UserRepository
	logger   zerolog.Logger
	now      func() time.Time
}

// NewUsersService creates a new UsersService.
func NewUsersService(userRepo repository.UserRepository, logger zerolog.Logger) *UsersService {
	return &UsersService{
		userRepo: userRepo,
		logger:   logger.With().Str("service", "users").Logger(),
		now:      time.Now,
	}
}

// ListUsersInput contains filtering, sorting, and pagination options.
type ListUsersInput struct {
	Page       int
	PageSize   int
	SortBy     string
	Descending bool
	SearchTerm string
	IsBlocked  *bool
}

// ListUsersOutput contains one page of users plus paging metadata.
type ListUsersOutput struct {
	Users      []*domain.User
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}

// List returns a page of users. The search term matches name or email
// case-insensitively; the total count reflects the filtered set before
// pagination. A page past the end yields empty items, not an error.
func (s *UsersService) List(ctx context.Context, input ListUsersInput) (*ListUsersOutput, error) {
	if input.Page < 1 {
		input.Page = 1
	}
	if input.PageSize <= 0 {
		input.PageSize = DefaultPageSize
	}
	if input.PageSize > MaxPageSize {
		input.PageSize = MaxPageSize
	}

	result, err := s.userRepo.List(ctx, repository.ListOptions{
		Page:       input.Page,
		PageSize:   input.PageSize,
		SortBy:     normalizeSortKey(input.SortBy),
		Descending: input.Descending,
		SearchTerm: strings.TrimSpace(input.SearchTerm),
		IsBlocked:  input.IsBlocked,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	totalPages := int((result.Total + int64(input.PageSize) - 1) / int64(input.PageSize))

	return &ListUsersOutput{
		Users:      result.Items,
		TotalCount: result.Total,
		Page:       input.Page,
		PageSize:   input.PageSize,
		TotalPages: totalPages,
	}, nil
}

// GetByID retrieves a single user.
func (s *UsersService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	return user, nil
}

// BulkResult reports the outcome of a bulk operation. IDs that did not
// resolve to an existing user are skipped, not failed.
type BulkResult struct {
	Processed []int64
	Skipped   []int64
}

// BlockMany blocks every existing user in ids. Blocking an already
// blocked user is a no-op that still counts as processed.
func (s *UsersService) BlockMany(ctx context.Context, ids []int64) (*BulkResult, error) {
	return s.bulkUpdate(ctx, ids, "block", func(u *domain.User) {
		u.Block()
	})
}

// UnblockMany unblocks every existing user in ids.
func (s *UsersService) UnblockMany(ctx context.Context, ids []int64) (*BulkResult, error) {
	return s.bulkUpdate(ctx, ids, "unblock", func(u *domain.User) {
		u.Unblock()
	})
}

// DeleteMany permanently removes every existing user in ids. Deleted IDs
// are never reassigned to later registrations.
func (s *UsersService) DeleteMany(ctx context.Context, ids []int64) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, domain.NewValidationError("ids", "at least one user id is required")
	}

	result := &BulkResult{}
	for _, id := range ids {
		err := s.userRepo.Delete(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to delete user")
			return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
		}
		result.Processed = append(result.Processed, id)
	}

	s.logger.Info().
		Ints64("user_ids", result.Processed).
		Int("skipped", len(result.Skipped)).
		Msg("users deleted")

	return result, nil
}

// bulkUpdate applies mutate to every existing user in ids and persists it.
func (s *UsersService) bulkUpdate(ctx context.Context, ids []int64, action string, mutate func(*domain.User)) (*BulkResult, error) {
	if len(ids) == 0 {
		return nil, domain.NewValidationError("ids", "at least one user id is required")
	}

	result := &BulkResult{}
	for _, id := range ids {
		user, err := s.userRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to get user for bulk update")
			return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
		}

		mutate(user)

		if err := s.userRepo.Update(ctx, user); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Deleted between the read and the write. Treat like an
				// unknown id.
				result.Skipped = append(result.Skipped, id)
				continue
			}
			s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to persist bulk update")
			return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
		}
		result.Processed = append(result.Processed, id)
	}

	s.logger.Info().
		Str("action", action).
		Ints64("user_ids", result.Processed).
		Int("skipped", len(result.Skipped)).
		Msg("bulk user update applied")

	return result, nil
}

// normalizeSortKey maps client sort names onto repository sort keys.
// Unknown keys fall back to sorting by id.
func normalizeSortKey(key string) string {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case repository.SortByName:
		return repository.SortByName
	case repository.SortByEmail:
		return repository.SortByEmail
	case repository.SortByLastLogin, "last_login", "lastlogindate":
		return repository.SortByLastLogin
	default:
		return repository.SortByID
	}
}

// Package service provides business logic services for Castellan.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/castellan/internal/domain"
	"github.com/prn-tf/castellan/internal/pkg/crypto"
	"github.com/prn-tf/castellan/internal/repository"
	"github.com/prn-tf/castellan/internal/token"
)

// Validation limits for user input.
const (
	MaxNameLength     = 100
	MaxEmailLength    = 256
	MinPasswordLength = 8
)

// AuthMetrics counts login and registration outcomes.
type AuthMetrics interface {
	RecordLogin(success bool)
	RecordRegistration()
}

// AuthService handles registration, login, and profile self-service.
type AuthService struct {
	userRepo repository.UserRepository
	hasher   *crypto.PasswordHasher
	issuer   *token.Issuer
	metrics  AuthMetrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repository.UserRepository, hasher *crypto.PasswordHasher, issuer *token.Issuer, logger zerolog.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
		issuer:   issuer,
		logger:   logger.With().Str("service", "auth").Logger(),
		now:      time.Now,
	}
}

// WithMetrics attaches a metrics recorder. Optional; nil-safe.
func (s *AuthService) WithMetrics(m AuthMetrics) *AuthService {
	s.metrics = m
	return s
}

func (s *AuthService) recordLogin(success bool) {
	if s.metrics != nil {
		s.metrics.RecordLogin(success)
	}
}

// RegisterInput contains the data needed to register a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// RegisterOutput contains the result of a successful registration.
type RegisterOutput struct {
	User *domain.User
}

// Register creates a new user account with a hashed password.
// The new account starts unblocked and has never logged in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)

	if err := validateRegisterInput(input); err != nil {
		return nil, err
	}

	// Check if email already exists. The unique index remains the final
	// authority: a concurrent registration still fails on Create below.
	exists, err := s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to check email existence")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	if exists {
		return nil, domain.ErrEmailTaken
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: failed to hash password", domain.ErrInternal)
	}

	user := domain.NewUser(input.Name, input.Email, passwordHash)

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, domain.ErrEmailTaken
		}
		s.logger.Error().Err(err).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if s.metrics != nil {
		s.metrics.RecordRegistration()
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("email", user.Email).
		Msg("user registered")

	return &RegisterOutput{User: user}, nil
}

// LoginInput contains login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// LoginOutput contains the result of a successful login.
type LoginOutput struct {
	User      *domain.User
	Token     string
	ExpiresIn time.Duration
}

// Login verifies credentials and returns a signed access token. Unknown
// email, wrong password, and blocked account all fail with the same
// ErrInvalidCredentials so callers cannot tell the cases apart.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginOutput, error) {
	input.Email = strings.TrimSpace(input.Email)

	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Log but do not expose whether the account exists.
			s.logger.Debug().Msg("login attempt for unknown email")
			s.recordLogin(false)
			return nil, domain.ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Msg("failed to look up user during login")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if !s.hasher.Verify(user.PasswordHash, input.Password) {
		s.logger.Debug().Int64("user_id", user.ID).Msg("invalid password during login")
		s.recordLogin(false)
		return nil, domain.ErrInvalidCredentials
	}

	if !user.CanAuthenticate() {
		s.logger.Debug().Int64("user_id", user.ID).Msg("blocked user attempted login")
		s.recordLogin(false)
		return nil, domain.ErrInvalidCredentials
	}

	user.StampLastLogin(s.now())
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to record last login")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	tok, err := s.issuer.Issue(user)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to issue token")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	s.recordLogin(true)
	s.logger.Info().
		Int64("user_id", user.ID).
		Msg("user logged in")

	return &LoginOutput{
		User:      user,
		Token:     tok,
		ExpiresIn: s.issuer.TTL(),
	}, nil
}

// GetProfile returns the profile of the given user.
func (s *AuthService) GetProfile(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}
	return user, nil
}

// UpdateProfileInput contains the data for a profile update.
type UpdateProfileInput struct {
	UserID int64
	Name   string
	Email  string
}

// UpdateProfile changes the user's display name and email. The email must
// stay unique case-insensitively; taking another user's email fails with
// ErrEmailTaken.
func (s *AuthService) UpdateProfile(ctx context.Context, input UpdateProfileInput) (*domain.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)

	if err := validateName(input.Name); err != nil {
		return nil, err
	}
	if err := validateEmail(input.Email); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	// Changing the email to a different casing of your own address is
	// allowed; only another user's email is a conflict.
	if !strings.EqualFold(user.Email, input.Email) {
		exists, err := s.userRepo.ExistsByEmail(ctx, input.Email)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
		}
		if exists {
			return nil, domain.ErrEmailTaken
		}
	}

	user.Name = input.Name
	user.Email = input.Email
	user.UpdatedAt = s.now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, domain.ErrEmailTaken
		}
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to update profile")
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("profile updated")
	return user, nil
}

// UpdatePasswordInput contains the data for a password change.
type UpdatePasswordInput struct {
	UserID          int64
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// UpdatePassword changes the user's password. The new password and its
// confirmation are checked before anything touches the store, then the
// current password is verified against the stored hash.
func (s *AuthService) UpdatePassword(ctx context.Context, input UpdatePasswordInput) error {
	if input.NewPassword != input.ConfirmPassword {
		return domain.NewValidationError("confirmPassword", "passwords do not match")
	}
	if err := validatePassword(input.NewPassword); err != nil {
		return err
	}

	user, err := s.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	if !s.hasher.Verify(user.PasswordHash, input.CurrentPassword) {
		s.logger.Debug().Int64("user_id", user.ID).Msg("wrong current password during password change")
		return domain.ErrInvalidCredentials
	}

	newHash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("%w: failed to hash password", domain.ErrInternal)
	}

	user.PasswordHash = newHash
	user.UpdatedAt = s.now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("password updated")
	return nil
}

// validateRegisterInput validates the input for registering a user.
func validateRegisterInput(input RegisterInput) error {
	if err := validateName(input.Name); err != nil {
		return err
	}
	if err := validateEmail(input.Email); err != nil {
		return err
	}
	return validatePassword(input.Password)
}

func validateName(name string) error {
	if name == "" {
		return domain.NewValidationError("name", "name is required")
	}
	if len(name) > MaxNameLength {
		return domain.NewValidationError("name", fmt.Sprintf("name must be at most %d characters", MaxNameLength))
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return domain.NewValidationError("email", "email is required")
	}
	if len(email) > MaxEmailLength {
		return domain.NewValidationError("email", fmt.Sprintf("email must be at most %d characters", MaxEmailLength))
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.NewValidationError("email", "invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.NewValidationError("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	return nil
}

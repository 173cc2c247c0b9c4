// Package auth provides bearer-token authentication for Castellan.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/prn-tf/castellan/internal/domain"
	"github.com/prn-tf/castellan/internal/repository"
	"github.com/prn-tf/castellan/internal/token"
)

// AuthorizationHeader is the header carrying the bearer token.
const AuthorizationHeader = "Authorization"

const bearerPrefix = "Bearer "

// TokenVerifier validates a signed access token and returns its claims.
type TokenVerifier interface {
	Parse(tokenString string) (*token.Claims, error)
}

// UserStore defines the user lookup the middleware needs.
// The lookup runs on every authenticated request so that blocking or
// deleting an account invalidates outstanding tokens immediately.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// Config contains configuration for the auth middleware.
type Config struct {
	// SkipPaths are paths that skip authentication.
	SkipPaths []string
}

// DefaultConfig returns the default auth configuration.
func DefaultConfig() Config {
	return Config{
		SkipPaths: []string{"/health", "/metrics"},
	}
}

// Middleware creates an authentication middleware. Requests must carry a
// valid bearer token whose subject resolves to an existing, unblocked user.
func Middleware(verifier TokenVerifier, store UserStore, config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Check if path should skip authentication
			for _, path := range config.SkipPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			authCtx, err := authenticate(r, verifier, store)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("authentication failed")
				writeAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}

// authenticate validates the bearer token and resolves its subject against
// the user store.
func authenticate(r *http.Request, verifier TokenVerifier, store UserStore) (*AuthContext, error) {
	raw, err := extractBearerToken(r)
	if err != nil {
		return nil, err
	}

	claims, err := verifier.Parse(raw)
	if err != nil {
		return nil, ErrInvalidToken
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}

	// The token's claims are a snapshot taken at login. Authorization
	// decisions use the live record: a deleted subject gets 401, a
	// blocked one 403, regardless of what the token says.
	user, err := store.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if user.IsBlocked {
		return nil, ErrAccountBlocked
	}

	return &AuthContext{
		UserID:  user.ID,
		Name:    user.Name,
		Email:   user.Email,
		TokenID: claims.ID,
	}, nil
}

// extractBearerToken pulls the token out of the Authorization header.
func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get(AuthorizationHeader)
	if header == "" {
		return "", ErrMissingAuthorizationHeader
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrInvalidAuthorizationHeader
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if raw == "" {
		return "", ErrInvalidAuthorizationHeader
	}
	return raw, nil
}

// writeAuthError writes a JSON error response for a failed authentication.
func writeAuthError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	})
}

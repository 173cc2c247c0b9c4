package auth

import "errors"

// Authentication and authorization errors returned by the access gate.
var (
	// ErrMissingAuthorizationHeader indicates no Authorization header was sent.
	ErrMissingAuthorizationHeader = errors.New("missing Authorization header")

	// ErrInvalidAuthorizationHeader indicates the Authorization header is not
	// a well-formed Bearer scheme.
	ErrInvalidAuthorizationHeader = errors.New("invalid Authorization header")

	// ErrInvalidToken indicates the bearer token failed signature or claim
	// validation, or the subject no longer exists.
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrAccountBlocked indicates the token is valid but the account behind
	// it is currently blocked.
	ErrAccountBlocked = errors.New("account is blocked")

	// ErrAccessDenied indicates the request is not authenticated.
	ErrAccessDenied = errors.New("access denied")
)

// HTTPStatus maps an auth error to its HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrAccountBlocked):
		return 403
	case errors.Is(err, ErrMissingAuthorizationHeader),
		errors.Is(err, ErrInvalidAuthorizationHeader),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrAccessDenied):
		return 401
	default:
		return 500
	}
}

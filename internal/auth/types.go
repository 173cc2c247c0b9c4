package auth

import "context"

// contextKey is an unexported type for context keys defined in this package.
type contextKey struct{}

// AuthContextKey is the context key under which the AuthContext is stored.
var AuthContextKey = contextKey{}

// AuthContext carries the authenticated identity through a request.
// It reflects the current database record, not the token snapshot:
// the middleware re-reads the user on every request so that block and
// delete operations take effect immediately.
type AuthContext struct {
	// UserID is the numeric ID of the authenticated user.
	UserID int64

	// Name is the user's current display name.
	Name string

	// Email is the user's current email address.
	Email string

	// TokenID is the jti claim of the presented token.
	TokenID string
}

// WithAuthContext returns a new context carrying the given AuthContext.
func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, authCtx)
}

// GetAuthContext retrieves the AuthContext from a request context.
func GetAuthContext(ctx context.Context) *AuthContext {
	if authCtx, ok := ctx.Value(AuthContextKey).(*AuthContext); ok {
		return authCtx
	}
	return nil
}

// RequireAuth is a helper to get auth context or return error.
func RequireAuth(ctx context.Context) (*AuthContext, error) {
	authCtx := GetAuthContext(ctx)
	if authCtx == nil {
		return nil, ErrAccessDenied
	}
	return authCtx, nil
}

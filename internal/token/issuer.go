package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/prn-tf/castellan/internal/domain"
)

// Configuration errors. These are wiring-time failures: a service must not
// start with an unusable issuer.
var (
	// ErrMissingSecret indicates the signing secret is unset.
	ErrMissingSecret = errors.New("token signing secret is not configured")

	// ErrMissingIssuer indicates the issuer claim value is unset.
	ErrMissingIssuer = errors.New("token issuer is not configured")

	// ErrMissingAudience indicates the audience claim value is unset.
	ErrMissingAudience = errors.New("token audience is not configured")

	// ErrInvalidToken indicates the token failed verification: bad
	// signature, wrong issuer or audience, expired, or malformed.
	ErrInvalidToken = errors.New("invalid token")
)

// Config holds the immutable settings for token issuance. It is built once
// at startup and injected by constructor, never read from a mutable global.
type Config struct {
	// Secret is the symmetric HMAC-SHA-256 signing secret.
	Secret string

	// Issuer is the iss claim stamped on every token and required back
	// during verification.
	Issuer string

	// Audience is the aud claim stamped on every token and required back
	// during verification.
	Audience string

	// TTL is the token lifetime. Zero means the default of one hour.
	TTL time.Duration
}

// DefaultTTL is the token lifetime used when Config.TTL is zero.
const DefaultTTL = time.Hour

// Issuer mints and verifies signed user tokens.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration

	// now is the clock, swappable in tests.
	now func() time.Time
}

// NewIssuer creates an Issuer, failing fast on incomplete configuration.
func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.Issuer == "" {
		return nil, ErrMissingIssuer
	}
	if cfg.Audience == "" {
		return nil, ErrMissingAudience
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	return &Issuer{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Issue mints a signed token for the user. The token carries subject (user
// id), a unique jti, name, email, and the blocked snapshot, and expires
// TTL after issuance (UTC).
func (i *Issuer) Issue(user *domain.User) (string, error) {
	now := i.now().UTC()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Name:    user.Name,
		Email:   user.Email,
		Blocked: strconv.FormatBool(user.IsBlocked),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token string and returns its claims. Signature, signing
// method, issuer, audience, and expiry are all checked; any failure maps to
// ErrInvalidToken.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

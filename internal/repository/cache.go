// Package repository defines data access interfaces for Castellan.
package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/castellan/internal/domain"
)

// Cache defines the interface for caching operations.
// Implemented by Redis for multi-instance deployments and by an in-memory
// cache for single-node deployments.
type Cache interface {
	// Get retrieves a value by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an optional TTL.
	// If ttl is 0, the value doesn't expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists.
	Exists(ctx context.Context, key string) (bool, error)
}

// CacheKeys generates cache keys for user lookups.
var CacheKeys = cacheKeys{}

type cacheKeys struct{}

// UserByID returns a cache key for a user looked up by ID.
func (cacheKeys) UserByID(id int64) string {
	return "cache:user:id:" + strconv.FormatInt(id, 10)
}

// UserByEmail returns a cache key for a user looked up by email.
// Emails are unique case-insensitively, so the key is lowercased.
func (cacheKeys) UserByEmail(email string) string {
	return "cache:user:email:" + strings.ToLower(email)
}

// cachedUserRepository decorates a UserRepository with read-through caching
// for the point lookups the access gate performs on every request. Every
// mutation invalidates the affected keys, so a block applied by an admin is
// visible to the gate on the next request.
type cachedUserRepository struct {
	inner  UserRepository
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedUserRepository wraps repo with a read-through cache.
func NewCachedUserRepository(repo UserRepository, cache Cache, ttl time.Duration, logger zerolog.Logger) UserRepository {
	return &cachedUserRepository{
		inner:  repo,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "user_cache").Logger(),
	}
}

func (r *cachedUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := r.inner.Create(ctx, user); err != nil {
		return err
	}
	// A stale negative lookup may exist for this email.
	r.invalidate(ctx, user)
	return nil
}

func (r *cachedUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	key := CacheKeys.UserByID(id)
	if user, ok := r.cached(ctx, key); ok {
		return user, nil
	}

	user, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, user)
	return user, nil
}

func (r *cachedUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	key := CacheKeys.UserByEmail(email)
	if user, ok := r.cached(ctx, key); ok {
		return user, nil
	}

	user, err := r.inner.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, user)
	return user, nil
}

func (r *cachedUserRepository) Update(ctx context.Context, user *domain.User) error {
	// The email may be changing, so the previously stored email key has to
	// go too. Fetch it before the write.
	prev, prevErr := r.inner.GetByID(ctx, user.ID)

	if err := r.inner.Update(ctx, user); err != nil {
		return err
	}

	// Invalidate after the write commits. Dropping the keys before the
	// write would let a concurrent read re-populate the cache from the
	// pre-update row and serve it for the full TTL.
	if prevErr == nil {
		r.invalidate(ctx, prev)
	}
	r.invalidate(ctx, user)
	return nil
}

func (r *cachedUserRepository) Delete(ctx context.Context, id int64) error {
	user, getErr := r.inner.GetByID(ctx, id)

	if err := r.inner.Delete(ctx, id); err != nil {
		return err
	}

	// Same ordering as Update: keys drop only once the row is gone.
	if getErr == nil {
		r.invalidate(ctx, user)
	} else {
		_ = r.cache.Delete(ctx, CacheKeys.UserByID(id))
	}
	return nil
}

func (r *cachedUserRepository) List(ctx context.Context, opts ListOptions) (*ListResult[domain.User], error) {
	// List results are not cached; the admin listing must reflect
	// block/unblock/delete immediately.
	return r.inner.List(ctx, opts)
}

func (r *cachedUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.inner.ExistsByEmail(ctx, email)
}

// cacheEntry is the serialized form of a user. domain.User hides the
// password hash from JSON, which the cache must keep: login verifies the
// hash on users read through GetByEmail.
type cacheEntry struct {
	User         domain.User `json:"user"`
	PasswordHash string      `json:"password_hash"`
}

func (r *cachedUserRepository) cached(ctx context.Context, key string) (*domain.User, bool) {
	data, err := r.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("corrupt cache entry, dropping")
		_ = r.cache.Delete(ctx, key)
		return nil, false
	}
	user := entry.User
	user.PasswordHash = entry.PasswordHash
	return &user, true
}

func (r *cachedUserRepository) store(ctx context.Context, key string, user *domain.User) {
	data, err := json.Marshal(cacheEntry{User: *user, PasswordHash: user.PasswordHash})
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
		r.logger.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (r *cachedUserRepository) invalidate(ctx context.Context, user *domain.User) {
	_ = r.cache.Delete(ctx, CacheKeys.UserByID(user.ID))
	_ = r.cache.Delete(ctx, CacheKeys.UserByEmail(user.Email))
}

// Ensure cachedUserRepository implements UserRepository.
var _ UserRepository = (*cachedUserRepository)(nil)

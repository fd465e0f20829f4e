package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is the shared key/value store behind profile lookups and the token
// revocation list. MemoryCache serves single-instance deployments and tests;
// RedisCache lets several API instances share revocations.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// Clear removes all entries owned by this cache.
	Clear(ctx context.Context) error

	// Close releases background resources.
	Close() error
}

// CacheError is a sentinel error returned by Cache implementations.
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"
)

// Key namespaces.
const (
	profilePrefix = "profile:"
	revokedPrefix = "revoked:"
	activePrefix  = "active:"
)

// ProfileKey is the key of a cached user profile.
func ProfileKey(userID string) string { return profilePrefix + userID }

// ActiveKey marks a token id whose session row was recently confirmed.
func ActiveKey(tokenID string) string { return activePrefix + tokenID }

// RevokedKey is the key marking a token id as logged out.
func RevokedKey(tokenID string) string { return revokedPrefix + tokenID }

// GetJSON decodes the cached value of key into dst.
func GetJSON(ctx context.Context, c Cache, key string, dst any) error {
	raw, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl)
}

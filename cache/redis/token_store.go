// Package redis provides a Redis-backed implementation of the token
// cache, for deployments where token validation fans out across
// multiple server instances.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go.tasknest.io/auth/cache"
	serrors "go.tasknest.io/auth/errors"
)

// TokenStore implements cache.TokenStore using Redis.
type TokenStore struct {
	client *redis.Client
	prefix string // Optional prefix for keys
}

// NewTokenStore creates a new [TokenStore] instance.
func NewTokenStore(client *redis.Client, prefix string) *TokenStore {
	return &TokenStore{
		client: client,
		prefix: prefix,
	}
}

// redisKey returns the Redis key for a given token. Keys carry the
// token hash, never the raw token value.
func (r *TokenStore) redisKey(tokenValue string) string {
	return fmt.Sprintf("%s:token:%s", r.prefix, cache.HashToken(tokenValue))
}

// Set stores a token entry with a TTL matching the token expiry.
func (r *TokenStore) Set(ctx context.Context, tokenValue string, entry *cache.TokenEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal token entry: %w", err)
	}

	if err := r.client.Set(ctx, r.redisKey(tokenValue), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set token in redis: %w", err)
	}

	return nil
}

// Get retrieves a token entry.
func (r *TokenStore) Get(ctx context.Context, tokenValue string) (*cache.TokenEntry, error) {
	payload, err := r.client.Get(ctx, r.redisKey(tokenValue)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, serrors.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token from redis: %w", err)
	}

	var entry cache.TokenEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token entry: %w", err)
	}

	if time.Now().After(entry.ExpiresAt) {
		return nil, serrors.ErrTokenNotFound
	}

	return &entry, nil
}

// Delete removes a token entry.
func (r *TokenStore) Delete(ctx context.Context, tokenValue string) error {
	return r.client.Del(ctx, r.redisKey(tokenValue)).Err()
}

// Clear removes every entry under the store prefix.
func (r *TokenStore) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, fmt.Sprintf("%s:token:*", r.prefix), 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Count returns the number of cached entries under the store prefix.
func (r *TokenStore) Count(ctx context.Context) int {
	var count int
	iter := r.client.Scan(ctx, 0, fmt.Sprintf("%s:token:*", r.prefix), 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	return count
}

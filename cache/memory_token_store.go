package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	serrors "go.tasknest.io/auth/errors"
)

// MemoryTokenStore implements TokenStore using ttlcache.
type MemoryTokenStore struct {
	cache *ttlcache.Cache[string, *TokenEntry]
}

// NewMemoryTokenStore creates a new in-memory token store with automatic
// expiry-driven cleanup.
func NewMemoryTokenStore(defaultTTL time.Duration) *MemoryTokenStore {
	c := ttlcache.New(
		ttlcache.WithTTL[string, *TokenEntry](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, *TokenEntry](),
	)

	// Start the cleanup process
	go c.Start()

	return &MemoryTokenStore{cache: c}
}

// Set implements TokenStore.Set.
func (s *MemoryTokenStore) Set(_ context.Context, tokenValue string, entry *TokenEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	s.cache.Set(HashToken(tokenValue), entry, ttl)
	return nil
}

// Get implements TokenStore.Get.
func (s *MemoryTokenStore) Get(_ context.Context, tokenValue string) (*TokenEntry, error) {
	item := s.cache.Get(HashToken(tokenValue))
	if item == nil {
		return nil, serrors.ErrTokenNotFound
	}

	entry := item.Value()
	if time.Now().After(entry.ExpiresAt) {
		s.cache.Delete(HashToken(tokenValue))
		return nil, serrors.ErrTokenNotFound
	}

	return entry, nil
}

// Delete implements TokenStore.Delete.
func (s *MemoryTokenStore) Delete(_ context.Context, tokenValue string) error {
	s.cache.Delete(HashToken(tokenValue))
	return nil
}

// Clear implements TokenStore.Clear.
func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.cache.DeleteAll()
	return nil
}

// Count implements TokenStore.Count.
func (s *MemoryTokenStore) Count(_ context.Context) int {
	return s.cache.Len()
}

// Close stops the background cleanup goroutine.
func (s *MemoryTokenStore) Close() {
	s.cache.Stop()
}

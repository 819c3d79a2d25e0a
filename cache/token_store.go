package cache

import (
	"context"
	"time"

	"go.tasknest.io/auth/domain"
)

// TokenEntry represents a cached access token entry.
type TokenEntry struct {
	ID        string       `redis:"id"`        // Unique token identifier
	ClientID  string       `redis:"clientId"`  // Client that requested the token
	UserID    string       `redis:"userId"`    // User who authorized the token
	Scope     domain.Scope `redis:"scope"`     // Authorized scopes
	ExpiresAt time.Time    `redis:"expiresAt"` // Expiration timestamp
}

// TokenStore is the short-lived access token cache in front of the
// durable token repository. It is advisory: misses fall through to the
// repository, and entries never outlive the token expiry.
type TokenStore interface {
	Set(ctx context.Context, tokenValue string, entry *TokenEntry) error
	Get(ctx context.Context, tokenValue string) (*TokenEntry, error)
	Delete(ctx context.Context, tokenValue string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) int
}

// Package oauth2 implements the protocol core of the authorization
// server: the token issuer, the PKCE verifier, and one grant handler
// per supported grant type.
package oauth2

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.tasknest.io/auth/cache"
	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
	"go.tasknest.io/auth/internal/metrics"
)

// storeAttempts bounds collision retries when persisting a fresh token
// value. With 256-bit values a second attempt is already unreachable in
// practice; the unique storage constraint is the backstop.
const storeAttempts = 3

// TokenIssuer mints, looks up and revokes opaque tokens. It exclusively
// owns creation and destruction of token rows.
type TokenIssuer struct {
	repo       domain.TokenRepository
	cache      cache.TokenStore
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenIssuer creates a TokenIssuer. accessTTL is the server-wide
// access token lifetime, refreshTTL the substantially longer refresh
// token lifetime.
func NewTokenIssuer(repo domain.TokenRepository, tokenCache cache.TokenStore, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		repo:       repo,
		cache:      tokenCache,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTokenTTL returns the configured access token lifetime.
func (s *TokenIssuer) AccessTokenTTL() time.Duration {
	return s.accessTTL
}

// MintOptions carries the parameters of a token mint.
type MintOptions struct {
	// UserID the tokens act on behalf of. Empty only for flows with no
	// end user would be a misconfiguration; client_credentials tokens
	// carry the client's owner user.
	UserID string
	// ClientID the tokens are issued to.
	ClientID string
	// Scope bound to the tokens.
	Scope domain.Scope
	// IssueRefresh mints a refresh token alongside the access token.
	IssueRefresh bool
	// FamilyID ties a rotated refresh token to its lineage. Empty starts
	// a new family.
	FamilyID string
}

// Mint creates and persists a fresh access token and, when requested, a
// refresh token. Values come from a cryptographically secure source
// with 256 bits of entropy; uniqueness is enforced by the storage layer
// and retried on the (theoretical) collision.
func (s *TokenIssuer) Mint(ctx context.Context, opts MintOptions) (*domain.TokenPair, error) {
	now := time.Now().UTC()

	access := &domain.Token{
		ID:         uuid.NewString(),
		TokenType:  domain.TokenTypeAccess,
		ClientID:   opts.ClientID,
		UserID:     opts.UserID,
		Scope:      opts.Scope.Clone(),
		ExpiresAt:  now.Add(s.accessTTL),
		CreatedAt:  now,
		LastUsedAt: now,
	}
	if err := s.storeWithFreshValue(ctx, access); err != nil {
		return nil, err
	}

	pair := &domain.TokenPair{AccessToken: access}

	if opts.IssueRefresh {
		familyID := opts.FamilyID
		if familyID == "" {
			familyID = uuid.NewString()
		}
		refresh := &domain.Token{
			ID:            uuid.NewString(),
			TokenType:     domain.TokenTypeRefresh,
			ClientID:      opts.ClientID,
			UserID:        opts.UserID,
			Scope:         opts.Scope.Clone(),
			FamilyID:      familyID,
			AccessTokenID: access.ID,
			ExpiresAt:     now.Add(s.refreshTTL),
			CreatedAt:     now,
			LastUsedAt:    now,
		}
		if err := s.storeWithFreshValue(ctx, refresh); err != nil {
			// The access token row is already persisted; revoke it so a
			// failed mint leaves nothing redeemable behind.
			if revokeErr := s.repo.RevokeToken(ctx, access.TokenValue); revokeErr != nil {
				log.Error().Err(revokeErr).Str("token_id", access.ID).Msg("failed to revoke access token after refresh store failure")
			}
			return nil, err
		}
		pair.RefreshToken = refresh
	}

	if err := s.cache.Set(ctx, access.TokenValue, &cache.TokenEntry{
		ID:        access.ID,
		ClientID:  access.ClientID,
		UserID:    access.UserID,
		Scope:     access.Scope,
		ExpiresAt: access.ExpiresAt,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to cache access token")
	}

	return pair, nil
}

// storeWithFreshValue assigns a new random value and persists the
// token, regenerating on a storage uniqueness violation.
func (s *TokenIssuer) storeWithFreshValue(ctx context.Context, token *domain.Token) error {
	for attempt := 0; attempt < storeAttempts; attempt++ {
		value, err := generateSecret(tokenValueLength)
		if err != nil {
			return fmt.Errorf("failed to generate token value: %w", err)
		}
		token.TokenValue = value

		err = s.repo.StoreToken(ctx, token)
		if err == nil {
			return nil
		}
		if !errors.Is(err, serrors.ErrTokenValueExists) {
			return fmt.Errorf("failed to store token: %w", err)
		}
		log.Warn().Str("token_id", token.ID).Int("attempt", attempt+1).Msg("token value collision, regenerating")
	}
	return fmt.Errorf("failed to store token after %d attempts: %w", storeAttempts, serrors.ErrTokenValueExists)
}

// Lookup resolves an access token value to its live metadata, checking
// the cache first. Expiry is evaluated lazily at read time.
func (s *TokenIssuer) Lookup(ctx context.Context, tokenValue string) (*domain.Token, error) {
	// Revocation evicts the cache entry, so a hit here is always live.
	if entry, err := s.cache.Get(ctx, tokenValue); err == nil {
		return &domain.Token{
			ID:        entry.ID,
			TokenType: domain.TokenTypeAccess,
			ClientID:  entry.ClientID,
			UserID:    entry.UserID,
			Scope:     entry.Scope,
			ExpiresAt: entry.ExpiresAt,
		}, nil
	}

	token, err := s.repo.GetAccessToken(ctx, tokenValue)
	if err != nil {
		return nil, serrors.ErrTokenNotFound
	}
	if token.IsExpired(time.Now().UTC()) {
		return nil, serrors.ErrTokenNotFound
	}
	return token, nil
}

// Revoke marks the token with the given value as revoked and drops it
// from the cache. Revoking an unknown value is not an error (RFC 7009).
func (s *TokenIssuer) Revoke(ctx context.Context, tokenValue string) error {
	if err := s.repo.RevokeToken(ctx, tokenValue); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if err := s.cache.Delete(ctx, tokenValue); err != nil {
		log.Warn().Err(err).Msg("failed to evict revoked token from cache")
	}
	metrics.TokensRevokedTotal.Inc()
	return nil
}

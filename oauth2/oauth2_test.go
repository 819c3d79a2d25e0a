package oauth2

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.tasknest.io/auth/cache"
	"go.tasknest.io/auth/clients"
	"go.tasknest.io/auth/domain"
	"go.tasknest.io/auth/memory"
)

// fixture wires the grant handlers against the in-memory store, the way
// main wires them against MongoDB.
type fixture struct {
	store    *memory.Store
	registry *clients.Registry
	issuer   *TokenIssuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	tokenCache := cache.NewMemoryTokenStore(time.Minute)
	t.Cleanup(tokenCache.Close)

	return &fixture{
		store:    store,
		registry: clients.NewRegistry(store),
		issuer:   NewTokenIssuer(store, tokenCache, time.Hour, 24*time.Hour),
	}
}

func (f *fixture) confidentialClient(t *testing.T, grants ...domain.GrantType) *domain.Client {
	t.Helper()

	cli := &domain.Client{
		ID:                "web-app",
		Type:              domain.ClientTypeConfidential,
		Name:              "TaskNest Web",
		RedirectURIs:      []string{"https://app.tasknest.io/callback"},
		AllowedGrantTypes: grants,
		AllowedScopes:     domain.Scope{"tasks:read", "tasks:write", "projects:read"},
		OwnerUserID:       "user-owner",
	}
	require.NoError(t, f.registry.RegisterClient(context.Background(), cli, "s3cret"))
	return cli
}

func (f *fixture) publicClient(t *testing.T, grants ...domain.GrantType) *domain.Client {
	t.Helper()

	cli := &domain.Client{
		ID:                "cli-tool",
		Type:              domain.ClientTypePublic,
		Name:              "TaskNest CLI",
		RedirectURIs:      []string{"http://127.0.0.1:8910/callback"},
		AllowedGrantTypes: grants,
		AllowedScopes:     domain.Scope{"tasks:read", "tasks:write"},
	}
	require.NoError(t, f.registry.RegisterClient(context.Background(), cli, ""))
	return cli
}

// saveAuthCode stores a code row directly, bypassing the issuance
// validation, so expiry and mismatch cases are easy to set up.
func (f *fixture) saveAuthCode(t *testing.T, code *domain.AuthCode) {
	t.Helper()

	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	if code.ExpiresAt.IsZero() {
		code.ExpiresAt = code.CreatedAt.Add(10 * time.Minute)
	}
	require.NoError(t, f.store.SaveAuthCode(context.Background(), code))
}

func (f *fixture) saveDeviceAuth(t *testing.T, auth *domain.DeviceAuth) {
	t.Helper()

	if auth.CreatedAt.IsZero() {
		auth.CreatedAt = time.Now().UTC()
	}
	if auth.ExpiresAt.IsZero() {
		auth.ExpiresAt = auth.CreatedAt.Add(15 * time.Minute)
	}
	require.NoError(t, f.store.SaveDeviceAuth(context.Background(), auth))
}

package clients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
	"go.tasknest.io/auth/memory"
)

func newTestRegistry(t *testing.T) (*Registry, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewRegistry(store), store
}

func registerConfidential(t *testing.T, r *Registry) *domain.Client {
	t.Helper()
	cli := &domain.Client{
		ID:                "web-app",
		Type:              domain.ClientTypeConfidential,
		AllowedGrantTypes: []domain.GrantType{domain.GrantTypeAuthorizationCode, domain.GrantTypeRefreshToken},
		AllowedScopes:     domain.Scope{"tasks:read", "tasks:write"},
	}
	require.NoError(t, r.RegisterClient(context.Background(), cli, "s3cret"))
	return cli
}

func registerPublic(t *testing.T, r *Registry) *domain.Client {
	t.Helper()
	cli := &domain.Client{
		ID:                "cli-tool",
		Type:              domain.ClientTypePublic,
		AllowedGrantTypes: []domain.GrantType{domain.GrantTypeDeviceCode},
		AllowedScopes:     domain.Scope{"tasks:read"},
	}
	require.NoError(t, r.RegisterClient(context.Background(), cli, ""))
	return cli
}

func TestRegistry_RegisterClient_HashesSecret(t *testing.T) {
	r, store := newTestRegistry(t)
	registerConfidential(t, r)

	stored, err := store.GetClient(context.Background(), "web-app")
	require.NoError(t, err)

	assert.True(t, stored.Active)
	assert.NotEqual(t, "s3cret", stored.SecretHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.SecretHash), []byte("s3cret")))
}

func TestRegistry_RegisterClient_ConfidentialRequiresSecret(t *testing.T) {
	r, _ := newTestRegistry(t)

	err := r.RegisterClient(context.Background(), &domain.Client{
		ID: "web-app", Type: domain.ClientTypeConfidential,
	}, "")
	assert.Error(t, err)
}

func TestRegistry_Authenticate(t *testing.T) {
	r, _ := newTestRegistry(t)
	registerConfidential(t, r)

	cli, err := r.Authenticate(context.Background(), "web-app", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "web-app", cli.ID)
}

func TestRegistry_Authenticate_WrongSecret(t *testing.T) {
	r, _ := newTestRegistry(t)
	registerConfidential(t, r)

	_, err := r.Authenticate(context.Background(), "web-app", "wrong")
	oauthErr := requireOAuthError(t, err, serrors.InvalidClient)
	assert.NotContains(t, oauthErr.Description, "secret", "must not hint at which credential part failed")
}

func TestRegistry_Authenticate_UnknownClient(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Authenticate(context.Background(), "ghost", "s3cret")
	requireOAuthError(t, err, serrors.InvalidClient)
}

func TestRegistry_Authenticate_EmptyClientID(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Authenticate(context.Background(), "", "")
	requireOAuthError(t, err, serrors.InvalidClient)
}

func TestRegistry_Authenticate_DeactivatedClient(t *testing.T) {
	r, store := newTestRegistry(t)
	registerConfidential(t, r)
	require.NoError(t, store.DeactivateClient(context.Background(), "web-app"))

	// Indistinguishable from an unknown client.
	_, err := r.Authenticate(context.Background(), "web-app", "s3cret")
	requireOAuthError(t, err, serrors.InvalidClient)
}

func TestRegistry_Authenticate_PublicClient(t *testing.T) {
	r, _ := newTestRegistry(t)
	registerPublic(t, r)

	cli, err := r.Authenticate(context.Background(), "cli-tool", "")
	require.NoError(t, err)
	assert.True(t, cli.IsPublic())

	// A public client presenting a secret is suspicious and refused.
	_, err = r.Authenticate(context.Background(), "cli-tool", "anything")
	requireOAuthError(t, err, serrors.InvalidClient)
}

func TestRegistry_Lookup(t *testing.T) {
	r, store := newTestRegistry(t)
	registerConfidential(t, r)

	cli, err := r.Lookup(context.Background(), "web-app")
	require.NoError(t, err)
	assert.Equal(t, "web-app", cli.ID)

	_, err = r.Lookup(context.Background(), "ghost")
	requireOAuthError(t, err, serrors.InvalidClient)

	require.NoError(t, store.DeactivateClient(context.Background(), "web-app"))
	_, err = r.Lookup(context.Background(), "web-app")
	requireOAuthError(t, err, serrors.InvalidClient)
}

func TestRegistry_AuthorizeGrant(t *testing.T) {
	r, _ := newTestRegistry(t)
	cli := registerConfidential(t, r)

	assert.NoError(t, r.AuthorizeGrant(cli, domain.GrantTypeAuthorizationCode))

	// Unlisted grant types are rejected, never implicitly allowed.
	err := r.AuthorizeGrant(cli, domain.GrantTypeClientCredentials)
	requireOAuthError(t, err, serrors.UnauthorizedClient)

	noGrants := &domain.Client{ID: "bare", Type: domain.ClientTypeConfidential}
	err = r.AuthorizeGrant(noGrants, domain.GrantTypeAuthorizationCode)
	requireOAuthError(t, err, serrors.UnauthorizedClient)
}

func TestRegistry_AuthorizeScopes(t *testing.T) {
	r, _ := newTestRegistry(t)
	cli := registerConfidential(t, r)

	scope, err := r.AuthorizeScopes(cli, domain.Scope{"tasks:read"})
	require.NoError(t, err)
	assert.Equal(t, domain.Scope{"tasks:read"}, scope)

	// Empty request falls back to the client's full default set.
	scope, err = r.AuthorizeScopes(cli, nil)
	require.NoError(t, err)
	assert.Equal(t, cli.AllowedScopes, scope)

	_, err = r.AuthorizeScopes(cli, domain.Scope{"tasks:read", "admin:everything"})
	oauthErr := requireOAuthError(t, err, serrors.InvalidScope)
	assert.Contains(t, oauthErr.Description, "admin:everything")
}

func requireOAuthError(t *testing.T, err error, code string) *serrors.OAuth2Error {
	t.Helper()

	require.Error(t, err)
	oauthErr, ok := err.(*serrors.OAuth2Error)
	require.True(t, ok, "expected *OAuth2Error, got %T: %v", err, err)
	require.Equal(t, code, oauthErr.Code)
	return oauthErr
}

package oauth2

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
)

// mintPair issues an initial token pair the way the authorization code
// grant would, returning the refresh token value.
func mintPair(t *testing.T, f *fixture, cli *domain.Client, scope domain.Scope) *domain.TokenPair {
	t.Helper()

	pair, err := f.issuer.Mint(context.Background(), MintOptions{
		UserID:       "user-1",
		ClientID:     cli.ID,
		Scope:        scope,
		IssueRefresh: true,
	})
	require.NoError(t, err)
	return pair
}

func TestRefreshTokenGrant_Token_Rotating(t *testing.T) {
	f := newFixture(t)
	cli := f.confidentialClient(t, domain.GrantTypeRefreshToken)
	g := NewRefreshTokenGrant(f.store, f.issuer, true)

	pair := mintPair(t, f, cli, domain.Scope{"tasks:read", "tasks:write"})

	resp, err := g.Token(context.Background(), &TokenRequest{
		RefreshToken: pair.RefreshToken.TokenValue,
	}, cli)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	assert.NotEqual(t, pair.RefreshToken.TokenValue, resp.RefreshToken, "rotation must issue a new refresh token")
	assert.Equal(t, "tasks:read tasks:write", resp.Scope)

	// The replacement belongs to the same family.
	replacement, err := f.store.GetRefreshToken(context.Background(), resp.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken.FamilyID, replacement.FamilyID)
}

func TestRefreshTokenGrant_Token_ReplayRevokesFamily(t *testing.T) {
	f := newFixture(t)
	cli := f.confidentialClient(t, domain.GrantTypeRefreshToken)
	g := NewRefreshTokenGrant(f.store, f.issuer, true)

	pair := mintPair(t, f, cli, domain.Scope{"tasks:read"})
	original := pair.RefreshToken.TokenValue

	resp, err := g.Token(context.Background(), &TokenRequest{RefreshToken: original}, cli)
	require.NoError(t, err)

	// Replaying the rotated-out token is treated as theft.
	_, err = g.Token(context.Background(), &TokenRequest{RefreshToken: original}, cli)
	requireOAuthError(t, err, serrors.InvalidGrant)

	// The replacement was revoked along with the rest of the family.
	_, err = g.Token(context.Background(), &TokenRequest{RefreshToken: resp.RefreshToken}, cli)
	requireOAuthError(t, err, serrors.InvalidGrant)
}

func TestRefreshTokenGrant_Token_NonRotating(t *testing.T) {
	f := newFixture(t)
	cli := f.confidentialClient(t, domain.GrantTypeRefreshToken)
	g := NewRefreshTokenGrant(f.store, f.issuer, false)

	pair := mintPair(t, f, cli, domain.Scope{"tasks:read"})

	resp, err := g.Token(context.Background(), &TokenRequest{
		RefreshToken: pair.RefreshToken.TokenValue,
	}, cli)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken.TokenValue, resp.RefreshToken, "non-rotating refresh keeps the presented token")

	// And it stays redeemable.
	_, err = g.Token(context.Background(), &TokenRequest{
		RefreshToken: pair.RefreshToken.TokenValue,
	}, cli)
	require.NoError(t, err)
}

func TestRefreshTokenGrant_Token_ScopeNarrowing(t *testing.T) {
	f := newFixture(t)
	cli := f.confidentialClient(t, domain.GrantTypeRefreshToken)
	g := NewRefreshTokenGrant(f.store, f.issuer, true)

	pair := mintPair(t, f, cli, domain.Scope{"tasks:read", "tasks:write"})

	resp, err := g.Token(context.Background(), &TokenRequest{
		RefreshToken: pair.RefreshToken.TokenValue,
		Scope:        domain.Scope{"tasks:read"},
	}, cli)
	require.NoError(t, err)
	assert.Equal(t, "tasks:read", resp.Scope)
}

func TestRefreshTokenGrant_Token_ScopeEscalationRejected(t *testing.T) {
	f := newFixture(t)
	cli := f.confidentialClient(t, domain.GrantTypeRefreshToken)
	g := NewRefreshTokenGrant(f.store, f.issuer, true)

	pair := mintPair(t, f, cli, domain.Scope{"tasks:read"})

	_, err := g.Token(context.Background(), &TokenRequest{
		RefreshToken: pair.RefreshToken.TokenValue,
		Scope:        domain.Scope{"tasks:read", "projects:read"},
	}, cli)
	requireOAuthError(t, err, serrors.InvalidScope)

	// The rejected request did not consume the token.
	_, err = g.Token(context.Background(), &TokenRequest{
		RefreshToken: pair.RefreshToken.TokenValue,
	}, cli)
	require.NoError(t, err)
}

func TestRefreshTokenGrant_Token_WrongClient(t *testing.T) {
	f := newFixture(t)
	cli := f.confidentialClient(t, domain.GrantTypeRefreshToken)
	other := f.publicClient(t, domain.GrantTypeRefreshToken)
	g := NewRefreshTokenGrant(f.store, f.issuer, true)

	pair := mintPair(t, f, cli, domain.Scope{"tasks:read"})

	_, err := g.Token(context.Background(), &TokenRequest{
		RefreshToken: pair.RefreshToken.TokenValue,
	}, other)
	requireOAuthError(t, err, serrors.InvalidGrant)
}

func TestRefreshTokenGrant_Token_UnknownToken(t *testing.T) {
	f := newFixture(t)
	cli := f.confidentialClient(t, domain.GrantTypeRefreshToken)
	g := NewRefreshTokenGrant(f.store, f.issuer, true)

	_, err := g.Token(context.Background(), &TokenRequest{
		RefreshToken: "no-such-token",
	}, cli)
	requireOAuthError(t, err, serrors.InvalidGrant)
}

func TestRefreshTokenGrant_Token_MissingToken(t *testing.T) {
	f := newFixture(t)
	cli := f.confidentialClient(t, domain.GrantTypeRefreshToken)
	g := NewRefreshTokenGrant(f.store, f.issuer, true)

	_, err := g.Token(context.Background(), &TokenRequest{}, cli)
	requireOAuthError(t, err, serrors.InvalidRequest)
}

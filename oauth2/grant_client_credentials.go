package oauth2

import (
	"context"

	"github.com/rs/zerolog/log"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
)

// ScopeAuthorizer is the slice of the client registry the grant
// handlers need for scope resolution.
type ScopeAuthorizer interface {
	AuthorizeScopes(cli *domain.Client, requested domain.Scope) (domain.Scope, error)
}

// ClientCredentialsGrant mints machine-to-machine access tokens
// (RFC 6749 §4.4). No end user is involved: the token is associated
// with the client's owner user for data access, and no refresh token is
// issued — machine clients re-authenticate per expiry.
type ClientCredentialsGrant struct {
	registry ScopeAuthorizer
	issuer   *TokenIssuer
}

// NewClientCredentialsGrant creates the client_credentials handler.
func NewClientCredentialsGrant(registry ScopeAuthorizer, issuer *TokenIssuer) *ClientCredentialsGrant {
	return &ClientCredentialsGrant{registry: registry, issuer: issuer}
}

func (g *ClientCredentialsGrant) Token(ctx context.Context, req *TokenRequest, cli *domain.Client) (*TokenResponse, error) {
	// A client allowed this grant without an owner user is a server
	// misconfiguration. Never fall back to an arbitrary user.
	if cli.OwnerUserID == "" {
		log.Error().Str("client_id", cli.ID).Msg("client_credentials client has no owner user configured")
		return nil, serrors.NewServerError("client is misconfigured")
	}

	scope, err := g.registry.AuthorizeScopes(cli, req.Scope)
	if err != nil {
		return nil, err
	}

	pair, err := g.issuer.Mint(ctx, MintOptions{
		UserID:       cli.OwnerUserID,
		ClientID:     cli.ID,
		Scope:        scope,
		IssueRefresh: false,
	})
	if err != nil {
		log.Error().Err(err).Str("client_id", cli.ID).Msg("failed to mint tokens for client credentials grant")
		return nil, serrors.NewServerError("failed to issue tokens")
	}

	return newTokenResponse(pair, int(g.issuer.AccessTokenTTL().Seconds())), nil
}

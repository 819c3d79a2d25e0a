package oauth2

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
)

// AuthorizationCodeGrant exchanges a single-use authorization code for
// a token pair (RFC 6749 §4.1.3), enforcing PKCE when the code carries
// a challenge.
type AuthorizationCodeGrant struct {
	codes  domain.AuthCodeRepository
	issuer *TokenIssuer
}

// NewAuthorizationCodeGrant creates the authorization_code handler.
func NewAuthorizationCodeGrant(codes domain.AuthCodeRepository, issuer *TokenIssuer) *AuthorizationCodeGrant {
	return &AuthorizationCodeGrant{codes: codes, issuer: issuer}
}

// Token redeems an authorization code.
//
// The code is consumed atomically before any further validation: a
// failed redirect or PKCE check leaves it consumed, so each code admits
// exactly one redemption attempt, success or not.
func (g *AuthorizationCodeGrant) Token(ctx context.Context, req *TokenRequest, cli *domain.Client) (*TokenResponse, error) {
	if req.Code == "" {
		return nil, serrors.NewInvalidRequest("code is required")
	}

	authCode, err := g.codes.ConsumeAuthCode(ctx, req.Code, cli.ID)
	if err != nil {
		if errors.Is(err, serrors.ErrAuthCodeNotFound) {
			return nil, serrors.NewInvalidGrant("authorization code is invalid or already used")
		}
		log.Error().Err(err).Msg("failed to consume authorization code")
		return nil, serrors.NewServerError("failed to process authorization code")
	}

	if authCode.IsExpired(time.Now().UTC()) {
		return nil, serrors.NewInvalidGrant("authorization code has expired")
	}

	// Exact string match against the URI bound at issuance prevents
	// code injection across redirect targets.
	if req.RedirectURI != authCode.RedirectURI {
		return nil, serrors.NewInvalidGrant("redirect_uri does not match the authorization request")
	}

	if authCode.CodeChallenge != "" {
		if req.CodeVerifier == "" {
			return nil, serrors.NewInvalidRequest("code_verifier is required")
		}
		if err := VerifyPKCE(authCode.CodeChallenge, authCode.CodeChallengeMethod, req.CodeVerifier); err != nil {
			return nil, err
		}
	}

	pair, err := g.issuer.Mint(ctx, MintOptions{
		UserID:       authCode.UserID,
		ClientID:     cli.ID,
		Scope:        authCode.Scope,
		IssueRefresh: true,
	})
	if err != nil {
		log.Error().Err(err).Str("client_id", cli.ID).Msg("failed to mint tokens for authorization code")
		return nil, serrors.NewServerError("failed to issue tokens")
	}

	return newTokenResponse(pair, int(g.issuer.AccessTokenTTL().Seconds())), nil
}

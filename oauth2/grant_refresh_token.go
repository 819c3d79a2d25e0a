package oauth2

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
)

// RefreshTokenGrant mints a fresh access token from a refresh token
// (RFC 6749 §6). Scope may be narrowed per request, never escalated.
//
// With rotation enabled each refresh retires the presented token and
// issues a replacement; presenting an already-consumed token is treated
// as theft and revokes the whole token family.
type RefreshTokenGrant struct {
	tokens domain.TokenRepository
	issuer *TokenIssuer
	rotate bool
}

// NewRefreshTokenGrant creates the refresh_token handler. rotate
// selects the rotating design over the reusable one.
func NewRefreshTokenGrant(tokens domain.TokenRepository, issuer *TokenIssuer, rotate bool) *RefreshTokenGrant {
	return &RefreshTokenGrant{tokens: tokens, issuer: issuer, rotate: rotate}
}

func (g *RefreshTokenGrant) Token(ctx context.Context, req *TokenRequest, cli *domain.Client) (*TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, serrors.NewInvalidRequest("refresh_token is required")
	}

	refresh, err := g.tokens.GetRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, serrors.ErrTokenNotFound) {
			return nil, serrors.NewInvalidGrant("refresh token is invalid")
		}
		log.Error().Err(err).Msg("failed to look up refresh token")
		return nil, serrors.NewServerError("failed to process refresh token")
	}

	if refresh.ClientID != cli.ID {
		return nil, serrors.NewInvalidGrant("refresh token is invalid")
	}
	if refresh.IsExpired(time.Now().UTC()) {
		return nil, serrors.NewInvalidGrant("refresh token has expired")
	}

	if refresh.Consumed {
		if g.rotate {
			// A retired token coming back means the value leaked. Burn
			// the lineage.
			log.Warn().Str("client_id", cli.ID).Str("family_id", refresh.FamilyID).
				Msg("consumed refresh token replayed, revoking token family")
			if revokeErr := g.tokens.RevokeTokenFamily(ctx, refresh.FamilyID); revokeErr != nil {
				log.Error().Err(revokeErr).Str("family_id", refresh.FamilyID).Msg("failed to revoke token family")
			}
		}
		return nil, serrors.NewInvalidGrant("refresh token is invalid")
	}

	scope := refresh.Scope
	if !req.Scope.IsEmpty() {
		if missing := req.Scope.Missing(refresh.Scope); len(missing) > 0 {
			return nil, serrors.NewInvalidScope(
				"scope exceeds the original grant: " + strings.Join(missing, " "))
		}
		scope = req.Scope
	}

	if g.rotate {
		if _, err := g.tokens.ConsumeRefreshToken(ctx, req.RefreshToken); err != nil {
			// Lost the race against a parallel refresh; the winner holds
			// the replacement.
			return nil, serrors.NewInvalidGrant("refresh token is invalid")
		}
	}

	pair, err := g.issuer.Mint(ctx, MintOptions{
		UserID:       refresh.UserID,
		ClientID:     cli.ID,
		Scope:        scope,
		IssueRefresh: g.rotate,
		FamilyID:     refresh.FamilyID,
	})
	if err != nil {
		log.Error().Err(err).Str("client_id", cli.ID).Msg("failed to mint tokens for refresh grant")
		return nil, serrors.NewServerError("failed to issue tokens")
	}

	resp := newTokenResponse(pair, int(g.issuer.AccessTokenTTL().Seconds()))
	if !g.rotate {
		// Non-rotating design: the presented refresh token stays valid.
		resp.RefreshToken = refresh.TokenValue
	}
	return resp, nil
}

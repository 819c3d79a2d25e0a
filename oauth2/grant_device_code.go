package oauth2

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
	"go.tasknest.io/auth/internal/metrics"
)

// DeviceCodeGrant handles device grant polling (RFC 8628 §3.4–3.5).
//
// Outcomes are evaluated in a fixed precedence: unknown code, slow
// down, expired, denied, pending, authorized. Every poll attempt stamps
// last_polled_at regardless of outcome, so interval enforcement holds
// across error paths too.
type DeviceCodeGrant struct {
	devices domain.DeviceAuthRepository
	issuer  *TokenIssuer
}

// NewDeviceCodeGrant creates the device_code handler.
func NewDeviceCodeGrant(devices domain.DeviceAuthRepository, issuer *TokenIssuer) *DeviceCodeGrant {
	return &DeviceCodeGrant{devices: devices, issuer: issuer}
}

func (g *DeviceCodeGrant) Token(ctx context.Context, req *TokenRequest, cli *domain.Client) (*TokenResponse, error) {
	if req.DeviceCode == "" {
		return nil, serrors.NewInvalidRequest("device_code is required")
	}

	auth, err := g.devices.GetDeviceAuthByDeviceCode(ctx, req.DeviceCode)
	if err != nil {
		if errors.Is(err, serrors.ErrDeviceCodeNotFound) {
			return nil, g.outcome(serrors.NewInvalidGrant("device code is invalid"))
		}
		log.Error().Err(err).Msg("failed to look up device code")
		return nil, serrors.NewServerError("failed to process device code")
	}

	if auth.ClientID != cli.ID {
		return nil, g.outcome(serrors.NewInvalidGrant("device code is invalid"))
	}

	now := time.Now().UTC()
	tooSoon := auth.PolledTooSoon(now)

	// Stamp before deciding the outcome so the next poll measures from
	// this attempt even when this one errors.
	if touchErr := g.devices.TouchDeviceAuthPolledAt(ctx, auth.DeviceCode); touchErr != nil {
		log.Warn().Err(touchErr).Str("device_code", auth.DeviceCode).Msg("failed to update device poll timestamp")
	}

	if tooSoon {
		return nil, g.outcome(serrors.ErrSlowDown)
	}

	if auth.IsExpired(now) {
		if markErr := g.devices.MarkDeviceAuthExpired(ctx, auth.DeviceCode); markErr != nil {
			log.Warn().Err(markErr).Str("device_code", auth.DeviceCode).Msg("failed to mark device authorization expired")
		}
		return nil, g.outcome(serrors.ErrDeviceFlowTokenExpired)
	}

	switch auth.Status {
	case domain.DeviceAuthDenied:
		return nil, g.outcome(serrors.ErrDeviceFlowAccessDenied)

	case domain.DeviceAuthPending:
		return nil, g.outcome(serrors.ErrAuthorizationPending)

	case domain.DeviceAuthAuthorized:
		consumed, consumeErr := g.devices.ConsumeDeviceAuth(ctx, auth.DeviceCode)
		if consumeErr != nil {
			// A parallel poll redeemed it first.
			return nil, g.outcome(serrors.NewInvalidGrant("device code is invalid"))
		}

		pair, mintErr := g.issuer.Mint(ctx, MintOptions{
			UserID:       consumed.UserID,
			ClientID:     cli.ID,
			Scope:        consumed.Scope,
			IssueRefresh: true,
		})
		if mintErr != nil {
			log.Error().Err(mintErr).Str("client_id", cli.ID).Msg("failed to mint tokens for device grant")
			return nil, serrors.NewServerError("failed to issue tokens")
		}

		metrics.DevicePollsTotal.WithLabelValues("issued").Inc()
		return newTokenResponse(pair, int(g.issuer.AccessTokenTTL().Seconds())), nil

	default:
		// expired or redeemed: the code admits no further redemption.
		return nil, g.outcome(serrors.NewInvalidGrant("device code is invalid"))
	}
}

func (g *DeviceCodeGrant) outcome(err *serrors.OAuth2Error) *serrors.OAuth2Error {
	metrics.DevicePollsTotal.WithLabelValues(err.Code).Inc()
	return err
}

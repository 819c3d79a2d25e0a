package oauth2

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
	"go.tasknest.io/auth/internal/metrics"
)

// DeviceAuthorizationResponse is the issuance body of the device
// authorization endpoint (RFC 8628 §3.2).
type DeviceAuthorizationResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// DeviceFlow issues device/user code pairs and applies the user-side
// approve and deny transitions. The polling side lives in
// DeviceCodeGrant.
type DeviceFlow struct {
	registry ClientRegistry
	devices  domain.DeviceAuthRepository
	lifetime time.Duration
	interval int
}

// ClientRegistry groups the registry capabilities the flow needs.
type ClientRegistry interface {
	ClientAuthorizer
	ScopeAuthorizer
}

// NewDeviceFlow creates the issuance/approval service. lifetime bounds
// the device and user codes; interval is the minimum seconds between
// polls handed to the client.
func NewDeviceFlow(registry ClientRegistry, devices domain.DeviceAuthRepository, lifetime time.Duration, interval int) *DeviceFlow {
	return &DeviceFlow{
		registry: registry,
		devices:  devices,
		lifetime: lifetime,
		interval: interval,
	}
}

// Begin starts a device authorization flow for an authenticated client
// (RFC 8628 §3.1–3.2): validates the grant and scopes, generates the
// code pair and stores the pending authorization.
func (f *DeviceFlow) Begin(ctx context.Context, cli *domain.Client, requested domain.Scope, verificationBaseURI string) (*DeviceAuthorizationResponse, error) {
	if err := f.registry.AuthorizeGrant(cli, domain.GrantTypeDeviceCode); err != nil {
		return nil, err
	}

	scope, err := f.registry.AuthorizeScopes(cli, requested)
	if err != nil {
		return nil, err
	}

	deviceCode, err := generateSecret(deviceCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate device_code: %w", err)
	}
	userCode, err := generateUserCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user_code: %w", err)
	}

	now := time.Now().UTC()
	auth := &domain.DeviceAuth{
		ID:         uuid.NewString(),
		DeviceCode: deviceCode,
		UserCode:   userCode,
		ClientID:   cli.ID,
		Scope:      scope,
		Status:     domain.DeviceAuthPending,
		ExpiresAt:  now.Add(f.lifetime),
		Interval:   f.interval,
		CreatedAt:  now,
	}

	if err := f.devices.SaveDeviceAuth(ctx, auth); err != nil {
		return nil, fmt.Errorf("failed to save device authorization: %w", err)
	}

	metrics.DeviceFlowsStarted.Inc()
	log.Info().Str("client_id", cli.ID).Str("user_code", userCode).Msg("device authorization started")

	verificationURI := verificationBaseURI + "/device"

	return &DeviceAuthorizationResponse{
		DeviceCode:              deviceCode,
		UserCode:                userCode,
		VerificationURI:         verificationURI,
		VerificationURIComplete: verificationURI + "?user_code=" + userCode,
		ExpiresIn:               int(f.lifetime.Seconds()),
		Interval:                f.interval,
	}, nil
}

// Approve binds the authenticated user to a pending authorization. The
// transition is monotone: only pending records can be approved.
func (f *DeviceFlow) Approve(ctx context.Context, userCode, userID string) (*domain.DeviceAuth, error) {
	auth, err := f.devices.GetDeviceAuthByUserCode(ctx, userCode)
	if err != nil {
		return nil, err
	}

	if auth.IsExpired(time.Now().UTC()) {
		if markErr := f.devices.MarkDeviceAuthExpired(ctx, auth.DeviceCode); markErr != nil {
			log.Warn().Err(markErr).Str("device_code", auth.DeviceCode).Msg("failed to mark device authorization expired")
		}
		return nil, serrors.ErrUserCodeNotFound
	}

	approved, err := f.devices.ApproveDeviceAuth(ctx, userCode, userID)
	if err != nil {
		if errors.Is(err, serrors.ErrCannotApproveDeviceAuth) {
			return nil, serrors.ErrCannotApproveDeviceAuth
		}
		return nil, fmt.Errorf("failed to approve device authorization: %w", err)
	}

	log.Info().Str("user_code", userCode).Str("user_id", userID).Msg("device authorization approved")

	return approved, nil
}

// Deny records the user's refusal. Terminal: a denied authorization
// never becomes redeemable.
func (f *DeviceFlow) Deny(ctx context.Context, userCode string) error {
	if err := f.devices.DenyDeviceAuth(ctx, userCode); err != nil {
		return err
	}
	log.Info().Str("user_code", userCode).Msg("device authorization denied")
	return nil
}

package domain

import (
	"context"
	"time"
)

// DeviceAuthStatus represents the status of a device authorization request.
//
// Transitions are monotone: pending moves to authorized, denied or
// expired and never reverses; authorized moves to redeemed exactly once.
type DeviceAuthStatus string

const (
	DeviceAuthPending    DeviceAuthStatus = "pending"
	DeviceAuthAuthorized DeviceAuthStatus = "authorized"
	DeviceAuthDenied     DeviceAuthStatus = "denied"
	DeviceAuthExpired    DeviceAuthStatus = "expired"
	DeviceAuthRedeemed   DeviceAuthStatus = "redeemed"
)

// DeviceAuth holds the state of a device authorization grant (RFC 8628).
//
// DeviceCode is the long opaque value shown only to the polling client;
// UserCode is the short human-typed value entered on a secondary
// device. UserID stays empty until the user approves.
type DeviceAuth struct {
	ID           string           `bson:"_id"                      json:"id"`
	DeviceCode   string           `bson:"device_code"              json:"device_code"`
	UserCode     string           `bson:"user_code"                json:"user_code"`
	ClientID     string           `bson:"client_id"                json:"client_id"`
	Scope        Scope            `bson:"scope"                    json:"scope"`
	Status       DeviceAuthStatus `bson:"status"                   json:"status"`
	UserID       string           `bson:"user_id,omitempty"        json:"user_id,omitempty"`
	ExpiresAt    time.Time        `bson:"expires_at"               json:"expires_at"`
	Interval     int              `bson:"interval"                 json:"interval"`
	CreatedAt    time.Time        `bson:"created_at"               json:"created_at"`
	LastPolledAt time.Time        `bson:"last_polled_at,omitempty" json:"last_polled_at,omitempty"`
}

// IsExpired reports whether the authorization has passed its expiry at now.
func (d *DeviceAuth) IsExpired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}

// PolledTooSoon reports whether a poll at now arrives before the
// minimum interval since the previous poll has elapsed.
func (d *DeviceAuth) PolledTooSoon(now time.Time) bool {
	if d.LastPolledAt.IsZero() {
		return false
	}
	return now.Before(d.LastPolledAt.Add(time.Duration(d.Interval) * time.Second))
}

// DeviceAuthRepository stores device authorizations from issuance
// through approval (or denial) to their single redemption.
type DeviceAuthRepository interface {
	// SaveDeviceAuth stores a freshly issued pending authorization.
	SaveDeviceAuth(ctx context.Context, auth *DeviceAuth) error

	// GetDeviceAuthByDeviceCode retrieves an authorization by its device
	// code, or errors.ErrDeviceCodeNotFound.
	GetDeviceAuthByDeviceCode(ctx context.Context, deviceCode string) (*DeviceAuth, error)

	// GetDeviceAuthByUserCode retrieves an unexpired authorization by its
	// user code, or errors.ErrUserCodeNotFound.
	GetDeviceAuthByUserCode(ctx context.Context, userCode string) (*DeviceAuth, error)

	// ApproveDeviceAuth atomically moves a pending authorization to
	// authorized and binds the approving user. A non-pending or expired
	// record yields errors.ErrCannotApproveDeviceAuth.
	ApproveDeviceAuth(ctx context.Context, userCode, userID string) (*DeviceAuth, error)

	// DenyDeviceAuth atomically moves a pending authorization to denied.
	DenyDeviceAuth(ctx context.Context, userCode string) error

	// ConsumeDeviceAuth atomically moves an authorized record to
	// redeemed and returns it. Exactly one of two racing polls wins;
	// the loser receives errors.ErrDeviceCodeNotFound.
	ConsumeDeviceAuth(ctx context.Context, deviceCode string) (*DeviceAuth, error)

	// MarkDeviceAuthExpired records the expired status. Best effort;
	// expiry is authoritative from ExpiresAt regardless.
	MarkDeviceAuthExpired(ctx context.Context, deviceCode string) error

	// TouchDeviceAuthPolledAt stamps last_polled_at with the current
	// time. Called on every poll attempt regardless of outcome so the
	// interval enforcement holds across error paths.
	TouchDeviceAuthPolledAt(ctx context.Context, deviceCode string) error

	// DeleteExpiredDeviceAuths removes records past their expiry.
	DeleteExpiredDeviceAuths(ctx context.Context) error
}

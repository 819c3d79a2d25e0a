package domain

import (
	"context"
	"time"
)

// PKCE code challenge transformations (RFC 7636 §4.2). Plain is the
// default when the authorize step stored a challenge without a method.
const (
	CodeChallengePlain = "plain"
	CodeChallengeS256  = "S256"
)

// AuthCode represents an OAuth 2.0 authorization code.
//
// A code is bound at issuance to a user, client, redirect URI and scope
// set, optionally carrying a PKCE challenge. It is consumed exactly
// once; the repository Consume operation is the single atomic
// used-flag flip that enforces this under concurrent redemption.
type AuthCode struct {
	Code        string    `bson:"code"         json:"code"`
	ClientID    string    `bson:"client_id"    json:"client_id"`
	UserID      string    `bson:"user_id"      json:"user_id"`
	RedirectURI string    `bson:"redirect_uri" json:"redirect_uri"`
	Scope       Scope     `bson:"scope"        json:"scope"`
	ExpiresAt   time.Time `bson:"expires_at"   json:"expires_at"`
	Used        bool      `bson:"used"         json:"used"`
	CreatedAt   time.Time `bson:"created_at"   json:"created_at"`

	CodeChallenge       string `bson:"code_challenge,omitempty"        json:"code_challenge,omitempty"`
	CodeChallengeMethod string `bson:"code_challenge_method,omitempty" json:"code_challenge_method,omitempty"`
}

// IsExpired reports whether the code has passed its expiry at now.
func (a *AuthCode) IsExpired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// AuthCodeRepository stores authorization codes between the authorize
// step and their single redemption at the token endpoint.
type AuthCodeRepository interface {
	// SaveAuthCode stores a freshly issued code.
	SaveAuthCode(ctx context.Context, code *AuthCode) error

	// ConsumeAuthCode atomically marks the code as used and returns it.
	// The flip from unused to used must be a single conditional update:
	// when two requests race on the same code exactly one receives the
	// code, the other errors.ErrAuthCodeNotFound. The code must belong
	// to clientID.
	ConsumeAuthCode(ctx context.Context, code, clientID string) (*AuthCode, error)

	// DeleteExpiredAuthCodes removes codes past their expiry. Expiry is
	// enforced lazily at redemption; this is periodic cleanup only.
	DeleteExpiredAuthCodes(ctx context.Context) error
}

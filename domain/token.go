package domain

import (
	"context"
	"time"
)

// Token type discriminators persisted with every token row.
const (
	TokenTypeAccess  = "access_token"
	TokenTypeRefresh = "refresh_token"
)

// Token represents an issued opaque access or refresh token.
//
// TokenValue carries no decodable structure; validity is determined
// solely by lookup. AccessTokenID is the weak back-reference a refresh
// token keeps to the access token minted alongside it. FamilyID ties a
// refresh token to every token descended from the same original grant,
// so reuse detection can revoke the whole lineage. Consumed is set when
// rotation retires a refresh token.
type Token struct {
	ID            string    `bson:"_id"                       json:"id"`
	TokenType     string    `bson:"token_type"                json:"token_type"`
	TokenValue    string    `bson:"token_value"               json:"token_value"`
	ClientID      string    `bson:"client_id"                 json:"client_id"`
	UserID        string    `bson:"user_id,omitempty"         json:"user_id,omitempty"`
	Scope         Scope     `bson:"scope,omitempty"           json:"scope,omitempty"`
	FamilyID      string    `bson:"family_id,omitempty"       json:"family_id,omitempty"`
	AccessTokenID string    `bson:"access_token_id,omitempty" json:"access_token_id,omitempty"`
	ExpiresAt     time.Time `bson:"expires_at"                json:"expires_at"`
	CreatedAt     time.Time `bson:"created_at"                json:"created_at"`
	LastUsedAt    time.Time `bson:"last_used_at"              json:"last_used_at"`
	Revoked       bool      `bson:"revoked"                   json:"revoked"`
	Consumed      bool      `bson:"consumed"                  json:"consumed"`
}

// IsExpired reports whether the token has passed its expiry at now.
func (t *Token) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// TokenPair is the result of a mint: an access token and, for grants
// that issue one, its refresh token.
type TokenPair struct {
	AccessToken  *Token
	RefreshToken *Token
}

// TokenRepository is the durable store for issued tokens. The token
// issuer exclusively owns creation and destruction of rows here.
type TokenRepository interface {
	// StoreToken persists a token. A colliding token value yields
	// errors.ErrTokenValueExists (uniqueness is a storage constraint,
	// callers retry with a fresh value).
	StoreToken(ctx context.Context, token *Token) error

	// GetAccessToken retrieves a live (unrevoked, unexpired) access
	// token by value, or errors.ErrTokenNotFound.
	GetAccessToken(ctx context.Context, tokenValue string) (*Token, error)

	// GetRefreshToken retrieves an unrevoked, unexpired refresh token by
	// value, or errors.ErrTokenNotFound. Consumed tokens are returned so
	// rotation reuse can be detected.
	GetRefreshToken(ctx context.Context, tokenValue string) (*Token, error)

	// ConsumeRefreshToken atomically flips an unconsumed refresh token
	// to consumed and returns it; an already consumed token yields
	// errors.ErrTokenNotFound.
	ConsumeRefreshToken(ctx context.Context, tokenValue string) (*Token, error)

	// RevokeToken marks the token with the given value, of either type,
	// as revoked.
	RevokeToken(ctx context.Context, tokenValue string) error

	// RevokeTokenFamily revokes every token carrying the family ID.
	RevokeTokenFamily(ctx context.Context, familyID string) error

	// DeleteExpiredTokens removes tokens past their expiry.
	DeleteExpiredTokens(ctx context.Context) error
}

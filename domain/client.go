package domain

import (
	"context"
	"time"
)

// ClientType defines the type of client application. Confidential or Public
type ClientType string

const (
	// ClientTypeConfidential clients can securely store secrets
	ClientTypeConfidential ClientType = "confidential"
	// ClientTypePublic clients cannot securely store secrets (mobile apps, SPAs)
	ClientTypePublic ClientType = "public"
)

// Client represents a registered OAuth2 client application.
//
// SecretHash holds a bcrypt hash of the client secret and is empty for
// public clients. OwnerUserID binds client_credentials tokens to a
// platform user and is required for clients allowed that grant.
// Clients are never deleted while tokens reference them; Active is the
// soft-invalidation flag.
type Client struct {
	ID                string      `bson:"client_id"             json:"client_id"`
	SecretHash        string      `bson:"secret_hash,omitempty" json:"-"`
	Type              ClientType  `bson:"client_type"           json:"client_type"`
	Name              string      `bson:"client_name"           json:"client_name,omitempty"`
	RedirectURIs      []string    `bson:"redirect_uris"         json:"redirect_uris,omitempty"`
	AllowedGrantTypes []GrantType `bson:"allowed_grant_types"   json:"allowed_grant_types,omitempty"`
	AllowedScopes     Scope       `bson:"allowed_scopes"        json:"allowed_scopes,omitempty"`
	OwnerUserID       string      `bson:"owner_user_id,omitempty" json:"owner_user_id,omitempty"`
	Active            bool        `bson:"active"                json:"active"`
	CreatedAt         time.Time   `bson:"created_at"            json:"created_at"`
	UpdatedAt         time.Time   `bson:"updated_at"            json:"updated_at"`
}

// IsPublic reports whether the client authenticates without a secret.
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// AllowsGrant reports whether the grant type is listed for the client.
// An unlisted grant type is always rejected.
func (c *Client) AllowsGrant(gt GrantType) bool {
	for _, allowed := range c.AllowedGrantTypes {
		if allowed == gt {
			return true
		}
	}
	return false
}

// HasRedirectURI reports whether uri exactly matches a registered
// redirect URI.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// ClientRepository defines the interface for client storage and retrieval.
type ClientRepository interface {
	// CreateClient creates a new OAuth2 client.
	CreateClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client by ID.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// UpdateClient updates an existing client.
	UpdateClient(ctx context.Context, client *Client) error

	// DeactivateClient soft-invalidates a client. Rows are never deleted
	// while tokens reference them.
	DeactivateClient(ctx context.Context, clientID string) error
}

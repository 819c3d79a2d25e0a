package oauth2

import (
	"context"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
	"go.tasknest.io/auth/internal/metrics"
)

// TokenRequest is a parsed token endpoint request. Grant-specific
// fields are set only for their grant type.
type TokenRequest struct {
	GrantType domain.GrantType

	// authorization_code
	Code         string
	RedirectURI  string
	CodeVerifier string

	// refresh_token
	RefreshToken string

	// device_code
	DeviceCode string

	// refresh_token and client_credentials
	Scope domain.Scope
}

// TokenResponse is the normalized success body of the token endpoint
// (RFC 6749 §5.1).
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// GrantHandler validates the grant-specific preconditions of a token
// request and delegates minting to the token issuer. The client has
// already been authenticated and authorized for the grant type.
type GrantHandler interface {
	Token(ctx context.Context, req *TokenRequest, cli *domain.Client) (*TokenResponse, error)
}

// ClientAuthorizer is the slice of the client registry the dispatcher
// needs: grant-type gating per authenticated client.
type ClientAuthorizer interface {
	AuthorizeGrant(cli *domain.Client, gt domain.GrantType) error
}

// Server dispatches token requests to the handler registered for the
// grant type. The handler set is closed at construction; there is no
// string dispatch beyond the initial grant_type parse.
type Server struct {
	registry ClientAuthorizer
	handlers map[domain.GrantType]GrantHandler
}

// NewServer builds the grant dispatcher with every supported handler.
func NewServer(
	registry ClientAuthorizer,
	authorizationCode *AuthorizationCodeGrant,
	refreshToken *RefreshTokenGrant,
	clientCredentials *ClientCredentialsGrant,
	deviceCode *DeviceCodeGrant,
) *Server {
	return &Server{
		registry: registry,
		handlers: map[domain.GrantType]GrantHandler{
			domain.GrantTypeAuthorizationCode: authorizationCode,
			domain.GrantTypeRefreshToken:      refreshToken,
			domain.GrantTypeClientCredentials: clientCredentials,
			domain.GrantTypeDeviceCode:        deviceCode,
		},
	}
}

// Token authorizes the client for the requested grant type and runs the
// matching handler.
func (s *Server) Token(ctx context.Context, req *TokenRequest, cli *domain.Client) (*TokenResponse, error) {
	handler, ok := s.handlers[req.GrantType]
	if !ok {
		return nil, serrors.NewUnsupportedGrantType()
	}

	if err := s.registry.AuthorizeGrant(cli, req.GrantType); err != nil {
		return nil, err
	}

	resp, err := handler.Token(ctx, req, cli)
	if err != nil {
		if oauthErr, ok := err.(*serrors.OAuth2Error); ok {
			metrics.GrantFailuresTotal.WithLabelValues(oauthErr.Code).Inc()
		}
		return nil, err
	}

	metrics.TokensIssuedTotal.WithLabelValues(string(req.GrantType)).Inc()
	return resp, nil
}

// newTokenResponse renders a minted pair to the wire shape.
func newTokenResponse(pair *domain.TokenPair, ttlSeconds int) *TokenResponse {
	resp := &TokenResponse{
		AccessToken: pair.AccessToken.TokenValue,
		TokenType:   "Bearer",
		ExpiresIn:   ttlSeconds,
		Scope:       pair.AccessToken.Scope.String(),
	}
	if pair.RefreshToken != nil {
		resp.RefreshToken = pair.RefreshToken.TokenValue
	}
	return resp
}

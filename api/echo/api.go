//nolint:varnamelen
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.tasknest.io/auth/clients"
	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
	"go.tasknest.io/auth/oauth2"
	"go.tasknest.io/auth/ratelimit"
)

// OAuth2API holds the handlers for the authorization server endpoints.
type OAuth2API struct {
	registry  *clients.Registry
	server    *oauth2.Server
	flow      *oauth2.DeviceFlow
	codes     *oauth2.AuthCodeIssuer
	issuer    *oauth2.TokenIssuer
	limiter   *ratelimit.KeyedLimiter
	issuerURL string
}

// NewOAuth2API initializes the OAuth2 API.
func NewOAuth2API(
	registry *clients.Registry,
	server *oauth2.Server,
	flow *oauth2.DeviceFlow,
	codes *oauth2.AuthCodeIssuer,
	issuer *oauth2.TokenIssuer,
	limiter *ratelimit.KeyedLimiter,
	issuerURL string,
) *OAuth2API {
	return &OAuth2API{
		registry:  registry,
		server:    server,
		flow:      flow,
		codes:     codes,
		issuer:    issuer,
		limiter:   limiter,
		issuerURL: issuerURL,
	}
}

// RegisterRoutes registers the OAuth2 routes.
func (oa *OAuth2API) RegisterRoutes(e *echo.Echo) {
	e.POST("/oauth2/token", oa.TokenHandler)
	e.GET("/oauth2/authorize", oa.AuthorizeHandler)
	e.POST("/oauth2/device_authorization", oa.DeviceAuthorizationHandler)
	e.POST("/oauth2/device/approve", oa.DeviceApproveHandler)
	e.POST("/oauth2/device/deny", oa.DeviceDenyHandler)
	e.POST("/oauth2/revoke", oa.RevokeHandler)
	e.POST("/oauth2/introspect", oa.IntrospectHandler)
}

// clientCredentials extracts client credentials from the Basic
// authorization header, falling back to the form body (RFC 6749 §2.3.1
// allows both; Basic takes precedence when present).
func clientCredentials(c echo.Context) (clientID, clientSecret string) {
	if id, secret, ok := c.Request().BasicAuth(); ok {
		return id, secret
	}
	return c.FormValue("client_id"), c.FormValue("client_secret")
}

// writeOAuthError renders err as an RFC 6749 error response. Anything
// that is not an OAuth2Error is logged and collapsed into an opaque
// server_error so internal detail never reaches the wire.
func writeOAuthError(c echo.Context, err error) error {
	if oauthErr, ok := err.(*serrors.OAuth2Error); ok {
		status := oauthErr.StatusCode()
		if status == http.StatusUnauthorized {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="oauth2", charset="UTF-8"`)
		}
		return c.JSON(status, oauthErr)
	}

	log.Error().Err(err).Msg("Unexpected error handling OAuth2 request")

	return c.JSON(http.StatusInternalServerError, serrors.NewServerError("internal error"))
}

// TokenHandler handles OAuth2 token requests. It authenticates the
// client, resolves the grant handler for the requested grant_type, and
// returns either a token response or an RFC 6749 error body.
func (oa *OAuth2API) TokenHandler(c echo.Context) error {
	ctx := c.Request().Context()

	clientID, clientSecret := clientCredentials(c)

	limiterKey := clientID
	if limiterKey == "" {
		limiterKey = c.RealIP()
	}
	if !oa.limiter.Allow(limiterKey) {
		log.Warn().Str("key", limiterKey).Msg("Token endpoint rate limit exceeded")

		return c.JSON(http.StatusTooManyRequests, &serrors.OAuth2Error{
			Code:        serrors.TemporarilyUnavailable,
			Description: "too many requests, retry later",
		})
	}

	cli, err := oa.registry.Authenticate(ctx, clientID, clientSecret)
	if err != nil {
		return writeOAuthError(c, err)
	}

	grantType, ok := domain.ParseGrantType(c.FormValue("grant_type"))
	if !ok {
		return writeOAuthError(c, serrors.NewUnsupportedGrantType())
	}

	req := &oauth2.TokenRequest{
		GrantType:    grantType,
		Code:         c.FormValue("code"),
		RedirectURI:  c.FormValue("redirect_uri"),
		CodeVerifier: c.FormValue("code_verifier"),
		RefreshToken: c.FormValue("refresh_token"),
		DeviceCode:   c.FormValue("device_code"),
		Scope:        domain.ParseScope(c.FormValue("scope")),
	}

	resp, err := oa.server.Token(ctx, req, cli)
	if err != nil {
		return writeOAuthError(c, err)
	}

	log.Info().
		Str("client_id", cli.ID).
		Str("grant_type", string(grantType)).
		Int("expires_in", resp.ExpiresIn).
		Msg("Token issued")

	// RFC 6749 §5.1: token responses must not be cached.
	c.Response().Header().Set("Cache-Control", "no-store")
	c.Response().Header().Set("Pragma", "no-cache")

	return c.JSON(http.StatusOK, resp)
}

// AuthorizeHandler handles OAuth 2.0 authorization requests for the
// code flow. The resource owner is identified by the X-User-ID header
// that the platform gateway sets after login. On success the user
// agent is redirected back with a single-use code.
func (oa *OAuth2API) AuthorizeHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "login_required"})
	}

	if responseType := c.QueryParam("response_type"); responseType != "code" {
		return writeOAuthError(c, serrors.NewInvalidRequest("unsupported response_type"))
	}

	// The front channel identifies the client by ID only; secrets are
	// never sent through the user agent.
	cli, err := oa.registry.Lookup(ctx, c.QueryParam("client_id"))
	if err != nil {
		return writeOAuthError(c, err)
	}

	code, err := oa.codes.Issue(ctx, cli, oauth2.IssueAuthCodeRequest{
		UserID:              userID,
		RedirectURI:         c.QueryParam("redirect_uri"),
		Scope:               domain.ParseScope(c.QueryParam("scope")),
		CodeChallenge:       c.QueryParam("code_challenge"),
		CodeChallengeMethod: c.QueryParam("code_challenge_method"),
	})
	if err != nil {
		return writeOAuthError(c, err)
	}

	redirect, err := oauth2.BuildRedirectURI(c.QueryParam("redirect_uri"), code, c.QueryParam("state"))
	if err != nil {
		return writeOAuthError(c, serrors.NewInvalidRequest("malformed redirect_uri"))
	}

	return c.Redirect(http.StatusFound, redirect)
}

// DeviceAuthorizationHandler starts a device flow (RFC 8628 §3.1).
func (oa *OAuth2API) DeviceAuthorizationHandler(c echo.Context) error {
	ctx := c.Request().Context()

	clientID, clientSecret := clientCredentials(c)
	cli, err := oa.registry.Authenticate(ctx, clientID, clientSecret)
	if err != nil {
		return writeOAuthError(c, err)
	}

	resp, err := oa.flow.Begin(ctx, cli, domain.ParseScope(c.FormValue("scope")), oa.issuerURL)
	if err != nil {
		return writeOAuthError(c, err)
	}

	c.Response().Header().Set("Cache-Control", "no-store")

	return c.JSON(http.StatusOK, resp)
}

// DeviceApproveHandler records the resource owner's approval of a
// pending device authorization, identified by its user code.
func (oa *OAuth2API) DeviceApproveHandler(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "login_required"})
	}

	userCode := c.FormValue("user_code")
	if userCode == "" {
		return writeOAuthError(c, serrors.NewInvalidRequest("user_code is required"))
	}

	auth, err := oa.flow.Approve(c.Request().Context(), userCode, userID)
	if err != nil {
		log.Warn().Err(err).Str("userCode", userCode).Msg("Device approval failed")

		return writeOAuthError(c, serrors.NewInvalidGrant("user code is invalid or expired"))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"client_id": auth.ClientID,
		"scope":     auth.Scope.String(),
		"status":    string(auth.Status),
	})
}

// DeviceDenyHandler records the resource owner's refusal of a pending
// device authorization.
func (oa *OAuth2API) DeviceDenyHandler(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "login_required"})
	}

	userCode := c.FormValue("user_code")
	if userCode == "" {
		return writeOAuthError(c, serrors.NewInvalidRequest("user_code is required"))
	}

	if err := oa.flow.Deny(c.Request().Context(), userCode); err != nil {
		log.Warn().Err(err).Str("userCode", userCode).Msg("Device denial failed")

		return writeOAuthError(c, serrors.NewInvalidGrant("user code is invalid or expired"))
	}

	return c.JSON(http.StatusOK, echo.Map{"status": string(domain.DeviceAuthDenied)})
}

// RevokeHandler handles token revocation requests according to RFC
// 7009. It always returns 200 OK, whether or not the token existed,
// so callers cannot probe for live token values.
func (oa *OAuth2API) RevokeHandler(c echo.Context) error {
	ctx := c.Request().Context()

	clientID, clientSecret := clientCredentials(c)
	if _, err := oa.registry.Authenticate(ctx, clientID, clientSecret); err != nil {
		return writeOAuthError(c, err)
	}

	token := c.FormValue("token")
	if token == "" {
		return writeOAuthError(c, serrors.NewInvalidRequest("token parameter is required"))
	}

	if err := oa.issuer.Revoke(ctx, token); err != nil {
		// RFC 7009 §2.2: respond 200 even when the token was invalid.
		log.Error().Err(err).Msg("Failed to revoke token")
	}

	return c.JSON(http.StatusOK, echo.Map{})
}

// IntrospectHandler resolves an access token to its metadata for the
// platform's resource servers. Invalid or expired tokens introspect as
// inactive with a 200 status (RFC 7662 §2.2).
func (oa *OAuth2API) IntrospectHandler(c echo.Context) error {
	ctx := c.Request().Context()

	clientID, clientSecret := clientCredentials(c)
	if _, err := oa.registry.Authenticate(ctx, clientID, clientSecret); err != nil {
		return writeOAuthError(c, err)
	}

	tokenValue := c.FormValue("token")
	if tokenValue == "" {
		return writeOAuthError(c, serrors.NewInvalidRequest("token parameter is required"))
	}

	token, err := oa.issuer.Lookup(ctx, tokenValue)
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"active": false})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"active":     true,
		"client_id":  token.ClientID,
		"sub":        token.UserID,
		"scope":      token.Scope.String(),
		"token_type": "Bearer",
		"exp":        token.ExpiresAt.Unix(),
	})
}

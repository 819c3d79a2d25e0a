package oauth2

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
)

// AuthCodeIssuer creates authorization codes on behalf of the
// platform's authorize endpoint. The code binds user, client, redirect
// URI, scope set and optional PKCE challenge for its short lifetime.
type AuthCodeIssuer struct {
	registry ClientRegistry
	codes    domain.AuthCodeRepository
	lifetime time.Duration
}

// NewAuthCodeIssuer creates an AuthCodeIssuer with the given code
// lifetime (short, minutes scale).
func NewAuthCodeIssuer(registry ClientRegistry, codes domain.AuthCodeRepository, lifetime time.Duration) *AuthCodeIssuer {
	return &AuthCodeIssuer{registry: registry, codes: codes, lifetime: lifetime}
}

// IssueAuthCodeRequest carries the validated parameters of an authorize
// step approval.
type IssueAuthCodeRequest struct {
	UserID              string
	RedirectURI         string
	Scope               domain.Scope
	CodeChallenge       string
	CodeChallengeMethod string
}

// Issue validates the request against the client registration and
// stores a fresh single-use code, returning its value.
func (i *AuthCodeIssuer) Issue(ctx context.Context, cli *domain.Client, req IssueAuthCodeRequest) (string, error) {
	if err := i.registry.AuthorizeGrant(cli, domain.GrantTypeAuthorizationCode); err != nil {
		return "", err
	}
	if !cli.HasRedirectURI(req.RedirectURI) {
		return "", serrors.NewInvalidRequest("redirect_uri is not registered for this client")
	}
	scope, err := i.registry.AuthorizeScopes(cli, req.Scope)
	if err != nil {
		return "", err
	}

	switch req.CodeChallengeMethod {
	case "", domain.CodeChallengePlain, domain.CodeChallengeS256:
	default:
		return "", serrors.NewInvalidRequest("unsupported code_challenge_method")
	}
	if req.CodeChallengeMethod != "" && req.CodeChallenge == "" {
		return "", serrors.NewInvalidRequest("code_challenge is required with code_challenge_method")
	}

	value, err := generateSecret(authCodeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}

	now := time.Now().UTC()
	authCode := &domain.AuthCode{
		Code:                value,
		ClientID:            cli.ID,
		UserID:              req.UserID,
		RedirectURI:         req.RedirectURI,
		Scope:               scope,
		ExpiresAt:           now.Add(i.lifetime),
		CreatedAt:           now,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
	}

	if err := i.codes.SaveAuthCode(ctx, authCode); err != nil {
		return "", fmt.Errorf("failed to save authorization code: %w", err)
	}

	log.Debug().Str("client_id", cli.ID).Str("user_id", req.UserID).Msg("authorization code issued")

	return value, nil
}

// BuildRedirectURI appends the code and optional state to the redirect
// URI, preserving any query parameters it already carries.
func BuildRedirectURI(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

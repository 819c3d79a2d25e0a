package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// OAuth2Error represents a standardized OAuth 2.0 error (RFC 6749 §5.2)
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Standard OAuth2 error codes
const (
	InvalidRequest         = "invalid_request"
	UnauthorizedClient     = "unauthorized_client"
	AccessDenied           = "access_denied"
	UnsupportedGrantType   = "unsupported_grant_type"
	InvalidScope           = "invalid_scope"
	InvalidClient          = "invalid_client"
	InvalidGrant           = "invalid_grant"
	ServerError            = "server_error"
	TemporarilyUnavailable = "temporarily_unavailable"
)

// Device flow error codes (RFC 8628 §3.5)
const (
	AuthorizationPending = "authorization_pending"
	SlowDown             = "slow_down"
	ExpiredToken         = "expired_token"
)

// StatusCode maps an OAuth2 error code to the HTTP status the token
// endpoint responds with: 401 for invalid_client (RFC 6749 §5.2), 500
// for server_error, 400 for everything else.
func (e *OAuth2Error) StatusCode() int {
	switch e.Code {
	case InvalidClient:
		return http.StatusUnauthorized
	case ServerError:
		return http.StatusInternalServerError
	case TemporarilyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// Common error constructors
func NewInvalidRequest(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidRequest,
		Description: description,
	}
}

func NewInvalidClient(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidClient,
		Description: description,
	}
}

func NewInvalidGrant(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidGrant,
		Description: description,
	}
}

func NewInvalidScope(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidScope,
		Description: description,
	}
}

func NewUnauthorizedClient(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        UnauthorizedClient,
		Description: description,
	}
}

func NewUnsupportedGrantType() *OAuth2Error {
	return &OAuth2Error{
		Code:        UnsupportedGrantType,
		Description: "The authorization grant type is not supported",
	}
}

// NewServerError deliberately carries a generic description; internal
// detail stays in the log, never on the wire.
func NewServerError(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        ServerError,
		Description: description,
	}
}

// Device flow outcomes (RFC 8628 §3.5). These are terminal polling
// responses, shared as sentinels so handlers and tests compare by value.
var (
	ErrAuthorizationPending = &OAuth2Error{
		Code:        AuthorizationPending,
		Description: "The authorization request is still pending",
	}
	ErrSlowDown = &OAuth2Error{
		Code:        SlowDown,
		Description: "Polling too frequently, increase the polling interval",
	}
	ErrDeviceFlowAccessDenied = &OAuth2Error{
		Code:        AccessDenied,
		Description: "The user denied the authorization request",
	}
	ErrDeviceFlowTokenExpired = &OAuth2Error{
		Code:        ExpiredToken,
		Description: "The device code has expired",
	}
)

// Storage sentinels. Repositories return these; grant handlers map them
// to the RFC error bodies above.
var (
	ErrClientNotFound          = errors.New("client not found")
	ErrAuthCodeNotFound        = errors.New("authorization code not found or already used")
	ErrDeviceCodeNotFound      = errors.New("device code not found")
	ErrUserCodeNotFound        = errors.New("user code not found")
	ErrCannotApproveDeviceAuth = errors.New("device authorization cannot be approved")
	ErrTokenNotFound           = errors.New("token not found or invalid")
	ErrTokenValueExists        = errors.New("token value already exists")
)

package domain

// GrantType enumerates the token-issuance protocols this server supports.
type GrantType string

const (
	GrantTypeAuthorizationCode GrantType = "authorization_code"
	GrantTypeRefreshToken      GrantType = "refresh_token"
	GrantTypeClientCredentials GrantType = "client_credentials"
	GrantTypeDeviceCode        GrantType = "device_code"
)

// DeviceGrantURN is the wire value for the device grant (RFC 8628 §3.4).
const DeviceGrantURN = "urn:ietf:params:oauth:grant-type:device_code"

// ParseGrantType maps a grant_type form value to its GrantType. The
// device grant is requested by URN on the wire but stored under its
// short name in client configuration.
func ParseGrantType(raw string) (GrantType, bool) {
	switch raw {
	case string(GrantTypeAuthorizationCode):
		return GrantTypeAuthorizationCode, true
	case string(GrantTypeRefreshToken):
		return GrantTypeRefreshToken, true
	case string(GrantTypeClientCredentials):
		return GrantTypeClientCredentials, true
	case DeviceGrantURN, string(GrantTypeDeviceCode):
		return GrantTypeDeviceCode, true
	default:
		return "", false
	}
}

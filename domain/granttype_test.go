package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGrantType(t *testing.T) {
	tests := []struct {
		raw  string
		want GrantType
		ok   bool
	}{
		{"authorization_code", GrantTypeAuthorizationCode, true},
		{"refresh_token", GrantTypeRefreshToken, true},
		{"client_credentials", GrantTypeClientCredentials, true},
		{"device_code", GrantTypeDeviceCode, true},
		{DeviceGrantURN, GrantTypeDeviceCode, true},
		{"password", "", false},
		{"implicit", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseGrantType(tt.raw)
		assert.Equal(t, tt.ok, ok, "raw=%q", tt.raw)
		if tt.ok {
			assert.Equal(t, tt.want, got, "raw=%q", tt.raw)
		}
	}
}

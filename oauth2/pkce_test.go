package oauth2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
)

// Verifier/challenge pair from RFC 7636 appendix B.
const (
	rfcVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	rfcChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

func TestS256Challenge(t *testing.T) {
	assert.Equal(t, rfcChallenge, S256Challenge(rfcVerifier))
}

func TestVerifyPKCE_S256(t *testing.T) {
	assert.NoError(t, VerifyPKCE(rfcChallenge, domain.CodeChallengeS256, rfcVerifier))
}

func TestVerifyPKCE_S256_WrongVerifier(t *testing.T) {
	// Single character difference must fail.
	mutated := rfcVerifier[:len(rfcVerifier)-1] + "A"

	err := VerifyPKCE(rfcChallenge, domain.CodeChallengeS256, mutated)
	require.Error(t, err)

	oauthErr, ok := err.(*serrors.OAuth2Error)
	require.True(t, ok)
	assert.Equal(t, serrors.InvalidGrant, oauthErr.Code)
}

func TestVerifyPKCE_Plain(t *testing.T) {
	assert.NoError(t, VerifyPKCE("some-verifier-value-thats-long-enough-here", domain.CodeChallengePlain, "some-verifier-value-thats-long-enough-here"))
	assert.Error(t, VerifyPKCE("challenge-value", domain.CodeChallengePlain, "different-value"))
}

func TestVerifyPKCE_EmptyMethodDefaultsToPlain(t *testing.T) {
	assert.NoError(t, VerifyPKCE("verifier-equals-challenge", "", "verifier-equals-challenge"))
}

func TestVerifyPKCE_UnsupportedMethod(t *testing.T) {
	err := VerifyPKCE(rfcChallenge, "S512", rfcVerifier)
	require.Error(t, err)

	oauthErr, ok := err.(*serrors.OAuth2Error)
	require.True(t, ok)
	assert.Equal(t, serrors.InvalidRequest, oauthErr.Code)
}

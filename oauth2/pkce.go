package oauth2

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
)

// S256Challenge derives the S256 code challenge for a verifier:
// base64url(SHA-256(verifier)) without padding (RFC 7636 §4.2).
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyPKCE checks a code verifier against the challenge stored with
// an authorization code.
//
// An empty method defaults to plain. The derived challenge is compared
// byte-for-byte in constant time. Unsupported methods are
// invalid_request; a mismatching verifier is invalid_grant.
func VerifyPKCE(challenge, method, verifier string) error {
	var derived string
	switch method {
	case domain.CodeChallengePlain, "":
		derived = verifier
	case domain.CodeChallengeS256:
		derived = S256Challenge(verifier)
	default:
		return serrors.NewInvalidRequest("unsupported code_challenge_method")
	}

	if subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) != 1 {
		return serrors.NewInvalidGrant("PKCE verification failed")
	}

	return nil
}

package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
)

func TestStore_ConsumeAuthCode(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.SaveAuthCode(ctx, &domain.AuthCode{
		Code: "code-1", ClientID: "web-app",
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}))

	code, err := s.ConsumeAuthCode(ctx, "code-1", "web-app")
	require.NoError(t, err)
	assert.True(t, code.Used)

	_, err = s.ConsumeAuthCode(ctx, "code-1", "web-app")
	assert.ErrorIs(t, err, serrors.ErrAuthCodeNotFound)
}

func TestStore_ConsumeAuthCode_WrongClient(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.SaveAuthCode(ctx, &domain.AuthCode{Code: "code-1", ClientID: "web-app"}))

	_, err := s.ConsumeAuthCode(ctx, "code-1", "other-client")
	assert.ErrorIs(t, err, serrors.ErrAuthCodeNotFound)
}

func TestStore_ConsumeAuthCode_Concurrent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.SaveAuthCode(ctx, &domain.AuthCode{Code: "code-1", ClientID: "web-app"}))

	const attempts = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumeAuthCode(ctx, "code-1", "web-app"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestStore_ConsumeRefreshToken_Concurrent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.StoreToken(ctx, &domain.Token{
		ID: "t1", TokenType: domain.TokenTypeRefresh, TokenValue: "refresh-1",
		ClientID:  "web-app",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}))

	const attempts = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumeRefreshToken(ctx, "refresh-1"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)

	// Still visible to lookups so replay detection can see the flag.
	token, err := s.GetRefreshToken(ctx, "refresh-1")
	require.NoError(t, err)
	assert.True(t, token.Consumed)
}

func TestStore_ConsumeDeviceAuth_Concurrent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.SaveDeviceAuth(ctx, &domain.DeviceAuth{
		DeviceCode: "dev-1", UserCode: "WDJB-MJHT", ClientID: "cli-tool",
		Status:    domain.DeviceAuthAuthorized,
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}))

	const attempts = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ConsumeDeviceAuth(ctx, "dev-1"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestStore_StoreToken_DuplicateValue(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.StoreToken(ctx, &domain.Token{
		ID: "t1", TokenType: domain.TokenTypeAccess, TokenValue: "value-1",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}))

	err := s.StoreToken(ctx, &domain.Token{
		ID: "t2", TokenType: domain.TokenTypeAccess, TokenValue: "value-1",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	})
	assert.ErrorIs(t, err, serrors.ErrTokenValueExists)
}

func TestStore_GetAccessToken_FiltersExpiredAndRevoked(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.StoreToken(ctx, &domain.Token{
		ID: "t1", TokenType: domain.TokenTypeAccess, TokenValue: "expired",
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}))
	require.NoError(t, s.StoreToken(ctx, &domain.Token{
		ID: "t2", TokenType: domain.TokenTypeAccess, TokenValue: "revoked",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}))
	require.NoError(t, s.RevokeToken(ctx, "revoked"))

	_, err := s.GetAccessToken(ctx, "expired")
	assert.ErrorIs(t, err, serrors.ErrTokenNotFound)
	_, err = s.GetAccessToken(ctx, "revoked")
	assert.ErrorIs(t, err, serrors.ErrTokenNotFound)
}

func TestStore_RevokeTokenFamily(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	expiry := time.Now().UTC().Add(time.Hour)

	for _, v := range []string{"r1", "r2"} {
		require.NoError(t, s.StoreToken(ctx, &domain.Token{
			ID: v, TokenType: domain.TokenTypeRefresh, TokenValue: v,
			FamilyID: "family-1", ExpiresAt: expiry,
		}))
	}
	require.NoError(t, s.StoreToken(ctx, &domain.Token{
		ID: "r3", TokenType: domain.TokenTypeRefresh, TokenValue: "r3",
		FamilyID: "family-2", ExpiresAt: expiry,
	}))

	require.NoError(t, s.RevokeTokenFamily(ctx, "family-1"))

	_, err := s.GetRefreshToken(ctx, "r1")
	assert.ErrorIs(t, err, serrors.ErrTokenNotFound)
	_, err = s.GetRefreshToken(ctx, "r2")
	assert.ErrorIs(t, err, serrors.ErrTokenNotFound)

	// Other families are untouched.
	_, err = s.GetRefreshToken(ctx, "r3")
	assert.NoError(t, err)
}

func TestStore_DeviceAuthLifecycle(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.SaveDeviceAuth(ctx, &domain.DeviceAuth{
		DeviceCode: "dev-1", UserCode: "WDJB-MJHT", ClientID: "cli-tool",
		Status:    domain.DeviceAuthPending,
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}))

	auth, err := s.GetDeviceAuthByUserCode(ctx, "WDJB-MJHT")
	require.NoError(t, err)
	assert.Equal(t, "dev-1", auth.DeviceCode)

	approved, err := s.ApproveDeviceAuth(ctx, "WDJB-MJHT", "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceAuthAuthorized, approved.Status)
	assert.Equal(t, "user-1", approved.UserID)

	// Approval is not idempotent: the pending precondition fails now.
	_, err = s.ApproveDeviceAuth(ctx, "WDJB-MJHT", "user-2")
	assert.ErrorIs(t, err, serrors.ErrCannotApproveDeviceAuth)

	consumed, err := s.ConsumeDeviceAuth(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceAuthRedeemed, consumed.Status)

	// Terminal states survive expiry marking.
	require.NoError(t, s.MarkDeviceAuthExpired(ctx, "dev-1"))
	auth, err = s.GetDeviceAuthByDeviceCode(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceAuthRedeemed, auth.Status)
}

func TestStore_DeleteExpired(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Minute)
	future := time.Now().UTC().Add(time.Hour)

	require.NoError(t, s.SaveAuthCode(ctx, &domain.AuthCode{Code: "old", ExpiresAt: past}))
	require.NoError(t, s.SaveAuthCode(ctx, &domain.AuthCode{Code: "new", ClientID: "c", ExpiresAt: future}))
	require.NoError(t, s.StoreToken(ctx, &domain.Token{ID: "t", TokenType: domain.TokenTypeAccess, TokenValue: "old", ExpiresAt: past}))
	require.NoError(t, s.SaveDeviceAuth(ctx, &domain.DeviceAuth{DeviceCode: "old", UserCode: "U", ExpiresAt: past}))

	require.NoError(t, s.DeleteExpiredAuthCodes(ctx))
	require.NoError(t, s.DeleteExpiredTokens(ctx))
	require.NoError(t, s.DeleteExpiredDeviceAuths(ctx))

	_, err := s.ConsumeAuthCode(ctx, "old", "")
	assert.ErrorIs(t, err, serrors.ErrAuthCodeNotFound)
	_, err = s.ConsumeAuthCode(ctx, "new", "c")
	assert.NoError(t, err)
	_, err = s.GetDeviceAuthByDeviceCode(ctx, "old")
	assert.ErrorIs(t, err, serrors.ErrDeviceCodeNotFound)
}

// Package memory provides mutex-guarded in-memory implementations of
// the storage interfaces. Grant handlers are pure functions of
// (request, store), so this backend makes them testable without a
// database and serves single-node development setups.
package memory

import (
	"context"
	"sync"
	"time"

	"go.tasknest.io/auth/domain"
	serrors "go.tasknest.io/auth/errors"
)

// Store implements every repository interface of the domain package.
// All conditional updates happen under one mutex, which gives the same
// single-consumption guarantee the Mongo layer gets from conditional
// FindOneAndUpdate.
type Store struct {
	mu          sync.Mutex
	clients     map[string]*domain.Client     // by client_id
	authCodes   map[string]*domain.AuthCode   // by code
	deviceAuths map[string]*domain.DeviceAuth // by device_code
	userCodes   map[string]string             // user_code -> device_code
	tokens      map[string]*domain.Token      // by token_value
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		clients:     make(map[string]*domain.Client),
		authCodes:   make(map[string]*domain.AuthCode),
		deviceAuths: make(map[string]*domain.DeviceAuth),
		userCodes:   make(map[string]string),
		tokens:      make(map[string]*domain.Token),
	}
}

// --- domain.ClientRepository ---

func (s *Store) CreateClient(_ context.Context, cli *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cli
	s.clients[cli.ID] = &cp
	return nil
}

func (s *Store) GetClient(_ context.Context, clientID string) (*domain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cli, ok := s.clients[clientID]
	if !ok {
		return nil, serrors.ErrClientNotFound
	}
	cp := *cli
	return &cp, nil
}

func (s *Store) UpdateClient(_ context.Context, cli *domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[cli.ID]; !ok {
		return serrors.ErrClientNotFound
	}
	cp := *cli
	cp.UpdatedAt = time.Now().UTC()
	s.clients[cli.ID] = &cp
	return nil
}

func (s *Store) DeactivateClient(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cli, ok := s.clients[clientID]
	if !ok {
		return serrors.ErrClientNotFound
	}
	cli.Active = false
	cli.UpdatedAt = time.Now().UTC()
	return nil
}

// --- domain.AuthCodeRepository ---

func (s *Store) SaveAuthCode(_ context.Context, code *domain.AuthCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *code
	s.authCodes[code.Code] = &cp
	return nil
}

func (s *Store) ConsumeAuthCode(_ context.Context, code, clientID string) (*domain.AuthCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ac, ok := s.authCodes[code]
	if !ok || ac.Used || ac.ClientID != clientID {
		return nil, serrors.ErrAuthCodeNotFound
	}
	ac.Used = true
	cp := *ac
	return &cp, nil
}

func (s *Store) DeleteExpiredAuthCodes(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for code, ac := range s.authCodes {
		if ac.IsExpired(now) {
			delete(s.authCodes, code)
		}
	}
	return nil
}

// --- domain.DeviceAuthRepository ---

func (s *Store) SaveDeviceAuth(_ context.Context, auth *domain.DeviceAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *auth
	s.deviceAuths[auth.DeviceCode] = &cp
	s.userCodes[auth.UserCode] = auth.DeviceCode
	return nil
}

func (s *Store) GetDeviceAuthByDeviceCode(_ context.Context, deviceCode string) (*domain.DeviceAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, ok := s.deviceAuths[deviceCode]
	if !ok {
		return nil, serrors.ErrDeviceCodeNotFound
	}
	cp := *auth
	return &cp, nil
}

func (s *Store) GetDeviceAuthByUserCode(_ context.Context, userCode string) (*domain.DeviceAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, ok := s.lookupByUserCode(userCode)
	if !ok || auth.IsExpired(time.Now().UTC()) {
		return nil, serrors.ErrUserCodeNotFound
	}
	cp := *auth
	return &cp, nil
}

func (s *Store) ApproveDeviceAuth(_ context.Context, userCode, userID string) (*domain.DeviceAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, ok := s.lookupByUserCode(userCode)
	if !ok || auth.Status != domain.DeviceAuthPending || auth.IsExpired(time.Now().UTC()) {
		return nil, serrors.ErrCannotApproveDeviceAuth
	}
	auth.Status = domain.DeviceAuthAuthorized
	auth.UserID = userID
	cp := *auth
	return &cp, nil
}

func (s *Store) DenyDeviceAuth(_ context.Context, userCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, ok := s.lookupByUserCode(userCode)
	if !ok || auth.Status != domain.DeviceAuthPending {
		return serrors.ErrCannotApproveDeviceAuth
	}
	auth.Status = domain.DeviceAuthDenied
	return nil
}

func (s *Store) ConsumeDeviceAuth(_ context.Context, deviceCode string) (*domain.DeviceAuth, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, ok := s.deviceAuths[deviceCode]
	if !ok || auth.Status != domain.DeviceAuthAuthorized {
		return nil, serrors.ErrDeviceCodeNotFound
	}
	auth.Status = domain.DeviceAuthRedeemed
	cp := *auth
	return &cp, nil
}

func (s *Store) MarkDeviceAuthExpired(_ context.Context, deviceCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, ok := s.deviceAuths[deviceCode]
	if !ok {
		return serrors.ErrDeviceCodeNotFound
	}
	// Terminal states stay terminal.
	if auth.Status == domain.DeviceAuthPending || auth.Status == domain.DeviceAuthAuthorized {
		auth.Status = domain.DeviceAuthExpired
	}
	return nil
}

func (s *Store) TouchDeviceAuthPolledAt(_ context.Context, deviceCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, ok := s.deviceAuths[deviceCode]
	if !ok {
		return serrors.ErrDeviceCodeNotFound
	}
	auth.LastPolledAt = time.Now().UTC()
	return nil
}

func (s *Store) DeleteExpiredDeviceAuths(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for deviceCode, auth := range s.deviceAuths {
		if auth.IsExpired(now) {
			delete(s.userCodes, auth.UserCode)
			delete(s.deviceAuths, deviceCode)
		}
	}
	return nil
}

func (s *Store) lookupByUserCode(userCode string) (*domain.DeviceAuth, bool) {
	deviceCode, ok := s.userCodes[userCode]
	if !ok {
		return nil, false
	}
	auth, ok := s.deviceAuths[deviceCode]
	return auth, ok
}

// --- domain.TokenRepository ---

func (s *Store) StoreToken(_ context.Context, token *domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[token.TokenValue]; exists {
		return serrors.ErrTokenValueExists
	}
	cp := *token
	s.tokens[token.TokenValue] = &cp
	return nil
}

func (s *Store) GetAccessToken(_ context.Context, tokenValue string) (*domain.Token, error) {
	return s.getToken(tokenValue, domain.TokenTypeAccess)
}

func (s *Store) GetRefreshToken(_ context.Context, tokenValue string) (*domain.Token, error) {
	return s.getToken(tokenValue, domain.TokenTypeRefresh)
}

func (s *Store) getToken(tokenValue, tokenType string) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[tokenValue]
	if !ok || token.TokenType != tokenType || token.Revoked || token.IsExpired(time.Now().UTC()) {
		return nil, serrors.ErrTokenNotFound
	}
	cp := *token
	return &cp, nil
}

func (s *Store) ConsumeRefreshToken(_ context.Context, tokenValue string) (*domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[tokenValue]
	if !ok || token.TokenType != domain.TokenTypeRefresh || token.Revoked || token.Consumed {
		return nil, serrors.ErrTokenNotFound
	}
	token.Consumed = true
	cp := *token
	return &cp, nil
}

func (s *Store) RevokeToken(_ context.Context, tokenValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token, ok := s.tokens[tokenValue]; ok {
		token.Revoked = true
	}
	return nil
}

func (s *Store) RevokeTokenFamily(_ context.Context, familyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if familyID == "" {
		return nil
	}
	for _, token := range s.tokens {
		if token.FamilyID == familyID {
			token.Revoked = true
		}
	}
	return nil
}

func (s *Store) DeleteExpiredTokens(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for value, token := range s.tokens {
		if token.IsExpired(now) {
			delete(s.tokens, value)
		}
	}
	return nil
}

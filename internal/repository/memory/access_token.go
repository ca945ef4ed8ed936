package memory

import (
	"context"
	"sync"
	"time"

	"github.com/codetrial/broker-backend-go/internal/domain/accesstoken"
)

type tokenStore struct {
	mu      sync.RWMutex
	entries map[string]accesstoken.AccessToken // keyed by token id
}

// NewTokenRepository creates an in-memory access token repository
func NewTokenRepository() accesstoken.TokenRepository {
	return &tokenStore{entries: make(map[string]accesstoken.AccessToken)}
}

func (s *tokenStore) Create(_ context.Context, tok accesstoken.AccessToken) (accesstoken.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tok.ID] = tok
	return tok, nil
}

func (s *tokenStore) GetByHash(_ context.Context, hash string) (accesstoken.AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tok := range s.entries {
		if tok.OpaqueTokenHash == hash {
			return tok, nil
		}
	}
	return accesstoken.AccessToken{}, accesstoken.ErrTokenNotFound
}

func (s *tokenStore) MarkUsed(_ context.Context, id string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.entries[id]
	if !ok {
		return accesstoken.ErrTokenNotFound
	}
	tok.LastUsedAt = &usedAt
	s.entries[id] = tok
	return nil
}

func (s *tokenStore) RevokeAllForInvitation(_ context.Context, invitationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, tok := range s.entries {
		if tok.InvitationID == invitationID && !tok.Revoked && !tok.Expired(now) {
			tok.Revoked = true
			s.entries[id] = tok
		}
	}
	return nil
}

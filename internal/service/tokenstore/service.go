// Package tokenstore implements the opaque bearer token store on top of
// the token repository and the keyed hasher.
package tokenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/codetrial/broker-backend-go/internal/domain/accesstoken"
	"github.com/codetrial/broker-backend-go/internal/pkg/opaque"
	"github.com/google/uuid"
)

type service struct {
	tokens accesstoken.TokenRepository
	hasher *opaque.Hasher
}

// NewService creates a token store backed by the given repository
func NewService(tokens accesstoken.TokenRepository, hasher *opaque.Hasher) accesstoken.TokenStore {
	return &service{tokens: tokens, hasher: hasher}
}

// Mint implements accesstoken.TokenStore.
func (s *service) Mint(ctx context.Context, invitationID, repoFullName string, scope accesstoken.Scope, ttl time.Duration) (string, accesstoken.AccessToken, error) {
	if !scope.Valid() {
		return "", accesstoken.AccessToken{}, fmt.Errorf("unknown token scope %q", scope)
	}
	if ttl <= 0 {
		return "", accesstoken.AccessToken{}, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	plaintext, err := opaque.Generate()
	if err != nil {
		return "", accesstoken.AccessToken{}, err
	}

	now := time.Now()
	tok := accesstoken.AccessToken{
		ID:              uuid.New().String(),
		InvitationID:    invitationID,
		RepoFullName:    repoFullName,
		OpaqueTokenHash: s.hasher.Hash(plaintext),
		Scope:           scope,
		ExpiresAt:       now.Add(ttl),
		CreatedAt:       now,
	}

	created, err := s.tokens.Create(ctx, tok)
	if err != nil {
		return "", accesstoken.AccessToken{}, fmt.Errorf("failed to store token: %w", err)
	}

	return plaintext, created, nil
}

// Validate implements accesstoken.TokenStore.
func (s *service) Validate(ctx context.Context, plaintext string) (accesstoken.AccessToken, error) {
	if plaintext == "" {
		return accesstoken.AccessToken{}, accesstoken.ErrTokenNotFound
	}

	tok, err := s.tokens.GetByHash(ctx, s.hasher.Hash(plaintext))
	if err != nil {
		return accesstoken.AccessToken{}, err
	}

	// The lookup is by keyed digest, so a hit already proves possession;
	// the constant-time compare guards against a lookup layer that
	// matches more loosely than exact equality.
	if !s.hasher.Verify(plaintext, tok.OpaqueTokenHash) {
		return accesstoken.AccessToken{}, accesstoken.ErrTokenNotFound
	}

	if tok.Revoked {
		return accesstoken.AccessToken{}, accesstoken.ErrTokenRevoked
	}

	now := time.Now()
	if tok.Expired(now) {
		return accesstoken.AccessToken{}, accesstoken.ErrTokenExpired
	}

	if err := s.tokens.MarkUsed(ctx, tok.ID, now); err != nil {
		return accesstoken.AccessToken{}, fmt.Errorf("failed to record token use: %w", err)
	}
	tok.LastUsedAt = &now

	return tok, nil
}

// RevokeAll implements accesstoken.TokenStore.
func (s *service) RevokeAll(ctx context.Context, invitationID string) error {
	return s.tokens.RevokeAllForInvitation(ctx, invitationID)
}

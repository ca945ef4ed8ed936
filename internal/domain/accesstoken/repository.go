package accesstoken

import (
	"context"
	"time"
)

// TokenRepository defines the interface for access token persistence
type TokenRepository interface {
	// Create persists a freshly minted token record
	Create(ctx context.Context, tok AccessToken) (AccessToken, error)

	// GetByHash retrieves a token by its stored hash, or ErrTokenNotFound
	GetByHash(ctx context.Context, hash string) (AccessToken, error)

	// MarkUsed updates last_used_at without touching expires_at
	MarkUsed(ctx context.Context, id string, usedAt time.Time) error

	// RevokeAllForInvitation marks every non-expired token of an
	// invitation revoked in one atomic update
	RevokeAllForInvitation(ctx context.Context, invitationID string) error
}

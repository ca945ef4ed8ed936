package accesstoken

import (
	"context"
	"time"
)

// TokenStore mints, validates and revokes opaque bearer tokens. Minted
// plaintext is returned exactly once and never persisted or logged.
type TokenStore interface {
	// Mint generates a token scoped to (invitation, repo, scope) with a
	// fixed ttl and returns the plaintext alongside the stored record
	Mint(ctx context.Context, invitationID, repoFullName string, scope Scope, ttl time.Duration) (string, AccessToken, error)

	// Validate hashes the presented value, looks it up and rejects
	// not-found, expired and revoked tokens distinctly. A successful
	// validation touches last_used_at but never extends expiry.
	Validate(ctx context.Context, plaintext string) (AccessToken, error)

	// RevokeAll invalidates every outstanding token for an invitation
	RevokeAll(ctx context.Context, invitationID string) error
}

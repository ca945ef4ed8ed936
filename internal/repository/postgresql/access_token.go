package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/codetrial/broker-backend-go/internal/domain/accesstoken"
	"github.com/codetrial/broker-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const accessTokenColumns = `
	id, invitation_id, repo_full_name, opaque_token_hash, scope,
	expires_at, revoked, last_used_at, created_at
`

type tokenRepositoryImpl struct {
	db *database.DB
}

// NewTokenRepository creates a new access token repository instance
func NewTokenRepository(db *database.DB) accesstoken.TokenRepository {
	return &tokenRepositoryImpl{db: db}
}

func scanAccessToken(row pgx.Row) (accesstoken.AccessToken, error) {
	var tok accesstoken.AccessToken
	err := row.Scan(
		&tok.ID, &tok.InvitationID, &tok.RepoFullName, &tok.OpaqueTokenHash,
		&tok.Scope, &tok.ExpiresAt, &tok.Revoked, &tok.LastUsedAt, &tok.CreatedAt,
	)
	return tok, err
}

// Create implements accesstoken.TokenRepository.
func (r *tokenRepositoryImpl) Create(ctx context.Context, tok accesstoken.AccessToken) (accesstoken.AccessToken, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO access_tokens (
			id, invitation_id, repo_full_name, opaque_token_hash, scope,
			expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + accessTokenColumns

	created, err := scanAccessToken(q.QueryRow(ctx, query,
		tok.ID, tok.InvitationID, tok.RepoFullName, tok.OpaqueTokenHash,
		tok.Scope, tok.ExpiresAt, tok.CreatedAt,
	))
	if err != nil {
		return accesstoken.AccessToken{}, fmt.Errorf("failed to create access token: %w", err)
	}

	return created, nil
}

// GetByHash implements accesstoken.TokenRepository.
func (r *tokenRepositoryImpl) GetByHash(ctx context.Context, hash string) (accesstoken.AccessToken, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + accessTokenColumns + ` FROM access_tokens WHERE opaque_token_hash = $1`

	tok, err := scanAccessToken(q.QueryRow(ctx, query, hash))
	if err != nil {
		if err == pgx.ErrNoRows {
			return tok, accesstoken.ErrTokenNotFound
		}
		return tok, fmt.Errorf("failed to get access token by hash: %w", err)
	}

	return tok, nil
}

// MarkUsed implements accesstoken.TokenRepository. Only last_used_at
// moves; expires_at is fixed at mint time.
func (r *tokenRepositoryImpl) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE access_tokens
		SET last_used_at = $2
		WHERE id = $1
		RETURNING id
	`

	var updatedID string
	err := q.QueryRow(ctx, query, id, usedAt).Scan(&updatedID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return accesstoken.ErrTokenNotFound
		}
		return fmt.Errorf("failed to mark access token as used: %w", err)
	}

	return nil
}

// RevokeAllForInvitation implements accesstoken.TokenRepository. One
// statement so the revocation is atomic across all outstanding tokens.
func (r *tokenRepositoryImpl) RevokeAllForInvitation(ctx context.Context, invitationID string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE access_tokens
		SET revoked = TRUE
		WHERE invitation_id = $1 AND revoked = FALSE AND expires_at > NOW()
	`

	if _, err := q.Exec(ctx, query, invitationID); err != nil {
		return fmt.Errorf("failed to revoke access tokens: %w", err)
	}

	return nil
}

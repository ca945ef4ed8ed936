package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/codetrial/broker-backend-go/internal/domain/invitation"
	"github.com/codetrial/broker-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const invitationColumns = `
	id, assessment_id, candidate_email, candidate_name, status,
	start_link_token_hash, sent_at, start_deadline, complete_deadline,
	started_at, submitted_at, expired_at, revoked_at
`

type invitationRepositoryImpl struct {
	db *database.DB
}

// NewInvitationRepository creates a new invitation repository instance
func NewInvitationRepository(db *database.DB) invitation.InvitationRepository {
	return &invitationRepositoryImpl{db: db}
}

func scanInvitation(row pgx.Row) (invitation.Invitation, error) {
	var inv invitation.Invitation
	err := row.Scan(
		&inv.ID, &inv.AssessmentID, &inv.CandidateEmail, &inv.CandidateName, &inv.Status,
		&inv.StartLinkTokenHash, &inv.SentAt, &inv.StartDeadline, &inv.CompleteDeadline,
		&inv.StartedAt, &inv.SubmittedAt, &inv.ExpiredAt, &inv.RevokedAt,
	)
	return inv, err
}

// Create implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) Create(ctx context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO invitations (
			id, assessment_id, candidate_email, candidate_name, status,
			start_link_token_hash, sent_at, start_deadline
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + invitationColumns

	created, err := scanInvitation(q.QueryRow(ctx, query,
		inv.ID, inv.AssessmentID, inv.CandidateEmail, inv.CandidateName,
		inv.Status, inv.StartLinkTokenHash, inv.SentAt, inv.StartDeadline,
	))
	if err != nil {
		return invitation.Invitation{}, fmt.Errorf("failed to create invitation: %w", err)
	}

	return created, nil
}

// GetByID implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) GetByID(ctx context.Context, id string) (invitation.Invitation, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`

	inv, err := scanInvitation(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return inv, invitation.ErrInvitationNotFound
		}
		return inv, fmt.Errorf("failed to get invitation: %w", err)
	}

	return inv, nil
}

// GetByStartTokenHash implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) GetByStartTokenHash(ctx context.Context, hash string) (invitation.Invitation, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE start_link_token_hash = $1`

	inv, err := scanInvitation(q.QueryRow(ctx, query, hash))
	if err != nil {
		if err == pgx.ErrNoRows {
			return inv, invitation.ErrInvitationNotFound
		}
		return inv, fmt.Errorf("failed to get invitation by token hash: %w", err)
	}

	return inv, nil
}

// MarkAccepted implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) MarkAccepted(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE invitations
		SET status = 'accepted'
		WHERE id = $1 AND status = 'sent'
		RETURNING id
	`

	var updatedID string
	err := q.QueryRow(ctx, query, id).Scan(&updatedID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return invitation.ErrInvalidTransition
		}
		return fmt.Errorf("failed to mark invitation as accepted: %w", err)
	}

	return nil
}

// MarkStarted implements invitation.InvitationRepository. The status
// guard makes the transition safe against a concurrent writer in another
// process: a second start loses the race and observes no rows.
func (r *invitationRepositoryImpl) MarkStarted(ctx context.Context, id string, startedAt, completeDeadline time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE invitations
		SET status = 'started', started_at = $2, complete_deadline = $3
		WHERE id = $1 AND status IN ('sent', 'accepted')
		RETURNING id
	`

	var updatedID string
	err := q.QueryRow(ctx, query, id, startedAt, completeDeadline).Scan(&updatedID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return invitation.ErrInvalidTransition
		}
		return fmt.Errorf("failed to mark invitation as started: %w", err)
	}

	return nil
}

// MarkSubmitted implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) MarkSubmitted(ctx context.Context, id string, submittedAt time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE invitations
		SET status = 'submitted', submitted_at = $2
		WHERE id = $1 AND status = 'started'
		RETURNING id
	`

	var updatedID string
	err := q.QueryRow(ctx, query, id, submittedAt).Scan(&updatedID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return invitation.ErrInvalidTransition
		}
		return fmt.Errorf("failed to mark invitation as submitted: %w", err)
	}

	return nil
}

// MarkExpired implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) MarkExpired(ctx context.Context, id string, expiredAt time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE invitations
		SET status = 'expired', expired_at = $2
		WHERE id = $1 AND status IN ('sent', 'accepted', 'started')
		RETURNING id
	`

	var updatedID string
	err := q.QueryRow(ctx, query, id, expiredAt).Scan(&updatedID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return invitation.ErrInvalidTransition
		}
		return fmt.Errorf("failed to mark invitation as expired: %w", err)
	}

	return nil
}

// MarkRevoked implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) MarkRevoked(ctx context.Context, id string, revokedAt time.Time) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE invitations
		SET status = 'revoked', revoked_at = $2
		WHERE id = $1 AND status IN ('sent', 'accepted', 'started')
		RETURNING id
	`

	var updatedID string
	err := q.QueryRow(ctx, query, id, revokedAt).Scan(&updatedID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return invitation.ErrInvalidTransition
		}
		return fmt.Errorf("failed to mark invitation as revoked: %w", err)
	}

	return nil
}

// ListOverdue implements invitation.InvitationRepository.
func (r *invitationRepositoryImpl) ListOverdue(ctx context.Context, now time.Time) ([]invitation.Invitation, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE (status IN ('sent', 'accepted') AND start_deadline <= $1)
		   OR (status = 'started' AND complete_deadline IS NOT NULL AND complete_deadline <= $1)
		ORDER BY sent_at
	`

	rows, err := q.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue invitations: %w", err)
	}
	defer rows.Close()

	var invitations []invitation.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return invitations, nil
}

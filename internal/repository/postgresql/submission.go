package postgresql

import (
	"context"
	"fmt"

	"github.com/codetrial/broker-backend-go/internal/domain/invitation"
	"github.com/codetrial/broker-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type submissionRepositoryImpl struct {
	db *database.DB
}

// NewSubmissionRepository creates a new submission repository instance
func NewSubmissionRepository(db *database.DB) invitation.SubmissionRepository {
	return &submissionRepositoryImpl{db: db}
}

// Create implements invitation.SubmissionRepository. The unique
// constraint on invitation_id enforces at-most-one submission.
func (r *submissionRepositoryImpl) Create(ctx context.Context, sub invitation.Submission) (invitation.Submission, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO submissions (id, invitation_id, final_sha, repo_html_url, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, invitation_id, final_sha, repo_html_url, created_at
	`

	var created invitation.Submission
	err := q.QueryRow(ctx, query,
		sub.ID, sub.InvitationID, sub.FinalSHA, sub.RepoHTMLURL, sub.CreatedAt,
	).Scan(
		&created.ID, &created.InvitationID, &created.FinalSHA,
		&created.RepoHTMLURL, &created.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return invitation.Submission{}, invitation.ErrAlreadySubmitted
		}
		return invitation.Submission{}, fmt.Errorf("failed to create submission: %w", err)
	}

	return created, nil
}

// GetByInvitationID implements invitation.SubmissionRepository.
func (r *submissionRepositoryImpl) GetByInvitationID(ctx context.Context, invitationID string) (invitation.Submission, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT id, invitation_id, final_sha, repo_html_url, created_at
		FROM submissions
		WHERE invitation_id = $1
	`

	var sub invitation.Submission
	err := q.QueryRow(ctx, query, invitationID).Scan(
		&sub.ID, &sub.InvitationID, &sub.FinalSHA, &sub.RepoHTMLURL, &sub.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return sub, invitation.ErrInvitationNotFound
		}
		return sub, fmt.Errorf("failed to get submission: %w", err)
	}

	return sub, nil
}

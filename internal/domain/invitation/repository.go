package invitation

import (
	"context"
	"time"
)

// InvitationRepository defines the interface for invitation data access
type InvitationRepository interface {
	// Create persists a new invitation (status sent, deadline computed)
	Create(ctx context.Context, inv Invitation) (Invitation, error)

	// GetByID retrieves an invitation by id
	GetByID(ctx context.Context, id string) (Invitation, error)

	// GetByStartTokenHash retrieves an invitation by the keyed hash of
	// its start-link token
	GetByStartTokenHash(ctx context.Context, hash string) (Invitation, error)

	// MarkAccepted records the candidate opening the start link
	MarkAccepted(ctx context.Context, id string) error

	// MarkStarted records the start transition: startedAt and the
	// computed complete deadline in one update
	MarkStarted(ctx context.Context, id string, startedAt, completeDeadline time.Time) error

	// MarkSubmitted records the submit transition
	MarkSubmitted(ctx context.Context, id string, submittedAt time.Time) error

	// MarkExpired records a deadline-driven expiry
	MarkExpired(ctx context.Context, id string, expiredAt time.Time) error

	// MarkRevoked records an administrative revocation
	MarkRevoked(ctx context.Context, id string, revokedAt time.Time) error

	// ListOverdue lists non-terminal invitations whose governing
	// deadline has passed, for the sweep
	ListOverdue(ctx context.Context, now time.Time) ([]Invitation, error)
}

// CandidateRepoRepository defines the interface for candidate repo records
type CandidateRepoRepository interface {
	// Create persists the provisioned repository; at most one row per
	// invitation is accepted (ErrRepoAlreadyExists on a second insert)
	Create(ctx context.Context, repo CandidateRepo) (CandidateRepo, error)

	// GetByInvitationID retrieves the repo for an invitation, or
	// ErrRepoNotProvisioned
	GetByInvitationID(ctx context.Context, invitationID string) (CandidateRepo, error)
}

// SubmissionRepository defines the interface for submission records
type SubmissionRepository interface {
	// Create persists the final submission; at most one row per
	// invitation is accepted (ErrAlreadySubmitted on a second insert)
	Create(ctx context.Context, sub Submission) (Submission, error)

	// GetByInvitationID retrieves the submission for an invitation
	GetByInvitationID(ctx context.Context, invitationID string) (Submission, error)
}

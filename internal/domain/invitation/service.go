package invitation

import "context"

// BrokerService is the single entry point candidate tooling talks to. It
// drives the invitation state machine and composes repository
// provisioning and opaque token issuance behind it.
type BrokerService interface {
	// CreateAndIssue creates an invitation for an assessment, generates
	// the start-link token and returns its plaintext exactly once
	CreateAndIssue(ctx context.Context, req CreateRequest) (CreateResponse, error)

	// StartInfo returns the read-only start-page view for a start-link
	// token; promotes sent to accepted inside the start window
	StartInfo(ctx context.Context, startLinkToken string) (StartInfoResponse, error)

	// Start drives the start transition: provisions the candidate repo
	// (idempotently), mints an access token and computes the complete
	// deadline. Safe to retry; re-entry on a started invitation returns
	// the existing repo with a fresh token.
	Start(ctx context.Context, startLinkToken string) (StartResponse, error)

	// Submit drives the submit transition: records the submission and
	// revokes all outstanding access tokens
	Submit(ctx context.Context, startLinkToken string, req SubmitRequest) (SubmitResponse, error)

	// ExchangeCredential swaps a valid opaque access token for a live,
	// repo-scoped upstream credential
	ExchangeCredential(ctx context.Context, opaqueToken string) (CredentialResponse, error)

	// GetByID returns an invitation for the admin API
	GetByID(ctx context.Context, id string) (Invitation, error)

	// Revoke administratively terminates a non-terminal invitation and
	// invalidates all of its access tokens
	Revoke(ctx context.Context, invitationID string) error

	// ExpireOverdue transitions invitations past their governing
	// deadline to expired and revokes their tokens. Returns the number
	// of invitations expired. Lazy checks at access time remain
	// authoritative; this is the periodic backstop.
	ExpireOverdue(ctx context.Context) (int, error)
}

// Package broker drives the invitation state machine and composes
// repository provisioning, opaque token issuance and upstream credential
// exchange behind one service.
package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codetrial/broker-backend-go/internal/domain/accesstoken"
	"github.com/codetrial/broker-backend-go/internal/domain/assessment"
	"github.com/codetrial/broker-backend-go/internal/domain/invitation"
	"github.com/codetrial/broker-backend-go/internal/domain/seed"
	"github.com/codetrial/broker-backend-go/internal/pkg/database"
	"github.com/codetrial/broker-backend-go/internal/pkg/lock"
	"github.com/codetrial/broker-backend-go/internal/pkg/opaque"
	"github.com/google/uuid"
)

// Provisioner creates the candidate repository for an invitation, at
// most once.
type Provisioner interface {
	Provision(ctx context.Context, inv invitation.Invitation, sd seed.Seed) (invitation.CandidateRepo, error)
}

// Authority mints short-lived repo-scoped upstream credentials.
type Authority interface {
	RepositoryToken(ctx context.Context, repoFullName string, permissions map[string]string) (string, time.Time, error)
}

type service struct {
	invitations invitation.InvitationRepository
	repos       invitation.CandidateRepoRepository
	submissions invitation.SubmissionRepository
	assessments assessment.AssessmentRepository
	seeds       seed.SeedRepository

	provisioner Provisioner
	tokens      accesstoken.TokenStore
	authority   Authority

	tx     database.TxManager
	hasher *opaque.Hasher
	locks  *lock.Keyed
	logger *slog.Logger
}

// Deps bundles the broker's collaborators.
type Deps struct {
	Invitations invitation.InvitationRepository
	Repos       invitation.CandidateRepoRepository
	Submissions invitation.SubmissionRepository
	Assessments assessment.AssessmentRepository
	Seeds       seed.SeedRepository
	Provisioner Provisioner
	Tokens      accesstoken.TokenStore
	Authority   Authority
	Tx          database.TxManager
	Hasher      *opaque.Hasher
	Logger      *slog.Logger
}

// NewService creates a new broker service instance
func NewService(d Deps) invitation.BrokerService {
	return &service{
		invitations: d.Invitations,
		repos:       d.Repos,
		submissions: d.Submissions,
		assessments: d.Assessments,
		seeds:       d.Seeds,
		provisioner: d.Provisioner,
		tokens:      d.Tokens,
		authority:   d.Authority,
		tx:          d.Tx,
		hasher:      d.Hasher,
		locks:       lock.NewKeyed(),
		logger:      d.Logger,
	}
}

// CreateAndIssue implements invitation.BrokerService.
func (s *service) CreateAndIssue(ctx context.Context, req invitation.CreateRequest) (invitation.CreateResponse, error) {
	if err := req.Validate(); err != nil {
		return invitation.CreateResponse{}, err
	}

	a, err := s.assessments.GetByID(ctx, req.AssessmentID)
	if err != nil {
		return invitation.CreateResponse{}, err
	}

	plaintext, err := opaque.Generate()
	if err != nil {
		return invitation.CreateResponse{}, err
	}

	now := time.Now()
	inv := invitation.Invitation{
		ID:                 uuid.New().String(),
		AssessmentID:       a.ID,
		CandidateEmail:     req.CandidateEmail,
		CandidateName:      req.CandidateName,
		Status:             invitation.StatusSent,
		StartLinkTokenHash: s.hasher.Hash(plaintext),
		SentAt:             now,
		StartDeadline:      now.Add(a.TimeToStart),
	}

	created, err := s.invitations.Create(ctx, inv)
	if err != nil {
		return invitation.CreateResponse{}, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.logger.InfoContext(ctx, "invitation created",
		slog.String("invitation_id", created.ID),
		slog.String("assessment_id", created.AssessmentID),
		slog.Time("start_deadline", created.StartDeadline),
	)

	return invitation.CreateResponse{Invitation: created, StartLinkToken: plaintext}, nil
}

// StartInfo implements invitation.BrokerService.
func (s *service) StartInfo(ctx context.Context, startLinkToken string) (invitation.StartInfoResponse, error) {
	inv, err := s.lookupByStartToken(ctx, startLinkToken)
	if err != nil {
		return invitation.StartInfoResponse{}, err
	}

	inv, _, err = s.expireIfOverdue(ctx, inv)
	if err != nil {
		return invitation.StartInfoResponse{}, err
	}

	// First open of the link acknowledges receipt.
	if inv.Status == invitation.StatusSent {
		if err := s.invitations.MarkAccepted(ctx, inv.ID); err == nil {
			inv.Status = invitation.StatusAccepted
		} else if !errors.Is(err, invitation.ErrInvalidTransition) {
			return invitation.StartInfoResponse{}, err
		}
	}

	a, err := s.assessments.GetByID(ctx, inv.AssessmentID)
	if err != nil {
		return invitation.StartInfoResponse{}, err
	}

	resp := invitation.StartInfoResponse{
		InvitationID:     inv.ID,
		Status:           inv.Status,
		CandidateEmail:   inv.CandidateEmail,
		CandidateName:    inv.CandidateName,
		AssessmentTitle:  a.Title,
		Instructions:     a.Instructions,
		SentAt:           inv.SentAt,
		StartDeadline:    inv.StartDeadline,
		CompleteDeadline: inv.CompleteDeadline,
		StartedAt:        inv.StartedAt,
		SubmittedAt:      inv.SubmittedAt,
	}

	if repo, err := s.repos.GetByInvitationID(ctx, inv.ID); err == nil {
		resp.CandidateRepo = repoDTO(repo)
	} else if !errors.Is(err, invitation.ErrRepoNotProvisioned) {
		return invitation.StartInfoResponse{}, err
	}

	return resp, nil
}

// Start implements invitation.BrokerService.
func (s *service) Start(ctx context.Context, startLinkToken string) (invitation.StartResponse, error) {
	inv, err := s.lookupByStartToken(ctx, startLinkToken)
	if err != nil {
		return invitation.StartResponse{}, err
	}

	// Per-invitation critical section: concurrent starts collapse to one
	// provisioning and one state transition.
	release := s.locks.Acquire(inv.ID)
	defer release()

	inv, err = s.invitations.GetByID(ctx, inv.ID)
	if err != nil {
		return invitation.StartResponse{}, err
	}

	inv, expired, err := s.expireIfOverdue(ctx, inv)
	if err != nil {
		return invitation.StartResponse{}, err
	}
	if expired {
		return invitation.StartResponse{}, invitation.ErrDeadlineExceeded
	}

	switch inv.Status {
	case invitation.StatusStarted:
		return s.reenterStart(ctx, inv)
	case invitation.StatusSent, invitation.StatusAccepted:
		return s.firstStart(ctx, inv)
	case invitation.StatusSubmitted:
		return invitation.StartResponse{}, invitation.ErrAlreadySubmitted
	case invitation.StatusExpired:
		return invitation.StartResponse{}, invitation.ErrDeadlineExceeded
	default:
		return invitation.StartResponse{}, invitation.ErrInvalidTransition
	}
}

// firstStart provisions the repo, flips the invitation to started and
// mints the first access token. Provisioning happens before the state
// transition so a failed upstream call leaves the invitation startable.
func (s *service) firstStart(ctx context.Context, inv invitation.Invitation) (invitation.StartResponse, error) {
	a, err := s.assessments.GetByID(ctx, inv.AssessmentID)
	if err != nil {
		return invitation.StartResponse{}, err
	}
	sd, err := s.seeds.GetByID(ctx, a.SeedID)
	if err != nil {
		return invitation.StartResponse{}, err
	}

	repo, err := s.provisioner.Provision(ctx, inv, sd)
	if err != nil {
		return invitation.StartResponse{}, err
	}

	now := time.Now()
	completeDeadline := now.Add(a.TimeToComplete)
	if err := s.invitations.MarkStarted(ctx, inv.ID, now, completeDeadline); err != nil {
		return invitation.StartResponse{}, err
	}

	plaintext, tok, err := s.tokens.Mint(ctx, inv.ID, repo.RepoFullName, accesstoken.ScopeClonePush, a.TimeToComplete)
	if err != nil {
		return invitation.StartResponse{}, err
	}

	s.logger.InfoContext(ctx, "invitation started",
		slog.String("invitation_id", inv.ID),
		slog.String("repo", repo.RepoFullName),
		slog.Time("complete_deadline", completeDeadline),
	)

	return invitation.StartResponse{
		InvitationID:         inv.ID,
		Status:               invitation.StatusStarted,
		StartedAt:            now,
		CompleteDeadline:     completeDeadline,
		CandidateRepo:        *repoDTO(repo),
		AccessToken:          plaintext,
		AccessTokenExpiresAt: tok.ExpiresAt,
	}, nil
}

// reenterStart serves a retried start on an already-started invitation:
// same repo, fresh token clipped to the remaining complete window.
func (s *service) reenterStart(ctx context.Context, inv invitation.Invitation) (invitation.StartResponse, error) {
	repo, err := s.repos.GetByInvitationID(ctx, inv.ID)
	if err != nil {
		return invitation.StartResponse{}, err
	}

	ttl := time.Until(*inv.CompleteDeadline)
	if ttl <= 0 {
		return invitation.StartResponse{}, invitation.ErrDeadlineExceeded
	}

	plaintext, tok, err := s.tokens.Mint(ctx, inv.ID, repo.RepoFullName, accesstoken.ScopeClonePush, ttl)
	if err != nil {
		return invitation.StartResponse{}, err
	}

	return invitation.StartResponse{
		InvitationID:         inv.ID,
		Status:               inv.Status,
		StartedAt:            *inv.StartedAt,
		CompleteDeadline:     *inv.CompleteDeadline,
		CandidateRepo:        *repoDTO(repo),
		AccessToken:          plaintext,
		AccessTokenExpiresAt: tok.ExpiresAt,
	}, nil
}

// Submit implements invitation.BrokerService.
func (s *service) Submit(ctx context.Context, startLinkToken string, req invitation.SubmitRequest) (invitation.SubmitResponse, error) {
	if err := req.Validate(); err != nil {
		return invitation.SubmitResponse{}, err
	}

	inv, err := s.lookupByStartToken(ctx, startLinkToken)
	if err != nil {
		return invitation.SubmitResponse{}, err
	}

	release := s.locks.Acquire(inv.ID)
	defer release()

	inv, err = s.invitations.GetByID(ctx, inv.ID)
	if err != nil {
		return invitation.SubmitResponse{}, err
	}

	inv, expired, err := s.expireIfOverdue(ctx, inv)
	if err != nil {
		return invitation.SubmitResponse{}, err
	}
	if expired || inv.Status == invitation.StatusExpired {
		return invitation.SubmitResponse{}, invitation.ErrDeadlineExceeded
	}
	if inv.Status == invitation.StatusSubmitted {
		return invitation.SubmitResponse{}, invitation.ErrAlreadySubmitted
	}
	if inv.Status != invitation.StatusStarted {
		return invitation.SubmitResponse{}, invitation.ErrInvalidTransition
	}

	repo, err := s.repos.GetByInvitationID(ctx, inv.ID)
	if err != nil {
		return invitation.SubmitResponse{}, err
	}

	finalSHA := req.FinalSHA
	if finalSHA == "" {
		// Candidate never pushed; record the pinned starting point.
		finalSHA = repo.SeedSHAPinned
	}
	htmlURL := req.RepoHTMLURL
	if htmlURL == nil {
		htmlURL = repo.RepoHTMLURL
	}

	now := time.Now()
	sub := invitation.Submission{
		ID:           uuid.New().String(),
		InvitationID: inv.ID,
		FinalSHA:     finalSHA,
		RepoHTMLURL:  htmlURL,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		created, err := s.submissions.Create(ctx, sub)
		if err != nil {
			return err
		}
		sub = created
		if err := s.invitations.MarkSubmitted(ctx, inv.ID, now); err != nil {
			return err
		}
		return s.tokens.RevokeAll(ctx, inv.ID)
	})
	if err != nil {
		return invitation.SubmitResponse{}, err
	}

	s.logger.InfoContext(ctx, "invitation submitted",
		slog.String("invitation_id", inv.ID),
		slog.String("final_sha", finalSHA),
	)

	return invitation.SubmitResponse{
		InvitationID: inv.ID,
		SubmissionID: sub.ID,
		FinalSHA:     finalSHA,
		SubmittedAt:  now,
		Status:       invitation.StatusSubmitted,
	}, nil
}

// ExchangeCredential implements invitation.BrokerService.
func (s *service) ExchangeCredential(ctx context.Context, opaqueToken string) (invitation.CredentialResponse, error) {
	tok, err := s.tokens.Validate(ctx, opaqueToken)
	if err != nil {
		return invitation.CredentialResponse{}, err
	}

	if err := s.requireStarted(ctx, tok.InvitationID); err != nil {
		return invitation.CredentialResponse{}, err
	}

	password, upstreamExpiry, err := s.authority.RepositoryToken(ctx, tok.RepoFullName, permissionsFor(tok.Scope))
	if err != nil {
		return invitation.CredentialResponse{}, err
	}

	// A revoke or expiry may have committed while the upstream mint was
	// in flight; re-check under the lock before handing the credential
	// out.
	if err := s.requireStarted(ctx, tok.InvitationID); err != nil {
		return invitation.CredentialResponse{}, err
	}

	expiresAt := upstreamExpiry
	if tok.ExpiresAt.Before(expiresAt) {
		expiresAt = tok.ExpiresAt
	}

	return invitation.CredentialResponse{
		Username:     "x-access-token",
		Password:     password,
		RepoFullName: tok.RepoFullName,
		ExpiresAt:    expiresAt,
	}, nil
}

// requireStarted verifies, under the invitation's lock, that the
// invitation is still inside the working window. Tokens on a revoked,
// expired or submitted invitation are dead even if their own expiry has
// not passed.
func (s *service) requireStarted(ctx context.Context, invitationID string) error {
	release := s.locks.Acquire(invitationID)
	defer release()

	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return err
	}

	inv, expired, err := s.expireIfOverdue(ctx, inv)
	if err != nil {
		return err
	}
	if expired || inv.Status != invitation.StatusStarted {
		return accesstoken.ErrTokenRevoked
	}
	return nil
}

// GetByID implements invitation.BrokerService.
func (s *service) GetByID(ctx context.Context, id string) (invitation.Invitation, error) {
	inv, err := s.invitations.GetByID(ctx, id)
	if err != nil {
		return invitation.Invitation{}, err
	}
	inv, _, err = s.expireIfOverdue(ctx, inv)
	return inv, err
}

// Revoke implements invitation.BrokerService.
func (s *service) Revoke(ctx context.Context, invitationID string) error {
	release := s.locks.Acquire(invitationID)
	defer release()

	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.Status.IsTerminal() {
		return invitation.ErrInvalidTransition
	}

	now := time.Now()
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.invitations.MarkRevoked(ctx, inv.ID, now); err != nil {
			return err
		}
		return s.tokens.RevokeAll(ctx, inv.ID)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "invitation revoked", slog.String("invitation_id", inv.ID))
	return nil
}

// ExpireOverdue implements invitation.BrokerService.
func (s *service) ExpireOverdue(ctx context.Context) (int, error) {
	overdue, err := s.invitations.ListOverdue(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, inv := range overdue {
		release := s.locks.Acquire(inv.ID)

		current, err := s.invitations.GetByID(ctx, inv.ID)
		if err != nil {
			release()
			if errors.Is(err, invitation.ErrInvitationNotFound) {
				continue
			}
			return expired, err
		}

		_, didExpire, err := s.expireIfOverdue(ctx, current)
		release()
		if err != nil {
			return expired, err
		}
		if didExpire {
			expired++
		}
	}

	if expired > 0 {
		s.logger.InfoContext(ctx, "expired overdue invitations", slog.Int("count", expired))
	}
	return expired, nil
}

// lookupByStartToken resolves a start-link token to its invitation.
func (s *service) lookupByStartToken(ctx context.Context, token string) (invitation.Invitation, error) {
	if token == "" {
		return invitation.Invitation{}, invitation.ErrInvitationNotFound
	}
	return s.invitations.GetByStartTokenHash(ctx, s.hasher.Hash(token))
}

// expireIfOverdue transitions an overdue invitation to expired and
// revokes its tokens, atomically. Returns the refreshed invitation and
// whether this call performed the expiry. Losing the race to another
// expirer is fine; the refreshed row tells the caller the final state.
func (s *service) expireIfOverdue(ctx context.Context, inv invitation.Invitation) (invitation.Invitation, bool, error) {
	if !inv.Overdue(time.Now()) {
		return inv, false, nil
	}

	now := time.Now()
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.invitations.MarkExpired(ctx, inv.ID, now); err != nil {
			return err
		}
		return s.tokens.RevokeAll(ctx, inv.ID)
	})
	if err != nil {
		if errors.Is(err, invitation.ErrInvalidTransition) {
			refreshed, getErr := s.invitations.GetByID(ctx, inv.ID)
			if getErr != nil {
				return inv, false, getErr
			}
			return refreshed, false, nil
		}
		return inv, false, err
	}

	inv.Status = invitation.StatusExpired
	inv.ExpiredAt = &now

	s.logger.InfoContext(ctx, "invitation expired", slog.String("invitation_id", inv.ID))
	return inv, true, nil
}

// permissionsFor maps a token scope to upstream permission grants.
func permissionsFor(scope accesstoken.Scope) map[string]string {
	switch scope {
	case accesstoken.ScopeClone:
		return map[string]string{"contents": "read", "metadata": "read"}
	default:
		return map[string]string{"contents": "write", "metadata": "read"}
	}
}

func repoDTO(repo invitation.CandidateRepo) *invitation.CandidateRepoDTO {
	return &invitation.CandidateRepoDTO{
		RepoFullName:  repo.RepoFullName,
		RepoHTMLURL:   repo.RepoHTMLURL,
		SeedSHAPinned: repo.SeedSHAPinned,
	}
}

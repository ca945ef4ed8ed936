package memory

import (
	"context"
	"sync"
	"time"

	"github.com/codetrial/broker-backend-go/internal/domain/invitation"
)

type invitationStore struct {
	mu      sync.RWMutex
	entries map[string]invitation.Invitation
}

// NewInvitationRepository creates an in-memory invitation repository
func NewInvitationRepository() invitation.InvitationRepository {
	return &invitationStore{entries: make(map[string]invitation.Invitation)}
}

func (s *invitationStore) Create(_ context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[inv.ID] = inv
	return inv, nil
}

func (s *invitationStore) GetByID(_ context.Context, id string) (invitation.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.entries[id]
	if !ok {
		return invitation.Invitation{}, invitation.ErrInvitationNotFound
	}
	return inv, nil
}

func (s *invitationStore) GetByStartTokenHash(_ context.Context, hash string) (invitation.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.entries {
		if inv.StartLinkTokenHash == hash {
			return inv, nil
		}
	}
	return invitation.Invitation{}, invitation.ErrInvitationNotFound
}

func (s *invitationStore) MarkAccepted(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.entries[id]
	if !ok || !invitation.CanTransition(inv.Status, invitation.StatusAccepted) {
		return invitation.ErrInvalidTransition
	}
	inv.Status = invitation.StatusAccepted
	s.entries[id] = inv
	return nil
}

func (s *invitationStore) MarkStarted(_ context.Context, id string, startedAt, completeDeadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.entries[id]
	if !ok || !invitation.CanTransition(inv.Status, invitation.StatusStarted) {
		return invitation.ErrInvalidTransition
	}
	inv.Status = invitation.StatusStarted
	inv.StartedAt = &startedAt
	inv.CompleteDeadline = &completeDeadline
	s.entries[id] = inv
	return nil
}

func (s *invitationStore) MarkSubmitted(_ context.Context, id string, submittedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.entries[id]
	if !ok || !invitation.CanTransition(inv.Status, invitation.StatusSubmitted) {
		return invitation.ErrInvalidTransition
	}
	inv.Status = invitation.StatusSubmitted
	inv.SubmittedAt = &submittedAt
	s.entries[id] = inv
	return nil
}

func (s *invitationStore) MarkExpired(_ context.Context, id string, expiredAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.entries[id]
	if !ok || !invitation.CanTransition(inv.Status, invitation.StatusExpired) {
		return invitation.ErrInvalidTransition
	}
	inv.Status = invitation.StatusExpired
	inv.ExpiredAt = &expiredAt
	s.entries[id] = inv
	return nil
}

func (s *invitationStore) MarkRevoked(_ context.Context, id string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.entries[id]
	if !ok || !invitation.CanTransition(inv.Status, invitation.StatusRevoked) {
		return invitation.ErrInvalidTransition
	}
	inv.Status = invitation.StatusRevoked
	inv.RevokedAt = &revokedAt
	s.entries[id] = inv
	return nil
}

func (s *invitationStore) ListOverdue(_ context.Context, now time.Time) ([]invitation.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var overdue []invitation.Invitation
	for _, inv := range s.entries {
		if inv.Overdue(now) {
			overdue = append(overdue, inv)
		}
	}
	return overdue, nil
}

type candidateRepoStore struct {
	mu      sync.RWMutex
	entries map[string]invitation.CandidateRepo // keyed by invitation id
}

// NewCandidateRepoRepository creates an in-memory candidate repo repository
func NewCandidateRepoRepository() invitation.CandidateRepoRepository {
	return &candidateRepoStore{entries: make(map[string]invitation.CandidateRepo)}
}

func (s *candidateRepoStore) Create(_ context.Context, repo invitation.CandidateRepo) (invitation.CandidateRepo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[repo.InvitationID]; ok {
		return invitation.CandidateRepo{}, invitation.ErrRepoAlreadyExists
	}
	s.entries[repo.InvitationID] = repo
	return repo, nil
}

func (s *candidateRepoStore) GetByInvitationID(_ context.Context, invitationID string) (invitation.CandidateRepo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	repo, ok := s.entries[invitationID]
	if !ok {
		return invitation.CandidateRepo{}, invitation.ErrRepoNotProvisioned
	}
	return repo, nil
}

type submissionStore struct {
	mu      sync.RWMutex
	entries map[string]invitation.Submission // keyed by invitation id
}

// NewSubmissionRepository creates an in-memory submission repository
func NewSubmissionRepository() invitation.SubmissionRepository {
	return &submissionStore{entries: make(map[string]invitation.Submission)}
}

func (s *submissionStore) Create(_ context.Context, sub invitation.Submission) (invitation.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[sub.InvitationID]; ok {
		return invitation.Submission{}, invitation.ErrAlreadySubmitted
	}
	s.entries[sub.InvitationID] = sub
	return sub, nil
}

func (s *submissionStore) GetByInvitationID(_ context.Context, invitationID string) (invitation.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.entries[invitationID]
	if !ok {
		return invitation.Submission{}, invitation.ErrInvitationNotFound
	}
	return sub, nil
}

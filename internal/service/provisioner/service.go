// Package provisioner creates candidate repositories from seed templates,
// exactly once per invitation.
package provisioner

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codetrial/broker-backend-go/internal/domain/invitation"
	"github.com/codetrial/broker-backend-go/internal/domain/seed"
	"github.com/codetrial/broker-backend-go/internal/pkg/github"
	"github.com/google/uuid"
)

// Upstream is the slice of the repository API the provisioner needs.
type Upstream interface {
	BranchHeadSHA(ctx context.Context, repoFullName, branch string) (string, error)
	CreateFromTemplate(ctx context.Context, templateFullName, name, description string) (github.Repository, error)
	GetRepository(ctx context.Context, fullName string) (github.Repository, error)
}

// Config tunes repository naming and SHA pinning.
type Config struct {
	Organization    string
	CandidatePrefix string

	// PinFromCache pins the seed's cached head SHA when one is present
	// instead of resolving the live branch head on every start.
	PinFromCache bool
}

const maxNameAttempts = 3

// Service provisions candidate repositories. Provision is idempotent per
// invitation: the repos table holds one row per invitation at most, and
// concurrent callers are serialized above this layer.
type Service struct {
	upstream Upstream
	repos    invitation.CandidateRepoRepository
	cfg      Config
	logger   *slog.Logger
}

// NewService creates a new provisioner service instance
func NewService(upstream Upstream, repos invitation.CandidateRepoRepository, cfg Config, logger *slog.Logger) *Service {
	if cfg.CandidatePrefix == "" {
		cfg.CandidatePrefix = "candidate"
	}
	return &Service{upstream: upstream, repos: repos, cfg: cfg, logger: logger}
}

// Provision returns the invitation's candidate repository, creating it
// from the seed template if it does not exist yet. The seed head SHA is
// pinned at creation time and never changes afterwards.
func (s *Service) Provision(ctx context.Context, inv invitation.Invitation, sd seed.Seed) (invitation.CandidateRepo, error) {
	if existing, err := s.repos.GetByInvitationID(ctx, inv.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, invitation.ErrRepoNotProvisioned) {
		return invitation.CandidateRepo{}, err
	}

	pinned, err := s.resolveSeedSHA(ctx, sd)
	if err != nil {
		return invitation.CandidateRepo{}, err
	}

	repo, err := s.createWithFreshName(ctx, inv, sd)
	if err != nil {
		return invitation.CandidateRepo{}, err
	}

	record := invitation.CandidateRepo{
		ID:            uuid.New().String(),
		InvitationID:  inv.ID,
		RepoFullName:  repo.FullName,
		RepoHTMLURL:   &repo.HTMLURL,
		GitHubRepoID:  &repo.ID,
		SeedSHAPinned: pinned,
	}

	created, err := s.repos.Create(ctx, record)
	if err != nil {
		// Lost a race with a concurrent provision that slipped past the
		// serialization above us; the winner's row is the answer.
		if errors.Is(err, invitation.ErrRepoAlreadyExists) {
			return s.repos.GetByInvitationID(ctx, inv.ID)
		}
		return invitation.CandidateRepo{}, fmt.Errorf("failed to record candidate repo: %w", err)
	}

	s.logger.InfoContext(ctx, "candidate repository provisioned",
		slog.String("invitation_id", inv.ID),
		slog.String("repo", created.RepoFullName),
		slog.String("seed_sha", created.SeedSHAPinned),
	)

	return created, nil
}

// resolveSeedSHA decides what head commit the candidate starts from.
func (s *Service) resolveSeedSHA(ctx context.Context, sd seed.Seed) (string, error) {
	if s.cfg.PinFromCache && sd.LatestMainSHA != nil && *sd.LatestMainSHA != "" {
		return *sd.LatestMainSHA, nil
	}

	sha, err := s.upstream.BranchHeadSHA(ctx, sd.SeedRepoFullName, sd.DefaultBranch)
	if err != nil {
		if errors.Is(err, github.ErrUpstreamUnavailable) || errors.Is(err, github.ErrAuthorityUnavailable) {
			return "", fmt.Errorf("%w: %v", invitation.ErrProvisioningUnavailable, err)
		}
		return "", fmt.Errorf("failed to resolve seed head: %w", err)
	}
	return sha, nil
}

// createWithFreshName generates the repository, drawing a new random
// suffix on each name collision. Creation itself is never retried blind:
// a timed-out generate may have succeeded upstream, so that path
// re-checks before giving up.
func (s *Service) createWithFreshName(ctx context.Context, inv invitation.Invitation, sd seed.Seed) (github.Repository, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name, err := s.candidateRepoName(inv.CandidateEmail)
		if err != nil {
			return github.Repository{}, err
		}

		repo, err := s.upstream.CreateFromTemplate(ctx, sd.SeedRepoFullName, name, "take-home exercise")
		if err == nil {
			return repo, nil
		}

		if errors.Is(err, github.ErrNameTaken) {
			s.logger.WarnContext(ctx, "candidate repo name collision",
				slog.String("invitation_id", inv.ID),
				slog.String("name", name),
			)
			continue
		}

		if errors.Is(err, github.ErrUpstreamUnavailable) {
			// The generate call may have landed despite the error.
			if repo, checkErr := s.upstream.GetRepository(ctx, s.cfg.Organization+"/"+name); checkErr == nil {
				return repo, nil
			}
			return github.Repository{}, fmt.Errorf("%w: %v", invitation.ErrProvisioningUnavailable, err)
		}

		if errors.Is(err, github.ErrAuthorityUnavailable) {
			return github.Repository{}, fmt.Errorf("%w: %v", invitation.ErrProvisioningUnavailable, err)
		}

		return github.Repository{}, fmt.Errorf("failed to generate candidate repo: %w", err)
	}

	return github.Repository{}, invitation.ErrProvisioningConflict
}

// candidateRepoName builds "<prefix>-<slug>-<hex>" from the candidate's
// email local part plus a 3-byte random suffix.
func (s *Service) candidateRepoName(email string) (string, error) {
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("failed to generate name suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s-%s", s.cfg.CandidatePrefix, emailSlug(email), hex.EncodeToString(suffix)), nil
}

// emailSlug lowercases the local part of an email and squeezes anything
// outside [a-z0-9] into single dashes.
func emailSlug(email string) string {
	local := email
	if i := strings.IndexByte(local, '@'); i >= 0 {
		local = local[:i]
	}
	local = strings.ToLower(local)

	var b strings.Builder
	lastDash := true
	for _, r := range local {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		slug = "candidate"
	}
	return slug
}

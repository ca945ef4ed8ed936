package postgresql

import (
	"context"
	"fmt"

	"github.com/codetrial/broker-backend-go/internal/domain/invitation"
	"github.com/codetrial/broker-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const candidateRepoColumns = `
	id, invitation_id, repo_full_name, repo_html_url, github_repo_id,
	seed_sha_pinned, archived, created_at, last_commit_at
`

type candidateRepoRepositoryImpl struct {
	db *database.DB
}

// NewCandidateRepoRepository creates a new candidate repo repository instance
func NewCandidateRepoRepository(db *database.DB) invitation.CandidateRepoRepository {
	return &candidateRepoRepositoryImpl{db: db}
}

func scanCandidateRepo(row pgx.Row) (invitation.CandidateRepo, error) {
	var repo invitation.CandidateRepo
	err := row.Scan(
		&repo.ID, &repo.InvitationID, &repo.RepoFullName, &repo.RepoHTMLURL,
		&repo.GitHubRepoID, &repo.SeedSHAPinned, &repo.Archived,
		&repo.CreatedAt, &repo.LastCommitAt,
	)
	return repo, err
}

// Create implements invitation.CandidateRepoRepository. The unique
// constraint on invitation_id enforces the 1:1 invariant; a duplicate
// insert from a racing process maps to ErrRepoAlreadyExists.
func (r *candidateRepoRepositoryImpl) Create(ctx context.Context, repo invitation.CandidateRepo) (invitation.CandidateRepo, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO candidate_repos (
			id, invitation_id, repo_full_name, repo_html_url, github_repo_id,
			seed_sha_pinned, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + candidateRepoColumns

	created, err := scanCandidateRepo(q.QueryRow(ctx, query,
		repo.ID, repo.InvitationID, repo.RepoFullName, repo.RepoHTMLURL,
		repo.GitHubRepoID, repo.SeedSHAPinned, repo.CreatedAt,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return invitation.CandidateRepo{}, invitation.ErrRepoAlreadyExists
		}
		return invitation.CandidateRepo{}, fmt.Errorf("failed to create candidate repo: %w", err)
	}

	return created, nil
}

// GetByInvitationID implements invitation.CandidateRepoRepository.
func (r *candidateRepoRepositoryImpl) GetByInvitationID(ctx context.Context, invitationID string) (invitation.CandidateRepo, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + candidateRepoColumns + ` FROM candidate_repos WHERE invitation_id = $1`

	repo, err := scanCandidateRepo(q.QueryRow(ctx, query, invitationID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return repo, invitation.ErrRepoNotProvisioned
		}
		return repo, fmt.Errorf("failed to get candidate repo: %w", err)
	}

	return repo, nil
}

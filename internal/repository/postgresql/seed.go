package postgresql

import (
	"context"
	"fmt"

	"github.com/codetrial/broker-backend-go/internal/domain/seed"
	"github.com/codetrial/broker-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const seedColumns = `
	id, source_repo_url, seed_repo_full_name, default_branch, is_template,
	latest_main_sha, created_at
`

type seedRepositoryImpl struct {
	db *database.DB
}

// NewSeedRepository creates a new seed repository instance
func NewSeedRepository(db *database.DB) seed.SeedRepository {
	return &seedRepositoryImpl{db: db}
}

func scanSeed(row pgx.Row) (seed.Seed, error) {
	var s seed.Seed
	err := row.Scan(
		&s.ID, &s.SourceRepoURL, &s.SeedRepoFullName, &s.DefaultBranch,
		&s.IsTemplate, &s.LatestMainSHA, &s.CreatedAt,
	)
	return s, err
}

// Create implements seed.SeedRepository.
func (r *seedRepositoryImpl) Create(ctx context.Context, s seed.Seed) (seed.Seed, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO seeds (
			id, source_repo_url, seed_repo_full_name, default_branch,
			is_template, latest_main_sha, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + seedColumns

	created, err := scanSeed(q.QueryRow(ctx, query,
		s.ID, s.SourceRepoURL, s.SeedRepoFullName, s.DefaultBranch,
		s.IsTemplate, s.LatestMainSHA, s.CreatedAt,
	))
	if err != nil {
		return seed.Seed{}, fmt.Errorf("failed to create seed: %w", err)
	}

	return created, nil
}

// GetByID implements seed.SeedRepository.
func (r *seedRepositoryImpl) GetByID(ctx context.Context, id string) (seed.Seed, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + seedColumns + ` FROM seeds WHERE id = $1`

	s, err := scanSeed(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return s, seed.ErrSeedNotFound
		}
		return s, fmt.Errorf("failed to get seed: %w", err)
	}

	return s, nil
}

// List implements seed.SeedRepository.
func (r *seedRepositoryImpl) List(ctx context.Context) ([]seed.Seed, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + seedColumns + ` FROM seeds ORDER BY created_at DESC`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []seed.Seed
	for rows.Next() {
		s, err := scanSeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return seeds, nil
}

// UpdateLatestSHA implements seed.SeedRepository.
func (r *seedRepositoryImpl) UpdateLatestSHA(ctx context.Context, id, sha string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE seeds
		SET latest_main_sha = $2
		WHERE id = $1
		RETURNING id
	`

	var updatedID string
	err := q.QueryRow(ctx, query, id, sha).Scan(&updatedID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return seed.ErrSeedNotFound
		}
		return fmt.Errorf("failed to update seed sha: %w", err)
	}

	return nil
}

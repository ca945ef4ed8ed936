package seed

import "context"

// SeedRepository defines the interface for seed data access
type SeedRepository interface {
	// Create registers a new seed template
	Create(ctx context.Context, s Seed) (Seed, error)

	// GetByID retrieves a seed by id
	GetByID(ctx context.Context, id string) (Seed, error)

	// List lists all registered seeds
	List(ctx context.Context) ([]Seed, error)

	// UpdateLatestSHA refreshes the cached default-branch head SHA
	UpdateLatestSHA(ctx context.Context, id, sha string) error
}

package seed

import "context"

// SeedService manages the seed catalog
type SeedService interface {
	Create(ctx context.Context, req CreateRequest) (Seed, error)
	GetByID(ctx context.Context, id string) (Seed, error)
	List(ctx context.Context) ([]Seed, error)

	// RefreshHeadSHA re-resolves the seed's default branch head and
	// caches it for later pinning. Existing pins are unaffected.
	RefreshHeadSHA(ctx context.Context, id string) (Seed, error)
}

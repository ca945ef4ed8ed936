package memory

import (
	"context"
	"sync"

	"github.com/codetrial/broker-backend-go/internal/domain/assessment"
	"github.com/codetrial/broker-backend-go/internal/domain/seed"
)

type seedStore struct {
	mu      sync.RWMutex
	entries map[string]seed.Seed
}

// NewSeedRepository creates an in-memory seed repository
func NewSeedRepository() seed.SeedRepository {
	return &seedStore{entries: make(map[string]seed.Seed)}
}

func (s *seedStore) Create(_ context.Context, sd seed.Seed) (seed.Seed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sd.ID] = sd
	return sd, nil
}

func (s *seedStore) GetByID(_ context.Context, id string) (seed.Seed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sd, ok := s.entries[id]
	if !ok {
		return seed.Seed{}, seed.ErrSeedNotFound
	}
	return sd, nil
}

func (s *seedStore) List(_ context.Context) ([]seed.Seed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seeds := make([]seed.Seed, 0, len(s.entries))
	for _, sd := range s.entries {
		seeds = append(seeds, sd)
	}
	return seeds, nil
}

func (s *seedStore) UpdateLatestSHA(_ context.Context, id, sha string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sd, ok := s.entries[id]
	if !ok {
		return seed.ErrSeedNotFound
	}
	sd.LatestMainSHA = &sha
	s.entries[id] = sd
	return nil
}

type assessmentStore struct {
	mu      sync.RWMutex
	entries map[string]assessment.Assessment
}

// NewAssessmentRepository creates an in-memory assessment repository
func NewAssessmentRepository() assessment.AssessmentRepository {
	return &assessmentStore{entries: make(map[string]assessment.Assessment)}
}

func (s *assessmentStore) Create(_ context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[a.ID] = a
	return a, nil
}

func (s *assessmentStore) GetByID(_ context.Context, id string) (assessment.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.entries[id]
	if !ok {
		return assessment.Assessment{}, assessment.ErrAssessmentNotFound
	}
	return a, nil
}

func (s *assessmentStore) List(_ context.Context) ([]assessment.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	assessments := make([]assessment.Assessment, 0, len(s.entries))
	for _, a := range s.entries {
		assessments = append(assessments, a)
	}
	return assessments, nil
}

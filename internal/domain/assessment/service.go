package assessment

import "context"

// AssessmentService manages the assessment catalog
type AssessmentService interface {
	Create(ctx context.Context, req CreateRequest) (Assessment, error)
	GetByID(ctx context.Context, id string) (Assessment, error)
	List(ctx context.Context) ([]Assessment, error)
}

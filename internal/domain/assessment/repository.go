package assessment

import "context"

// AssessmentRepository defines the interface for assessment data access
type AssessmentRepository interface {
	// Create creates a new assessment definition
	Create(ctx context.Context, a Assessment) (Assessment, error)

	// GetByID retrieves an assessment by id
	GetByID(ctx context.Context, id string) (Assessment, error)

	// List lists all assessments
	List(ctx context.Context) ([]Assessment, error)
}

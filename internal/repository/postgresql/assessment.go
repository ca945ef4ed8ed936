package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/codetrial/broker-backend-go/internal/domain/assessment"
	"github.com/codetrial/broker-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const assessmentColumns = `
	id, seed_id, title, description, instructions,
	candidate_email_subject, candidate_email_body,
	time_to_start_seconds, time_to_complete_seconds, created_at
`

type assessmentRepositoryImpl struct {
	db *database.DB
}

// NewAssessmentRepository creates a new assessment repository instance
func NewAssessmentRepository(db *database.DB) assessment.AssessmentRepository {
	return &assessmentRepositoryImpl{db: db}
}

// Windows are stored as integral seconds rather than intervals so they
// round-trip into time.Duration without interval month/day ambiguity.
func scanAssessment(row pgx.Row) (assessment.Assessment, error) {
	var a assessment.Assessment
	var startSecs, completeSecs int64
	err := row.Scan(
		&a.ID, &a.SeedID, &a.Title, &a.Description, &a.Instructions,
		&a.CandidateEmailSubject, &a.CandidateEmailBody,
		&startSecs, &completeSecs, &a.CreatedAt,
	)
	if err != nil {
		return a, err
	}
	a.TimeToStart = time.Duration(startSecs) * time.Second
	a.TimeToComplete = time.Duration(completeSecs) * time.Second
	return a, nil
}

// Create implements assessment.AssessmentRepository.
func (r *assessmentRepositoryImpl) Create(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO assessments (
			id, seed_id, title, description, instructions,
			candidate_email_subject, candidate_email_body,
			time_to_start_seconds, time_to_complete_seconds, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + assessmentColumns

	created, err := scanAssessment(q.QueryRow(ctx, query,
		a.ID, a.SeedID, a.Title, a.Description, a.Instructions,
		a.CandidateEmailSubject, a.CandidateEmailBody,
		int64(a.TimeToStart/time.Second), int64(a.TimeToComplete/time.Second),
		a.CreatedAt,
	))
	if err != nil {
		return assessment.Assessment{}, fmt.Errorf("failed to create assessment: %w", err)
	}

	return created, nil
}

// GetByID implements assessment.AssessmentRepository.
func (r *assessmentRepositoryImpl) GetByID(ctx context.Context, id string) (assessment.Assessment, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`

	a, err := scanAssessment(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return a, assessment.ErrAssessmentNotFound
		}
		return a, fmt.Errorf("failed to get assessment: %w", err)
	}

	return a, nil
}

// List implements assessment.AssessmentRepository.
func (r *assessmentRepositoryImpl) List(ctx context.Context) ([]assessment.Assessment, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + assessmentColumns + ` FROM assessments ORDER BY created_at DESC`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var assessments []assessment.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		assessments = append(assessments, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return assessments, nil
}

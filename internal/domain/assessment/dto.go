package assessment

import (
	"time"

	"github.com/codetrial/broker-backend-go/internal/pkg/validator"
)

// CreateRequest defines a new assessment over a registered seed. The
// windows are Go duration strings ("72h", "4h30m").
type CreateRequest struct {
	SeedID                string  `json:"seed_id"`
	Title                 string  `json:"title"`
	Description           *string `json:"description,omitempty"`
	Instructions          *string `json:"instructions,omitempty"`
	CandidateEmailSubject *string `json:"candidate_email_subject,omitempty"`
	CandidateEmailBody    *string `json:"candidate_email_body,omitempty"`
	TimeToStart           string  `json:"time_to_start"`
	TimeToComplete        string  `json:"time_to_complete"`
}

// Validate validates the create request and returns the parsed windows
func (r *CreateRequest) Validate() (timeToStart, timeToComplete time.Duration, err error) {
	var errs validator.ValidationErrors
	if !validator.IsValidUUID(r.SeedID) {
		errs = append(errs, validator.ValidationError{Field: "seed_id", Message: "must be a valid uuid"})
	}
	if validator.IsEmpty(r.Title) {
		errs = append(errs, validator.ValidationError{Field: "title", Message: "is required"})
	}

	var ok bool
	if timeToStart, ok = validator.IsValidDuration(r.TimeToStart); !ok {
		errs = append(errs, validator.ValidationError{Field: "time_to_start", Message: "must be a positive duration"})
	}
	if timeToComplete, ok = validator.IsValidDuration(r.TimeToComplete); !ok {
		errs = append(errs, validator.ValidationError{Field: "time_to_complete", Message: "must be a positive duration"})
	}

	if len(errs) > 0 {
		return 0, 0, errs
	}
	return timeToStart, timeToComplete, nil
}

package invitation

import (
	"time"

	"github.com/codetrial/broker-backend-go/internal/pkg/validator"
)

// CreateRequest is the admin request to invite a candidate
type CreateRequest struct {
	AssessmentID   string  `json:"assessment_id"`
	CandidateEmail string  `json:"candidate_email"`
	CandidateName  *string `json:"candidate_name,omitempty"`
}

// Validate validates the create request
func (r *CreateRequest) Validate() error {
	var errs validator.ValidationErrors
	if !validator.IsValidUUID(r.AssessmentID) {
		errs = append(errs, validator.ValidationError{Field: "assessment_id", Message: "must be a valid uuid"})
	}
	if !validator.IsValidEmail(r.CandidateEmail) {
		errs = append(errs, validator.ValidationError{Field: "candidate_email", Message: "must be a valid email address"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// CreateResponse carries the plaintext start-link token. This is the only
// place the plaintext ever appears; at rest only its hash is stored.
type CreateResponse struct {
	Invitation     Invitation `json:"invitation"`
	StartLinkToken string     `json:"start_link_token"`
}

// StartInfoResponse is the read-only start-page view
type StartInfoResponse struct {
	InvitationID     string            `json:"invitation_id"`
	Status           Status            `json:"status"`
	CandidateEmail   string            `json:"candidate_email"`
	CandidateName    *string           `json:"candidate_name,omitempty"`
	AssessmentTitle  string            `json:"assessment_title"`
	Instructions     *string           `json:"instructions,omitempty"`
	SentAt           time.Time         `json:"sent_at"`
	StartDeadline    time.Time         `json:"start_deadline"`
	CompleteDeadline *time.Time        `json:"complete_deadline,omitempty"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	SubmittedAt      *time.Time        `json:"submitted_at,omitempty"`
	CandidateRepo    *CandidateRepoDTO `json:"candidate_repo,omitempty"`
}

// CandidateRepoDTO is the candidate-facing repo view
type CandidateRepoDTO struct {
	RepoFullName  string  `json:"repo_full_name"`
	RepoHTMLURL   *string `json:"repo_html_url,omitempty"`
	SeedSHAPinned string  `json:"seed_sha_pinned"`
}

// StartResponse is returned by the start transition. AccessToken is the
// opaque plaintext, returned exactly once per mint.
type StartResponse struct {
	InvitationID         string           `json:"invitation_id"`
	Status               Status           `json:"status"`
	StartedAt            time.Time        `json:"started_at"`
	CompleteDeadline     time.Time        `json:"complete_deadline"`
	CandidateRepo        CandidateRepoDTO `json:"candidate_repo"`
	AccessToken          string           `json:"access_token"`
	AccessTokenExpiresAt time.Time        `json:"access_token_expires_at"`
}

// SubmitRequest is the candidate's finish request
type SubmitRequest struct {
	FinalSHA    string  `json:"final_sha"`
	RepoHTMLURL *string `json:"repo_html_url,omitempty"`
}

// Validate validates the submit request
func (r *SubmitRequest) Validate() error {
	var errs validator.ValidationErrors
	if r.FinalSHA != "" && !validator.IsValidCommitSHA(r.FinalSHA) {
		errs = append(errs, validator.ValidationError{Field: "final_sha", Message: "must be a 40-character hex commit sha"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SubmitResponse is returned by the submit transition
type SubmitResponse struct {
	InvitationID string    `json:"invitation_id"`
	SubmissionID string    `json:"submission_id"`
	FinalSHA     string    `json:"final_sha"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Status       Status    `json:"status"`
}

// CredentialResponse is consumed by the git credential helper. Password
// is a live upstream token scoped to the bound repository; ExpiresAt is
// the earlier of the upstream and opaque token expiries.
type CredentialResponse struct {
	Username     string    `json:"username"`
	Password     string    `json:"password"`
	RepoFullName string    `json:"repo_full_name"`
	ExpiresAt    time.Time `json:"expires_at"`
}

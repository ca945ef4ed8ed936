package response

import (
	"errors"
	"net/http"

	"github.com/codetrial/broker-backend-go/internal/domain/accesstoken"
	"github.com/codetrial/broker-backend-go/internal/domain/assessment"
	"github.com/codetrial/broker-backend-go/internal/domain/invitation"
	"github.com/codetrial/broker-backend-go/internal/domain/seed"
	"github.com/codetrial/broker-backend-go/internal/pkg/github"
	"github.com/codetrial/broker-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Invitation lifecycle errors
	case errors.Is(err, invitation.ErrInvitationNotFound):
		NotFound(w, "Invitation not found")
	case errors.Is(err, invitation.ErrDeadlineExceeded):
		Conflict(w, "DEADLINE_EXCEEDED", "The deadline for this invitation has passed")
	case errors.Is(err, invitation.ErrAlreadySubmitted):
		Conflict(w, "ALREADY_SUBMITTED", "This invitation has already been submitted")
	case errors.Is(err, invitation.ErrInvalidTransition):
		Conflict(w, "INVALID_TRANSITION", "The invitation is not in a state that allows this operation")
	case errors.Is(err, invitation.ErrRepoNotProvisioned):
		Conflict(w, "REPO_NOT_PROVISIONED", "No repository has been provisioned for this invitation")
	case errors.Is(err, invitation.ErrProvisioningConflict):
		Conflict(w, "PROVISIONING_CONFLICT", "Could not allocate a repository name, try again")
	case errors.Is(err, invitation.ErrProvisioningUnavailable):
		ServiceUnavailable(w, "Repository provisioning is temporarily unavailable")

	// Upstream errors that escape the service layer directly
	case errors.Is(err, github.ErrAuthorityUnavailable), errors.Is(err, github.ErrUpstreamUnavailable):
		ServiceUnavailable(w, "The upstream git host is temporarily unavailable")

	// Access token errors. The distinct causes collapse into one code
	// so responses don't oracle which tokens exist.
	case errors.Is(err, accesstoken.ErrTokenInvalid):
		Unauthorized(w, "TOKEN_INVALID", "The access token is invalid")

	// Catalog errors
	case errors.Is(err, seed.ErrSeedNotFound):
		NotFound(w, "Seed not found")
	case errors.Is(err, assessment.ErrAssessmentNotFound):
		NotFound(w, "Assessment not found")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}

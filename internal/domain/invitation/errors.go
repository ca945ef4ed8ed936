package invitation

import "errors"

var (
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrDeadlineExceeded   = errors.New("action attempted outside its time window")
	ErrInvalidTransition  = errors.New("action not permitted from the current state")
	ErrRepoNotProvisioned = errors.New("candidate repository has not been provisioned")
	ErrRepoAlreadyExists  = errors.New("candidate repository already exists for this invitation")
	ErrAlreadySubmitted   = errors.New("submission already recorded for this invitation")

	// ErrProvisioningConflict means the naming-collision retries were
	// exhausted; ErrProvisioningUnavailable is retryable by the caller.
	ErrProvisioningConflict    = errors.New("candidate repository naming conflict")
	ErrProvisioningUnavailable = errors.New("repository host unavailable")
)

package invitation

import "time"

// Status represents the lifecycle state of an invitation
type Status string

const (
	StatusSent      Status = "sent"
	StatusAccepted  Status = "accepted"
	StatusStarted   Status = "started"
	StatusSubmitted Status = "submitted"
	StatusExpired   Status = "expired"
	StatusRevoked   Status = "revoked"
)

// IsTerminal reports whether no further transitions are permitted
func (s Status) IsTerminal() bool {
	return s == StatusSubmitted || s == StatusExpired || s == StatusRevoked
}

// Invitation represents a candidate's authorized attempt at one assessment.
// The start-link token is stored only as a keyed hash; the plaintext is
// disclosed exactly once when the invitation is created.
type Invitation struct {
	ID                 string     `json:"id"`
	AssessmentID       string     `json:"assessment_id"`
	CandidateEmail     string     `json:"candidate_email"`
	CandidateName      *string    `json:"candidate_name,omitempty"`
	Status             Status     `json:"status"`
	StartLinkTokenHash string     `json:"-"`
	SentAt             time.Time  `json:"sent_at"`
	StartDeadline      time.Time  `json:"start_deadline"`
	CompleteDeadline   *time.Time `json:"complete_deadline,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	SubmittedAt        *time.Time `json:"submitted_at,omitempty"`
	ExpiredAt          *time.Time `json:"expired_at,omitempty"`
	RevokedAt          *time.Time `json:"revoked_at,omitempty"`
}

// StartWindowOpen checks whether the start deadline has not yet passed
func (i *Invitation) StartWindowOpen(now time.Time) bool {
	return now.Before(i.StartDeadline)
}

// CompleteWindowOpen checks whether the complete deadline has not yet
// passed. Undefined (false) until the invitation has been started.
func (i *Invitation) CompleteWindowOpen(now time.Time) bool {
	return i.CompleteDeadline != nil && now.Before(*i.CompleteDeadline)
}

// Overdue reports whether the deadline governing the current state has
// passed: the start deadline before start, the complete deadline after.
func (i *Invitation) Overdue(now time.Time) bool {
	switch i.Status {
	case StatusSent, StatusAccepted:
		return !i.StartWindowOpen(now)
	case StatusStarted:
		return !i.CompleteWindowOpen(now)
	default:
		return false
	}
}

// CandidateRepo is the private repository provisioned for one invitation,
// at most once. SeedSHAPinned is fixed at creation and never updated, so
// the candidate's starting point stays reproducible regardless of later
// seed refreshes.
type CandidateRepo struct {
	ID            string     `json:"id"`
	InvitationID  string     `json:"invitation_id"`
	RepoFullName  string     `json:"repo_full_name"`
	RepoHTMLURL   *string    `json:"repo_html_url,omitempty"`
	GitHubRepoID  *int64     `json:"github_repo_id,omitempty"`
	SeedSHAPinned string     `json:"seed_sha_pinned"`
	Archived      bool       `json:"archived"`
	CreatedAt     time.Time  `json:"created_at"`
	LastCommitAt  *time.Time `json:"last_commit_at,omitempty"`
}

// Submission records the candidate's final state, at most once per
// invitation. Immutable once created.
type Submission struct {
	ID           string    `json:"id"`
	InvitationID string    `json:"invitation_id"`
	FinalSHA     string    `json:"final_sha"`
	RepoHTMLURL  *string   `json:"repo_html_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

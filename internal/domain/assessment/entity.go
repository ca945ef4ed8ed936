package assessment

import (
	"encoding/json"
	"time"
)

// Assessment defines which seed an invitation forks from and the time
// windows granted to the candidate. The windows are stored as durations;
// absolute deadlines are computed per invitation at send/start time.
type Assessment struct {
	ID                    string        `json:"id"`
	SeedID                string        `json:"seed_id"`
	Title                 string        `json:"title"`
	Description           *string       `json:"description,omitempty"`
	Instructions          *string       `json:"instructions,omitempty"`
	CandidateEmailSubject *string       `json:"candidate_email_subject,omitempty"`
	CandidateEmailBody    *string       `json:"candidate_email_body,omitempty"`
	TimeToStart           time.Duration `json:"-"`
	TimeToComplete        time.Duration `json:"-"`
	CreatedAt             time.Time     `json:"created_at"`
}

// MarshalJSON renders the windows as duration strings instead of raw
// nanosecond counts.
func (a Assessment) MarshalJSON() ([]byte, error) {
	type alias Assessment
	return json.Marshal(struct {
		alias
		TimeToStart    string `json:"time_to_start"`
		TimeToComplete string `json:"time_to_complete"`
	}{
		alias:          alias(a),
		TimeToStart:    a.TimeToStart.String(),
		TimeToComplete: a.TimeToComplete.String(),
	})
}

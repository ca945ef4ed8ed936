package seed

import "time"

// Seed represents a template repository that candidate repositories are
// derived from. Read-mostly: written when registered and when the pinned
// main SHA is refreshed out-of-band.
type Seed struct {
	ID               string    `json:"id"`
	SourceRepoURL    string    `json:"source_repo_url"`
	SeedRepoFullName string    `json:"seed_repo_full_name"`
	DefaultBranch    string    `json:"default_branch"`
	IsTemplate       bool      `json:"is_template"`
	LatestMainSHA    *string   `json:"latest_main_sha,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

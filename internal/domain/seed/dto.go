package seed

import "github.com/codetrial/broker-backend-go/internal/pkg/validator"

// CreateRequest registers a template repository as a seed
type CreateRequest struct {
	SourceRepoURL    string `json:"source_repo_url"`
	SeedRepoFullName string `json:"seed_repo_full_name"`
	DefaultBranch    string `json:"default_branch"`
	IsTemplate       bool   `json:"is_template"`
}

// Validate validates the create request
func (r *CreateRequest) Validate() error {
	var errs validator.ValidationErrors
	if validator.IsEmpty(r.SourceRepoURL) {
		errs = append(errs, validator.ValidationError{Field: "source_repo_url", Message: "is required"})
	}
	if !validator.IsValidRepoFullName(r.SeedRepoFullName) {
		errs = append(errs, validator.ValidationError{Field: "seed_repo_full_name", Message: "must be an owner/name repository reference"})
	}
	if validator.IsEmpty(r.DefaultBranch) {
		errs = append(errs, validator.ValidationError{Field: "default_branch", Message: "is required"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

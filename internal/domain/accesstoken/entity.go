package accesstoken

import "time"

// Scope is the permission granted by an access token
type Scope string

const (
	ScopeClone     Scope = "clone"
	ScopePush      Scope = "push"
	ScopeClonePush Scope = "clone+push"
)

// Valid reports whether the scope is one of the known values
func (s Scope) Valid() bool {
	return s == ScopeClone || s == ScopePush || s == ScopeClonePush
}

// AccessToken is an opaque bearer credential bound to one invitation and
// one repository. Only the keyed hash of the opaque value is persisted;
// the plaintext exists only in the response that mints it.
type AccessToken struct {
	ID              string
	InvitationID    string
	RepoFullName    string
	OpaqueTokenHash string
	Scope           Scope
	ExpiresAt       time.Time
	Revoked         bool
	LastUsedAt      *time.Time
	CreatedAt       time.Time
}

// Expired reports whether the token's fixed lifetime has passed. Expiry
// never slides on use.
func (t *AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

package accesstoken

import (
	"errors"
	"fmt"
)

// ErrTokenInvalid covers every rejection of a presented credential. The
// wrapped causes stay distinct for logging and tests, but callers match
// on ErrTokenInvalid.
var (
	ErrTokenInvalid = errors.New("access token invalid")

	ErrTokenNotFound = fmt.Errorf("%w: not found", ErrTokenInvalid)
	ErrTokenExpired  = fmt.Errorf("%w: expired", ErrTokenInvalid)
	ErrTokenRevoked  = fmt.Errorf("%w: revoked", ErrTokenInvalid)
)

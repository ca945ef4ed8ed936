package seed

import "errors"

var (
	ErrSeedNotFound = errors.New("seed not found")
)

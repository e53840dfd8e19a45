package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidTimeframe = errors.New("invalid timeframe")
	ErrInvalidKey       = errors.New("invalid instrument key")
	ErrProviderFailure  = errors.New("provider failure")
	ErrStorageFailure   = errors.New("storage failure")
)

package domain

import "errors"

var (
	// ErrNotFound is returned by stores and caches when the requested
	// record does not exist or is no longer writable.
	ErrNotFound = errors.New("not found")

	// ErrMarketNotFound is returned by the price source when the upstream
	// API does not know the market. Permanent, never retried.
	ErrMarketNotFound = errors.New("market not found")

	// ErrInvalidPosition is returned when user-supplied position parameters
	// fail validation.
	ErrInvalidPosition = errors.New("invalid position parameters")
)

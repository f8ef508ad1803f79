package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrLockHeld     = errors.New("lock already held")
)

var (
	// ErrVaultNotInitialized means no credential file exists yet.
	ErrVaultNotInitialized = errors.New("credential vault not initialized")

	// ErrInvalidPasswordOrCorrupt covers both a wrong password and a damaged
	// credential file. Callers must not be able to tell the two apart.
	ErrInvalidPasswordOrCorrupt = errors.New("invalid password or corrupt credential file")

	ErrUpstreamUnavailable       = errors.New("position listing unavailable")
	ErrRelaySubmissionFailed     = errors.New("relay submission failed")
	ErrUnsupportedCandidateShape = errors.New("unsupported redemption candidate shape")
	ErrConfigInvalid             = errors.New("invalid configuration")
)

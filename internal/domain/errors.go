package domain

import "errors"

var (
	// ErrNoSessionAvailable is transient: the pool may refill, callers
	// should retry later.
	ErrNoSessionAvailable = errors.New("no sessions available")

	// ErrSessionNotFound covers unlock of an unknown, already-unlocked,
	// or not-owned session.
	ErrSessionNotFound = errors.New("session does not exist or does not belong to the experiment")

	// ErrInvalidVerifyType flags a session row whose verify_type matches
	// no configured freshness window. The freshness check for that
	// session is aborted; the service keeps running.
	ErrInvalidVerifyType = errors.New("invalid verify_type on session")

	// ErrSessionDataMissing means the cookie/local-storage blob for a
	// granted session could not be loaded.
	ErrSessionDataMissing = errors.New("session data not found")
)

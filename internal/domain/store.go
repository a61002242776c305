package domain

import (
	"context"
	"encoding/json"
	"time"
)

// LockGrant describes one session to lock during allocation. When
// RecordHistory is set, the grant also inserts the experiment/website
// dedup record (non-pinned requests only).
type LockGrant struct {
	SessionID     int64
	WebsiteID     int64
	RecordHistory bool
}

// LeaseStore is the transactional record set behind the lease manager.
// Every mutation (lock, unlock, record allocation) runs in a single
// transaction so a crash mid-allocation leaves no session half-locked.
type LeaseStore interface {
	// ListEligible returns all allocatable candidates (status active,
	// unlocked, verified) joined with account and website, in stable
	// ascending session id order.
	ListEligible(ctx context.Context) ([]Candidate, error)

	// ListExpiredLeases returns every locked session whose unlock_time
	// has elapsed, regardless of eligibility.
	ListExpiredLeases(ctx context.Context, now time.Time) ([]Candidate, error)

	// Unlock performs the full release transition: clears the lease,
	// resets verification, marks the session expired, and enqueues
	// exactly one validation task. One transaction.
	Unlock(ctx context.Context, sessionID int64, now time.Time) error

	// LockSessions assigns every grant to the experiment with the given
	// unlock deadline, in one transaction. Locking is conditional on the
	// session still being unlocked; a lost race aborts the transaction
	// with ErrNoSessionAvailable.
	LockSessions(ctx context.Context, experiment string, until time.Time, grants []LockGrant) error

	// UsedWebsites returns the ids of websites already handed to the
	// experiment through non-pinned grants.
	UsedWebsites(ctx context.Context, experiment string) (map[int64]struct{}, error)

	// SessionByNameAndExperiment resolves a session currently leased to
	// the experiment. Returns ErrSessionNotFound when it does not exist
	// or belongs to someone else.
	SessionByNameAndExperiment(ctx context.Context, name, experiment string) (*Session, error)

	// ForceReleaseAll unlocks every leased session and reports how many
	// were released. Admin tooling only.
	ForceReleaseAll(ctx context.Context, now time.Time) (int, error)
}

// FormCatalog looks up the best-matching login form for a site:
// a previously-successful form if one exists, else any form for the
// site, else nil.
type FormCatalog interface {
	BestLoginForm(ctx context.Context, site string) (*LoginForm, error)
}

// SessionDataStore loads the cookie/local-storage blob for a session,
// keyed by session name. The blob must exist for a grant to succeed.
type SessionDataStore interface {
	Load(ctx context.Context, name string) (json.RawMessage, error)
}

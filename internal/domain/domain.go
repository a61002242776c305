package domain

import "time"

// VerifyType says which freshness window applies to a session. It is set
// by the external verifier and reset to VerifyNone on every unlock.
type VerifyType string

const (
	VerifyAuto   VerifyType = "auto"
	VerifyManual VerifyType = "manual"
	VerifyNone   VerifyType = "no"
)

// Website is created once during onboarding and is read-only here.
type Website struct {
	ID          int64     `json:"id"`
	Site        string    `json:"site"`
	Origin      string    `json:"origin"`
	LandingPage string    `json:"landing_page"`
	TrancoRank  int       `json:"t_rank"`
	CruxBucket  int       `json:"c_bucket"`
	CreatedAt   time.Time `json:"created_at"`
}

// Account belongs to exactly one website and holds at most one session.
// Owned by the external provisioning subsystem.
type Account struct {
	ID        int64  `json:"id"`
	WebsiteID int64  `json:"website"`
	SessionID *int64 `json:"session"`
}

// SessionStatus is a seeded lookup row. Only sessions whose status is
// flagged active are eligible for allocation.
type SessionStatus struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Session is the leasable resource. The lease manager only ever drives
// the locked/unlocked transition and the freshness-based forced expiry;
// it never creates or deletes sessions.
type Session struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	StatusID   int64      `json:"session_status"`
	Locked     bool       `json:"locked"`
	Verified   bool       `json:"verified"`
	VerifyType VerifyType `json:"verify_type"`
	Experiment *string    `json:"experiment"`
	UnlockTime time.Time  `json:"unlock_time"`
	UpdateTime time.Time  `json:"update_time"`
}

// LoginForm is a read-only record from the form catalog written by the
// crawler subsystem.
type LoginForm struct {
	ID      int64  `json:"id"`
	Site    string `json:"site"`
	FormURL string `json:"form_url"`
	Success bool   `json:"success"`
}

// ValidateTask is the outbox record that hands an unlocked session back
// to the external verifier. Exactly one is created per unlock event.
type ValidateTask struct {
	ID        int64     `json:"id"`
	SessionID int64     `json:"session"`
	TaskType  string    `json:"task_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Candidate is a session joined with its account and website, as
// produced by the eligibility query. The allocation policy operates on
// candidates only.
type Candidate struct {
	Session   Session
	AccountID int64
	Website   Website
}
